// Package config resolves the fixed set of build-time configuration
// variables from layered sources: built-in defaults, the package config
// file, DEPTHCHARGE_* environment variables and explicit caller overrides.
// Later layers win outright per variable. Deferred ${NAME} references in
// defaults are expanded against the final resolved values, never against
// another variable's own default.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
	"github.com/pl-luk/depthcharge-tools/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix is the prefix recognized on environment variable overrides.
const EnvPrefix = "DEPTHCHARGE_"

// LocalConfigFile is the package config file looked up in the working
// directory when no explicit file is given.
const LocalConfigFile = "depthcharge-build.toml"

// Origin identifies which source layer a resolved value came from.
type Origin string

const (
	OriginBuiltin     Origin = "builtin-default"
	OriginPackage     Origin = "package-default"
	OriginEnvironment Origin = "environment"
	OriginOverride    Origin = "explicit-override"
)

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("not implemented")
}

// Values is the immutable result of configuration resolution: exactly one
// value per recognized variable name, with the layer it was taken from.
type Values struct {
	values  map[string]string
	origins map[string]Origin
}

// Get returns the resolved value for name.
func (v *Values) Get(name string) (string, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Origin returns the source layer name's value was resolved from.
func (v *Values) Origin(name string) (Origin, bool) {
	o, ok := v.origins[name]
	return o, ok
}

// Names returns all recognized variable names in sorted order.
func (v *Values) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the resolved name-to-value mapping.
func (v *Values) Map() map[string]string {
	m := make(map[string]string, len(v.values))
	for k, val := range v.values {
		m[k] = val
	}
	return m
}

// Bool interprets a resolved value as a toggle. Empty, "no", "false" and
// "0" are false; everything else is true.
func (v *Values) Bool(name string) bool {
	val := strings.ToLower(strings.TrimSpace(v.values[name]))
	switch val {
	case "", "no", "false", "0":
		return false
	}
	return true
}

// Expand substitutes ${NAME} references in s with resolved values. A
// reference to an unrecognized name is a CONFIG_REFERENCE error.
func (v *Values) Expand(s string) (string, error) {
	return expandRefs(s, v.values)
}

// Options control configuration resolution.
type Options struct {
	// ConfigFile is an explicit package config file. When empty, the
	// default locations are searched instead.
	ConfigFile string

	// Overrides is the highest-precedence layer, typically from --set
	// flags on the command line.
	Overrides map[string]string
}

// Resolve produces the final variable mapping from all source layers.
// The recognized variable set is fixed by the built-in defaults; values
// for unrecognized names in higher layers are ignored.
func Resolve(opts Options) (*Values, error) {
	logger := logging.GetLogger("config")

	// 1. Built-in defaults define the recognized set.
	builtin := koanf.New(".")
	if err := builtin.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load built-in defaults")
	}

	values := make(map[string]string)
	origins := make(map[string]Origin)
	for _, name := range builtin.Keys() {
		values[name] = builtin.String(name)
		origins[name] = OriginBuiltin
	}

	// 2. Package config file, if one exists.
	if path := findConfigFile(opts.ConfigFile); path != "" {
		pkgLayer := koanf.New(".")
		if err := pkgLayer.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config file %s", path)
		}
		applyLayer(values, origins, pkgLayer, OriginPackage)
		logger.Debug().Str("path", path).Msg("loaded package config file")
	}

	// 3. Environment variables.
	envLayer := koanf.New(".")
	err := envLayer.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(s, EnvPrefix)
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment variables")
	}
	applyLayer(values, origins, envLayer, OriginEnvironment)

	// 4. Explicit overrides.
	if len(opts.Overrides) > 0 {
		raw := make(map[string]interface{}, len(opts.Overrides))
		for name, value := range opts.Overrides {
			if _, ok := values[name]; !ok {
				logger.Warn().Str("name", name).Msg("ignoring override for unrecognized variable")
				continue
			}
			raw[name] = value
		}
		overrideLayer := koanf.New(".")
		if err := overrideLayer.Load(confmap.Provider(raw, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load overrides")
		}
		applyLayer(values, origins, overrideLayer, OriginOverride)
	}

	// Expand deferred references against the final values.
	expanded, err := expandAll(values)
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("variables", len(expanded)).Msg("configuration resolved")
	return &Values{values: expanded, origins: origins}, nil
}

// applyLayer copies the layer's values for recognized names only, stamping
// them with the layer's origin.
func applyLayer(values map[string]string, origins map[string]Origin, layer *koanf.Koanf, origin Origin) {
	for _, name := range layer.Keys() {
		if _, ok := values[name]; !ok {
			continue
		}
		values[name] = layer.String(name)
		origins[name] = origin
	}
}

// findConfigFile returns the package config file to load, or "" when none
// exists. An explicitly requested file must exist.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{
		LocalConfigFile,
		filepath.Join(xdg.ConfigHome, "depthcharge-tools", "config.toml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
