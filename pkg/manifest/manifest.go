// Package manifest holds the fixed declaration of what gets built and
// where it installs. The manifest is pure data: one embedded TOML document
// consumed identically by the Installer and the Uninstaller, which is what
// keeps the two directions in lockstep.
package manifest

import (
	_ "embed"
	"os"
	"strconv"

	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/pl-luk/depthcharge-tools/pkg/config"
	"github.com/pl-luk/depthcharge-tools/pkg/errors"
)

//go:embed embedded/manifest.toml
var manifestTOML []byte

// StandaloneSuffix names the bundled artifact in the build output
// directory, keeping it apart from the plain substituted template.
const StandaloneSuffix = ".standalone"

// TemplateEntry declares a script template: substituted at build time,
// installed with its mode.
type TemplateEntry struct {
	Name   string   `toml:"name"`
	Source string   `toml:"source"`
	Dest   string   `toml:"dest"`
	Mode   string   `toml:"mode"`
	Dirs   []string `toml:"dirs"`
}

// FragmentEntry declares a member of the fixed fragment set. Required
// fragments must exist when the standalone variant is built.
type FragmentEntry struct {
	Name     string `toml:"name"`
	Source   string `toml:"source"`
	Required bool   `toml:"required"`
}

// DocEntry declares a man-page source formatted at build time.
type DocEntry struct {
	Name   string   `toml:"name"`
	Source string   `toml:"source"`
	Dest   string   `toml:"dest"`
	Mode   string   `toml:"mode"`
	Dirs   []string `toml:"dirs"`
}

// FileEntry declares a file copied verbatim. When names a configuration
// variable; the entry is skipped unless that variable is truthy.
type FileEntry struct {
	Name   string   `toml:"name"`
	Source string   `toml:"source"`
	Dest   string   `toml:"dest"`
	Mode   string   `toml:"mode"`
	Dirs   []string `toml:"dirs"`
	When   string   `toml:"when"`
}

// StandaloneEntry declares the bundled, dependency-free variant of one of
// the templates.
type StandaloneEntry struct {
	Template string `toml:"template"`
	Dest     string `toml:"dest"`
	Mode     string `toml:"mode"`
}

// Manifest is the complete static declaration.
type Manifest struct {
	Templates  []TemplateEntry `toml:"template"`
	Fragments  []FragmentEntry `toml:"fragment"`
	Docs       []DocEntry      `toml:"doc"`
	Files      []FileEntry     `toml:"file"`
	Standalone StandaloneEntry `toml:"standalone"`
}

// Load parses the embedded manifest.
func Load() (*Manifest, error) {
	var m Manifest
	if err := gotoml.Unmarshal(manifestTOML, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to parse embedded manifest")
	}
	return &m, nil
}

// Template returns the template entry with the given name.
func (m *Manifest) Template(name string) (TemplateEntry, bool) {
	for _, t := range m.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return TemplateEntry{}, false
}

// Mapping is one resolved install mapping: a built artifact, its final
// destination path, its mode and the directories to pre-create.
type Mapping struct {
	Artifact string
	Dest     string
	Mode     os.FileMode
	Dirs     []string
}

// InstallMappings resolves the manifest's destination templates against
// cfg. With standaloneOnly set, only the bundled artifact's mapping is
// returned; otherwise every template, doc and (non-gated) file entry is.
func (m *Manifest) InstallMappings(cfg *config.Values, standaloneOnly bool) ([]Mapping, error) {
	if standaloneOnly {
		mode, err := ParseMode(m.Standalone.Mode)
		if err != nil {
			return nil, err
		}
		dest, err := cfg.Expand(m.Standalone.Dest)
		if err != nil {
			return nil, err
		}
		return []Mapping{{
			Artifact: m.Standalone.Template + StandaloneSuffix,
			Dest:     dest,
			Mode:     mode,
		}}, nil
	}

	var mappings []Mapping
	add := func(artifact, dest, mode string, dirs []string) error {
		fm, err := ParseMode(mode)
		if err != nil {
			return err
		}
		d, err := cfg.Expand(dest)
		if err != nil {
			return err
		}
		expanded := make([]string, 0, len(dirs))
		for _, dir := range dirs {
			e, err := cfg.Expand(dir)
			if err != nil {
				return err
			}
			expanded = append(expanded, e)
		}
		mappings = append(mappings, Mapping{Artifact: artifact, Dest: d, Mode: fm, Dirs: expanded})
		return nil
	}

	for _, t := range m.Templates {
		if err := add(t.Name, t.Dest, t.Mode, t.Dirs); err != nil {
			return nil, err
		}
	}
	for _, d := range m.Docs {
		if err := add(d.Name, d.Dest, d.Mode, d.Dirs); err != nil {
			return nil, err
		}
	}
	for _, f := range m.Files {
		if f.When != "" && !cfg.Bool(f.When) {
			continue
		}
		if err := add(f.Name, f.Dest, f.Mode, f.Dirs); err != nil {
			return nil, err
		}
	}
	return mappings, nil
}

// ParseMode parses an octal permission string like "0755".
func ParseMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0644, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrInternal, "invalid mode %q in manifest", s)
	}
	return os.FileMode(n), nil
}
