package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
	"github.com/pl-luk/depthcharge-tools/pkg/logging"
)

// Installer copies built artifacts into a destination root per the
// manifest mappings. Uninstall consumes the identical mappings, which is
// the invariant that makes the two directions reversible.
type Installer struct {
	fs     afero.Fs
	outDir string
	logger zerolog.Logger
}

// NewInstaller creates an installer reading artifacts from outDir.
func NewInstaller(fsys afero.Fs, outDir string) *Installer {
	return &Installer{
		fs:     fsys,
		outDir: outDir,
		logger: logging.GetLogger("installer"),
	}
}

// Install creates every declared directory, then copies each artifact to
// root+dest with its declared mode. Every artifact is stat'ed up front so
// a missing source aborts before any directory is created. Directory
// creation and copies are idempotent; the first failure aborts the
// remaining entries and leaves completed ones in place.
func (i *Installer) Install(root string, mappings []Mapping) error {
	for _, m := range mappings {
		src := filepath.Join(i.outDir, m.Artifact)
		if _, err := i.fs.Stat(src); err != nil {
			return errors.Wrapf(err, errors.ErrMissingSource,
				"artifact %s not found in %s", m.Artifact, i.outDir)
		}
	}

	for _, m := range mappings {
		for _, dir := range m.Dirs {
			target := joinRoot(root, dir)
			if err := i.fs.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrUnwritableDestination,
					"failed to create directory %s", target)
			}
			i.logger.Debug().Str("dir", target).Msg("created directory")
		}
	}

	for _, m := range mappings {
		if err := i.installOne(root, m); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) installOne(root string, m Mapping) error {
	src := filepath.Join(i.outDir, m.Artifact)
	dest := joinRoot(root, m.Dest)

	data, err := afero.ReadFile(i.fs, src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrMissingSource, "failed to read artifact %s", src)
	}
	if err := i.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrUnwritableDestination,
			"failed to create directory %s", filepath.Dir(dest))
	}
	if err := afero.WriteFile(i.fs, dest, data, m.Mode); err != nil {
		return errors.Wrapf(err, errors.ErrUnwritableDestination, "failed to write %s", dest)
	}
	// WriteFile's perm only applies to newly created files.
	if err := i.fs.Chmod(dest, m.Mode); err != nil {
		return errors.Wrapf(err, errors.ErrUnwritableDestination, "failed to chmod %s", dest)
	}

	i.logger.Info().Str("artifact", m.Artifact).Str("dest", dest).
		Str("mode", m.Mode.String()).Msg("installed")
	return nil
}

// Uninstall removes each installed file, then attempts a non-recursive
// removal of the declared directories, deepest first. Missing files and
// non-empty directories are tolerated, so uninstall is idempotent and safe
// to re-run.
func (i *Installer) Uninstall(root string, mappings []Mapping) error {
	for _, m := range mappings {
		dest := joinRoot(root, m.Dest)
		err := i.fs.Remove(dest)
		switch {
		case err == nil:
			i.logger.Info().Str("path", dest).Msg("removed")
		case os.IsNotExist(err):
			i.logger.Debug().Str("path", dest).Msg("already absent")
		default:
			return errors.Wrapf(err, errors.ErrUnwritableDestination, "failed to remove %s", dest)
		}
	}

	for _, dir := range ownedDirs(root, mappings) {
		entries, err := afero.ReadDir(i.fs, dir)
		if err != nil {
			i.logger.Debug().Str("dir", dir).Msg("directory already absent")
			continue
		}
		if len(entries) > 0 {
			// Shared with other content, never forced.
			i.logger.Debug().Str("dir", dir).Int("entries", len(entries)).Msg("directory not empty, kept")
			continue
		}
		if err := i.fs.Remove(dir); err != nil {
			i.logger.Debug().Str("dir", dir).Err(err).Msg("directory not removed")
			continue
		}
		i.logger.Info().Str("dir", dir).Msg("removed directory")
	}
	return nil
}

// ownedDirs collects the declared directories across all mappings, deepest
// first so nested directories empty out before their parents are tried.
func ownedDirs(root string, mappings []Mapping) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, m := range mappings {
		for _, dir := range m.Dirs {
			target := joinRoot(root, dir)
			if !seen[target] {
				seen[target] = true
				dirs = append(dirs, target)
			}
		}
	}
	sort.Slice(dirs, func(a, b int) bool {
		da := strings.Count(dirs[a], string(filepath.Separator))
		db := strings.Count(dirs[b], string(filepath.Separator))
		if da != db {
			return da > db
		}
		return dirs[a] < dirs[b]
	})
	return dirs
}

// joinRoot prefixes an absolute destination path with the destination
// root. An empty root leaves the path untouched.
func joinRoot(root, path string) string {
	if root == "" {
		return path
	}
	return filepath.Join(root, path)
}
