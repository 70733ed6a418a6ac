// Package docs wraps the man-page formatter behind a stable interface.
// The formatter itself is a pure text transform: markdown man source in,
// roff out, deterministic for identical input.
package docs

import (
	"os"

	"github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/spf13/afero"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
)

// FormatMan converts a markdown man-page source into roff.
func FormatMan(src []byte) []byte {
	return md2man.Render(src)
}

// FormatManFile reads inPath, formats it and writes the page to outPath
// with the given mode.
func FormatManFile(fsys afero.Fs, inPath, outPath string, mode os.FileMode) error {
	src, err := afero.ReadFile(fsys, inPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrMissingSource, "failed to read doc source %s", inPath)
	}
	out := FormatMan(src)
	if err := afero.WriteFile(fsys, outPath, out, mode); err != nil {
		return errors.Wrapf(err, errors.ErrArtifactWrite, "failed to write man page %s", outPath)
	}
	return nil
}
