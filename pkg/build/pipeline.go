// Package build orchestrates the artifact pipeline: configuration is
// resolved once, templates are substituted, the standalone variant is
// bundled, doc sources are formatted, and the installer consumes the
// finished artifacts. All steps run strictly in that order.
package build

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pl-luk/depthcharge-tools/pkg/config"
	"github.com/pl-luk/depthcharge-tools/pkg/docs"
	"github.com/pl-luk/depthcharge-tools/pkg/errors"
	"github.com/pl-luk/depthcharge-tools/pkg/logging"
	"github.com/pl-luk/depthcharge-tools/pkg/manifest"
	"github.com/pl-luk/depthcharge-tools/pkg/template"
)

// DefaultOutDir is where build outputs land unless overridden.
const DefaultOutDir = "build"

// Pipeline runs the build targets against one resolved configuration.
type Pipeline struct {
	fs     afero.Fs
	cfg    *config.Values
	man    *manifest.Manifest
	srcDir string
	outDir string
	logger zerolog.Logger
}

// New creates a pipeline. srcDir is the repository root holding the
// payload sources; outDir receives the generated artifacts.
func New(fsys afero.Fs, cfg *config.Values, man *manifest.Manifest, srcDir, outDir string) *Pipeline {
	return &Pipeline{
		fs:     fsys,
		cfg:    cfg,
		man:    man,
		srcDir: srcDir,
		outDir: outDir,
		logger: logging.GetLogger("build"),
	}
}

// Build generates every artifact: substituted templates, the bundled
// standalone variant, formatted man pages and verbatim data files.
// Artifacts are created fresh on every run.
func (p *Pipeline) Build() error {
	if err := p.fs.MkdirAll(p.outDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrArtifactWrite, "failed to create %s", p.outDir)
	}

	for _, t := range p.man.Templates {
		if err := p.buildTemplate(t); err != nil {
			return err
		}
	}
	if err := p.BuildStandalone(); err != nil {
		return err
	}
	for _, d := range p.man.Docs {
		if err := p.buildDoc(d); err != nil {
			return err
		}
	}
	for _, f := range p.man.Files {
		if f.When != "" && !p.cfg.Bool(f.When) {
			p.logger.Debug().Str("file", f.Name).Str("when", f.When).Msg("skipped gated file")
			continue
		}
		if err := p.buildFile(f); err != nil {
			return err
		}
	}
	return nil
}

// BuildStandalone substitutes the standalone template and bundles the
// fragment set into it, producing the single self-contained artifact.
func (p *Pipeline) BuildStandalone() error {
	entry, ok := p.man.Template(p.man.Standalone.Template)
	if !ok {
		return errors.Newf(errors.ErrInternal,
			"standalone references unknown template %s", p.man.Standalone.Template)
	}
	if err := p.fs.MkdirAll(p.outDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrArtifactWrite, "failed to create %s", p.outDir)
	}

	tmpl, err := p.substituted(entry)
	if err != nil {
		return err
	}

	fragments := template.NewFragmentSet(template.MissingBlankLine)
	for _, f := range p.man.Fragments {
		body, err := afero.ReadFile(p.fs, filepath.Join(p.srcDir, f.Source))
		if err != nil {
			if f.Required {
				return errors.Wrapf(err, errors.ErrMissingSource,
					"required fragment %s not found", f.Name)
			}
			p.logger.Warn().Str("fragment", f.Name).Msg("optional fragment missing")
			continue
		}
		fragments.Add(f.Name, string(body))
	}

	bundled, err := fragments.Bundle(tmpl)
	if err != nil {
		return err
	}

	mode, err := manifest.ParseMode(p.man.Standalone.Mode)
	if err != nil {
		return err
	}
	name := p.man.Standalone.Template + manifest.StandaloneSuffix
	if err := p.writeArtifact(name, []byte(bundled.Render()), mode); err != nil {
		return err
	}
	p.logger.Info().Str("artifact", name).Int("lines", bundled.Len()).Msg("bundled standalone artifact")
	return nil
}

// Install builds everything, then installs per the manifest under root.
func (p *Pipeline) Install(root string) error {
	if err := p.Build(); err != nil {
		return err
	}
	mappings, err := p.man.InstallMappings(p.cfg, false)
	if err != nil {
		return err
	}
	return manifest.NewInstaller(p.fs, p.outDir).Install(root, mappings)
}

// InstallStandalone builds the bundled artifact and installs only it.
func (p *Pipeline) InstallStandalone(root string) error {
	if err := p.BuildStandalone(); err != nil {
		return err
	}
	mappings, err := p.man.InstallMappings(p.cfg, true)
	if err != nil {
		return err
	}
	return manifest.NewInstaller(p.fs, p.outDir).Install(root, mappings)
}

// Uninstall removes the installed file set under root using the same
// manifest mappings install used.
func (p *Pipeline) Uninstall(root string) error {
	mappings, err := p.man.InstallMappings(p.cfg, false)
	if err != nil {
		return err
	}
	return manifest.NewInstaller(p.fs, p.outDir).Uninstall(root, mappings)
}

// Clean deletes the generated artifacts, never installed files.
func (p *Pipeline) Clean() error {
	if err := p.fs.RemoveAll(p.outDir); err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to remove %s", p.outDir)
	}
	p.logger.Info().Str("dir", p.outDir).Msg("cleaned build output")
	return nil
}

// substituted reads a template source and applies the resolved variables.
func (p *Pipeline) substituted(entry manifest.TemplateEntry) (*template.Template, error) {
	src := filepath.Join(p.srcDir, entry.Source)
	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrMissingSource, "template %s not found", src)
	}
	return template.Parse(string(data)).Substitute(p.cfg.Map()), nil
}

func (p *Pipeline) buildTemplate(entry manifest.TemplateEntry) error {
	tmpl, err := p.substituted(entry)
	if err != nil {
		return err
	}
	mode, err := manifest.ParseMode(entry.Mode)
	if err != nil {
		return err
	}
	if err := p.writeArtifact(entry.Name, []byte(tmpl.Render()), mode); err != nil {
		return err
	}
	p.logger.Info().Str("artifact", entry.Name).Int("lines", tmpl.Len()).Msg("substituted template")
	return nil
}

func (p *Pipeline) buildDoc(entry manifest.DocEntry) error {
	mode, err := manifest.ParseMode(entry.Mode)
	if err != nil {
		return err
	}
	src := filepath.Join(p.srcDir, entry.Source)
	out := filepath.Join(p.outDir, entry.Name)
	if err := docs.FormatManFile(p.fs, src, out, mode); err != nil {
		return err
	}
	p.logger.Info().Str("artifact", entry.Name).Msg("formatted man page")
	return nil
}

func (p *Pipeline) buildFile(entry manifest.FileEntry) error {
	src := filepath.Join(p.srcDir, entry.Source)
	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrMissingSource, "file %s not found", src)
	}
	mode, err := manifest.ParseMode(entry.Mode)
	if err != nil {
		return err
	}
	return p.writeArtifact(entry.Name, data, mode)
}

func (p *Pipeline) writeArtifact(name string, data []byte, mode os.FileMode) error {
	path := filepath.Join(p.outDir, name)
	if err := afero.WriteFile(p.fs, path, data, mode); err != nil {
		return errors.Wrapf(err, errors.ErrArtifactWrite, "failed to write artifact %s", path)
	}
	if err := p.fs.Chmod(path, mode); err != nil {
		return errors.Wrapf(err, errors.ErrArtifactWrite, "failed to chmod artifact %s", path)
	}
	return nil
}
