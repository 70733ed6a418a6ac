package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/pl-luk/depthcharge-tools/internal/version"
	"github.com/pl-luk/depthcharge-tools/pkg/build"
	"github.com/pl-luk/depthcharge-tools/pkg/config"
	"github.com/pl-luk/depthcharge-tools/pkg/errors"
	"github.com/pl-luk/depthcharge-tools/pkg/logging"
	"github.com/pl-luk/depthcharge-tools/pkg/manifest"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity  int
		configFile string
		outDir     string
		setValues  []string
	)

	rootCmd := &cobra.Command{
		Use:   "depthcharge-build",
		Short: "Build and install the depthcharge-tools scripts",
		Long: `depthcharge-build turns the depthcharge-tools script templates and
documentation sources into finished artifacts and installs them into a
destination root: configuration values are substituted into the payload
scripts, the standalone variant gets its library fragments inlined, and
man pages are generated from their markdown sources.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Package config file overriding the built-in defaults")
	rootCmd.PersistentFlags().StringVarP(&outDir, "output", "o", build.DefaultOutDir, "Directory for generated artifacts")
	rootCmd.PersistentFlags().StringArrayVar(&setValues, "set", nil, "Override a configuration variable (NAME=VALUE, repeatable)")

	newPipeline := func() (*build.Pipeline, error) {
		overrides, err := parseOverrides(setValues)
		if err != nil {
			return nil, err
		}
		cfg, err := config.Resolve(config.Options{
			ConfigFile: configFile,
			Overrides:  overrides,
		})
		if err != nil {
			return nil, err
		}
		man, err := manifest.Load()
		if err != nil {
			return nil, err
		}
		return build.New(afero.NewOsFs(), cfg, man, ".", outDir), nil
	}

	rootCmd.AddCommand(newBuildCmd(newPipeline))
	rootCmd.AddCommand(newInstallCmd(newPipeline))
	rootCmd.AddCommand(newInstallStandaloneCmd(newPipeline))
	rootCmd.AddCommand(newUninstallCmd(newPipeline))
	rootCmd.AddCommand(newCleanCmd(newPipeline))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenManCmd(rootCmd))

	return rootCmd
}

type pipelineFunc func() (*build.Pipeline, error)

func newBuildCmd(newPipeline pipelineFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Generate all artifacts into the build output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			return p.Build()
		},
	}
}

func newInstallCmd(newPipeline pipelineFunc) *cobra.Command {
	var destdir string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Build and install everything under the destination root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			return p.Install(destdir)
		},
	}
	cmd.Flags().StringVar(&destdir, "destdir", "", "Prefix every destination path with this root")
	return cmd
}

func newInstallStandaloneCmd(newPipeline pipelineFunc) *cobra.Command {
	var destdir string
	cmd := &cobra.Command{
		Use:   "install-standalone",
		Short: "Build and install only the bundled, dependency-free artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			return p.InstallStandalone(destdir)
		},
	}
	cmd.Flags().StringVar(&destdir, "destdir", "", "Prefix every destination path with this root")
	return cmd
}

func newUninstallCmd(newPipeline pipelineFunc) *cobra.Command {
	var destdir string
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the installed file set from the destination root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			return p.Uninstall(destdir)
		},
	}
	cmd.Flags().StringVar(&destdir, "destdir", "", "Prefix every destination path with this root")
	return cmd
}

func newCleanCmd(newPipeline pipelineFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete generated artifacts (never installed files)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			return p.Clean()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("depthcharge-build version %s\n", version.Version)
			if version.Commit != "" {
				fmt.Printf("Commit: %s\n", version.Commit)
			}
			if version.Date != "" {
				fmt.Printf("Built:  %s\n", version.Date)
			}
		},
	}
}

func newGenManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "gen-man",
		Short:  "Write this tool's own man page to stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header := &doc.GenManHeader{
				Title:   "DEPTHCHARGE-BUILD",
				Section: "1",
				Source:  "depthcharge-tools " + version.Version,
				Manual:  "depthcharge-tools manual",
			}
			return doc.GenMan(root, header, os.Stdout)
		},
	}
}

// parseOverrides turns --set NAME=VALUE flags into the explicit override
// layer.
func parseOverrides(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "invalid --set value %q, want NAME=VALUE", v)
		}
		overrides[name] = value
	}
	return overrides, nil
}
