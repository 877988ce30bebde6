package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/userhub/internal/bundle"
	"github.com/shaharia-lab/userhub/internal/config"
	"github.com/shaharia-lab/userhub/internal/logger"
)

// NewBuildCmd returns the "build" subcommand that bundles the frontend once.
func NewBuildCmd(cfg *config.AppConfig) *cobra.Command {
	var configFile string
	var outDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the frontend into the output directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fcfg, err := config.LoadFrontendConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out-dir") {
				fcfg.Build.OutDir = outDir
				if err := fcfg.Validate(); err != nil {
					return err
				}
			}
			return runBuild(cmd.Context(), cfg, fcfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", cfg.FrontendConfigFile, "Frontend config file (overrides FRONTEND_CONFIG env var)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output directory (overrides build.out_dir)")
	return cmd
}

func runBuild(ctx context.Context, cfg *config.AppConfig, fcfg *config.FrontendConfig) error {
	opts := bundle.OptionsFromConfig(fcfg, os.Getenv)
	opts.Logger = logger.New(os.Stderr, cfg.SlogLevel())

	res, err := bundle.Build(ctx, os.DirFS(fcfg.Root), opts)
	if err != nil {
		return fmt.Errorf("building frontend: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, f := range res.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Output, f.Kind, formatSize(f.Size)) //nolint:errcheck
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nbuilt %d files into %s in %s\n", len(res.Files), res.OutDir, res.Duration.Round(time.Millisecond))
	return nil
}

func formatSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.2f kB", float64(n)/1024)
}
