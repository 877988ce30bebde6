package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/userhub/internal/bundle"
	"github.com/shaharia-lab/userhub/internal/config"
	"github.com/shaharia-lab/userhub/internal/devserver"
	"github.com/shaharia-lab/userhub/internal/logger"
)

// NewDevCmd returns the "dev" subcommand that runs the frontend dev server.
func NewDevCmd(cfg *config.AppConfig) *cobra.Command {
	var configFile string
	var port int
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the frontend development server",
		Long: `Build the frontend, serve it on the configured port and proxy API prefixes
to the backend. Sources are rebuilt when they change unless --no-watch is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fcfg, err := config.LoadFrontendConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				fcfg.Server.Port = port
				if err := fcfg.Validate(); err != nil {
					return err
				}
			}
			return runDev(cmd.Context(), cfg, fcfg, !noWatch)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", cfg.FrontendConfigFile, "Frontend config file (overrides FRONTEND_CONFIG env var)")
	cmd.Flags().IntVar(&port, "port", 0, "Dev server port (overrides server.port)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not rebuild when sources change")
	return cmd
}

func runDev(parent context.Context, cfg *config.AppConfig, fcfg *config.FrontendConfig, watch bool) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	devLogger := logger.New(os.Stderr, cfg.SlogLevel())

	opts := bundle.OptionsFromConfig(fcfg, os.Getenv)
	opts.Logger = devLogger
	src := os.DirFS(fcfg.Root)
	rebuild := func(ctx context.Context) error {
		_, err := bundle.Build(ctx, src, opts)
		return err
	}
	if err := rebuild(ctx); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	srv, err := devserver.New(fcfg, fcfg.Build.OutDir, devLogger)
	if err != nil {
		return err
	}

	lines := []bannerLine{
		{"URL", fmt.Sprintf("http://localhost:%d", fcfg.Server.Port)},
		{"Source", fcfg.Root},
		{"Output", fcfg.Build.OutDir},
	}
	for prefix, rule := range fcfg.Server.Proxy {
		lines = append(lines, bannerLine{"Proxy", prefix + " -> " + rule.Target})
	}
	printBanner(os.Stdout, "userhub dev server", lines...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if watch {
		w := &devserver.Watcher{
			Root:    fcfg.Root,
			Ignore:  []string{fcfg.Build.OutDir},
			Rebuild: rebuild,
			Logger:  devLogger,
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
