package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/userhub/internal/api"
	"github.com/shaharia-lab/userhub/internal/build"
	"github.com/shaharia-lab/userhub/internal/config"
	"github.com/shaharia-lab/userhub/internal/eventbus"
	"github.com/shaharia-lab/userhub/internal/logger"
	"github.com/shaharia-lab/userhub/internal/metrics"
	"github.com/shaharia-lab/userhub/internal/notification"
	"github.com/shaharia-lab/userhub/internal/scheduler"
	"github.com/shaharia-lab/userhub/internal/server"
	"github.com/shaharia-lab/userhub/internal/service"
	"github.com/shaharia-lab/userhub/internal/storage"
)

const eventWorkers = 4

// NewServeCmd returns the "serve" subcommand that starts the backend.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int
	var noFrontend bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the users API and the embedded frontend",
		Long: `Start the userhub HTTP server. The REST API is served under /api and the
embedded frontend build everywhere else. Open http://localhost:<port> in your browser.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			frontendFS := WebFS
			if noFrontend {
				frontendFS = nil
			}

			serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
			logFile := filepath.Join(cfg.LogDir(), "system.log")
			frontend := "embedded"
			if frontendFS == nil {
				frontend = "proxied to " + cfg.FrontendDevURL
			}
			printBanner(os.Stdout, "userhub "+build.Version,
				bannerLine{"URL", serverURL},
				bannerLine{"API", serverURL + "/api"},
				bannerLine{"UI", frontend},
				bannerLine{"Data", cfg.DBPath()},
				bannerLine{"Logs", logFile},
			)

			if err := runServe(cmd.Context(), cfg, frontendFS); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred. Please check the logs at: %s\n", logFile)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().BoolVar(&noFrontend, "no-frontend", false, "Do not serve the embedded frontend; proxy to FRONTEND_DEV_URL instead")
	return cmd
}

func runServe(parent context.Context, cfg *config.AppConfig, frontendFS fs.FS) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck

	sysLogger.Info("userhub starting",
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	db, fresh, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		sysLogger.Error("opening database failed", "path", cfg.DBPath(), "error", err)
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	if fresh {
		sysLogger.Info("created new database", "path", cfg.DBPath())
	}

	userStore := storage.NewSQLiteUserStore(db)
	notificationStore := storage.NewSQLiteNotificationStore(db)

	appMetrics, err := metrics.New()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	bus := eventbus.New(eventWorkers, sysLogger)
	defer bus.Close()
	bus.Subscribe(appMetrics.Users.Listen)

	status := service.NotificationStatus{Enabled: cfg.SMTP.Enabled()}
	var tester service.NotificationTester
	if cfg.SMTP.Enabled() {
		provider := notification.NewSMTPProvider(notification.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			FromAddr:   cfg.SMTP.From,
			Encryption: cfg.SMTP.Encryption,
		})
		handler := notification.NewHandler(provider, notificationStore, sysLogger)
		bus.Subscribe(eventbus.Filter(handler.Handle, service.EventUserCreated))
		tester = handler
		status.Provider = provider.Name()
		status.Host = cfg.SMTP.Host
		status.From = cfg.SMTP.From
		sysLogger.Info("welcome emails enabled", "smtp_host", cfg.SMTP.Host)
	}
	notificationSvc := service.NewNotificationService(status, tester, notificationStore)

	userSvc := service.NewUserService(userStore, bus, sysLogger)

	sched, err := scheduler.New(scheduler.Config{
		Users:                 userStore,
		Notifications:         notificationStore,
		Recorder:              appMetrics.Users,
		Logger:                sysLogger,
		StatsInterval:         cfg.StatsInterval,
		NotificationRetention: cfg.NotificationRetention,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := sched.RunNow(ctx); err != nil {
		sysLogger.Warn("initial maintenance run failed", "error", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv, err := server.New(api.New(userSvc, notificationSvc, sysLogger), server.Options{
		Port:               cfg.Port,
		FrontendFS:         frontendFS,
		FrontendDevURL:     cfg.FrontendDevURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Metrics:            appMetrics,
	}, sysLogger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return sched.Stop()
	})

	sysLogger.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err := g.Wait(); err != nil {
		sysLogger.Error("server stopped with error", "error", err)
		return err
	}
	sysLogger.Info("userhub stopped")
	return nil
}
