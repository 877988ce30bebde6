// Package scheduler runs periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/shaharia-lab/userhub/internal/storage"
)

const (
	defaultStatsInterval = time.Minute
	defaultRetention     = 30 * 24 * time.Hour
	retentionInterval    = 24 * time.Hour
	jobTimeout           = 30 * time.Second
)

// UserCounter is the subset of storage.UserStore the stats job needs.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// UserCountRecorder receives the latest user count, typically a metrics gauge.
type UserCountRecorder interface {
	SetUserCount(n int64)
}

// Config holds the scheduler configuration.
type Config struct {
	Users         UserCounter
	Notifications storage.NotificationStore
	// Recorder is optional.
	Recorder UserCountRecorder
	Logger   *slog.Logger

	StatsInterval         time.Duration
	NotificationRetention time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler manages the periodic jobs using gocron.
type Scheduler struct {
	cron   gocron.Scheduler
	cfg    Config
	logger *slog.Logger
}

// New creates a new Scheduler. Jobs are registered by Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Users == nil {
		return nil, errors.New("scheduler: user store is required")
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = defaultStatsInterval
	}
	if cfg.NotificationRetention <= 0 {
		cfg.NotificationRetention = defaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Scheduler{cron: cron, cfg: cfg, logger: cfg.Logger}, nil
}

// Start registers the stats and retention jobs and starts the gocron scheduler.
func (s *Scheduler) Start(_ context.Context) error {
	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.StatsInterval),
		gocron.NewTask(s.runStats),
		gocron.WithName("user-stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("scheduling stats job: %w", err)
	}

	if s.cfg.Notifications != nil {
		if _, err := s.cron.NewJob(
			gocron.DurationJob(retentionInterval),
			gocron.NewTask(s.runRetention),
			gocron.WithName("notification-retention"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("scheduling retention job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"stats_interval", s.cfg.StatsInterval,
		"notification_retention", s.cfg.NotificationRetention)
	return nil
}

// RunNow runs every job once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context) error {
	var errs []error
	if err := s.refreshStats(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.cfg.Notifications != nil {
		if _, err := s.pruneNotifications(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

func (s *Scheduler) runStats() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.refreshStats(ctx); err != nil {
		s.logger.Warn("user stats job failed", "error", err)
	}
}

func (s *Scheduler) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.pruneNotifications(ctx); err != nil {
		s.logger.Warn("notification retention job failed", "error", err)
	}
}

func (s *Scheduler) refreshStats(ctx context.Context) error {
	n, err := s.cfg.Users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.SetUserCount(n)
	}
	s.logger.Info("user stats refreshed", "total_users", n)
	return nil
}

func (s *Scheduler) pruneNotifications(ctx context.Context) (int64, error) {
	cutoff := s.cfg.Now().Add(-s.cfg.NotificationRetention)
	n, err := s.cfg.Notifications.PruneNotifications(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning notifications: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned notification log", "removed", n, "before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
