// Package scheduler wires up the cron jobs that periodically run the
// saved-search pass and the deadline cascade.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/model"
)

// SavedSearchRunner runs one saved-search pass.
type SavedSearchRunner interface {
	ProcessAll(ctx context.Context) (model.RunSummary, error)
}

// DeadlineRunner runs one deadline cascade.
type DeadlineRunner interface {
	SendDeadlineAlerts(ctx context.Context, daysBefore int) (model.DeadlineSummary, error)
}

// Config holds the schedule.
type Config struct {
	CheckIntervalHours int    // saved-search pass, "@every Nh"
	DeadlineSpec       string // standard 5-field cron spec
	DaysBefore         int
	RunTimeout         time.Duration
}

// Scheduler wraps robfig/cron and owns both alert loops.
type Scheduler struct {
	cron      *cron.Cron
	searches  SavedSearchRunner
	deadlines DeadlineRunner
	cfg       Config
	logger    *zap.Logger
}

// New creates a Scheduler. A job still running when its next tick fires is
// skipped for that tick.
func New(searches SavedSearchRunner, deadlines DeadlineRunner, cfg Config, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		searches:  searches,
		deadlines: deadlines,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Scheduler) savedSearchSpec() string {
	return fmt.Sprintf("@every %dh", s.cfg.CheckIntervalHours)
}

// Start registers both jobs and starts the scheduler. The saved-search pass
// also runs once immediately so a restart does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.savedSearchSpec(), func() { s.RunSavedSearches(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc saved searches: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.DeadlineSpec, func() { s.RunDeadlines(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc deadlines %q: %w", s.cfg.DeadlineSpec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started",
		zap.String("savedSearchSpec", s.savedSearchSpec()),
		zap.String("deadlineSpec", s.cfg.DeadlineSpec),
	)

	// Run immediately on startup (non-blocking)
	go s.RunSavedSearches(ctx)

	return nil
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("cron stopped")
	case <-ctx.Done():
		s.logger.Warn("cron stop timed out with jobs still running")
	}
}

// RunSavedSearches runs one saved-search pass bounded by RunTimeout.
func (s *Scheduler) RunSavedSearches(ctx context.Context) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	if _, err := s.searches.ProcessAll(ctx); err != nil {
		s.logger.Error("saved search run failed", zap.Error(err))
	}
}

// RunDeadlines runs one deadline cascade bounded by RunTimeout.
func (s *Scheduler) RunDeadlines(ctx context.Context) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	if _, err := s.deadlines.SendDeadlineAlerts(ctx, s.cfg.DaysBefore); err != nil {
		s.logger.Error("deadline run failed", zap.Error(err))
	}
}

func (s *Scheduler) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RunTimeout)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
