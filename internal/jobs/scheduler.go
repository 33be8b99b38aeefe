package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner whose jobs never overlap themselves.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler builds an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	l := cronLogger{logger.With("component", "cron")}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		logger: logger.With("component", "scheduler"),
	}
}

// AddSweeper runs s on spec, each pass bounded by timeout.
func (sc *Scheduler) AddSweeper(spec string, s *Sweeper, timeout time.Duration) error {
	_, err := sc.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			s.metrics.IncError("orphan_sweeper")
			sc.logger.Error("orphan sweep failed", "removed", n, "error", err)
			return
		}
		sc.logger.Info("orphan sweep finished", "removed", n)
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (sc *Scheduler) Start() { sc.cron.Start() }

// Stop prevents new runs and waits for running jobs until ctx ends.
func (sc *Scheduler) Stop(ctx context.Context) {
	select {
	case <-sc.cron.Stop().Done():
	case <-ctx.Done():
		sc.logger.Warn("scheduler stop timed out")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
