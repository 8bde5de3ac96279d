package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}

// NewScheduler registers the sweep on schedule (standard cron syntax or
// descriptors such as "@every 1h"). Overlapping runs are skipped.
func NewScheduler(schedule string, sweeper *Sweeper, batchSize int32, timeout time.Duration, logger *slog.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := slogCronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(schedule, func() {
		RunSweep(context.Background(), sweeper, batchSize, timeout, logger)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RunSweep runs one bounded sweep and logs its outcome.
func RunSweep(ctx context.Context, sweeper *Sweeper, batchSize int32, timeout time.Duration, logger *slog.Logger) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := sweeper.RunOnce(runCtx, batchSize)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweep failed", "err", err, "loans_overdue", res.LoansOverdue, "credits_matured", res.CreditsMatured)
		return
	}
	logger.Info("sweep finished",
		"loans_overdue", res.LoansOverdue,
		"credits_matured", res.CreditsMatured,
		"skipped", res.Skipped,
	)
}
