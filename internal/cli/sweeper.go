package cli

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// newSessionSweeper schedules the removal of expired session rows. Runs
// that overlap a still running sweep are skipped.
func newSessionSweeper(ctx context.Context, schedule string, sessions sessionPurger, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(zap.NewStdLog(log))),
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(log))),
	))
	if _, err := c.AddFunc(schedule, func() { sweepSessions(ctx, sessions, log) }); err != nil {
		return nil, err
	}
	return c, nil
}

func sweepSessions(ctx context.Context, sessions sessionPurger, log *zap.Logger) {
	start := time.Now()
	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		log.Warn("session sweep failed", zap.Error(err))
		return
	}
	log.Info("session sweep finished", zap.Int("removed", n), zap.Duration("took", time.Since(start)))
}
