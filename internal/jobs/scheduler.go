package jobs

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// NewScheduler registers the periodic maintenance tasks and returns the
// scheduler ready to run. The archive sweep follows the configured cron
// spec; session cleanup runs hourly.
func NewScheduler(redis asynq.RedisClientOpt, archiveCronSpec string, logger *zap.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	entryID, err := scheduler.Register(archiveCronSpec, NewArchiveInactiveTicketsTask())
	if err != nil {
		return nil, fmt.Errorf("register archive sweep: %w", err)
	}
	logger.Info("archive sweep scheduled",
		zap.String("cron", archiveCronSpec), zap.String("entryId", entryID))

	if _, err := scheduler.Register("@every 1h", NewCleanupExpiredSessionsTask()); err != nil {
		return nil, fmt.Errorf("register session cleanup: %w", err)
	}
	return scheduler, nil
}

// RetryDelay backs off exponentially from the base delay, doubling per
// attempt.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		if n < 1 {
			n = 1
		}
		return base << (n - 1)
	}
}
