package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the narrow queue surface services depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
}

// Client wraps asynq's client and swallows unique-task conflicts, an
// already-queued job is the outcome the caller wanted.
type Client struct {
	inner  *asynq.Client
	logger *zap.Logger
}

// NewClient builds client.
func NewClient(redisAddr, redisPassword string, redisDB int, logger *zap.Logger) *Client {
	inner := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &Client{inner: inner, logger: logger}
}

func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := c.inner.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("duplicate task suppressed", zap.String("type", task.Type()))
			return nil
		}
		return err
	}
	c.logger.Debug("task enqueued",
		zap.String("type", task.Type()),
		zap.String("queue", info.Queue),
		zap.String("id", info.ID),
	)
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
