package database

import (
	"context"
	"fmt"
	"time"

	"github.com/50mmer/statusai/internal/common/logger"
)

// ConnectWithRetry calls connect until it succeeds, doubling the delay after
// each failure. It gives up after attempts tries or when ctx is done.
func ConnectWithRetry(ctx context.Context, name string, attempts int, delay time.Duration, log logger.Logger, connect func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		log.Warn(name+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxAttempts": attempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}
