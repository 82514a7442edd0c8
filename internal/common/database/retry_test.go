package database

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/logger"
)

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := ConnectWithRetry(context.Background(), "test", 5, time.Millisecond, logger.NewTestLogger(t), func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := ConnectWithRetry(context.Background(), "Redis connection", 3, time.Millisecond, logger.NewTestLogger(t), func(context.Context) error {
		calls++
		return stderrors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "Redis connection failed after 3 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := ConnectWithRetry(ctx, "test", 10, time.Hour, logger.NewTestLogger(t), func(context.Context) error {
		calls++
		cancel()
		return stderrors.New("connection refused")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rc, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	assert.NoError(t, rc.Ping(context.Background()))
	mr.Close()
	assert.Error(t, rc.Ping(context.Background()))
}
