// Package store persists score results, their history and the in-progress
// calculation checkpoint.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
	"github.com/50mmer/statusai/internal/models"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	defaultUser = "local"
)

// ResultStore is implemented by RedisStore and PostgresStore.
type ResultStore interface {
	// SaveResult stores rec as the last result and prepends it to the
	// user's history, keeping at most the configured number of entries.
	SaveResult(ctx context.Context, rec models.ResultRecord) error
	// LastResult returns nil when the user has no result yet.
	LastResult(ctx context.Context, userID string) (*models.ResultRecord, error)
	// History returns up to limit records, newest first. limit <= 0 means
	// the configured cap.
	History(ctx context.Context, userID string, limit int) ([]models.ResultRecord, error)
	SaveCalculationState(ctx context.Context, userID string, st models.CalculationState) error
	// LoadCalculationState returns nil when no calculation is in progress.
	LoadCalculationState(ctx context.Context, userID string) (*models.CalculationState, error)
	ClearCalculationState(ctx context.Context, userID string) error
}

// New builds the store selected by cfg.Backend.
func New(cfg config.StorageConfig, rdb *redis.Client, db *sql.DB, log logger.Logger) (ResultStore, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		if rdb == nil {
			return nil, fmt.Errorf("redis storage backend requires a redis client")
		}
		return NewRedisStore(rdb, cfg.KeyPrefix, cfg.HistoryLimit, time.Duration(cfg.ResultTTL)*time.Second, log), nil
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres storage backend requires a database")
		}
		return NewPostgresStore(db, cfg.HistoryLimit, log), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func userKey(userID string) string {
	if userID == "" {
		return defaultUser
	}
	return userID
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func observe(backend, op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(backend, op, status).Inc()
}
