package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/models"
)

// RedisStore keeps one key per concern:
//
//	<prefix>:last_result:<user>        string
//	<prefix>:history:<user>            list, newest first
//	<prefix>:calculation_state:<user>  string
type RedisStore struct {
	client       *redis.Client
	prefix       string
	historyLimit int
	ttl          time.Duration
	logger       logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, historyLimit int, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "statusai"
	}
	if historyLimit < 1 {
		historyLimit = config.DefaultHistoryLimit
	}
	return &RedisStore{
		client:       client,
		prefix:       prefix,
		historyLimit: historyLimit,
		ttl:          ttl,
		logger:       logger.Component(log, "redis-store"),
	}
}

func (s *RedisStore) key(kind, userID string) string {
	return s.prefix + ":" + kind + ":" + userKey(userID)
}

func (s *RedisStore) SaveResult(ctx context.Context, rec models.ResultRecord) (err error) {
	defer func() { observe(BackendRedis, "save_result", err) }()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}

	last := s.key("last_result", rec.UserID)
	history := s.key("history", rec.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, last, data, s.ttl)
		pipe.LPush(ctx, history, data)
		pipe.LTrim(ctx, history, 0, int64(s.historyLimit-1))
		if s.ttl > 0 {
			pipe.Expire(ctx, history, s.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}

	s.logger.Debug("Result saved", map[string]interface{}{
		"runId":  rec.RunID,
		"userId": rec.UserID,
	})
	return nil
}

func (s *RedisStore) LastResult(ctx context.Context, userID string) (rec *models.ResultRecord, err error) {
	defer func() { observe(BackendRedis, "last_result", err) }()

	val, err := s.client.Get(ctx, s.key("last_result", userID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageFailedError("last_result", err)
	}

	var out models.ResultRecord
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, errors.NewStorageFailedError("last_result", err)
	}
	return &out, nil
}

func (s *RedisStore) History(ctx context.Context, userID string, limit int) (recs []models.ResultRecord, err error) {
	defer func() { observe(BackendRedis, "history", err) }()

	limit = clampLimit(limit, s.historyLimit)
	vals, err := s.client.LRange(ctx, s.key("history", userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.NewStorageFailedError("history", err)
	}

	recs = make([]models.ResultRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.ResultRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.logger.Warn("Skipping unreadable history entry", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) SaveCalculationState(ctx context.Context, userID string, st models.CalculationState) (err error) {
	defer func() { observe(BackendRedis, "save_state", err) }()

	data, err := json.Marshal(st)
	if err != nil {
		return errors.NewStorageFailedError("save_state", err)
	}
	if err := s.client.Set(ctx, s.key("calculation_state", userID), data, 0).Err(); err != nil {
		return errors.NewStorageFailedError("save_state", err)
	}
	return nil
}

func (s *RedisStore) LoadCalculationState(ctx context.Context, userID string) (st *models.CalculationState, err error) {
	defer func() { observe(BackendRedis, "load_state", err) }()

	val, err := s.client.Get(ctx, s.key("calculation_state", userID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageFailedError("load_state", err)
	}

	var out models.CalculationState
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, errors.NewStorageFailedError("load_state", err)
	}
	return &out, nil
}

func (s *RedisStore) ClearCalculationState(ctx context.Context, userID string) (err error) {
	defer func() { observe(BackendRedis, "clear_state", err) }()

	if err := s.client.Del(ctx, s.key("calculation_state", userID)).Err(); err != nil {
		return errors.NewStorageFailedError("clear_state", err)
	}
	return nil
}
