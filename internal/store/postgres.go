package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/models"
)

const (
	insertResultQuery = `INSERT INTO score_results (id, run_id, user_id, result, created_at) VALUES ($1, $2, $3, $4, $5)`
	trimHistoryQuery  = `DELETE FROM score_results WHERE user_id = $1 AND id NOT IN (SELECT id FROM score_results WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2)`
	historyQuery      = `SELECT id, run_id, user_id, result, created_at FROM score_results WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	upsertStateQuery  = `INSERT INTO calculation_states (user_id, state, updated_at) VALUES ($1, $2, now()) ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	loadStateQuery    = `SELECT state FROM calculation_states WHERE user_id = $1`
	clearStateQuery   = `DELETE FROM calculation_states WHERE user_id = $1`
)

// PostgresStore uses the score_results and calculation_states tables from
// database.Schema.
type PostgresStore struct {
	db           *sql.DB
	historyLimit int
	logger       logger.Logger
}

func NewPostgresStore(db *sql.DB, historyLimit int, log logger.Logger) *PostgresStore {
	if historyLimit < 1 {
		historyLimit = config.DefaultHistoryLimit
	}
	return &PostgresStore{
		db:           db,
		historyLimit: historyLimit,
		logger:       logger.Component(log, "postgres-store"),
	}
}

func (s *PostgresStore) SaveResult(ctx context.Context, rec models.ResultRecord) (err error) {
	defer func() { observe(BackendPostgres, "save_result", err) }()

	data, err := json.Marshal(rec.Result)
	if err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}
	user := userKey(rec.UserID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertResultQuery, rec.ID, rec.RunID, user, string(data), rec.CreatedAt); err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}
	if _, err = tx.ExecContext(ctx, trimHistoryQuery, user, s.historyLimit); err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}
	if err = tx.Commit(); err != nil {
		return errors.NewStorageFailedError("save_result", err)
	}
	return nil
}

func (s *PostgresStore) LastResult(ctx context.Context, userID string) (*models.ResultRecord, error) {
	recs, err := s.History(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *PostgresStore) History(ctx context.Context, userID string, limit int) (recs []models.ResultRecord, err error) {
	defer func() { observe(BackendPostgres, "history", err) }()

	rows, err := s.db.QueryContext(ctx, historyQuery, userKey(userID), clampLimit(limit, s.historyLimit))
	if err != nil {
		return nil, errors.NewStorageFailedError("history", err)
	}
	defer rows.Close()

	recs = []models.ResultRecord{}
	for rows.Next() {
		var (
			rec  models.ResultRecord
			data []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.UserID, &data, &rec.CreatedAt); err != nil {
			return nil, errors.NewStorageFailedError("history", err)
		}
		var result models.ScoreResult
		if err := json.Unmarshal(data, &result); err != nil {
			s.logger.Warn("Skipping unreadable history row", map[string]interface{}{
				"id":    rec.ID,
				"error": err.Error(),
			})
			continue
		}
		rec.Result = &result
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageFailedError("history", err)
	}
	return recs, nil
}

func (s *PostgresStore) SaveCalculationState(ctx context.Context, userID string, st models.CalculationState) (err error) {
	defer func() { observe(BackendPostgres, "save_state", err) }()

	data, err := json.Marshal(st)
	if err != nil {
		return errors.NewStorageFailedError("save_state", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertStateQuery, userKey(userID), string(data)); err != nil {
		return errors.NewStorageFailedError("save_state", err)
	}
	return nil
}

func (s *PostgresStore) LoadCalculationState(ctx context.Context, userID string) (st *models.CalculationState, err error) {
	defer func() { observe(BackendPostgres, "load_state", err) }()

	var data []byte
	err = s.db.QueryRowContext(ctx, loadStateQuery, userKey(userID)).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageFailedError("load_state", err)
	}

	var out models.CalculationState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewStorageFailedError("load_state", err)
	}
	return &out, nil
}

func (s *PostgresStore) ClearCalculationState(ctx context.Context, userID string) (err error) {
	defer func() { observe(BackendPostgres, "clear_state", err) }()

	if _, err := s.db.ExecContext(ctx, clearStateQuery, userKey(userID)); err != nil {
		return errors.NewStorageFailedError("clear_state", err)
	}
	return nil
}
