package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/models"
)

func newMockStore(t *testing.T, limit int) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db, limit, logger.NewTestLogger(t)), mock
}

func TestPostgresStore_SaveResult(t *testing.T) {
	s, mock := newMockStore(t, 10)
	rec := createRecord("run-1", "user-1", 64)
	data, _ := json.Marshal(rec.Result)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertResultQuery)).
		WithArgs(rec.ID, rec.RunID, "user-1", string(data), rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(trimHistoryQuery)).
		WithArgs("user-1", 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.SaveResult(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResultRollsBack(t *testing.T) {
	s, mock := newMockStore(t, 10)
	rec := createRecord("run-1", "user-1", 64)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertResultQuery)).
		WillReturnError(stderrors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveResult(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, errors.ClassStorageFailed, errors.ClassOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_History(t *testing.T) {
	s, mock := newMockStore(t, 10)
	newer := createRecord("run-2", "user-1", 80)
	older := createRecord("run-1", "user-1", 40)
	newerData, _ := json.Marshal(newer.Result)
	olderData, _ := json.Marshal(older.Result)

	rows := sqlmock.NewRows([]string{"id", "run_id", "user_id", "result", "created_at"}).
		AddRow(newer.ID, newer.RunID, newer.UserID, newerData, newer.CreatedAt).
		AddRow(older.ID, older.RunID, older.UserID, olderData, older.CreatedAt)
	mock.ExpectQuery(regexp.QuoteMeta(historyQuery)).
		WithArgs("user-1", 10).
		WillReturnRows(rows)

	recs, err := s.History(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-2", recs[0].RunID)
	assert.Equal(t, 80, recs[0].Result.OverallScore)
	assert.Equal(t, "run-1", recs[1].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastResultEmpty(t *testing.T) {
	s, mock := newMockStore(t, 10)

	mock.ExpectQuery(regexp.QuoteMeta(historyQuery)).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "user_id", "result", "created_at"}))

	rec, err := s.LastResult(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CalculationState(t *testing.T) {
	s, mock := newMockStore(t, 10)
	ctx := context.Background()
	st := models.CalculationState{RunID: "run-1", Status: "Validating"}
	data, _ := json.Marshal(st)

	mock.ExpectExec(regexp.QuoteMeta(upsertStateQuery)).
		WithArgs("user-1", string(data)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveCalculationState(ctx, "user-1", st))

	mock.ExpectQuery(regexp.QuoteMeta(loadStateQuery)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(data))
	got, err := s.LoadCalculationState(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)

	mock.ExpectExec(regexp.QuoteMeta(clearStateQuery)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.ClearCalculationState(ctx, "user-1"))

	mock.ExpectQuery(regexp.QuoteMeta(loadStateQuery)).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	got, err = s.LoadCalculationState(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_SelectsBackend(t *testing.T) {
	log := logger.NewTestLogger(t)
	_, client := setupMiniredis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
		check   func(t *testing.T, s ResultStore)
	}{
		{
			name: "redis",
			cfg:  config.StorageConfig{Backend: BackendRedis, HistoryLimit: 5},
			check: func(t *testing.T, s ResultStore) {
				assert.IsType(t, &RedisStore{}, s)
			},
		},
		{
			name: "postgres",
			cfg:  config.StorageConfig{Backend: BackendPostgres, HistoryLimit: 5},
			check: func(t *testing.T, s ResultStore) {
				assert.IsType(t, &PostgresStore{}, s)
			},
		},
		{
			name:    "unknown",
			cfg:     config.StorageConfig{Backend: "s3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, client, db, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}
