// internal/workers/scoring/status-score/handler_test.go
package statusscore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/entitlement"
	"github.com/50mmer/statusai/internal/models"
	"github.com/50mmer/statusai/internal/pipeline"
	"github.com/50mmer/statusai/internal/scoring"
	"github.com/50mmer/statusai/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

var subscriptionQuery = regexp.QuoteMeta(`SELECT user_id, tier, has_paid, expires_at FROM user_subscriptions WHERE user_id = $1`)

func createTestConfig() *Config {
	return &Config{
		Timeout:             10 * time.Second,
		RequireSubscription: true,
	}
}

type fakeScorer struct {
	calls int32
	err   error
}

func (f *fakeScorer) Execute(_ context.Context, _ models.AnswerSet, onProgress scoring.ProgressFunc) (*models.ScoreResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	onProgress(scoring.Progress{Phase: scoring.PhaseParsing, Percent: 90, Status: scoring.StatusProcessing, Attempt: 1})
	return createResult(), nil
}

func createResult() *models.ScoreResult {
	scores := map[models.Category]int{}
	for _, c := range models.Categories {
		scores[c] = 60
	}
	return &models.ScoreResult{
		CategoryScores:   scores,
		OverallScore:     61,
		GlobalRanking:    models.GlobalRanking{Position: 1_000_000, Percentile: 12.5},
		Status:           "Rising",
		FuturePrediction: "Keep going",
	}
}

func createCompleteAnswers() models.AnswerSet {
	answers := models.AnswerSet{}
	for _, k := range models.AllQuestions() {
		answers[k] = "answer"
	}
	return answers
}

func createInput(userID string) *Input {
	return &Input{UserID: userID, Answers: createCompleteAnswers()}
}

func newRedisStore(t *testing.T) store.ResultStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := store.New(config.StorageConfig{Backend: store.BackendRedis, KeyPrefix: "statusai", HistoryLimit: 10}, rdb, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return s
}

func createTestHandler(t *testing.T, db *sql.DB, scorer pipeline.Scorer, opts pipeline.Options, cfg *Config) *Handler {
	if cfg == nil {
		cfg = createTestConfig()
	}
	var checker SubscriptionChecker
	if db != nil {
		checker = entitlement.NewChecker(db, nil, time.Minute, logger.NewTestLogger(t))
	}
	return NewHandler(cfg, scorer, checker, opts, logger.NewTestLogger(t))
}

func subscriptionRows(userID, tier string, paid bool, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "tier", "has_paid", "expires_at"}).
		AddRow(userID, tier, paid, expiresAt)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(subscriptionQuery).
		WithArgs("user-123").
		WillReturnRows(subscriptionRows("user-123", entitlement.TierMonthly, true, time.Now().Add(24*time.Hour)))

	resultStore := newRedisStore(t)
	scorer := &fakeScorer{}
	h := createTestHandler(t, db, scorer, pipeline.Options{Store: resultStore}, nil)

	output, err := h.Execute(context.Background(), createInput("user-123"))
	require.NoError(t, err)
	require.NotNil(t, output)

	assert.NotEmpty(t, output.RunID)
	assert.Equal(t, 61, output.OverallScore)
	assert.Equal(t, 12.5, output.Percentile)
	assert.Equal(t, createResult(), output.ScoreResult)
	assert.Equal(t, int32(1), atomic.LoadInt32(&scorer.calls))

	last, err := resultStore.LastResult(context.Background(), "user-123")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, output.RunID, last.RunID)

	state, err := resultStore.LoadCalculationState(context.Background(), "user-123")
	require.NoError(t, err)
	assert.Nil(t, state)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_SubscriptionGate(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(mock sqlmock.Sqlmock)
		expectedClass errors.FailureClass
		expectedCode  string
	}{
		{
			name: "no subscription row",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(subscriptionQuery).WithArgs("user-1").WillReturnError(sql.ErrNoRows)
			},
			expectedClass: errors.ClassSubscriptionInvalid,
			expectedCode:  "SUBSCRIPTION_INVALID",
		},
		{
			name: "expired subscription",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(subscriptionQuery).WithArgs("user-1").
					WillReturnRows(subscriptionRows("user-1", entitlement.TierOneDay, true, time.Now().Add(-time.Hour)))
			},
			expectedClass: errors.ClassSubscriptionInvalid,
			expectedCode:  "SUBSCRIPTION_INVALID",
		},
		{
			name: "unpaid subscription",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(subscriptionQuery).WithArgs("user-1").
					WillReturnRows(subscriptionRows("user-1", entitlement.TierMonthly, false, time.Now().Add(time.Hour)))
			},
			expectedClass: errors.ClassSubscriptionInvalid,
			expectedCode:  "SUBSCRIPTION_INVALID",
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(subscriptionQuery).WithArgs("user-1").WillReturnError(stderrors.New("connection reset"))
			},
			expectedClass: errors.ClassSubscriptionCheckFailed,
			expectedCode:  "SUBSCRIPTION_CHECK_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMock(mock)

			scorer := &fakeScorer{}
			h := createTestHandler(t, db, scorer, pipeline.Options{}, nil)

			output, err := h.Execute(context.Background(), createInput("user-1"))
			assert.Nil(t, output)
			require.Error(t, err)
			assert.Equal(t, tt.expectedClass, errors.ClassOf(err))
			assert.Equal(t, tt.expectedCode, errors.ConvertToBPMNError(errors.AsPipelineError(err)).Code)
			assert.Zero(t, atomic.LoadInt32(&scorer.calls))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_SubscriptionNotRequired(t *testing.T) {
	cfg := createTestConfig()
	cfg.RequireSubscription = false

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	scorer := &fakeScorer{}
	h := createTestHandler(t, db, scorer, pipeline.Options{}, cfg)

	output, err := h.Execute(context.Background(), createInput(""))
	require.NoError(t, err)
	assert.Equal(t, 61, output.OverallScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Failure Handling Tests
// ==========================

func TestHandler_Execute_IncompleteAnswers(t *testing.T) {
	scorer := &fakeScorer{}
	h := createTestHandler(t, nil, scorer, pipeline.Options{}, nil)

	input := createInput("user-1")
	delete(input.Answers, models.QuestionHeight)

	_, err := h.Execute(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, errors.ClassValidation, errors.ClassOf(err))
	assert.Contains(t, errors.AsPipelineError(err).Details, string(models.QuestionHeight))
	assert.Zero(t, atomic.LoadInt32(&scorer.calls))
}

func TestHandler_Execute_ScorerFailureIsReportedOnce(t *testing.T) {
	hub := errors.NewHub()
	var reports int32
	unsubscribe := hub.Subscribe(func(errors.Report) { atomic.AddInt32(&reports, 1) })
	defer unsubscribe()

	upstream := errors.NewHTTPStatusError(503, "Service Unavailable", "").WithAttempts(4)
	h := createTestHandler(t, nil, &fakeScorer{err: upstream}, pipeline.Options{Hub: hub}, nil)

	_, err := h.Execute(context.Background(), createInput("user-1"))
	require.Error(t, err)
	assert.Equal(t, errors.ClassServer, errors.ClassOf(err))

	bpmnErr := errors.ConvertToBPMNError(errors.AsPipelineError(err))
	assert.Equal(t, "SCORING_UNAVAILABLE", bpmnErr.Code)
	assert.Equal(t, 4, bpmnErr.ErrorVariables["attempts"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&reports))
}

func TestInput_DecodesJobVariables(t *testing.T) {
	raw := `{"userId": "user-9", "answers": {"height": 182, "annualIncome": "$100k-$250k"}}`

	var input Input
	require.NoError(t, json.Unmarshal([]byte(raw), &input))

	assert.Equal(t, "user-9", input.UserID)
	assert.Equal(t, "182", input.Answers.Get(models.QuestionHeight))
	assert.Equal(t, "$100k-$250k", input.Answers.Get(models.QuestionAnnualIncome))
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.WorkerConfig{Enabled: true, Timeout: 120000})
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.True(t, cfg.RequireSubscription)

	assert.Equal(t, 5*time.Minute, LoadConfig(config.WorkerConfig{}).Timeout)
}
