// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/database"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/entitlement"
	"github.com/50mmer/statusai/internal/models"
	"github.com/50mmer/statusai/internal/pipeline"
	"github.com/50mmer/statusai/internal/scoring"
	"github.com/50mmer/statusai/internal/store"
	"github.com/50mmer/statusai/internal/telemetry"
	ss "github.com/50mmer/statusai/internal/workers/scoring/status-score"
)

// These tests need the redis and postgres instances named in configs/config.yaml.
// Run them with E2E_TESTS=1.

const scoreContent = `{
  "categoryScores": {"wealth": 70, "fitness": 65, "power": 55, "intelligence": 80, "willpower": 75, "legacy": 60},
  "overallScore": 68,
  "globalRanking": {"position": 952800000, "percentile": 24},
  "status": "Ascending Contender",
  "futurePrediction": "Steady growth over the next five years."
}`

type env struct {
	cfg   *config.Config
	redis *database.RedisClient
	pg    *database.PostgresClient
}

func setup(t *testing.T) *env {
	t.Helper()
	if os.Getenv("E2E_TESTS") == "" {
		t.Skip("set E2E_TESTS=1 to run against real services")
	}

	ctx := context.Background()
	cfg, err := config.Load()
	require.NoError(t, err)

	rc, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rc.Ping(ctx), "redis not reachable")
	t.Cleanup(func() { _ = rc.Close() })

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "postgres not reachable")
	t.Cleanup(func() { _ = pg.Close() })
	require.NoError(t, pg.Migrate(ctx))

	return &env{cfg: cfg, redis: rc, pg: pg}
}

func fakeProxy(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": scoreContent}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completeAnswers() models.AnswerSet {
	answers := models.AnswerSet{}
	for _, k := range models.AllQuestions() {
		answers[k] = "e2e"
	}
	answers[models.QuestionHeight] = 180
	return answers
}

func insertSubscription(t *testing.T, e *env, userID string, expiresAt time.Time) {
	t.Helper()
	_, err := e.pg.DB.Exec(
		`INSERT INTO user_subscriptions (user_id, tier, has_paid, expires_at) VALUES ($1, $2, true, $3)
		 ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, has_paid = true, expires_at = EXCLUDED.expires_at`,
		userID, entitlement.TierMonthly, expiresAt,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = e.pg.DB.Exec(`DELETE FROM user_subscriptions WHERE user_id = $1`, userID)
		_ = e.redis.Client.Del(context.Background(), "sub:"+userID).Err()
	})
}

func newHandler(t *testing.T, e *env, backend string) (*ss.Handler, store.ResultStore) {
	log := logger.NewTestLogger(t)

	storageCfg := e.cfg.Storage
	storageCfg.Backend = backend
	storageCfg.KeyPrefix = "statusai-e2e"
	resultStore, err := store.New(storageCfg, e.redis.Client, e.pg.DB, log)
	require.NoError(t, err)

	scoringCfg := scoring.ConfigFrom(e.cfg)
	scoringCfg.BackendURL = fakeProxy(t).URL

	sink := telemetry.New(log, 16)
	hub := errors.NewHub()
	unsubscribe := hub.Subscribe(sink.HandleReport)
	t.Cleanup(func() {
		unsubscribe()
		sink.Close()
	})

	handler := ss.NewHandler(
		ss.LoadConfig(config.GetWorkerConfig(e.cfg, ss.TaskType)),
		scoring.NewClient(scoringCfg, log),
		entitlement.NewChecker(e.pg.DB, e.redis.Client, time.Minute, log),
		pipeline.Options{Store: resultStore, Tracker: sink, Hub: hub},
		log,
	)
	return handler, resultStore
}

func TestStatusScore_EndToEnd(t *testing.T) {
	e := setup(t)

	for _, backend := range []string{store.BackendRedis, store.BackendPostgres} {
		t.Run(backend, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			userID := fmt.Sprintf("e2e-%s", uuid.NewString())
			insertSubscription(t, e, userID, time.Now().Add(24*time.Hour))
			handler, resultStore := newHandler(t, e, backend)

			output, err := handler.Execute(ctx, &ss.Input{UserID: userID, Answers: completeAnswers()})
			require.NoError(t, err)
			assert.Equal(t, 68, output.OverallScore)
			assert.Equal(t, 24.0, output.Percentile)

			history, err := resultStore.History(ctx, userID, 0)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, output.RunID, history[0].RunID)

			state, err := resultStore.LoadCalculationState(ctx, userID)
			require.NoError(t, err)
			assert.Nil(t, state)
		})
	}
}

func TestStatusScore_RejectsExpiredSubscription(t *testing.T) {
	e := setup(t)

	userID := fmt.Sprintf("e2e-%s", uuid.NewString())
	insertSubscription(t, e, userID, time.Now().Add(-time.Hour))
	handler, _ := newHandler(t, e, store.BackendRedis)

	_, err := handler.Execute(context.Background(), &ss.Input{UserID: userID, Answers: completeAnswers()})
	require.Error(t, err)
	assert.Equal(t, errors.ClassSubscriptionInvalid, errors.ClassOf(err))
}
