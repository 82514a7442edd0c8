// cmd/worker-manager/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/50mmer/statusai/internal/common/camunda"
	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/database"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/observability"
	"github.com/50mmer/statusai/internal/entitlement"
	"github.com/50mmer/statusai/internal/pipeline"
	"github.com/50mmer/statusai/internal/scoring"
	"github.com/50mmer/statusai/internal/store"
	"github.com/50mmer/statusai/internal/telemetry"
	ss "github.com/50mmer/statusai/internal/workers/scoring/status-score"
)

func main() {
	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Redis ---
	var rdb *redis.Client
	if cfg.Database.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis client failed", zap.Error(err))
		}
		if err := database.ConnectWithRetry(ctx, "Redis connection", 10, 2*time.Second, log, rc.Ping); err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		rdb = rc.Client
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL ---
	var db *sql.DB
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err := database.ConnectWithRetry(ctx, "PostgreSQL connection", 15, 2*time.Second, log, func(ctx context.Context) error {
			var err error
			if pg == nil {
				if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
					return err
				}
			}
			return pg.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		db = pg.DB
		zapLog.Info("PostgreSQL connected successfully")
	}

	resultStore, err := store.New(cfg.Storage, rdb, db, log)
	if err != nil {
		zapLog.Fatal("result store init failed", zap.Error(err))
	}

	// --- Error reporting ---
	sink := telemetry.New(log, telemetry.DefaultBufferSize)
	defer sink.Close()

	hub := errors.NewHub()
	unsubscribe := hub.Subscribe(sink.HandleReport)
	defer unsubscribe()

	scorer := scoring.NewClient(scoring.ConfigFrom(cfg), log, scoring.WithTracer(obs.Tracer()))

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = database.ConnectWithRetry(ctx, "Zeebe client initialization", 10, 2*time.Second, log, func(context.Context) error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	wcfg := config.GetWorkerConfig(cfg, ss.TaskType)
	handlerCfg := ss.LoadConfig(wcfg)

	var checker ss.SubscriptionChecker
	if db != nil {
		checker = entitlement.NewChecker(db, rdb, entitlement.DefaultCacheTTL, log)
	} else {
		handlerCfg.RequireSubscription = false
		zapLog.Warn("postgres not configured, subscription gate disabled")
	}

	handler := ss.NewHandler(handlerCfg, scorer, checker, pipeline.Options{
		Store:    resultStore,
		Tracker:  sink,
		Recorder: obs,
		Hub:      hub,
	}, log)
	scoreWorker := camunda.StartWorker(zeebe.GetClient(), ss.TaskType, wcfg, handler.Handle, log)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.Handle("/debug/", http.DefaultServeMux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scoreWorker.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
