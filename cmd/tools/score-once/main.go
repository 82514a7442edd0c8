// cmd/tools/score-once/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/database"
	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/observability"
	"github.com/50mmer/statusai/internal/entitlement"
	"github.com/50mmer/statusai/internal/models"
	"github.com/50mmer/statusai/internal/pipeline"
	"github.com/50mmer/statusai/internal/scoring"
	"github.com/50mmer/statusai/internal/store"
	"github.com/50mmer/statusai/internal/telemetry"
)

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	lastCmd := flag.NewFlagSet("last", flag.ExitOnError)

	// Run command flags
	answersPath := runCmd.String("answers", "", "Path to the answers JSON file")
	userRun := runCmd.String("user", "", "User ID the result is stored under")
	checkSub := runCmd.Bool("check-subscription", false, "Require an active subscription before scoring")
	noStore := runCmd.Bool("no-store", false, "Do not persist the result")
	quiet := runCmd.Bool("quiet", false, "Do not print progress to stderr")

	// History command flags
	userHistory := historyCmd.String("user", "", "User ID")
	limit := historyCmd.Int("limit", config.DefaultHistoryLimit, "Number of results to show")

	// Last command flags
	userLast := lastCmd.String("user", "", "User ID")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		runCmd.Parse(os.Args[2:])
		if *answersPath == "" {
			fmt.Fprintln(os.Stderr, "Error: -answers is required for run.")
			runCmd.Usage()
			os.Exit(1)
		}
		if err := run(ctx, *answersPath, *userRun, *checkSub, !*noStore, !*quiet); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCode(err))
		}

	case "history":
		historyCmd.Parse(os.Args[2:])
		if err := history(ctx, *userHistory, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "last":
		lastCmd.Parse(os.Args[2:])
		if err := last(ctx, *userLast); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		help()
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: score-once <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  run      Score an answers file and print the result JSON")
	fmt.Println("  history  Print stored results, newest first")
	fmt.Println("  last     Print the last result and any unfinished calculation")
	fmt.Println("\nExample:")
	fmt.Println("  go run ./cmd/tools/score-once run -answers answers.json -user user-123")
}

type deps struct {
	cfg   *config.Config
	log   logger.Logger
	redis *redis.Client
	db    *sql.DB
	close []func() error
}

// connect opens whatever backends the config names. Each gets a single ping.
func connect(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	d := &deps{
		cfg: cfg,
		log: logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "stderr"),
	}

	if cfg.Database.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		if err := database.ConnectWithRetry(ctx, "Redis connection", 1, time.Second, d.log, rc.Ping); err != nil {
			return nil, err
		}
		d.redis = rc.Client
		d.close = append(d.close, rc.Close)
	}
	if cfg.Database.Postgres.Enabled() {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.ConnectWithRetry(ctx, "PostgreSQL connection", 1, time.Second, d.log, pg.Ping); err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		d.db = pg.DB
		d.close = append(d.close, pg.Close)
	}
	return d, nil
}

func (d *deps) Close() {
	for _, fn := range d.close {
		_ = fn()
	}
}

func run(ctx context.Context, answersPath, userID string, checkSub, persist, showProgress bool) error {
	answers, err := readAnswers(answersPath)
	if err != nil {
		return err
	}

	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if checkSub {
		if d.db == nil {
			return fmt.Errorf("-check-subscription needs database.postgres to be configured")
		}
		active, err := entitlement.NewChecker(d.db, d.redis, entitlement.DefaultCacheTTL, d.log).HasActiveSubscription(ctx, userID)
		if err != nil {
			return err
		}
		if !active {
			return errors.NewSubscriptionInvalidError(fmt.Sprintf("user %q has no active subscription", userID))
		}
	}

	obs, err := observability.New(d.cfg.App.Name)
	if err != nil {
		return err
	}
	defer obs.Shutdown()

	sink := telemetry.New(d.log, telemetry.DefaultBufferSize)
	defer sink.Close()
	hub := errors.NewHub()
	defer hub.Subscribe(sink.HandleReport)()

	opts := pipeline.Options{
		Tracker:  sink,
		Recorder: obs,
		Hub:      hub,
		UserID:   userID,
	}
	if persist {
		if opts.Store, err = store.New(d.cfg.Storage, d.redis, d.db, d.log); err != nil {
			return err
		}
	}
	if showProgress {
		opts.OnChange = printProgress
	}

	scorer := scoring.NewClient(scoring.ConfigFrom(d.cfg), d.log, scoring.WithTracer(obs.Tracer()))
	ctrl := pipeline.New(scorer, d.log, opts)
	defer ctrl.Close()

	result, err := ctrl.Run(ctx, answers)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func history(ctx context.Context, userID string, limit int) error {
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := store.New(d.cfg.Storage, d.redis, d.db, d.log)
	if err != nil {
		return err
	}
	records, err := s.History(ctx, userID, limit)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func last(ctx context.Context, userID string) error {
	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := store.New(d.cfg.Storage, d.redis, d.db, d.log)
	if err != nil {
		return err
	}
	rec, err := s.LastResult(ctx, userID)
	if err != nil {
		return err
	}
	state, err := s.LoadCalculationState(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"lastResult":       rec,
		"calculationState": state,
	})
}

func readAnswers(path string) (models.AnswerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var answers models.AnswerSet
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return answers, nil
}

func printProgress(s pipeline.State) {
	switch {
	case s.Loading:
		line := fmt.Sprintf("[%3d%%] %s", s.Progress, s.StatusMessage)
		if s.RetryCount > 0 {
			line += fmt.Sprintf(" (retry %d)", s.RetryCount)
		}
		fmt.Fprintln(os.Stderr, line)
	case s.HasError():
		fmt.Fprintf(os.Stderr, "[fail] %s\n", s.Err)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps failure classes onto distinct exit statuses for scripts.
func exitCode(err error) int {
	switch errors.ClassOf(err) {
	case errors.ClassValidation:
		return 2
	case errors.ClassSubscriptionInvalid:
		return 3
	case errors.ClassCancelled:
		return 130
	default:
		return 1
	}
}
