package scoring

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/50mmer/statusai/internal/common/config"
	"github.com/50mmer/statusai/internal/common/errors"
	commonhttp "github.com/50mmer/statusai/internal/common/http"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
	"github.com/50mmer/statusai/internal/models"
)

const tracerName = "github.com/50mmer/statusai/internal/scoring"

// Config holds everything the client needs about the upstream.
type Config struct {
	BackendURL        string
	Model             string
	Temperature       float64
	MaxTokens         int
	RequestTimeout    time.Duration
	RequestsPerMinute int
	MaxConcurrent     int
	Retry             RetryPolicy
}

// ConfigFrom maps the application config onto a client Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BackendURL:        cfg.Scoring.BackendURL,
		Model:             cfg.Scoring.Model,
		Temperature:       cfg.Scoring.Temperature,
		MaxTokens:         cfg.Scoring.MaxTokens,
		RequestTimeout:    config.GetDuration(cfg.Timeout.Request),
		RequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		MaxConcurrent:     cfg.RateLimit.MaxConcurrentRequests,
		Retry: RetryPolicy{
			MaxRetries: cfg.RateLimit.MaxRetries,
			BaseDelay:  config.GetDuration(cfg.RateLimit.DefaultRetryDelay),
			MaxDelay:   config.GetDuration(cfg.Timeout.MaxRetryDelay),
		},
	}
}

// Poster sends one JSON request. *commonhttp.Client implements it.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload interface{}) (*commonhttp.Response, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Client.
type Option func(*Client)

// WithPoster replaces the HTTP transport.
func WithPoster(p Poster) Option {
	return func(c *Client) { c.http = p }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithSleep replaces the backoff timer.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// Client runs the request/retry/validate loop against the scoring proxy.
// It is safe for concurrent use; the limiter and semaphore are shared by
// all calls.
type Client struct {
	cfg     Config
	builder RequestBuilder
	http    Poster
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	tracer  trace.Tracer
	sleep   SleepFunc
	logger  logger.Logger
}

func NewClient(cfg Config, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		builder: RequestBuilder{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		http:   commonhttp.NewClient(0),
		tracer: otel.Tracer(tracerName),
		sleep:  sleepContext,
		logger: logger.Component(log, "scoring-client"),
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.MaxConcurrent
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}
	if cfg.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute scores one AnswerSet. Retryable failures are retried in a loop
// with one shared retry counter; the returned error is always a
// *errors.PipelineError. Cancelling ctx aborts the in-flight request or the
// backoff wait and yields a CANCELLED error.
func (c *Client) Execute(ctx context.Context, answers models.AnswerSet, onProgress ProgressFunc) (*models.ScoreResult, error) {
	answers = answers.Clone()

	retries := 0
	percent := 0
	report := func(attempt int, phase Phase, pct int, status string) {
		percent = pct
		if onProgress != nil {
			onProgress(Progress{Phase: phase, Percent: pct, Status: status, RetryCount: retries, Attempt: attempt})
		}
	}

	report(1, PhaseValidating, 0, StatusValidating)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError().WithAttempts(attempt - 1)
		}

		report(attempt, PhaseConnecting, 20, StatusConnecting)
		result, pErr := c.attempt(ctx, answers, attempt, report)
		if pErr == nil {
			report(attempt, PhaseDone, 100, StatusComplete)
			return result, nil
		}

		if ctx.Err() != nil || pErr.Class == errors.ClassCancelled {
			return nil, errors.NewCancelledError().WithAttempts(attempt)
		}

		decision := c.cfg.Retry.ShouldRetry(retries, pErr.Class)
		if !decision.Retry {
			c.logger.Error("Scoring failed", map[string]interface{}{
				"attempt":      attempt,
				"retryCount":   retries,
				"failureClass": string(pErr.Class),
				"error":        pErr.Message,
			})
			report(attempt, PhaseFailed, percent, pErr.Message)
			return nil, pErr.WithAttempts(attempt)
		}

		retries++
		metrics.ScoringRetries.WithLabelValues(string(pErr.Class)).Inc()
		c.logger.Warn("Scoring attempt failed, retrying", map[string]interface{}{
			"attempt":      attempt,
			"retryCount":   retries,
			"failureClass": string(pErr.Class),
			"delay":        decision.Delay.String(),
			"error":        pErr.Message,
		})
		report(attempt, PhaseRetrying, percent, retryStatus(pErr.Class == errors.ClassMalformed))

		if err := c.sleep(ctx, decision.Delay); err != nil {
			return nil, errors.NewCancelledError().WithAttempts(attempt)
		}
	}
}

func (c *Client) attempt(ctx context.Context, answers models.AnswerSet, n int, report func(int, Phase, int, string)) (result *models.ScoreResult, pErr *errors.PipelineError) {
	ctx, span := c.tracer.Start(ctx, "scoring.attempt", trace.WithAttributes(attribute.Int("scoring.attempt", n)))
	start := time.Now()
	defer func() {
		outcome := "success"
		if pErr != nil {
			outcome = string(pErr.Class)
			span.SetAttributes(attribute.String("scoring.failure_class", outcome))
			span.SetStatus(codes.Error, pErr.Message)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		metrics.ScoringAttempts.WithLabelValues(outcome).Inc()
		metrics.ScoringAttemptDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if err := c.acquire(ctx); err != nil {
		return nil, errors.NewCancelledError()
	}
	if c.sem != nil {
		defer c.sem.Release(1)
	}

	callCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req := c.builder.Build(answers)
	resp, err := c.http.PostJSON(callCtx, c.cfg.BackendURL, req.Payload())
	if err != nil {
		return nil, c.classifyTransportError(ctx, callCtx, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !resp.OK() {
		var body errorBody
		msg := ""
		if json.Unmarshal(resp.Body, &body) == nil && body.Error != nil {
			msg = body.Error.Message
		}
		return nil, errors.NewHTTPStatusError(resp.StatusCode, resp.Status, msg)
	}

	report(n, PhaseAwaitingResponse, 40, StatusAnalyzing)

	var chat chatResponse
	if err := json.Unmarshal(resp.Body, &chat); err != nil {
		return nil, errors.NewMalformedResponseError("Invalid API response structure", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == nil || *chat.Choices[0].Message.Content == "" {
		return nil, errors.NewMalformedResponseError("Invalid API response structure", nil)
	}

	report(n, PhaseParsing, 70, StatusProcessing)

	content := stripCodeFences(*chat.Choices[0].Message.Content)
	doc, err := ParseValue([]byte(content))
	if err != nil {
		return nil, errors.NewMalformedResponseError(err.Error(), err)
	}
	if err := validateStructure(content); err != nil {
		return nil, errors.NewMalformedResponseError(err.Error(), err)
	}

	norm := NormalizeReport(doc)
	for _, field := range norm.Defaulted {
		metrics.NormalizedDefaults.WithLabelValues(field).Inc()
	}
	if len(norm.Defaulted) > 0 {
		c.logger.Debug("Response fields defaulted", map[string]interface{}{
			"attempt": n,
			"fields":  norm.Defaulted,
		})
	}
	return &norm.Result, nil
}

func (c *Client) acquire(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.sem != nil {
		return c.sem.Acquire(ctx, 1)
	}
	return nil
}

// classifyTransportError separates caller cancellation from per-attempt
// timeouts and other connection failures.
func (c *Client) classifyTransportError(parent, call context.Context, err error) *errors.PipelineError {
	if parent.Err() != nil {
		return errors.NewCancelledError()
	}
	if call.Err() == context.DeadlineExceeded || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError(c.cfg.RequestTimeout)
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return errors.NewTimeoutError(c.cfg.RequestTimeout)
	}
	return errors.NewNetworkError(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
