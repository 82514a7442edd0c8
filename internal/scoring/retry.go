package scoring

import (
	"math"
	"time"

	"github.com/50mmer/statusai/internal/common/errors"
)

// Decision is the outcome of RetryPolicy.ShouldRetry.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. All retryable classes draw on one shared budget: attempt is
// the number of retries already made in this invocation, whatever their
// class.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps each delay when > 0.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the proxy's documented limits: 3 retries,
// 2s base delay, 10s ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// ShouldRetry is pure. Transport, rate-limit and server failures back off by
// base*2^attempt, malformed responses by base*1.5^attempt.
func (p RetryPolicy) ShouldRetry(attempt int, class errors.FailureClass) Decision {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= p.MaxRetries {
		return Decision{}
	}

	var factor float64
	switch class {
	case errors.ClassNetwork, errors.ClassRateLimited, errors.ClassServer:
		factor = 2
	case errors.ClassMalformed:
		factor = 1.5
	default:
		return Decision{}
	}

	return Decision{Retry: true, Delay: p.delay(factor, attempt)}
}

func (p RetryPolicy) delay(factor float64, attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(factor, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
