// Package entitlement answers whether a user may see score results.
package entitlement

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
)

const (
	TierOneDay  = "one_day_access"
	TierMonthly = "monthly_access"

	DefaultCacheTTL = 5 * time.Minute
)

var validTiers = map[string]bool{
	TierOneDay:  true,
	TierMonthly: true,
}

const subscriptionQuery = `SELECT user_id, tier, has_paid, expires_at FROM user_subscriptions WHERE user_id = $1`

// Subscription is one user_subscriptions row.
type Subscription struct {
	UserID    string     `json:"userId"`
	Tier      string     `json:"tier"`
	HasPaid   bool       `json:"hasPaid"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ActiveAt reports whether the subscription grants access at now.
func (s Subscription) ActiveAt(now time.Time) bool {
	if !s.HasPaid || !validTiers[s.Tier] || s.ExpiresAt == nil {
		return false
	}
	return now.Before(*s.ExpiresAt)
}

// Checker looks subscriptions up in redis first and postgres second. Either
// backend may be nil.
type Checker struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewChecker(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Checker {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Checker{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Component(log, "entitlement"),
	}
}

func cacheKey(userID string) string {
	return "sub:" + userID
}

// HasActiveSubscription returns false for a missing, unpaid, expired or
// unknown-tier subscription. Lookup failures are returned as
// SUBSCRIPTION_CHECK_FAILED errors.
func (c *Checker) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := c.Lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.ActiveAt(c.now()), nil
}

// Lookup returns the subscription row, or nil when the user has none.
func (c *Checker) Lookup(ctx context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, nil
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, cacheKey(userID)).Result()
		switch {
		case err == nil:
			var sub Subscription
			if jsonErr := json.Unmarshal([]byte(val), &sub); jsonErr == nil {
				return &sub, nil
			}
		case !stderrors.Is(err, redis.Nil):
			c.logger.Debug("Subscription cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}

	if c.db == nil {
		return nil, nil
	}

	var (
		sub     Subscription
		expires sql.NullTime
	)
	err := c.db.QueryRowContext(ctx, subscriptionQuery, userID).Scan(&sub.UserID, &sub.Tier, &sub.HasPaid, &expires)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewSubscriptionCheckFailedError(err)
	}
	if expires.Valid {
		t := expires.Time.UTC()
		sub.ExpiresAt = &t
	}

	if c.redis != nil {
		data, _ := json.Marshal(sub)
		if err := c.redis.Set(ctx, cacheKey(userID), data, c.ttl).Err(); err != nil {
			c.logger.Warn("Subscription cache write failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}
	return &sub, nil
}
