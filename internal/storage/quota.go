package storage

import (
	"context"
	"fmt"
	"time"
)

// QuotaTracker enforces the free-tier daily analysis limit with Redis
// counters that expire at the end of the UTC day.
type QuotaTracker struct {
	cache *RedisCache
	limit int
}

// NewQuotaTracker creates a quota tracker with the given daily limit
func NewQuotaTracker(cache *RedisCache, limit int) *QuotaTracker {
	return &QuotaTracker{cache: cache, limit: limit}
}

// Limit returns the configured daily limit.
func (q *QuotaTracker) Limit() int {
	return q.limit
}

func (q *QuotaTracker) key(userID string, now time.Time) string {
	return fmt.Sprintf("quota:analyze:%s:%s", userID, now.UTC().Format("2006-01-02"))
}

// Consume takes one analysis from the user's daily budget. Returns false
// when the budget is already exhausted; the consumed slot is not returned.
func (q *QuotaTracker) Consume(ctx context.Context, userID string) (bool, error) {
	now := time.Now()
	key := q.key(userID, now)

	count, err := q.cache.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to increment quota counter: %w", err)
	}

	if count == 1 {
		// Counter resets at the next UTC midnight
		midnight := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		if err := q.cache.Expire(ctx, key, time.Until(midnight)); err != nil {
			return false, fmt.Errorf("failed to expire quota counter: %w", err)
		}
	}

	return count <= int64(q.limit), nil
}

// Remaining reports how many analyses the user has left today.
func (q *QuotaTracker) Remaining(ctx context.Context, userID string) (int, error) {
	val, err := q.cache.Get(ctx, q.key(userID, time.Now()))
	if err != nil {
		// Missing key means an untouched budget
		return q.limit, nil
	}

	var used int
	if _, err := fmt.Sscanf(val, "%d", &used); err != nil {
		return 0, fmt.Errorf("failed to parse quota counter: %w", err)
	}

	remaining := q.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
