package entitlement

import (
	"context"
	"time"
)

// DefaultResetLimit is the number of self-service HWID resets an account
// may consume per reset window.
const DefaultResetLimit = 3

// quotaWindowLayout is the calendar-day window key format. The window is
// always evaluated in UTC so the rollover instant cannot drift between
// instances running in different zones.
const quotaWindowLayout = "2006-01-02"

// ResetQuotaTracker enforces the daily HWID reset cap on top of a
// QuotaStore. Window computation is lazy: a counter stored under a stale
// window key is treated as zero on the next consume, so no background
// sweep is required.
type ResetQuotaTracker struct {
	store QuotaStore
	limit int
	now   func() time.Time
}

// NewResetQuotaTracker returns a tracker with the given cap. A limit of
// zero or below falls back to DefaultResetLimit.
func NewResetQuotaTracker(store QuotaStore, limit int) *ResetQuotaTracker {
	if limit <= 0 {
		limit = DefaultResetLimit
	}
	return &ResetQuotaTracker{
		store: store,
		limit: limit,
		now:   time.Now,
	}
}

// Limit returns the configured daily cap.
func (t *ResetQuotaTracker) Limit() int {
	return t.limit
}

// TryConsume spends one reset for the account in the current UTC day
// window. It returns the number of resets used so far today, or
// ErrResetLimitExceeded with no state change once the cap is reached.
func (t *ResetQuotaTracker) TryConsume(ctx context.Context, accountID string) (int, error) {
	return t.store.TryConsume(ctx, accountID, t.windowKey(), t.limit)
}

func (t *ResetQuotaTracker) windowKey() string {
	return t.now().UTC().Format(quotaWindowLayout)
}
