package entitlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuotaStore is an in-memory QuotaStore with the atomic
// increment-with-cap contract.
type fakeQuotaStore struct {
	mu      sync.Mutex
	entries map[string]struct {
		count  int
		window string
	}
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{entries: make(map[string]struct {
		count  int
		window string
	})}
}

func (s *fakeQuotaStore) TryConsume(ctx context.Context, accountID, windowKey string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[accountID]
	if e.window != windowKey {
		e.count = 0
		e.window = windowKey
	}
	if e.count >= limit {
		return e.count, ErrResetLimitExceeded
	}
	e.count++
	s.entries[accountID] = e
	return e.count, nil
}

func TestResetQuotaTrackerDailyCap(t *testing.T) {
	tracker := NewResetQuotaTracker(newFakeQuotaStore(), 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		used, err := tracker.TryConsume(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, i, used)
	}

	used, err := tracker.TryConsume(ctx, "U1")
	assert.ErrorIs(t, err, ErrResetLimitExceeded)
	assert.Equal(t, 3, used)
}

func TestResetQuotaTrackerDayRollover(t *testing.T) {
	tracker := NewResetQuotaTracker(newFakeQuotaStore(), 3)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	tracker.now = func() time.Time { return day1 }

	for i := 0; i < 3; i++ {
		_, err := tracker.TryConsume(ctx, "U1")
		require.NoError(t, err)
	}
	_, err := tracker.TryConsume(ctx, "U1")
	require.ErrorIs(t, err, ErrResetLimitExceeded)

	// Ten minutes later it is the next UTC day and the counter reads zero.
	tracker.now = func() time.Time { return day1.Add(10 * time.Minute) }
	used, err := tracker.TryConsume(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestResetQuotaTrackerPerAccountIsolation(t *testing.T) {
	tracker := NewResetQuotaTracker(newFakeQuotaStore(), 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tracker.TryConsume(ctx, "U1")
		require.NoError(t, err)
	}
	_, err := tracker.TryConsume(ctx, "U1")
	require.ErrorIs(t, err, ErrResetLimitExceeded)

	used, err := tracker.TryConsume(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestResetQuotaTrackerDefaultLimit(t *testing.T) {
	tracker := NewResetQuotaTracker(newFakeQuotaStore(), 0)
	assert.Equal(t, DefaultResetLimit, tracker.Limit())
}

func TestResetQuotaTrackerWindowKeyIsUTC(t *testing.T) {
	tracker := NewResetQuotaTracker(newFakeQuotaStore(), 3)

	// 23:30 in UTC-5 is already the next day in UTC.
	zone := time.FixedZone("UTC-5", -5*3600)
	tracker.now = func() time.Time {
		return time.Date(2025, 6, 1, 23, 30, 0, 0, zone)
	}
	assert.Equal(t, "2025-06-02", tracker.windowKey())
}
