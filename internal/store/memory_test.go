package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/internal/entitlement"
)

func testRecord(accountID, key string) *entitlement.UserRecord {
	return &entitlement.UserRecord{
		AccountID:  accountID,
		Username:   "alice",
		Key:        key,
		CreateTime: 1700000000,
		EndTime:    1800000000,
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	rec, err := s.GetByAccount(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", rec.Key)

	rec, err = s.GetByKey(ctx, "KEY1")
	require.NoError(t, err)
	assert.Equal(t, "U1", rec.AccountID)

	_, err = s.GetByAccount(ctx, "U2")
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
	_, err = s.GetByKey(ctx, "KEY2")
	assert.ErrorIs(t, err, entitlement.ErrKeyNotFound)
}

func TestMemoryUniqueness(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))
	assert.ErrorIs(t, s.Create(ctx, testRecord("U1", "KEY2")), entitlement.ErrDuplicateAccount)
	assert.ErrorIs(t, s.Create(ctx, testRecord("U2", "KEY1")), entitlement.ErrDuplicateKey)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	rec, err := s.GetByAccount(ctx, "U1")
	require.NoError(t, err)
	rec.HWID = "TAMPERED"

	fresh, err := s.GetByAccount(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, fresh.HWID, "mutating a returned record must not touch stored state")
}

func TestMemoryUpdate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	rec, err := s.Update(ctx, "U1", func(r *entitlement.UserRecord) error {
		r.HWID = "HW-1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "HW-1", rec.HWID)

	_, err = s.Update(ctx, "U2", func(r *entitlement.UserRecord) error { return nil })
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestMemoryUpdateAbortsOnError(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	_, err := s.Update(ctx, "U1", func(r *entitlement.UserRecord) error {
		r.HWID = "HW-1"
		return entitlement.ErrHWIDMismatch
	})
	require.ErrorIs(t, err, entitlement.ErrHWIDMismatch)

	rec, err := s.GetByAccount(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, rec.HWID, "a failed update must leave no visible mutation")
}

func TestMemoryUpdateByKeyReindexesChangedKey(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	_, err := s.Update(ctx, "U1", func(r *entitlement.UserRecord) error {
		r.Key = "KEY9"
		return nil
	})
	require.NoError(t, err)

	_, err = s.GetByKey(ctx, "KEY1")
	assert.ErrorIs(t, err, entitlement.ErrKeyNotFound)
	rec, err := s.GetByKey(ctx, "KEY9")
	require.NoError(t, err)
	assert.Equal(t, "U1", rec.AccountID)
}

func TestMemoryConcurrentFirstBind(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hwid := string(rune('A' + i))
			_, err := s.UpdateByKey(ctx, "KEY1", func(r *entitlement.UserRecord) error {
				if r.HWID == "" {
					r.HWID = hwid
					return nil
				}
				if r.HWID != hwid {
					return entitlement.ErrHWIDMismatch
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one bind wins")
	rec, err := s.GetByKey(ctx, "KEY1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.HWID)
}

func TestMemoryDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))
	_, err := s.TryConsume(ctx, "U1", "2025-06-01", 3)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "U1"))
	assert.ErrorIs(t, s.Delete(ctx, "U1"), entitlement.ErrNotFound)
	_, err = s.GetByKey(ctx, "KEY1")
	assert.ErrorIs(t, err, entitlement.ErrKeyNotFound)

	// Quota state went with the record.
	assert.Empty(t, s.quotas)
}

func TestMemoryListAccountIDs(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRecord("U1", "KEY1")))
	require.NoError(t, s.Create(ctx, testRecord("U2", "KEY2")))

	ids, err := s.ListAccountIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"U1", "U2"}, ids)
}

func TestMemoryTryConsume(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		used, err := s.TryConsume(ctx, "U1", "2025-06-01", 3)
		require.NoError(t, err)
		assert.Equal(t, i, used)
	}
	used, err := s.TryConsume(ctx, "U1", "2025-06-01", 3)
	assert.ErrorIs(t, err, entitlement.ErrResetLimitExceeded)
	assert.Equal(t, 3, used)

	// A new window key reads as zero.
	used, err = s.TryConsume(ctx, "U1", "2025-06-02", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestMemoryTryConsumeConcurrent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var granted int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.TryConsume(ctx, "U1", "2025-06-01", 3); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted, "the cap must hold under concurrency")
}
