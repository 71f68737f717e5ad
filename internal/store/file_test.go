package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/internal/entitlement"
)

func newTestFileStore(t *testing.T) (*File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entitlements.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := OpenFile(path, logger)
	require.NoError(t, err)
	return f, path
}

func TestFileStoreRoundTrip(t *testing.T) {
	f, path := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, f.Create(ctx, testRecord("U1", "KEY1")))
	_, err := f.Update(ctx, "U1", func(r *entitlement.UserRecord) error {
		r.HWID = "HW-1"
		return nil
	})
	require.NoError(t, err)
	_, err = f.TryConsume(ctx, "U1", "2025-06-01", 3)
	require.NoError(t, err)

	// Reopen from disk and verify everything survived.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := OpenFile(path, logger)
	require.NoError(t, err)

	rec, err := reopened.GetByAccount(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "KEY1", rec.Key)
	assert.Equal(t, "HW-1", rec.HWID)

	rec, err = reopened.GetByKey(ctx, "KEY1")
	require.NoError(t, err)
	assert.Equal(t, "U1", rec.AccountID)

	// Quota counters are durable too: two more resets exhaust the cap.
	_, err = reopened.TryConsume(ctx, "U1", "2025-06-01", 3)
	require.NoError(t, err)
	used, err := reopened.TryConsume(ctx, "U1", "2025-06-01", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, used)
	_, err = reopened.TryConsume(ctx, "U1", "2025-06-01", 3)
	assert.ErrorIs(t, err, entitlement.ErrResetLimitExceeded)
}

func TestFileStoreNoTempFileLeftBehind(t *testing.T) {
	f, path := newTestFileStore(t)
	require.NoError(t, f.Create(context.Background(), testRecord("U1", "KEY1")))

	_, err := os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "snapshot writes must rename away the temp file")
}

func TestFileStoreSnapshotPermissions(t *testing.T) {
	f, path := newTestFileStore(t)
	require.NoError(t, f.Create(context.Background(), testRecord("U1", "KEY1")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreFailedMutationWritesNothing(t *testing.T) {
	f, path := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, f.Create(ctx, testRecord("U1", "KEY1")))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = f.Update(ctx, "U1", func(r *entitlement.UserRecord) error {
		r.HWID = "HW-1"
		return entitlement.ErrHWIDMismatch
	})
	require.ErrorIs(t, err, entitlement.ErrHWIDMismatch)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "aborted updates must not rewrite the snapshot")
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitlements.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := OpenFile(path, logger)
	assert.ErrorIs(t, err, entitlement.ErrStoreUnavailable)
}

func TestFileStoreDeletePersists(t *testing.T) {
	f, path := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, f.Create(ctx, testRecord("U1", "KEY1")))
	require.NoError(t, f.Delete(ctx, "U1"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := OpenFile(path, logger)
	require.NoError(t, err)
	_, err = reopened.GetByAccount(ctx, "U1")
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}
