package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"keygate/internal/entitlement"
)

// snapshot is the on-disk shape of the file store: every record plus the
// reset quota counters, in one JSON document.
type snapshot struct {
	Records map[string]*entitlement.UserRecord `json:"records"`
	Quotas  map[string]quotaEntry              `json:"quotas"`
}

// File is a durable entitlement store backed by a single JSON snapshot
// file. It keeps the full state in an embedded Memory store and rewrites
// the snapshot after every mutation with a write-temp-then-rename, so a
// crash mid-write never leaves a torn file behind. The mutation rate of a
// license service (registrations, resets, extensions) is low enough that
// whole-snapshot persistence is the simple correct choice.
type File struct {
	mem    *Memory
	path   string
	logger *slog.Logger
}

// OpenFile loads (or initializes) the snapshot at path.
func OpenFile(path string, logger *slog.Logger) (*File, error) {
	f := &File{
		mem:    NewMemory(),
		path:   path,
		logger: logger.With(slog.String("component", "file_store")),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f.logger.Info("no existing snapshot, starting empty",
			slog.String("path", path))
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", entitlement.ErrStoreUnavailable, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: parse snapshot %s: %v", entitlement.ErrStoreUnavailable, path, err)
	}

	f.mem.mu.Lock()
	f.mem.restoreLocked(snap)
	f.mem.mu.Unlock()

	f.logger.Info("snapshot loaded",
		slog.String("path", path),
		slog.Int("records", len(snap.Records)))
	return f, nil
}

// persistLocked writes the current state to disk. Callers hold the
// embedded store's write lock, which serializes persistence with the
// mutation it belongs to: a failure surfaces before the mutation is
// visible to any reader.
func (f *File) persistLocked() error {
	snap := f.mem.snapshotLocked()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", entitlement.ErrStoreUnavailable, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: create snapshot dir: %v", entitlement.ErrStoreUnavailable, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", entitlement.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: replace snapshot: %v", entitlement.ErrStoreUnavailable, err)
	}
	return nil
}

// mutate runs fn under the write lock and persists on success. If
// persistence fails the in-memory state is rolled back to the prior
// snapshot so memory and disk never diverge.
func (f *File) mutate(fn func() error) error {
	f.mem.mu.Lock()
	defer f.mem.mu.Unlock()

	before := f.mem.snapshotLocked()
	if err := fn(); err != nil {
		return err
	}
	if err := f.persistLocked(); err != nil {
		f.mem.restoreLocked(before)
		return err
	}
	return nil
}

// GetByAccount implements entitlement.Store.
func (f *File) GetByAccount(ctx context.Context, accountID string) (*entitlement.UserRecord, error) {
	return f.mem.GetByAccount(ctx, accountID)
}

// GetByKey implements entitlement.Store.
func (f *File) GetByKey(ctx context.Context, key string) (*entitlement.UserRecord, error) {
	return f.mem.GetByKey(ctx, key)
}

// Create implements entitlement.Store.
func (f *File) Create(ctx context.Context, rec *entitlement.UserRecord) error {
	return f.mutate(func() error {
		return f.mem.createLocked(rec)
	})
}

// Update implements entitlement.Store.
func (f *File) Update(ctx context.Context, accountID string, fn func(*entitlement.UserRecord) error) (*entitlement.UserRecord, error) {
	var updated *entitlement.UserRecord
	err := f.mutate(func() error {
		var err error
		updated, err = f.mem.updateLocked(accountID, entitlement.ErrNotFound, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateByKey implements entitlement.Store.
func (f *File) UpdateByKey(ctx context.Context, key string, fn func(*entitlement.UserRecord) error) (*entitlement.UserRecord, error) {
	var updated *entitlement.UserRecord
	err := f.mutate(func() error {
		accountID, ok := f.mem.keyIndex[key]
		if !ok {
			return entitlement.ErrKeyNotFound
		}
		var err error
		updated, err = f.mem.updateLocked(accountID, entitlement.ErrKeyNotFound, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListAccountIDs implements entitlement.Store.
func (f *File) ListAccountIDs(ctx context.Context) ([]string, error) {
	return f.mem.ListAccountIDs(ctx)
}

// Delete implements entitlement.Store.
func (f *File) Delete(ctx context.Context, accountID string) error {
	return f.mutate(func() error {
		rec, ok := f.mem.byAccount[accountID]
		if !ok {
			return entitlement.ErrNotFound
		}
		delete(f.mem.keyIndex, rec.Key)
		delete(f.mem.byAccount, accountID)
		delete(f.mem.quotas, accountID)
		return nil
	})
}

// TryConsume implements entitlement.QuotaStore. The increment and the
// snapshot write happen under one lock, so concurrent resets cannot
// double-spend quota and the counter survives restarts.
func (f *File) TryConsume(ctx context.Context, accountID, windowKey string, limit int) (int, error) {
	var used int
	err := f.mutate(func() error {
		var err error
		used, err = f.mem.tryConsumeLocked(accountID, windowKey, limit)
		return err
	})
	if err != nil {
		return used, err
	}
	return used, nil
}
