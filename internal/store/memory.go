// Package store provides the EntitlementStore adapters: an in-memory store
// for tests and single-instance deployments, and a file-backed store that
// persists the same state as an atomic JSON snapshot.
package store

import (
	"context"
	"fmt"
	"sync"

	"keygate/internal/entitlement"
)

// quotaEntry is the persisted reset counter for one account. A stale
// WindowKey means the count no longer applies and reads as zero.
type quotaEntry struct {
	Count     int    `json:"count"`
	WindowKey string `json:"windowKey"`
}

// Memory is an in-process entitlement store. All operations run under one
// mutex, which trivially gives the atomic per-account read-modify-write
// the service requires; at the expected population (hundreds to low
// thousands of records) lock contention is a non-issue.
//
// State is process-lifetime scoped. Running multiple uncoordinated
// instances against Memory gives each instance its own quota and record
// set; cross-process consistency needs the file store or an equivalent
// shared backend.
type Memory struct {
	mu        sync.RWMutex
	byAccount map[string]*entitlement.UserRecord
	keyIndex  map[string]string // key -> accountID
	quotas    map[string]quotaEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byAccount: make(map[string]*entitlement.UserRecord),
		keyIndex:  make(map[string]string),
		quotas:    make(map[string]quotaEntry),
	}
}

// GetByAccount implements entitlement.Store.
func (s *Memory) GetByAccount(ctx context.Context, accountID string) (*entitlement.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byAccount[accountID]
	if !ok {
		return nil, entitlement.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByKey implements entitlement.Store.
func (s *Memory) GetByKey(ctx context.Context, key string) (*entitlement.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.keyIndex[key]
	if !ok {
		return nil, entitlement.ErrKeyNotFound
	}
	return s.byAccount[accountID].Clone(), nil
}

// Create implements entitlement.Store.
func (s *Memory) Create(ctx context.Context, rec *entitlement.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(rec)
}

func (s *Memory) createLocked(rec *entitlement.UserRecord) error {
	if _, exists := s.byAccount[rec.AccountID]; exists {
		return fmt.Errorf("%w: %s", entitlement.ErrDuplicateAccount, rec.AccountID)
	}
	if _, exists := s.keyIndex[rec.Key]; exists {
		return entitlement.ErrDuplicateKey
	}
	s.byAccount[rec.AccountID] = rec.Clone()
	s.keyIndex[rec.Key] = rec.AccountID
	return nil
}

// Update implements entitlement.Store. fn runs under the store lock
// against a scratch copy; an error from fn aborts with nothing applied.
func (s *Memory) Update(ctx context.Context, accountID string, fn func(*entitlement.UserRecord) error) (*entitlement.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(accountID, entitlement.ErrNotFound, fn)
}

// UpdateByKey implements entitlement.Store.
func (s *Memory) UpdateByKey(ctx context.Context, key string, fn func(*entitlement.UserRecord) error) (*entitlement.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.keyIndex[key]
	if !ok {
		return nil, entitlement.ErrKeyNotFound
	}
	return s.updateLocked(accountID, entitlement.ErrKeyNotFound, fn)
}

func (s *Memory) updateLocked(accountID string, missing error, fn func(*entitlement.UserRecord) error) (*entitlement.UserRecord, error) {
	current, ok := s.byAccount[accountID]
	if !ok {
		return nil, missing
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.AccountID != current.AccountID {
		return nil, fmt.Errorf("%w: account ID is immutable", entitlement.ErrStoreUnavailable)
	}
	if next.Key != current.Key {
		if _, exists := s.keyIndex[next.Key]; exists {
			return nil, entitlement.ErrDuplicateKey
		}
		delete(s.keyIndex, current.Key)
		s.keyIndex[next.Key] = accountID
	}

	s.byAccount[accountID] = next
	return next.Clone(), nil
}

// ListAccountIDs implements entitlement.Store.
func (s *Memory) ListAccountIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byAccount))
	for id := range s.byAccount {
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete implements entitlement.Store. Quota state goes with the record.
func (s *Memory) Delete(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byAccount[accountID]
	if !ok {
		return entitlement.ErrNotFound
	}
	delete(s.keyIndex, rec.Key)
	delete(s.byAccount, accountID)
	delete(s.quotas, accountID)
	return nil
}

// TryConsume implements entitlement.QuotaStore with an atomic
// increment-with-cap under the store lock.
func (s *Memory) TryConsume(ctx context.Context, accountID, windowKey string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryConsumeLocked(accountID, windowKey, limit)
}

func (s *Memory) tryConsumeLocked(accountID, windowKey string, limit int) (int, error) {
	entry := s.quotas[accountID]
	if entry.WindowKey != windowKey {
		entry = quotaEntry{WindowKey: windowKey}
	}
	if entry.Count >= limit {
		return entry.Count, entitlement.ErrResetLimitExceeded
	}
	entry.Count++
	s.quotas[accountID] = entry
	return entry.Count, nil
}

// snapshotLocked returns a deep copy of all state, used by the file store
// to persist after mutations.
func (s *Memory) snapshotLocked() snapshot {
	snap := snapshot{
		Records: make(map[string]*entitlement.UserRecord, len(s.byAccount)),
		Quotas:  make(map[string]quotaEntry, len(s.quotas)),
	}
	for id, rec := range s.byAccount {
		snap.Records[id] = rec.Clone()
	}
	for id, q := range s.quotas {
		snap.Quotas[id] = q
	}
	return snap
}

// restoreLocked replaces all state from a snapshot, rebuilding the key
// index.
func (s *Memory) restoreLocked(snap snapshot) {
	s.byAccount = make(map[string]*entitlement.UserRecord, len(snap.Records))
	s.keyIndex = make(map[string]string, len(snap.Records))
	s.quotas = make(map[string]quotaEntry, len(snap.Quotas))
	for id, rec := range snap.Records {
		s.byAccount[id] = rec.Clone()
		s.keyIndex[rec.Key] = id
	}
	for id, q := range snap.Quotas {
		s.quotas[id] = q
	}
}
