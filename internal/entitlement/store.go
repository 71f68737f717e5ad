package entitlement

import "context"

// Store is the single durable source of truth for entitlement records.
// Implementations must make Update an atomic per-account read-modify-write:
// the closure runs against the current record under that record's lock (or
// an equivalent compare-and-swap), and an error from the closure aborts
// with no visible mutation.
//
// Adapters live in internal/store. Lookup failures return ErrNotFound or
// ErrKeyNotFound; uniqueness violations return ErrDuplicateAccount or
// ErrDuplicateKey; I/O failures wrap ErrStoreUnavailable.
type Store interface {
	// GetByAccount returns a copy of the record for the account ID.
	GetByAccount(ctx context.Context, accountID string) (*UserRecord, error)

	// GetByKey returns a copy of the record carrying the key.
	GetByKey(ctx context.Context, key string) (*UserRecord, error)

	// Create inserts a new record, enforcing account and key uniqueness.
	Create(ctx context.Context, rec *UserRecord) error

	// Update applies fn to the record for accountID atomically and
	// persists the result. It returns a copy of the updated record.
	Update(ctx context.Context, accountID string, fn func(*UserRecord) error) (*UserRecord, error)

	// UpdateByKey is Update addressed by key instead of account ID.
	UpdateByKey(ctx context.Context, key string, fn func(*UserRecord) error) (*UserRecord, error)

	// ListAccountIDs returns every known account ID. Unpaginated; sized
	// for hundreds to low thousands of records, not unbounded growth.
	ListAccountIDs(ctx context.Context) ([]string, error)

	// Delete removes the record and any quota state for the account ID.
	Delete(ctx context.Context, accountID string) error
}

// QuotaStore tracks HWID reset consumption per account and day window in
// the same durable store as the records, so the cap survives restarts and
// holds across concurrent requests.
type QuotaStore interface {
	// TryConsume atomically increments the counter for (accountID,
	// windowKey) unless limit is already reached. A stored counter under a
	// different window key counts as zero (lazy day rollover). It returns
	// the post-increment count on success and ErrResetLimitExceeded, with
	// no mutation, at the cap.
	TryConsume(ctx context.Context, accountID, windowKey string, limit int) (int, error)
}
