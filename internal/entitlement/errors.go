package entitlement

import "errors"

// Sentinel errors returned by the entitlement core. The HTTP layer maps
// these onto the external status taxonomy with errors.Is.
var (
	// ErrInvalidDuration indicates a duration token that does not match
	// <digits><unit> with a recognized unit, or a non-positive magnitude.
	ErrInvalidDuration = errors.New("invalid duration token")

	// ErrInvalidUsername indicates a username outside the 3-20 character
	// alphanumeric format rule.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrMissingCredential indicates an authentication attempt without a
	// key or without a HWID.
	ErrMissingCredential = errors.New("missing key or hwid")

	// ErrKeyNotFound indicates no record carries the presented key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotFound indicates no record exists for the account ID.
	ErrNotFound = errors.New("account not found")

	// ErrHWIDMismatch indicates the presented HWID differs from the one
	// bound to the record.
	ErrHWIDMismatch = errors.New("hwid mismatch")

	// ErrKeyExpired indicates the record's expiry instant has passed.
	ErrKeyExpired = errors.New("key expired")

	// ErrResetLimitExceeded indicates the daily HWID reset quota is spent.
	ErrResetLimitExceeded = errors.New("daily reset limit exceeded")

	// ErrKeyGenerationExhausted indicates repeated key collisions; the
	// configured keyspace is effectively saturated.
	ErrKeyGenerationExhausted = errors.New("key generation retries exhausted")

	// ErrDuplicateAccount indicates a create against an existing account ID.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrDuplicateKey indicates a create or update would violate key
	// uniqueness.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrStoreUnavailable wraps store I/O failures. It propagates as a 5xx
	// without internal retry; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
