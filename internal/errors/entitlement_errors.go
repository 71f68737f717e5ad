package errors

import (
	stderrors "errors"

	"keygate/internal/entitlement"
)

// MapEntitlementError translates a sentinel error from the entitlement
// core onto the external status taxonomy. Unknown errors map to a plain
// 500 with no internal detail leaked.
func MapEntitlementError(err error) *APIError {
	switch {
	case stderrors.Is(err, entitlement.ErrMissingCredential):
		return NewWithDetails(400, "MISSING_PARAMETER", "Required parameter is missing", err.Error())
	case stderrors.Is(err, entitlement.ErrInvalidUsername):
		return ErrInvalidUsername
	case stderrors.Is(err, entitlement.ErrInvalidDuration):
		return ErrInvalidDuration
	case stderrors.Is(err, entitlement.ErrHWIDMismatch):
		return ErrHWIDMismatch
	case stderrors.Is(err, entitlement.ErrKeyExpired):
		return ErrKeyExpired
	case stderrors.Is(err, entitlement.ErrKeyNotFound):
		return ErrKeyNotFound
	case stderrors.Is(err, entitlement.ErrNotFound):
		return ErrNotFound
	case stderrors.Is(err, entitlement.ErrResetLimitExceeded):
		return ErrResetLimitExceeded
	case stderrors.Is(err, entitlement.ErrDuplicateAccount), stderrors.Is(err, entitlement.ErrDuplicateKey):
		return New(409, "CONFLICT", err.Error())
	case stderrors.Is(err, entitlement.ErrKeyGenerationExhausted):
		return New(500, "KEY_GENERATION_EXHAUSTED", "Unable to issue a unique key")
	case stderrors.Is(err, entitlement.ErrStoreUnavailable):
		return ErrStoreUnavailable
	default:
		return ErrInternalServer
	}
}
