package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "entitlement-service"

// keyRetryLimit bounds the collision-regenerate loop during registration.
const keyRetryLimit = 5

// UnlimitedResets is the resetsRemaining marker returned to administrative
// callers, who never consume quota.
const UnlimitedResets = "unlimited"

// RegistrationResult is what Register hands back to the caller.
type RegistrationResult struct {
	Key        string `json:"key"`
	CreateTime int64  `json:"createTime"`
	EndTime    int64  `json:"endTime"`
}

// AuthResult is the successful authentication response: the full record
// plus the game validity pass-through flag.
type AuthResult struct {
	Record    *UserRecord
	GameValid bool
}

// ResetResult reports HWID reset quota consumption. Remaining is a decimal
// count for self-service callers and UnlimitedResets for administrators.
type ResetResult struct {
	Used      int
	Remaining string
}

// Service is the entitlement engine consumed by every transport surface.
type Service interface {
	Register(ctx context.Context, accountID, username, durationToken string) (*RegistrationResult, error)
	Authenticate(ctx context.Context, key, hwid, gameID string) (*AuthResult, error)
	LookupByAccount(ctx context.Context, accountID, gameID string) (*UserRecord, error)
	ResetHWID(ctx context.Context, accountID string, isAdmin bool) (*ResetResult, error)
	ExtendTime(ctx context.Context, accountID, durationToken string) (*UserRecord, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

type service struct {
	store   Store
	keygen  KeyGenerator
	quota   *ResetQuotaTracker
	logger  *slog.Logger
	metrics *Metrics
	// validate holds the compiled username rule set.
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the entitlement engine. metrics may be nil, in which
// case instrumentation is skipped.
func NewService(store Store, keygen KeyGenerator, quota *ResetQuotaTracker, logger *slog.Logger, metrics *Metrics) Service {
	return &service{
		store:    store,
		keygen:   keygen,
		quota:    quota,
		logger:   logger.With(slog.String("component", "entitlement")),
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

// usernameRule is the registration format rule: 3-20 characters,
// alphanumeric only.
const usernameRule = "required,alphanum,min=3,max=20"

// Register issues a key for the account. For a new account it creates the
// record with createTime=now and endTime=now+duration. For an existing
// account the call is an idempotent re-registration that resets endTime to
// now+duration against the existing key; it never extends additively --
// that is ExtendTime's distinct contract.
func (s *service) Register(ctx context.Context, accountID, username, durationToken string) (*RegistrationResult, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "entitlement.register",
		trace.WithAttributes(attribute.String("account_id", accountID)),
	)
	defer span.End()

	if accountID == "" {
		return nil, fmt.Errorf("%w: account ID is required", ErrMissingCredential)
	}
	if err := s.validate.Var(username, usernameRule); err != nil {
		s.metrics.RecordRegistration(ctx, "invalid_username")
		return nil, fmt.Errorf("%w: must be 3-20 alphanumeric characters", ErrInvalidUsername)
	}

	d, err := ParseDuration(durationToken)
	if err != nil {
		s.metrics.RecordRegistration(ctx, "invalid_duration")
		return nil, err
	}

	now := s.now()
	endTime := now.Add(d).Unix()

	// Existing account: reset expiry relative to now and keep the key.
	if existing, err := s.store.GetByAccount(ctx, accountID); err == nil {
		updated, err := s.store.Update(ctx, accountID, func(rec *UserRecord) error {
			rec.EndTime = endTime
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		s.logger.InfoContext(ctx, "registration renewed existing account",
			slog.String("account_id", accountID),
			slog.String("duration", durationToken),
			slog.Int64("end_time", updated.EndTime))
		s.metrics.RecordRegistration(ctx, "renewed")

		return &RegistrationResult{
			Key:        existing.Key,
			CreateTime: existing.CreateTime,
			EndTime:    updated.EndTime,
		}, nil
	} else if !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	key, err := s.issueUniqueKey(ctx)
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordRegistration(ctx, "keygen_failed")
		return nil, err
	}

	rec := &UserRecord{
		AccountID:  accountID,
		Username:   username,
		Key:        key,
		CreateTime: now.Unix(),
		EndTime:    endTime,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", accountID),
		slog.String("username", username),
		slog.String("duration", durationToken),
		slog.Int64("end_time", rec.EndTime))
	s.metrics.RecordRegistration(ctx, "created")

	return &RegistrationResult{
		Key:        rec.Key,
		CreateTime: rec.CreateTime,
		EndTime:    rec.EndTime,
	}, nil
}

// issueUniqueKey draws keys until one misses the stored key set, bounded
// by keyRetryLimit.
func (s *service) issueUniqueKey(ctx context.Context) (string, error) {
	for attempt := 0; attempt < keyRetryLimit; attempt++ {
		key, err := s.keygen.Generate()
		if err != nil {
			return "", fmt.Errorf("key generation failed: %w", err)
		}

		_, err = s.store.GetByKey(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return key, nil
		}
		if err != nil {
			return "", err
		}

		s.logger.WarnContext(ctx, "generated key collided with stored key",
			slog.Int("attempt", attempt+1))
		s.metrics.RecordKeyCollision(ctx)
	}
	return "", ErrKeyGenerationExhausted
}

// Authenticate validates a key + HWID pair. An unbound record is bound to
// the presented HWID inside a single store transaction, so concurrent
// first authentications resolve to exactly one winner; the loser is
// evaluated against the bound value and rejected.
func (s *service) Authenticate(ctx context.Context, key, hwid, gameID string) (*AuthResult, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "entitlement.authenticate")
	defer span.End()

	if key == "" || hwid == "" {
		s.metrics.RecordAuthAttempt(ctx, "missing_credential")
		return nil, ErrMissingCredential
	}

	rec, err := s.store.UpdateByKey(ctx, key, func(rec *UserRecord) error {
		if rec.HWID == "" {
			rec.HWID = hwid
			return nil
		}
		if rec.HWID != hwid {
			return ErrHWIDMismatch
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordAuthAttempt(ctx, classifyAuthFailure(err))
		if errors.Is(err, ErrHWIDMismatch) {
			s.logger.WarnContext(ctx, "authentication rejected for hwid mismatch")
		}
		return nil, err
	}

	if !rec.ActiveAt(s.now()) {
		s.metrics.RecordAuthAttempt(ctx, "expired")
		s.logger.InfoContext(ctx, "authentication rejected for expired key",
			slog.String("account_id", rec.AccountID),
			slog.Int64("end_time", rec.EndTime))
		return nil, ErrKeyExpired
	}

	s.metrics.RecordAuthAttempt(ctx, "success")
	span.SetAttributes(attribute.String("account_id", rec.AccountID))

	return &AuthResult{
		Record: rec,
		// No per-game entitlement distinction exists in the data model;
		// gameID is a pass-through validity flag until one does.
		GameValid: true,
	}, nil
}

func classifyAuthFailure(err error) string {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrHWIDMismatch):
		return "hwid_mismatch"
	default:
		return "store_error"
	}
}

// LookupByAccount returns the record for an account ID. An expired record
// is returned together with ErrKeyExpired so administrative flows keep
// enough identity to act, while expiry stays distinguishable from absence.
func (s *service) LookupByAccount(ctx context.Context, accountID, gameID string) (*UserRecord, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account ID is required", ErrMissingCredential)
	}

	rec, err := s.store.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !rec.ActiveAt(s.now()) {
		return rec, ErrKeyExpired
	}
	return rec, nil
}

// ResetHWID clears the device binding. Administrative callers bypass the
// quota entirely; self-service callers spend one unit of the daily cap
// before any mutation, so a quota failure leaves the binding untouched.
// The reverse window exists: a store failure on the clear itself leaves
// the quota unit spent without a refund, since the consume and the clear
// are two store transactions. The operation is deliberately not
// idempotent with respect to quota: callers must not blind-retry it.
func (s *service) ResetHWID(ctx context.Context, accountID string, isAdmin bool) (*ResetResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account ID is required", ErrMissingCredential)
	}

	if _, err := s.store.GetByAccount(ctx, accountID); err != nil {
		return nil, err
	}

	result := &ResetResult{Used: 0, Remaining: UnlimitedResets}
	if !isAdmin {
		used, err := s.quota.TryConsume(ctx, accountID)
		if err != nil {
			s.metrics.RecordHWIDReset(ctx, "user", "limit_exceeded")
			return nil, err
		}
		result.Used = used
		result.Remaining = strconv.Itoa(s.quota.Limit() - used)
	}

	if _, err := s.store.Update(ctx, accountID, func(rec *UserRecord) error {
		rec.HWID = ""
		return nil
	}); err != nil {
		return nil, err
	}

	caller := "user"
	if isAdmin {
		caller = "admin"
	}
	s.logger.InfoContext(ctx, "hwid reset",
		slog.String("account_id", accountID),
		slog.String("caller", caller),
		slog.Int("resets_used", result.Used))
	s.metrics.RecordHWIDReset(ctx, caller, "success")

	return result, nil
}

// ExtendTime adds the parsed duration to the record's current endTime.
// Additive by contract, in deliberate contrast to Register's reset-to-now
// semantics for existing accounts.
func (s *service) ExtendTime(ctx context.Context, accountID, durationToken string) (*UserRecord, error) {
	d, err := ParseDuration(durationToken)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Update(ctx, accountID, func(rec *UserRecord) error {
		rec.EndTime += int64(d.Seconds())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "entitlement time extended",
		slog.String("account_id", accountID),
		slog.String("duration", durationToken),
		slog.Int64("end_time", rec.EndTime))
	s.metrics.RecordTimeExtension(ctx)

	return rec, nil
}

// ListAccountIDs returns every known account ID.
func (s *service) ListAccountIDs(ctx context.Context) ([]string, error) {
	return s.store.ListAccountIDs(ctx)
}

// DeleteAccount removes the record and its quota state.
func (s *service) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.store.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account deleted", slog.String("account_id", accountID))
	return nil
}
