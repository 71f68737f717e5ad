package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apierrors "keygate/internal/errors"
)

// SecretVerifier checks an administrative credential. The interface exists
// so the static shared-secret scheme can be swapped for signed tokens or
// per-admin credentials without touching the entitlement logic.
type SecretVerifier interface {
	Verify(secret string) bool
}

// StaticSecretVerifier compares against a fixed shared token in constant
// time. The threat model assumes no hostile network path reaches the
// administrative endpoints; this scheme is not adequate for public
// exposure.
type StaticSecretVerifier struct {
	secret string
}

// NewStaticSecretVerifier returns a verifier for the configured secret.
func NewStaticSecretVerifier(secret string) *StaticSecretVerifier {
	return &StaticSecretVerifier{secret: secret}
}

// Verify implements SecretVerifier.
func (v *StaticSecretVerifier) Verify(secret string) bool {
	if v.secret == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.secret), []byte(secret)) == 1
}

// AdminAuth rejects requests whose Authorization header does not carry a
// valid administrative credential. A "Bearer " prefix is accepted and
// stripped.
func AdminAuth(verifier SecretVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !verifier.Verify(secret) {
				logger.WarnContext(r.Context(), "admin request rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the bare token from an "Authorization: Bearer x"
// header, or "" when absent. The self-service reset endpoint carries the
// account ID this way.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
}
