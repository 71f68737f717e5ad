package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticSecretVerifier(t *testing.T) {
	v := NewStaticSecretVerifier("s3cret")

	assert.True(t, v.Verify("s3cret"))
	assert.False(t, v.Verify("wrong"))
	assert.False(t, v.Verify(""))

	empty := NewStaticSecretVerifier("")
	assert.False(t, empty.Verify(""), "empty configured secret never matches")
	assert.False(t, empty.Verify("anything"))
}

func TestAdminAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := AdminAuth(NewStaticSecretVerifier("s3cret"), logger)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "bearer prefix", header: "Bearer s3cret", want: http.StatusNoContent},
		{name: "bare secret", header: "s3cret", want: http.StatusNoContent},
		{name: "wrong secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/v1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			guarded.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/reset-hwid/v1", nil)
	assert.Equal(t, "", BearerToken(req))

	req.Header.Set("Authorization", "Bearer U1")
	assert.Equal(t, "U1", BearerToken(req))

	req.Header.Set("Authorization", "U2")
	assert.Equal(t, "U2", BearerToken(req))
}
