package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keygate/internal/entitlement"
	apierrors "keygate/internal/errors"
	"keygate/internal/middleware"
)

// EntitlementHandler serves the public entitlement surface.
type EntitlementHandler struct {
	service entitlement.Service
	logger  *slog.Logger
}

// NewEntitlementHandler creates the handler.
func NewEntitlementHandler(service entitlement.Service, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "entitlement")),
	}
}

// RegisterResponse is the wire shape of a successful registration.
type RegisterResponse struct {
	Success    bool   `json:"success"`
	Key        string `json:"key"`
	CreateTime int64  `json:"createTime"`
	EndTime    int64  `json:"endTime"`
}

// AuthResponse is the wire shape of a successful authentication or
// account lookup. GameValid is only meaningful on /auth/v1.
type AuthResponse struct {
	Success    bool   `json:"success"`
	Key        string `json:"key"`
	HWID       string `json:"hwid"`
	DiscordID  string `json:"discordId"`
	Username   string `json:"username"`
	CreateTime int64  `json:"createTime"`
	EndTime    int64  `json:"endTime"`
	GameValid  *bool  `json:"gameValid,omitempty"`
}

// ResetResponse is the wire shape of a HWID reset.
type ResetResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ResetsUsed      int    `json:"resetsUsed"`
	ResetsRemaining string `json:"resetsRemaining"`
}

func newAuthResponse(rec *entitlement.UserRecord, gameValid *bool) *AuthResponse {
	return &AuthResponse{
		Success:    true,
		Key:        rec.Key,
		HWID:       rec.HWID,
		DiscordID:  rec.AccountID,
		Username:   rec.Username,
		CreateTime: rec.CreateTime,
		EndTime:    rec.EndTime,
		GameValid:  gameValid,
	}
}

// RegisterRoutes attaches the public entitlement routes to the root
// router. The paths are the fixed wire contract consumed by the dashboard
// and bot clients.
func (h *EntitlementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/register/v1", h.Register)
	r.Get("/auth/v1", h.Authenticate)
	r.Get("/dAuth/v1", h.LookupByAccount)
	r.Get("/reset-hwid/v1", h.ResetHWID)
}

// Register handles GET /register/v1?ID=&username=&time=.
func (h *EntitlementHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("entitlement-handler")
	ctx, span := tracer.Start(ctx, "handler.register",
		trace.WithAttributes(attribute.String("http.route", "/register/v1")),
	)
	defer span.End()

	accountID := r.URL.Query().Get("ID")
	username := r.URL.Query().Get("username")
	durationToken := r.URL.Query().Get("time")

	if accountID == "" || username == "" || durationToken == "" {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("ID/username/time", "ID, username and time are required")))
		return
	}

	result, err := h.service.Register(ctx, accountID, username, durationToken)
	if err != nil {
		span.RecordError(err)
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, &RegisterResponse{
		Success:    true,
		Key:        result.Key,
		CreateTime: result.CreateTime,
		EndTime:    result.EndTime,
	})
}

// Authenticate handles GET /auth/v1?key=&hwid=&gameId=.
func (h *EntitlementHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("entitlement-handler")
	ctx, span := tracer.Start(ctx, "handler.authenticate",
		trace.WithAttributes(attribute.String("http.route", "/auth/v1")),
	)
	defer span.End()

	q := r.URL.Query()
	result, err := h.service.Authenticate(ctx, q.Get("key"), q.Get("hwid"), q.Get("gameId"))
	if err != nil {
		span.RecordError(err)
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, newAuthResponse(result.Record, &result.GameValid))
}

// LookupByAccount handles GET /dAuth/v1?ID=&gameId=. An expired account
// returns 401 so callers can distinguish expiry from absence; the error
// payload still carries the account identity for administrative flows.
func (h *EntitlementHandler) LookupByAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	rec, err := h.service.LookupByAccount(ctx, q.Get("ID"), q.Get("gameId"))
	if err != nil {
		if errors.Is(err, entitlement.ErrKeyExpired) && rec != nil {
			apiErr := apierrors.NewWithDetails(
				http.StatusUnauthorized, "KEY_EXPIRED", "Key has expired",
				map[string]string{"discordId": rec.AccountID, "username": rec.Username},
			)
			render.Render(w, r, apierrors.NewErrorResponse(apiErr))
			return
		}
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, newAuthResponse(rec, nil))
}

// ResetHWID handles GET /reset-hwid/v1 with the account ID carried as
// "Authorization: Bearer <accountId>". Self-service callers consume the
// daily quota; the administrative bypass lives on the admin surface.
func (h *EntitlementHandler) ResetHWID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := middleware.BearerToken(r)
	if accountID == "" {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("Authorization", "bearer account ID is required")))
		return
	}

	result, err := h.service.ResetHWID(ctx, accountID, false)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, &ResetResponse{
		Success:         true,
		Message:         "HWID reset successfully",
		ResetsUsed:      result.Used,
		ResetsRemaining: result.Remaining,
	})
}

// renderError maps a core error onto the external taxonomy and renders
// the standard envelope.
func (h *EntitlementHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.MapEntitlementError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.Int("status", apiErr.StatusCode))
	}
	render.Render(w, r, apierrors.NewErrorResponse(apiErr))
}
