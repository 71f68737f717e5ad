package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"keygate/internal/entitlement"
	apierrors "keygate/internal/errors"
	"keygate/internal/exporter"
	"keygate/internal/middleware"
)

// AdminHandler serves the administrative surface. Every route is guarded
// by the SecretVerifier middleware installed in Routes.
type AdminHandler struct {
	service  entitlement.Service
	verifier middleware.SecretVerifier
	logger   *slog.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(service entitlement.Service, verifier middleware.SecretVerifier, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service:  service,
		verifier: verifier,
		logger:   logger.With(slog.String("handler", "admin")),
	}
}

// UsersResponse is the wire shape of the account inventory.
type UsersResponse struct {
	Success bool     `json:"success"`
	Users   []string `json:"users"`
	Count   int      `json:"count"`
}

// SuccessResponse is the minimal success envelope.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RegisterRoutes attaches the admin routes to the root router as a group
// behind the secret check.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.AdminAuth(h.verifier, h.logger))

		g.Get("/auth/admin", h.ExtendTime)
		g.Get("/users/v1", h.ListUsers)
		g.Get("/users/v1/export", h.ExportUsers)
		g.Get("/users/v1/{accountID}/reset-hwid", h.ResetHWID)
		g.Delete("/users/v1/{accountID}", h.DeleteUser)
	})
}

// ExtendTime handles GET /auth/admin?user=&time=. The extension is
// additive on the record's current endTime, unlike re-registration which
// resets expiry relative to now.
func (h *AdminHandler) ExtendTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	accountID := q.Get("user")
	durationToken := q.Get("time")

	if accountID == "" || durationToken == "" {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("user/time", "user and time are required")))
		return
	}

	if _, err := h.service.ExtendTime(ctx, accountID, durationToken); err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, &SuccessResponse{Success: true})
}

// ListUsers handles GET /users/v1. Unpaginated; the population is
// expected to stay in the hundreds to low thousands.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.service.ListAccountIDs(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	sort.Strings(ids)

	render.JSON(w, r, &UsersResponse{
		Success: true,
		Users:   ids,
		Count:   len(ids),
	})
}

// ExportUsers handles GET /users/v1/export, streaming an XLSX workbook of
// every account record.
func (h *AdminHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.service.ListAccountIDs(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	sort.Strings(ids)

	records := make([]*entitlement.UserRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := h.service.LookupByAccount(ctx, id, "")
		// Expired accounts still belong in the export.
		if rec == nil && err != nil {
			h.renderError(w, r, err)
			return
		}
		records = append(records, rec)
	}

	book, err := exporter.BuildAccountsWorkbook(records)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer book.Close()

	filename := fmt.Sprintf("keygate-accounts-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := book.Write(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to stream export workbook",
			slog.String("error", err.Error()))
	}
}

// ResetHWID handles GET /users/v1/{accountID}/reset-hwid: the
// administrative reset, which never consumes quota.
func (h *AdminHandler) ResetHWID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	result, err := h.service.ResetHWID(ctx, accountID, true)
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

// DeleteUser handles DELETE /users/v1/{accountID}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	if err := h.service.DeleteAccount(ctx, accountID); err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, &SuccessResponse{Success: true})
}

func (h *AdminHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.MapEntitlementError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "admin request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.Int("status", apiErr.StatusCode))
	}
	render.Render(w, r, apierrors.NewErrorResponse(apiErr))
}
