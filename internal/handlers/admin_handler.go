package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// GuardAdmin defines the lockout administration contract.
type GuardAdmin interface {
	AdminUnlock(ctx context.Context, adminID, email string, origin models.Origin) (bool, error)
	ListAttempts(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error)
}

// QuotaAdmin defines the quota override contract.
type QuotaAdmin interface {
	SetCount(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error
	ResetCount(ctx context.Context, adminID, accountID string, origin models.Origin) error
}

// AdminHandler handles admin HTTP requests. Role enforcement happens in
// the route middleware; handlers only read the actor's identity.
type AdminHandler struct {
	guard    GuardAdmin
	quota    QuotaAdmin
	sessions SessionManager
	audit    *services.AuditService
	ipConfig *pkghttp.IPConfig
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	guard GuardAdmin,
	quota QuotaAdmin,
	sessions SessionManager,
	audit *services.AuditService,
	ipConfig *pkghttp.IPConfig,
) *AdminHandler {
	return &AdminHandler{
		guard:    guard,
		quota:    quota,
		sessions: sessions,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// UnlockAccountRequest represents the request to clear a lockout
type UnlockAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SetQuotaRequest represents the request to override a usage counter.
// Count is a pointer so an explicit zero survives validation.
type SetQuotaRequest struct {
	Count *int `json:"count" validate:"required,gte=0"`
}

// LoginAttemptResponse is the response DTO for ledger rows. The device
// fingerprint stays server-side.
type LoginAttemptResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Success       bool      `json:"success"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	City          *string   `json:"city,omitempty"`
	Country       *string   `json:"country,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// AuditLogResponse represents an audit entry in HTTP responses
type AuditLogResponse struct {
	ID        string                 `json:"id"`
	ActorID   *string                `json:"actor_id,omitempty"`
	Action    string                 `json:"action"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	IPAddress *string                `json:"ip_address,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

// UnlockAccount handles POST /admin/accounts/unlock
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UnlockAccountRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	hadLockout, err := h.guard.AdminUnlock(r.Context(), claims.AccountID, req.Email, origin)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to unlock account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "account unlocked",
		"had_lockout": hadLockout,
	})
}

// SetQuota handles PUT /admin/quota/{accountID}
func (h *AdminHandler) SetQuota(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	var req SetQuotaRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	if err := h.quota.SetCount(r.Context(), claims.AccountID, accountID, *req.Count, origin); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "invalid count")
			return
		}
		pkghttp.WriteInternalError(w, "failed to set quota count")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "quota count set",
		"count":   *req.Count,
	})
}

// ResetQuota handles DELETE /admin/quota/{accountID}
func (h *AdminHandler) ResetQuota(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "invalid account id")
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	if err := h.quota.ResetCount(r.Context(), claims.AccountID, accountID, origin); err != nil {
		pkghttp.WriteInternalError(w, "failed to reset quota count")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "quota count reset",
	})
}

// RevokeSession handles DELETE /admin/sessions/{id}
func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid session id")
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	if _, err := h.sessions.Revoke(r.Context(), claims.AccountID, true, sessionID, origin); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "session not found")
			return
		}
		pkghttp.WriteInternalError(w, "failed to revoke session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "session revoked",
	})
}

// ListSessions handles GET /admin/sessions
// Requires ?account_id= naming the account under review.
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "account_id is required")
		return
	}

	sessions, err := h.sessions.List(r.Context(), accountID)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list sessions")
		return
	}

	responses := make([]*SessionResponse, len(sessions))
	for i, session := range sessions {
		responses[i] = toSessionResponse(session)
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions: responses,
		Total:    len(responses),
	})
}

// ListAuditLogs handles GET /admin/audit
// Accepts optional query params ?actor_id=, ?action=, ?limit=N (1-100,
// default 50) and ?offset=N.
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	action := r.URL.Query().Get("action")

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	logs, err := h.audit.List(r.Context(), actorID, action, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list audit logs")
		return
	}

	total, err := h.audit.Total(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to count audit logs")
		return
	}

	responses := make([]*AuditLogResponse, len(logs))
	for i, entry := range logs {
		responses[i] = auditLogToResponse(entry)
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   responses,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ListLoginAttempts handles GET /admin/attempts
// Accepts optional query params ?email=, ?limit=N (1-100, default 50)
// and ?offset=N.
func (h *AdminHandler) ListLoginAttempts(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	attempts, err := h.guard.ListAttempts(r.Context(), email, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list login attempts")
		return
	}

	responses := make([]*LoginAttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i] = toLoginAttemptResponse(attempt)
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": responses,
		"total":    len(responses),
		"limit":    limit,
		"offset":   offset,
	})
}

// Helpers

// auditLogToResponse converts an audit entry to a response DTO
func auditLogToResponse(entry *models.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:        entry.ID.String(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Detail:    entry.Detail,
		IPAddress: entry.IPAddress,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	}
}

// toLoginAttemptResponse converts a ledger row to a response DTO
func toLoginAttemptResponse(attempt *models.LoginAttempt) *LoginAttemptResponse {
	return &LoginAttemptResponse{
		ID:            attempt.ID,
		Email:         attempt.Email,
		Success:       attempt.Success,
		IPAddress:     attempt.IPAddress,
		UserAgent:     attempt.UserAgent,
		Latitude:      attempt.Latitude,
		Longitude:     attempt.Longitude,
		City:          attempt.City,
		Country:       attempt.Country,
		FailureReason: attempt.FailureReason,
		AttemptedAt:   attempt.AttemptedAt,
	}
}
