package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// SessionManager defines the interface for session registry operations
type SessionManager interface {
	List(ctx context.Context, accountID string) ([]*models.Session, error)
	Revoke(ctx context.Context, actorID string, actorIsAdmin bool, sessionID uuid.UUID, origin models.Origin) (*models.Session, error)
	RevokeOthers(ctx context.Context, accountID string, origin models.Origin) (int64, error)
}

// SessionHandler handles session registry HTTP requests
type SessionHandler struct {
	sessions SessionManager
	ipConfig *pkghttp.IPConfig
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionManager, ipConfig *pkghttp.IPConfig) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		ipConfig: ipConfig,
	}
}

// SessionResponse is the response DTO for sessions. The device
// fingerprint stays server-side.
type SessionResponse struct {
	ID           string    `json:"id"`
	Device       string    `json:"device"`
	IPAddress    string    `json:"ip_address"`
	City         *string   `json:"city,omitempty"`
	Country      *string   `json:"country,omitempty"`
	IsCurrent    bool      `json:"is_current"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListSessionsResponse represents the response for listing sessions
type ListSessionsResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
	Total    int                `json:"total"`
}

// ListSessions GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	sessions, err := h.sessions.List(r.Context(), claims.AccountID)
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

// RevokeSession DELETE /sessions/{id}
func (h *SessionHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.sessions.Revoke(r.Context(), claims.AccountID, false, sessionID, origin); err != nil {
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

// RevokeOtherSessions POST /sessions/revoke-others
func (h *SessionHandler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	revoked, err := h.sessions.RevokeOthers(r.Context(), claims.AccountID, origin)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to revoke sessions")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"revoked": revoked,
	})
}

// toSessionResponse converts a session model to a response DTO
func toSessionResponse(session *models.Session) *SessionResponse {
	if session == nil {
		return nil
	}
	return &SessionResponse{
		ID:           session.ID.String(),
		Device:       session.Device,
		IPAddress:    session.IPAddress,
		City:         session.City,
		Country:      session.Country,
		IsCurrent:    session.IsCurrent,
		LastActiveAt: session.LastActiveAt,
		CreatedAt:    session.CreatedAt,
	}
}
