package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// LoginGuard defines the interface for the login pipeline
type LoginGuard interface {
	Attempt(ctx context.Context, email, password string, origin models.Origin) (*models.LoginDecision, error)
}

// AuthHandler handles login-related HTTP requests
type AuthHandler struct {
	guard    LoginGuard
	timing   *auth.TimingDelay
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(guard LoginGuard, timing *auth.TimingDelay, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		guard:    guard,
		timing:   timing,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login evaluates one login attempt. The response is the guard's
// decision; on success the client completes sign-in with the identity
// provider, which issues the actual tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
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

	decision, err := h.guard.Attempt(r.Context(), req.Email, req.Password, origin)
	if err != nil {
		h.timing.WaitFrom(start, false)
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.timing.WaitFrom(start, decision.Success)

	switch {
	case decision.Locked:
		if decision.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
		}
		pkghttp.WriteJSON(w, http.StatusTooManyRequests, decision)
	case !decision.Success:
		pkghttp.WriteJSON(w, http.StatusUnauthorized, decision)
	default:
		pkghttp.WriteJSON(w, http.StatusOK, decision)
	}
}
