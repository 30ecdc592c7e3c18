package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// QuotaManager defines the interface for assist quota decisions
type QuotaManager interface {
	CheckAndConsume(ctx context.Context, accountID string, origin models.Origin) (*services.QuotaStatus, error)
	Remaining(ctx context.Context, accountID string) (*services.QuotaStatus, error)
}

// QuotaHandler handles the AI assist budget endpoints
type QuotaHandler struct {
	quota    QuotaManager
	ipConfig *pkghttp.IPConfig
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quota QuotaManager, ipConfig *pkghttp.IPConfig) *QuotaHandler {
	return &QuotaHandler{
		quota:    quota,
		ipConfig: ipConfig,
	}
}

// Consume takes one unit of the caller's daily assist budget
func (h *QuotaHandler) Consume(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	origin := models.Origin{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}

	status, err := h.quota.CheckAndConsume(r.Context(), claims.AccountID, origin)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if !status.Allowed {
		if wait := int(time.Until(status.ResetsAt).Seconds()); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(wait))
		}
		pkghttp.WriteJSON(w, http.StatusTooManyRequests, status)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Remaining reports the caller's standing without consuming anything
func (h *QuotaHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.quota.Remaining(r.Context(), claims.AccountID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
