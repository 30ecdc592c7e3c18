package handlers

import (
	"context"
	"net/http"

	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// RetentionRunner defines the interface for retention purges
type RetentionRunner interface {
	RunPurge(ctx context.Context) (*services.PurgeResult, error)
}

// RetentionHandler handles the internal retention trigger. The shared
// secret check lives in the route middleware.
type RetentionHandler struct {
	retention RetentionRunner
}

// NewRetentionHandler creates a new RetentionHandler
func NewRetentionHandler(retention RetentionRunner) *RetentionHandler {
	return &RetentionHandler{retention: retention}
}

// RunPurge handles POST /internal/retention/run
func (h *RetentionHandler) RunPurge(w http.ResponseWriter, r *http.Request) {
	result, err := h.retention.RunPurge(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "retention purge failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
