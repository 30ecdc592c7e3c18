package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/handlers"
	"github.com/mwhitfield/vigil/internal/middleware"
	"github.com/mwhitfield/vigil/internal/models"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// retentionSecretHeader carries the shared secret for the unattended
// retention trigger.
const retentionSecretHeader = "X-Retention-Secret"

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	quotaHandler *handlers.QuotaHandler,
	adminHandler *handlers.AdminHandler,
	retentionHandler *handlers.RetentionHandler,
	validator *auth.TokenValidator,
	sessions middleware.SessionUpserter,
	ipConfig *pkghttp.IPConfig,
	retentionSecret string,
) {
	loginRateLimit := middleware.DefaultLoginRateLimit()
	assistRateLimit := middleware.DefaultAssistRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(loginRateLimit)).Post("/auth/login", authHandler.Login)

	// Internal routes - shared secret, no user session
	router.With(auth.RequireSharedSecret(retentionSecretHeader, retentionSecret)).
		Post("/internal/retention/run", retentionHandler.RunPurge)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(validator))
		r.Use(middleware.SessionTracker(sessions, ipConfig))

		// Session registry
		r.Get("/sessions", sessionHandler.ListSessions)
		r.Delete("/sessions/{id}", sessionHandler.RevokeSession)
		r.Post("/sessions/revoke-others", sessionHandler.RevokeOtherSessions)

		// AI assist budget
		r.With(middleware.RateLimitByIP(assistRateLimit)).Post("/assist/consume", quotaHandler.Consume)
		r.Get("/assist/remaining", quotaHandler.Remaining)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/admin/accounts/unlock", adminHandler.UnlockAccount)
			r.Put("/admin/quota/{accountID}", adminHandler.SetQuota)
			r.Delete("/admin/quota/{accountID}", adminHandler.ResetQuota)
			r.Get("/admin/sessions", adminHandler.ListSessions)
			r.Delete("/admin/sessions/{id}", adminHandler.RevokeSession)
			r.Get("/admin/audit", adminHandler.ListAuditLogs)
			r.Get("/admin/attempts", adminHandler.ListLoginAttempts)
		})
	})
}
