package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mwhitfield/vigil/internal/handlers"
	"github.com/mwhitfield/vigil/internal/models"
	"github.com/mwhitfield/vigil/internal/services"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

func newTestAuditService(repo *services.MockAuditLogRepository) *services.AuditService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return services.NewAuditService(repo, pkglogger.NewAuditLogger(logger), logger)
}

func newAdminHandler(guard *handlers.MockLoginGuard, quota *handlers.MockQuotaManager, sessions *handlers.MockSessionManager, auditRepo *services.MockAuditLogRepository) *handlers.AdminHandler {
	if guard == nil {
		guard = &handlers.MockLoginGuard{}
	}
	if quota == nil {
		quota = &handlers.MockQuotaManager{}
	}
	if sessions == nil {
		sessions = &handlers.MockSessionManager{}
	}
	if auditRepo == nil {
		auditRepo = &services.MockAuditLogRepository{}
	}
	return handlers.NewAdminHandler(guard, quota, sessions, newTestAuditService(auditRepo), nil)
}

func TestUnlockAccount_Success(t *testing.T) {
	var gotAdmin, gotEmail string
	guard := &handlers.MockLoginGuard{
		AdminUnlockFunc: func(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
			gotAdmin = adminID
			gotEmail = email
			return true, nil
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/admin/accounts/unlock", handlers.UnlockAccountRequest{
		Email: "locked@example.com",
	})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.UnlockAccount(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "account unlocked", resp["message"])
	assert.Equal(t, true, resp["had_lockout"])
	assert.Equal(t, "admin_1", gotAdmin)
	assert.Equal(t, "locked@example.com", gotEmail)
}

func TestUnlockAccount_NoLockout(t *testing.T) {
	guard := &handlers.MockLoginGuard{
		AdminUnlockFunc: func(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
			return false, nil
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/admin/accounts/unlock", handlers.UnlockAccountRequest{
		Email: "calm@example.com",
	})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.UnlockAccount(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, false, resp["had_lockout"])
}

func TestUnlockAccount_InvalidEmail(t *testing.T) {
	called := false
	guard := &handlers.MockLoginGuard{
		AdminUnlockFunc: func(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
			called = true
			return false, nil
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/admin/accounts/unlock", handlers.UnlockAccountRequest{
		Email: "not-an-email",
	})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.UnlockAccount(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
	assert.False(t, called)
}

func TestUnlockAccount_ServiceFailure(t *testing.T) {
	guard := &handlers.MockLoginGuard{
		AdminUnlockFunc: func(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
			return false, errors.New("connection refused")
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/admin/accounts/unlock", handlers.UnlockAccountRequest{
		Email: "locked@example.com",
	})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.UnlockAccount(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestUnlockAccount_Unauthenticated(t *testing.T) {
	handler := newAdminHandler(nil, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/admin/accounts/unlock", handlers.UnlockAccountRequest{
		Email: "locked@example.com",
	})

	w := httptest.NewRecorder()
	handler.UnlockAccount(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestSetQuota_Success(t *testing.T) {
	var gotAdmin, gotAccount string
	var gotCount int
	quota := &handlers.MockQuotaManager{
		SetCountFunc: func(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
			gotAdmin = adminID
			gotAccount = accountID
			gotCount = count
			return nil
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/acct_7", handlers.SetQuotaRequest{Count: intPtr(3)})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "quota count set", resp["message"])
	assert.Equal(t, float64(3), resp["count"])
	assert.Equal(t, "admin_1", gotAdmin)
	assert.Equal(t, "acct_7", gotAccount)
	assert.Equal(t, 3, gotCount)
}

func TestSetQuota_ZeroCount(t *testing.T) {
	// Count rides a pointer so an explicit zero is distinguishable from
	// a missing field and must be accepted.
	var gotCount int
	quota := &handlers.MockQuotaManager{
		SetCountFunc: func(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
			gotCount = count
			return nil
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/acct_7", handlers.SetQuotaRequest{Count: intPtr(0)})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 0, gotCount)
}

func TestSetQuota_MissingCount(t *testing.T) {
	handler := newAdminHandler(nil, nil, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/acct_7", map[string]interface{}{})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestSetQuota_NegativeCount(t *testing.T) {
	called := false
	quota := &handlers.MockQuotaManager{
		SetCountFunc: func(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
			called = true
			return nil
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/acct_7", handlers.SetQuotaRequest{Count: intPtr(-1)})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
	assert.False(t, called)
}

func TestSetQuota_MissingAccountParam(t *testing.T) {
	handler := newAdminHandler(nil, nil, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/", handlers.SetQuotaRequest{Count: intPtr(3)})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestSetQuota_ServiceRejectsCount(t *testing.T) {
	quota := &handlers.MockQuotaManager{
		SetCountFunc: func(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
			return models.ErrBadRequest
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "PUT", "/admin/quota/acct_7", handlers.SetQuotaRequest{Count: intPtr(5)})
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.SetQuota(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestResetQuota_Success(t *testing.T) {
	var gotAdmin, gotAccount string
	quota := &handlers.MockQuotaManager{
		ResetCountFunc: func(ctx context.Context, adminID, accountID string, origin models.Origin) error {
			gotAdmin = adminID
			gotAccount = accountID
			return nil
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/admin/quota/acct_7", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.ResetQuota(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "quota count reset", resp["message"])
	assert.Equal(t, "admin_1", gotAdmin)
	assert.Equal(t, "acct_7", gotAccount)
}

func TestResetQuota_ServiceFailure(t *testing.T) {
	quota := &handlers.MockQuotaManager{
		ResetCountFunc: func(ctx context.Context, adminID, accountID string, origin models.Origin) error {
			return errors.New("connection refused")
		},
	}

	handler := newAdminHandler(nil, quota, nil, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/admin/quota/acct_7", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiRouteContext(req, map[string]string{"accountID": "acct_7"})

	w := httptest.NewRecorder()
	handler.ResetQuota(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestAdminRevokeSession_Success(t *testing.T) {
	sessionID := uuid.New()
	var gotAdminFlag bool
	var gotActor string
	sessions := &handlers.MockSessionManager{
		RevokeFunc: func(ctx context.Context, actorID string, actorIsAdmin bool, id uuid.UUID, origin models.Origin) (*models.Session, error) {
			gotActor = actorID
			gotAdminFlag = actorIsAdmin
			return &models.Session{ID: id, AccountID: "acct_other"}, nil
		},
	}

	handler := newAdminHandler(nil, nil, sessions, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/admin/sessions/"+sessionID.String(), nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "session revoked", resp["message"])
	assert.Equal(t, "admin_1", gotActor)
	assert.True(t, gotAdminFlag, "admin route revokes across accounts")
}

func TestAdminRevokeSession_NotFound(t *testing.T) {
	sessions := &handlers.MockSessionManager{
		RevokeFunc: func(ctx context.Context, actorID string, actorIsAdmin bool, id uuid.UUID, origin models.Origin) (*models.Session, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := newAdminHandler(nil, nil, sessions, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/admin/sessions/"+uuid.NewString(), nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestAdminListSessions_PassesAccount(t *testing.T) {
	var gotAccount string
	sessions := &handlers.MockSessionManager{
		ListFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			gotAccount = accountID
			return []*models.Session{
				{
					ID:           uuid.New(),
					AccountID:    accountID,
					Fingerprint:  "fp_secret_value",
					Device:       "Chrome on macOS",
					IPAddress:    "203.0.113.10",
					IsCurrent:    true,
					LastActiveAt: time.Now().UTC(),
				},
			}, nil
		},
	}

	handler := newAdminHandler(nil, nil, sessions, nil)
	req := handlers.NewTestRequest(t, "GET", "/admin/sessions?account_id=acct_7", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	var resp handlers.ListSessionsResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "acct_7", gotAccount)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Chrome on macOS", resp.Sessions[0].Device)

	// The device fingerprint never crosses the API boundary
	assert.NotContains(t, w.Body.String(), "fp_secret_value")
}

func TestAdminListSessions_MissingAccountParam(t *testing.T) {
	called := false
	sessions := &handlers.MockSessionManager{
		ListFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			called = true
			return []*models.Session{}, nil
		},
	}

	handler := newAdminHandler(nil, nil, sessions, nil)
	req := handlers.NewTestRequest(t, "GET", "/admin/sessions", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
	assert.False(t, called)
}

func TestAdminListSessions_StoreFailure(t *testing.T) {
	sessions := &handlers.MockSessionManager{
		ListFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := newAdminHandler(nil, nil, sessions, nil)
	req := handlers.NewTestRequest(t, "GET", "/admin/sessions?account_id=acct_7", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestListAuditLogs_Defaults(t *testing.T) {
	actor := "admin_1"
	ip := "203.0.113.10"
	var gotLimit, gotOffset int
	auditRepo := &services.MockAuditLogRepository{
		ListRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
			gotLimit = limit
			gotOffset = offset
			return []*models.AuditLog{
				{
					ID:        uuid.New(),
					ActorID:   &actor,
					Action:    "account_unlocked",
					Detail:    models.AuditMetadata{"email": "locked@example.com"},
					IPAddress: &ip,
					CreatedAt: time.Now().UTC(),
				},
				{
					ID:        uuid.New(),
					Action:    "retention_purge",
					CreatedAt: time.Now().UTC().Add(-time.Hour),
				},
			}, nil
		},
		CountFunc: func(ctx context.Context) (int64, error) {
			return 42, nil
		},
	}

	handler := newAdminHandler(nil, nil, nil, auditRepo)
	req := handlers.NewTestRequest(t, "GET", "/admin/audit", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListAuditLogs(w, req)

	var resp struct {
		Logs   []*handlers.AuditLogResponse `json:"logs"`
		Total  int64                        `json:"total"`
		Limit  int                          `json:"limit"`
		Offset int                          `json:"offset"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp.Logs, 2)
	assert.Equal(t, int64(42), resp.Total)
	assert.Equal(t, 50, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, "42", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "account_unlocked", resp.Logs[0].Action)
	if assert.NotNil(t, resp.Logs[0].ActorID) {
		assert.Equal(t, "admin_1", *resp.Logs[0].ActorID)
	}
	assert.Nil(t, resp.Logs[1].ActorID, "system entries have no actor")
}

func TestListAuditLogs_FilterByActor(t *testing.T) {
	var gotActor string
	recentCalled := false
	auditRepo := &services.MockAuditLogRepository{
		ListByActorFunc: func(ctx context.Context, actorID string, limit, offset int) ([]*models.AuditLog, error) {
			gotActor = actorID
			return []*models.AuditLog{}, nil
		},
		ListRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
			recentCalled = true
			return []*models.AuditLog{}, nil
		},
	}

	handler := newAdminHandler(nil, nil, nil, auditRepo)
	req := handlers.NewTestRequest(t, "GET", "/admin/audit?actor_id=admin_1", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListAuditLogs(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "admin_1", gotActor)
	assert.False(t, recentCalled)
}

func TestListAuditLogs_FilterByAction(t *testing.T) {
	var gotAction string
	auditRepo := &services.MockAuditLogRepository{
		ListByActionFunc: func(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
			gotAction = action
			return []*models.AuditLog{}, nil
		},
	}

	handler := newAdminHandler(nil, nil, nil, auditRepo)
	req := handlers.NewTestRequest(t, "GET", "/admin/audit?action=account_locked", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListAuditLogs(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "account_locked", gotAction)
}

func TestListAuditLogs_LimitBounds(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{"oversized limit falls back to default", "?limit=500", 50},
		{"zero limit falls back to default", "?limit=0", 50},
		{"max limit accepted", "?limit=100", 100},
		{"garbage limit falls back to default", "?limit=abc", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			auditRepo := &services.MockAuditLogRepository{
				ListRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
					gotLimit = limit
					return []*models.AuditLog{}, nil
				},
			}

			handler := newAdminHandler(nil, nil, nil, auditRepo)
			req := handlers.NewTestRequest(t, "GET", "/admin/audit"+tt.query, nil)
			req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

			w := httptest.NewRecorder()
			handler.ListAuditLogs(w, req)

			assert.Equal(t, 200, w.Code)
			assert.Equal(t, tt.wantLimit, gotLimit)
		})
	}
}

func TestListAuditLogs_StoreFailure(t *testing.T) {
	auditRepo := &services.MockAuditLogRepository{
		ListRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := newAdminHandler(nil, nil, nil, auditRepo)
	req := handlers.NewTestRequest(t, "GET", "/admin/audit", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListAuditLogs(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestListLoginAttempts_PassesFilters(t *testing.T) {
	var gotEmail string
	var gotLimit, gotOffset int
	guard := &handlers.MockLoginGuard{
		ListAttemptsFunc: func(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
			gotEmail = email
			gotLimit = limit
			gotOffset = offset
			return []*models.LoginAttempt{
				{
					ID:                uuid.NewString(),
					Email:             "user@example.com",
					Success:           false,
					IPAddress:         "203.0.113.10",
					UserAgent:         "curl/8.0",
					DeviceFingerprint: "fp_secret_value",
					FailureReason:     strPtr("invalid_credentials"),
					AttemptedAt:       time.Now().UTC(),
				},
			}, nil
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "GET", "/admin/attempts?email=user@example.com&limit=25&offset=10", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListLoginAttempts(w, req)

	var resp struct {
		Attempts []*handlers.LoginAttemptResponse `json:"attempts"`
		Total    int                              `json:"total"`
		Limit    int                              `json:"limit"`
		Offset   int                              `json:"offset"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "user@example.com", gotEmail)
	assert.Equal(t, 25, gotLimit)
	assert.Equal(t, 10, gotOffset)
	assert.Len(t, resp.Attempts, 1)
	assert.Equal(t, "invalid_credentials", *resp.Attempts[0].FailureReason)

	// The device fingerprint never crosses the API boundary
	assert.NotContains(t, w.Body.String(), "fp_secret_value")
}

func TestListLoginAttempts_StoreFailure(t *testing.T) {
	guard := &handlers.MockLoginGuard{
		ListAttemptsFunc: func(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := newAdminHandler(guard, nil, nil, nil)
	req := handlers.NewTestRequest(t, "GET", "/admin/attempts", nil)
	req = handlers.WithAdminContext(req, "admin_1", "admin@example.com")

	w := httptest.NewRecorder()
	handler.ListLoginAttempts(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}
