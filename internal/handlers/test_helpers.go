package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds provider claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, accountID, email string) *http.Request {
	claims := &models.TokenClaims{
		AccountID: accountID,
		Email:     email,
		Role:      models.RoleUser,
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// WithAdminContext adds admin claims to request context
func WithAdminContext(req *http.Request, accountID, email string) *http.Request {
	claims := &models.TokenClaims{
		AccountID: accountID,
		Email:     email,
		Role:      models.RoleAdmin,
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginGuard implements LoginGuard and GuardAdmin for testing
type MockLoginGuard struct {
	AttemptFunc      func(ctx context.Context, email, password string, origin models.Origin) (*models.LoginDecision, error)
	AdminUnlockFunc  func(ctx context.Context, adminID, email string, origin models.Origin) (bool, error)
	ListAttemptsFunc func(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error)
}

func (m *MockLoginGuard) Attempt(ctx context.Context, email, password string, origin models.Origin) (*models.LoginDecision, error) {
	if m.AttemptFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.AttemptFunc(ctx, email, password, origin)
}

func (m *MockLoginGuard) AdminUnlock(ctx context.Context, adminID, email string, origin models.Origin) (bool, error) {
	if m.AdminUnlockFunc == nil {
		return false, nil
	}
	return m.AdminUnlockFunc(ctx, adminID, email, origin)
}

func (m *MockLoginGuard) ListAttempts(ctx context.Context, email string, limit, offset int) ([]*models.LoginAttempt, error) {
	if m.ListAttemptsFunc == nil {
		return []*models.LoginAttempt{}, nil
	}
	return m.ListAttemptsFunc(ctx, email, limit, offset)
}

// MockSessionManager implements SessionManager for testing
type MockSessionManager struct {
	ListFunc         func(ctx context.Context, accountID string) ([]*models.Session, error)
	RevokeFunc       func(ctx context.Context, actorID string, actorIsAdmin bool, sessionID uuid.UUID, origin models.Origin) (*models.Session, error)
	RevokeOthersFunc func(ctx context.Context, accountID string, origin models.Origin) (int64, error)
}

func (m *MockSessionManager) List(ctx context.Context, accountID string) ([]*models.Session, error) {
	if m.ListFunc == nil {
		return []*models.Session{}, nil
	}
	return m.ListFunc(ctx, accountID)
}

func (m *MockSessionManager) Revoke(ctx context.Context, actorID string, actorIsAdmin bool, sessionID uuid.UUID, origin models.Origin) (*models.Session, error) {
	if m.RevokeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RevokeFunc(ctx, actorID, actorIsAdmin, sessionID, origin)
}

func (m *MockSessionManager) RevokeOthers(ctx context.Context, accountID string, origin models.Origin) (int64, error) {
	if m.RevokeOthersFunc == nil {
		return 0, nil
	}
	return m.RevokeOthersFunc(ctx, accountID, origin)
}

// MockQuotaManager implements QuotaManager and QuotaAdmin for testing
type MockQuotaManager struct {
	CheckAndConsumeFunc func(ctx context.Context, accountID string, origin models.Origin) (*services.QuotaStatus, error)
	RemainingFunc       func(ctx context.Context, accountID string) (*services.QuotaStatus, error)
	SetCountFunc        func(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error
	ResetCountFunc      func(ctx context.Context, adminID, accountID string, origin models.Origin) error
}

func (m *MockQuotaManager) CheckAndConsume(ctx context.Context, accountID string, origin models.Origin) (*services.QuotaStatus, error) {
	if m.CheckAndConsumeFunc == nil {
		return &services.QuotaStatus{Allowed: true, Limit: 10, Used: 1, Remaining: 9}, nil
	}
	return m.CheckAndConsumeFunc(ctx, accountID, origin)
}

func (m *MockQuotaManager) Remaining(ctx context.Context, accountID string) (*services.QuotaStatus, error) {
	if m.RemainingFunc == nil {
		return &services.QuotaStatus{Allowed: true, Limit: 10, Used: 0, Remaining: 10}, nil
	}
	return m.RemainingFunc(ctx, accountID)
}

func (m *MockQuotaManager) SetCount(ctx context.Context, adminID, accountID string, count int, origin models.Origin) error {
	if m.SetCountFunc == nil {
		return nil
	}
	return m.SetCountFunc(ctx, adminID, accountID, count, origin)
}

func (m *MockQuotaManager) ResetCount(ctx context.Context, adminID, accountID string, origin models.Origin) error {
	if m.ResetCountFunc == nil {
		return nil
	}
	return m.ResetCountFunc(ctx, adminID, accountID, origin)
}

// MockRetentionRunner implements RetentionRunner for testing
type MockRetentionRunner struct {
	RunPurgeFunc func(ctx context.Context) (*services.PurgeResult, error)
}

func (m *MockRetentionRunner) RunPurge(ctx context.Context) (*services.PurgeResult, error) {
	if m.RunPurgeFunc == nil {
		return &services.PurgeResult{}, nil
	}
	return m.RunPurgeFunc(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be extracted
// by the Chi router from the URL path.
//
// Example usage:
//
//	req := httptest.NewRequest("PUT", "/admin/quota/acct_123", body)
//	req = WithChiRouteContext(req, map[string]string{
//	    "accountID": "acct_123",
//	})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithChiIDFromURL extracts the ID from a URL path and sets it as a chi route parameter
// This is useful for testing endpoints like /sessions/{id} without manually parsing the URL
//
// Example usage:
//
//	req := httptest.NewRequest("DELETE", "/sessions/"+sessionID, nil)
//	req = WithChiIDFromURL(req)  // Extracts the trailing segment and sets it as "id"
func WithChiIDFromURL(r *http.Request) *http.Request {
	// Extract ID from URL path (e.g., /sessions/abc123 -> "abc123")
	path := r.URL.Path
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	// If path has at least 2 parts (e.g., ["sessions", "abc123"]), use the last part as ID
	if len(parts) >= 2 {
		id := parts[len(parts)-1]
		return WithChiRouteContext(r, map[string]string{
			"id": id,
		})
	}

	return r
}
