package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
)

type mockSessionUpserter struct {
	upsertFunc func(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error)
	calls      int
}

func (m *mockSessionUpserter) UpsertCurrent(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error) {
	m.calls++
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, accountID, email, origin)
	}
	return &models.Session{AccountID: accountID}, nil
}

func authenticatedRequest(accountID, email string) *http.Request {
	req := httptest.NewRequest("GET", "/sessions", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	req.Header.Set("User-Agent", "test-agent/1.0")
	claims := &models.TokenClaims{AccountID: accountID, Email: email, Role: models.RoleUser}
	return req.WithContext(context.WithValue(req.Context(), auth.ClaimsContextKey, claims))
}

func TestSessionTracker_RefreshesRegistryForAuthenticatedRequests(t *testing.T) {
	var gotAccountID, gotEmail string
	var gotOrigin models.Origin
	sessions := &mockSessionUpserter{
		upsertFunc: func(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error) {
			gotAccountID, gotEmail, gotOrigin = accountID, email, origin
			return &models.Session{AccountID: accountID}, nil
		},
	}
	tracker := SessionTracker(sessions, nil)

	w := httptest.NewRecorder()
	tracker(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, authenticatedRequest("acct_1", "user@example.com"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sessions.calls != 1 {
		t.Fatalf("expected one registry refresh, got %d", sessions.calls)
	}
	if gotAccountID != "acct_1" || gotEmail != "user@example.com" {
		t.Errorf("unexpected identity: %s / %s", gotAccountID, gotEmail)
	}
	if gotOrigin.IPAddress != "203.0.113.10" {
		t.Errorf("expected client address from RemoteAddr, got %s", gotOrigin.IPAddress)
	}
	if gotOrigin.UserAgent != "test-agent/1.0" {
		t.Errorf("unexpected user agent: %s", gotOrigin.UserAgent)
	}
}

func TestSessionTracker_SkipsUnauthenticatedRequests(t *testing.T) {
	sessions := &mockSessionUpserter{}
	tracker := SessionTracker(sessions, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	tracker(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sessions.calls != 0 {
		t.Errorf("expected no registry refresh without claims, got %d", sessions.calls)
	}
}

func TestSessionTracker_RegistryFailureDoesNotFailRequest(t *testing.T) {
	sessions := &mockSessionUpserter{
		upsertFunc: func(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error) {
			return nil, errors.New("registry unavailable")
		},
	}
	tracker := SessionTracker(sessions, nil)

	w := httptest.NewRecorder()
	tracker(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, authenticatedRequest("acct_1", "user@example.com"))

	if w.Code != http.StatusOK {
		t.Errorf("expected the request to proceed, got %d", w.Code)
	}
}
