package handlers_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mwhitfield/vigil/internal/handlers"
	"github.com/mwhitfield/vigil/internal/models"
)

func strPtr(s string) *string { return &s }

func TestListSessions_Success(t *testing.T) {
	now := time.Now().UTC()
	mockSessions := &handlers.MockSessionManager{
		ListFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			assert.Equal(t, "acct_1", accountID)
			return []*models.Session{
				{
					ID:           uuid.New(),
					AccountID:    "acct_1",
					Fingerprint:  "fp_current",
					Device:       "Mozilla/5.0 (X11; Linux x86_64)",
					IPAddress:    "203.0.113.10",
					City:         strPtr("Berlin"),
					Country:      strPtr("DE"),
					IsCurrent:    true,
					LastActiveAt: now,
					CreatedAt:    now.Add(-48 * time.Hour),
				},
				{
					ID:           uuid.New(),
					AccountID:    "acct_1",
					Fingerprint:  "fp_old_phone",
					Device:       "Mozilla/5.0 (iPhone)",
					IPAddress:    "198.51.100.7",
					IsCurrent:    false,
					LastActiveAt: now.Add(-72 * time.Hour),
					CreatedAt:    now.Add(-90 * 24 * time.Hour),
				},
			}, nil
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "GET", "/sessions", nil), "acct_1", "user@example.com")

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	var resp handlers.ListSessionsResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Sessions, 2)
	assert.True(t, resp.Sessions[0].IsCurrent)
	assert.Equal(t, "Berlin", *resp.Sessions[0].City)

	// The device fingerprint never crosses the API boundary
	assert.NotContains(t, w.Body.String(), "fp_current")
	assert.NotContains(t, w.Body.String(), "fp_old_phone")
}

func TestListSessions_Unauthenticated(t *testing.T) {
	handler := handlers.NewSessionHandler(&handlers.MockSessionManager{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/sessions", nil)

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestListSessions_StoreFailure(t *testing.T) {
	mockSessions := &handlers.MockSessionManager{
		ListFunc: func(ctx context.Context, accountID string) ([]*models.Session, error) {
			return nil, errors.New("connection refused")
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "GET", "/sessions", nil), "acct_1", "user@example.com")

	w := httptest.NewRecorder()
	handler.ListSessions(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestRevokeSession_Success(t *testing.T) {
	sessionID := uuid.New()
	var gotActor string
	var gotAdmin bool
	var gotSessionID uuid.UUID
	mockSessions := &handlers.MockSessionManager{
		RevokeFunc: func(ctx context.Context, actorID string, actorIsAdmin bool, id uuid.UUID, origin models.Origin) (*models.Session, error) {
			gotActor = actorID
			gotAdmin = actorIsAdmin
			gotSessionID = id
			return &models.Session{ID: id, AccountID: actorID}, nil
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/sessions/"+sessionID.String(), nil)
	req = handlers.WithAuthContext(req, "acct_1", "user@example.com")
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "session revoked", resp["message"])
	assert.Equal(t, "acct_1", gotActor)
	assert.False(t, gotAdmin, "self-service revocation must not claim admin rights")
	assert.Equal(t, sessionID, gotSessionID)
}

func TestRevokeSession_InvalidID(t *testing.T) {
	handler := handlers.NewSessionHandler(&handlers.MockSessionManager{}, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/sessions/not-a-uuid", nil)
	req = handlers.WithAuthContext(req, "acct_1", "user@example.com")
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRevokeSession_NotFound(t *testing.T) {
	mockSessions := &handlers.MockSessionManager{
		RevokeFunc: func(ctx context.Context, actorID string, actorIsAdmin bool, id uuid.UUID, origin models.Origin) (*models.Session, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/sessions/"+uuid.NewString(), nil)
	req = handlers.WithAuthContext(req, "acct_1", "user@example.com")
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestRevokeSession_Unauthenticated(t *testing.T) {
	handler := handlers.NewSessionHandler(&handlers.MockSessionManager{}, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/sessions/"+uuid.NewString(), nil)
	req = handlers.WithChiIDFromURL(req)

	w := httptest.NewRecorder()
	handler.RevokeSession(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRevokeOtherSessions_Success(t *testing.T) {
	var gotAccount string
	mockSessions := &handlers.MockSessionManager{
		RevokeOthersFunc: func(ctx context.Context, accountID string, origin models.Origin) (int64, error) {
			gotAccount = accountID
			return 3, nil
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/sessions/revoke-others", nil), "acct_1", "user@example.com")

	w := httptest.NewRecorder()
	handler.RevokeOtherSessions(w, req)

	var resp map[string]interface{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, float64(3), resp["revoked"])
	assert.Equal(t, "acct_1", gotAccount)
}

func TestRevokeOtherSessions_StoreFailure(t *testing.T) {
	mockSessions := &handlers.MockSessionManager{
		RevokeOthersFunc: func(ctx context.Context, accountID string, origin models.Origin) (int64, error) {
			return 0, errors.New("connection refused")
		},
	}

	handler := handlers.NewSessionHandler(mockSessions, nil)
	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/sessions/revoke-others", nil), "acct_1", "user@example.com")

	w := httptest.NewRecorder()
	handler.RevokeOtherSessions(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}
