package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecretEqual(t *testing.T) {
	if !SecretEqual("s3cret", "s3cret") {
		t.Errorf("expected matching secrets to compare equal")
	}
	if SecretEqual("s3cret", "other") {
		t.Errorf("expected different secrets to compare unequal")
	}
	if SecretEqual("s3cre", "s3cret") {
		t.Errorf("expected different-length secrets to compare unequal")
	}
}

func TestRequireSharedSecret(t *testing.T) {
	middleware := RequireSharedSecret("X-Retention-Secret", "s3cret-s3cret-s3cret")

	req := httptest.NewRequest("POST", "/internal/retention/run", nil)
	req.Header.Set("X-Retention-Secret", "s3cret-s3cret-s3cret")
	w := httptest.NewRecorder()
	nextCalled := false
	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !nextCalled {
		t.Errorf("expected next handler to be called")
	}
}

func TestRequireSharedSecret_WrongSecret(t *testing.T) {
	middleware := RequireSharedSecret("X-Retention-Secret", "s3cret-s3cret-s3cret")

	for _, presented := range []string{"wrong", ""} {
		req := httptest.NewRequest("POST", "/internal/retention/run", nil)
		if presented != "" {
			req.Header.Set("X-Retention-Secret", presented)
		}
		w := httptest.NewRecorder()
		middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("next handler called with secret %q", presented)
		})).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: expected 401, got %d", presented, w.Code)
		}
	}
}

func TestRequireSharedSecret_EmptyConfiguredSecretDisables(t *testing.T) {
	// A missing configured secret closes the endpoint instead of making
	// the empty string a valid credential.
	middleware := RequireSharedSecret("X-Retention-Secret", "")

	req := httptest.NewRequest("POST", "/internal/retention/run", nil)
	w := httptest.NewRecorder()
	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("next handler called with no secret configured")
	})).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
