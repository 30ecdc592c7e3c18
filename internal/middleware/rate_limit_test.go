package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitByIP_AllowsUnderLimit(t *testing.T) {
	middleware := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 5})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.10:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	middleware := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.20:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.20:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if body := w.Body.String(); body != `{"error":"Rate limit exceeded"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

func TestRateLimitByIP_IsolatesAddresses(t *testing.T) {
	middleware := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.30:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// A different address still has its own budget.
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.31:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected independent bucket per address, got %d", w.Code)
	}
}

func TestDefaultRateLimits(t *testing.T) {
	if got := DefaultLoginRateLimit().RequestsPerMinute; got != 10 {
		t.Errorf("login rate limit: got %d, want 10", got)
	}
	if got := DefaultAssistRateLimit().RequestsPerMinute; got != 30 {
		t.Errorf("assist rate limit: got %d, want 30", got)
	}
}
