package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/config"
	"github.com/mwhitfield/vigil/internal/database"
	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/handlers"
	"github.com/mwhitfield/vigil/internal/identity"
	middlewareCustom "github.com/mwhitfield/vigil/internal/middleware"
	"github.com/mwhitfield/vigil/internal/models"
	"github.com/mwhitfield/vigil/internal/routes"
	"github.com/mwhitfield/vigil/internal/services"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

const (
	// TestJWTSecret signs provider-style access tokens for test requests
	TestJWTSecret = "integration-jwt-secret-32-chars!"
	// TestRetentionSecret authenticates the internal retention trigger
	TestRetentionSecret = "integration-retention-secret"
)

// ScriptedVerifier stands in for the hosted identity provider. Tests
// register credentials up front; anything else reads as a wrong
// password, and an injected error simulates a provider outage.
type ScriptedVerifier struct {
	mu       sync.Mutex
	accounts map[string]scriptedAccount
	err      error
}

type scriptedAccount struct {
	password  string
	accountID string
}

// NewScriptedVerifier creates an empty verifier
func NewScriptedVerifier() *ScriptedVerifier {
	return &ScriptedVerifier{accounts: make(map[string]scriptedAccount)}
}

// Register makes a credential pair verifiable
func (v *ScriptedVerifier) Register(email, password, accountID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[email] = scriptedAccount{password: password, accountID: accountID}
}

// FailWith makes every verification attempt return err until cleared with nil
func (v *ScriptedVerifier) FailWith(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
}

func (v *ScriptedVerifier) VerifyCredentials(ctx context.Context, email, password string) (*identity.Verdict, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.err != nil {
		return nil, v.err
	}

	account, ok := v.accounts[email]
	if !ok || account.password != password {
		return &identity.Verdict{Verified: false, Reason: "invalid_credentials"}, nil
	}
	return &identity.Verdict{Verified: true, AccountID: account.accountID}, nil
}

// ScriptedResolver maps fixed addresses to locations; unknown addresses
// resolve to nothing, the same way an unconfigured deployment behaves.
type ScriptedResolver struct {
	mu        sync.Mutex
	locations map[string]geo.Location
}

// NewScriptedResolver creates an empty resolver
func NewScriptedResolver() *ScriptedResolver {
	return &ScriptedResolver{locations: make(map[string]geo.Location)}
}

// Place pins an address to a location
func (r *ScriptedResolver) Place(ip string, loc geo.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[ip] = loc
}

func (r *ScriptedResolver) Resolve(ctx context.Context, ip string) (geo.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loc, ok := r.locations[ip]; ok {
		return loc, nil
	}
	return geo.Location{}, geo.ErrUnavailable
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Alerts   *services.MockAlertNotifier
	Verifier *ScriptedVerifier
	Resolver *ScriptedResolver
	Config   *config.Config

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database,
// scripted identity provider, and captured alert delivery
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Create test config
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			TrustedProxies: []string{},
		},
		Auth: config.AuthConfig{
			JWTSecret:      TestJWTSecret,
			FingerprintKey: "integration-fingerprint-key",
			// No delay padding in tests; timing behavior has its own coverage
			TimingDelayBase:   0,
			TimingDelayJitter: 0,
		},
		Guard: config.GuardConfig{
			AttemptThreshold: 5,
			LockoutDuration:  15 * time.Minute,
		},
		Anomaly: config.AnomalyConfig{
			SpeedThresholdKmh: 1000,
			MinElapsed:        2 * time.Minute,
			GeoLookupTimeout:  2 * time.Second,
		},
		Quota: config.QuotaConfig{
			DailyLimit: 10,
		},
		Alerts: config.AlertConfig{
			DeliveryTimeout: 2 * time.Second,
		},
		Retention: config.RetentionConfig{
			Secret:        TestRetentionSecret,
			AttemptWindow: 30 * 24 * time.Hour,
			AuditWindow:   180 * 24 * time.Hour,
		},
	}

	// Initialize repositories
	loginAttemptRepo, lockoutRepo, quotaRepo, sessionRepo, auditLogRepo := InitializeRepositories(db)

	// Audit trail (structured log + best-effort database write)
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditLogRepo, auditLogger, logger)

	// Captured alert delivery
	alerts := &services.MockAlertNotifier{}
	alertDispatcher := services.NewAlertDispatcher(alerts, cfg.Alerts.DeliveryTimeout, logger)

	// Scripted external dependencies
	verifier := NewScriptedVerifier()
	resolver := NewScriptedResolver()

	fingerprinter := auth.NewFingerprinter(cfg.Auth.FingerprintKey)

	// Initialize services
	anomalyService := services.NewAnomalyService(loginAttemptRepo, cfg.Anomaly.SpeedThresholdKmh, cfg.Anomaly.MinElapsed, logger)
	guardService := services.NewLoginGuardService(
		loginAttemptRepo,
		lockoutRepo,
		verifier,
		resolver,
		fingerprinter,
		anomalyService,
		auditService,
		alertDispatcher,
		cfg.Guard,
		cfg.Anomaly.GeoLookupTimeout,
		logger,
	)
	quotaService := services.NewQuotaService(quotaRepo, auditService, alertDispatcher, cfg.Quota.DailyLimit, logger)
	sessionService := services.NewSessionService(
		sessionRepo,
		fingerprinter,
		resolver,
		cfg.Anomaly.GeoLookupTimeout,
		auditService,
		alertDispatcher,
		logger,
	)
	retentionService := services.NewRetentionService(
		loginAttemptRepo,
		auditLogRepo,
		cfg.Retention.AttemptWindow,
		cfg.Retention.AuditWindow,
		auditService,
		logger,
	)

	// Token validation for provider-issued access tokens
	validator := auth.NewTokenValidator(cfg.Auth.JWTSecret)
	timingDelay := auth.NewTimingDelay(cfg.Auth.TimingDelayBase, cfg.Auth.TimingDelayJitter)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(guardService, timingDelay, ipConfig)
	sessionHandler := handlers.NewSessionHandler(sessionService, ipConfig)
	quotaHandler := handlers.NewQuotaHandler(quotaService, ipConfig)
	adminHandler := handlers.NewAdminHandler(guardService, quotaService, sessionService, auditService, ipConfig)
	retentionHandler := handlers.NewRetentionHandler(retentionService)

	// Setup Chi router with middleware
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Setup routes using production pattern
	routes.RegisterRoutes(
		r,
		authHandler,
		sessionHandler,
		quotaHandler,
		adminHandler,
		retentionHandler,
		validator,
		sessionService,
		ipConfig,
		cfg.Retention.Secret,
	)

	// Create httptest.Server
	server := httptest.NewServer(r)

	return &TestServer{
		Server:   server,
		DB:       db,
		Alerts:   alerts,
		Verifier: verifier,
		Resolver: resolver,
		Config:   cfg,
		logger:   logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// MintToken signs a provider-style access token the middleware accepts
func (ts *TestServer) MintToken(accountID, email, role string) (string, error) {
	claims := &models.TokenClaims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TestJWTSecret))
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	if headers != nil {
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
