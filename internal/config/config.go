package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Guard     GuardConfig
	Anomaly   AnomalyConfig
	Quota     QuotaConfig
	Identity  IdentityConfig
	Alerts    AlertConfig
	Retention RetentionConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	// JWTSecret verifies access tokens minted by the external identity
	// provider. This service never issues tokens of its own.
	JWTSecret      string
	FingerprintKey string
	// TimingDelayBase and TimingDelayJitter pad failed logins so response
	// time does not reveal which check rejected the attempt.
	TimingDelayBase   time.Duration
	TimingDelayJitter time.Duration
}

// GuardConfig tunes the lockout state machine.
type GuardConfig struct {
	AttemptThreshold int
	LockoutDuration  time.Duration
}

// AnomalyConfig tunes impossible-travel detection.
type AnomalyConfig struct {
	SpeedThresholdKmh float64
	MinElapsed        time.Duration
	GeoServiceURL     string
	GeoLookupTimeout  time.Duration
}

// QuotaConfig tunes the per-account daily assist budget.
type QuotaConfig struct {
	DailyLimit int
}

// IdentityConfig points at the hosted identity provider that verifies
// credentials on this service's behalf.
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AlertConfig struct {
	SESRegion       string
	FromAddress     string
	AdminAddresses  []string
	DeliveryTimeout time.Duration
}

type RetentionConfig struct {
	// Secret authenticates external retention triggers. Required.
	Secret        string
	AttemptWindow time.Duration
	AuditWindow   time.Duration
	// Interval drives the in-process purge ticker; zero disables it for
	// deployments that trigger retention externally.
	Interval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	retentionSecret := getEnv("RETENTION_SECRET", "")
	if retentionSecret == "" {
		return nil, fmt.Errorf("RETENTION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "vigil"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			FingerprintKey:    getEnv("FINGERPRINT_KEY", ""),
			TimingDelayBase:   getEnvAsDuration("TIMING_DELAY_BASE", 100*time.Millisecond),
			TimingDelayJitter: getEnvAsDuration("TIMING_DELAY_JITTER", 150*time.Millisecond),
		},
		Guard: GuardConfig{
			AttemptThreshold: getEnvAsInt("GUARD_ATTEMPT_THRESHOLD", 5),
			LockoutDuration:  getEnvAsDuration("GUARD_LOCKOUT_DURATION", 15*time.Minute),
		},
		Anomaly: AnomalyConfig{
			SpeedThresholdKmh: getEnvAsFloat("ANOMALY_SPEED_THRESHOLD_KMH", 1000),
			MinElapsed:        getEnvAsDuration("ANOMALY_MIN_ELAPSED", 2*time.Minute),
			GeoServiceURL:     getEnv("GEO_SERVICE_URL", ""),
			GeoLookupTimeout:  getEnvAsDuration("GEO_LOOKUP_TIMEOUT", 2*time.Second),
		},
		Quota: QuotaConfig{
			DailyLimit: getEnvAsInt("ASSIST_DAILY_LIMIT", 10),
		},
		Identity: IdentityConfig{
			BaseURL: getEnv("IDENTITY_BASE_URL", "http://localhost:9096"),
			Timeout: getEnvAsDuration("IDENTITY_TIMEOUT", 5*time.Second),
		},
		Alerts: AlertConfig{
			SESRegion:       getEnv("AWS_SES_REGION", "us-east-1"),
			FromAddress:     getEnv("ALERT_FROM_ADDRESS", "security@localhost"),
			AdminAddresses:  splitList(getEnv("ALERT_ADMIN_ADDRESSES", "")),
			DeliveryTimeout: getEnvAsDuration("ALERT_DELIVERY_TIMEOUT", 10*time.Second),
		},
		Retention: RetentionConfig{
			Secret:        retentionSecret,
			AttemptWindow: getEnvAsDuration("RETENTION_ATTEMPT_WINDOW", 30*24*time.Hour),
			AuditWindow:   getEnvAsDuration("RETENTION_AUDIT_WINDOW", 180*24*time.Hour),
			Interval:      getEnvAsDuration("RETENTION_INTERVAL", 0),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSecret("JWT_SECRET", jwtSecret, env); err != nil {
		return nil, err
	}
	if err := validateSecret("RETENTION_SECRET", retentionSecret, env); err != nil {
		return nil, err
	}

	if cfg.Guard.AttemptThreshold < 1 {
		return nil, fmt.Errorf("GUARD_ATTEMPT_THRESHOLD must be at least 1")
	}
	if cfg.Quota.DailyLimit < 0 {
		return nil, fmt.Errorf("ASSIST_DAILY_LIMIT cannot be negative")
	}

	return cfg, nil
}

// validateSecret enforces minimum standards for shared secrets
func validateSecret(name, secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		return splitList(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
