package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the *_BACKEND variables.
const (
	BackendFirebase = "firebase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendLocal    = "local"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string
	TimeZone string
	DevTools bool // DEV_TOOLS=true exposes /v1/dev helpers

	// Backends
	DataBackend     string // firebase | sqlite | memory
	IdentityBackend string // firebase | memory
	StorageBackend  string // firebase | local | memory

	// Firebase
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsFile string
	FirebaseStorageBucket   string
	IdentityToolkitURL      string
	SecureTokenURL          string

	// SQLite
	SQLitePath string

	// Local object storage
	LocalStorageDir string
	PublicBaseURL   string

	// Events
	AMQPURL      string
	AMQPExchange string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL     time.Duration
	PageCacheTTL time.Duration

	// JWT / Auth
	JWTSecret            string
	JWTAccessTTL         time.Duration
	VerificationCooldown time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TimeZone: getEnv("TIME_ZONE", "America/Sao_Paulo"),
		DevTools: getEnvBool("DEV_TOOLS", false),

		DataBackend:     strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		IdentityBackend: strings.ToLower(getEnv("IDENTITY_BACKEND", BackendMemory)),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		IdentityToolkitURL:      getEnv("IDENTITY_TOOLKIT_URL", "https://identitytoolkit.googleapis.com/v1"),
		SecureTokenURL:          getEnv("SECURE_TOKEN_URL", "https://securetoken.googleapis.com/v1"),

		SQLitePath: getEnv("SQLITE_PATH", "data/finance.db"),

		LocalStorageDir: getEnv("LOCAL_STORAGE_DIR", "data/uploads"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance.events"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		PageCacheTTL: getEnvDuration("PAGE_CACHE_TTL", 30*time.Minute),

		JWTSecret:            getEnv("JWT_SECRET", "bfa-default-dev-secret-change-me"),
		JWTAccessTTL:         getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		VerificationCooldown: getEnvDuration("VERIFICATION_COOLDOWN", 60*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Location resolves TimeZone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports configuration combinations that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch c.DataBackend {
	case BackendFirebase, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("DATA_BACKEND %q is not one of firebase, sqlite, memory", c.DataBackend))
	}
	switch c.IdentityBackend {
	case BackendFirebase, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_BACKEND %q is not one of firebase, memory", c.IdentityBackend))
	}
	switch c.StorageBackend {
	case BackendFirebase, BackendLocal, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not one of firebase, local, memory", c.StorageBackend))
	}

	if c.UsesFirebase() && c.FirebaseProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for firebase backends"))
	}
	if c.IdentityBackend == BackendFirebase && c.FirebaseAPIKey == "" {
		errs = append(errs, errors.New("FIREBASE_API_KEY is required when IDENTITY_BACKEND=firebase"))
	}
	if c.StorageBackend == BackendFirebase && c.FirebaseStorageBucket == "" {
		errs = append(errs, errors.New("FIREBASE_STORAGE_BUCKET is required when STORAGE_BACKEND=firebase"))
	}
	if c.DataBackend == BackendSQLite && c.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required when DATA_BACKEND=sqlite"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must have at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("TIME_ZONE %q: %w", c.TimeZone, err))
	}

	return errors.Join(errs...)
}

// UsesFirebase reports whether any backend needs the Firebase app.
func (c *Config) UsesFirebase() bool {
	return c.DataBackend == BackendFirebase ||
		c.IdentityBackend == BackendFirebase ||
		c.StorageBackend == BackendFirebase
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
