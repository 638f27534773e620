package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/config"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/handler"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/events"
	fbapp "github.com/boddenberg/finance-tracker-bfa-go/internal/infra/firebase"
	fsstore "github.com/boddenberg/finance-tracker-bfa-go/internal/infra/firestore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/identity"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/sqlite"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/storage"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	firebase "firebase.google.com/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// backends holds the adapters selected by configuration.
type backends struct {
	transactions port.TransactionStore
	users        port.UserStore
	identity     port.IdentityProvider
	objects      port.ObjectStorage
	events       port.EventPublisher

	verifier service.EmailVerifier
	files    http.Handler
	checks   []handler.HealthCheck
	closers  []func() error
}

func (b *backends) close(logger *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}
}

func main() {
	// --- Load .env file (for local development) ---
	dotenvErr := config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if dotenvErr != nil {
		logger.Warn(".env not loaded", zap.Error(dotenvErr))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("time_zone", cfg.TimeZone),
		zap.String("data_backend", cfg.DataBackend),
		zap.String("identity_backend", cfg.IdentityBackend),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Bool("dev_tools", cfg.DevTools),
		zap.Bool("events", cfg.AMQPURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("page_cache_ttl", cfg.PageCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "finance-tracker-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Backends ---
	ctx := context.Background()
	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init backends", zap.Error(err))
	}

	// --- Cache ---
	pageCache := cache.New[*domain.MonthPage](cfg.PageCacheTTL)
	profileCache := cache.New[*domain.User](cfg.CacheTTL)
	idTokenCache := cache.New[string](time.Hour)
	cooldownCache := cache.New[time.Time](cfg.VerificationCooldown)
	revokedCache := cache.New[time.Time](cfg.JWTAccessTTL)
	defer pageCache.Close()
	defer profileCache.Close()
	defer idTokenCache.Close()
	defer cooldownCache.Close()
	defer revokedCache.Close()
	metrics.ObserveCacheSize("month_page", pageCache.Len)
	metrics.ObserveCacheSize("profile", profileCache.Len)
	metrics.ObserveCacheSize("id_token", idTokenCache.Len)
	metrics.ObserveCacheSize("revoked_token", revokedCache.Len)

	// --- Services ---
	loc := cfg.Location()
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	txSvc := service.NewTransactionService(b.transactions, b.objects, b.events, pageCache, bulkhead, loc, metrics, logger)
	authSvc := service.NewAuthService(
		b.identity,
		b.users,
		txSvc,
		idTokenCache,
		cooldownCache,
		revokedCache,
		cfg.JWTSecret,
		cfg.JWTAccessTTL,
		cfg.VerificationCooldown,
		metrics,
		logger,
	)

	svcs := handler.Services{
		Auth:         authSvc,
		Profile:      service.NewProfileService(b.users, b.objects, profileCache, bulkhead, metrics, logger),
		Transactions: txSvc,
		Reports:      service.NewReportService(txSvc),
		Files:        b.files,
		Checks:       b.checks,
	}
	if cfg.DevTools {
		svcs.DevTools = service.NewDevToolsService(b.transactions, txSvc, b.verifier, loc, logger)
		logger.Warn("dev tools enabled: /v1/dev routes are exposed")
	}

	// --- Router ---
	router := handler.NewRouter(svcs, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	b.close(logger)

	logger.Info("server stopped")
}

// newBackends builds the adapters named by the *_BACKEND settings.
func newBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}
	rcfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	var app *firebase.App
	if cfg.UsesFirebase() {
		var err error
		app, err = fbapp.NewApp(ctx, fbapp.Settings{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			StorageBucket:   cfg.FirebaseStorageBucket,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("firebase app initialized", zap.String("project_id", cfg.FirebaseProjectID))
	}

	// --- Document store ---
	switch cfg.DataBackend {
	case config.BackendFirebase:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		store := fsstore.NewStore(client, resilience.NewCircuitBreaker("firestore"), rcfg, logger)
		b.transactions, b.users = store, store
		b.checks = append(b.checks, handler.HealthCheck{Name: "firestore", Pinger: store})
		b.closers = append(b.closers, client.Close)
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		store := sqlite.NewStore(db)
		b.transactions, b.users = store, store
		b.checks = append(b.checks, handler.HealthCheck{Name: "sqlite", Pinger: store})
		b.closers = append(b.closers, db.Close)
		logger.Info("using sqlite data backend", zap.String("path", cfg.SQLitePath))
	default:
		store := memory.NewStore()
		b.transactions, b.users = store, store
		logger.Warn("using in-memory data backend: data is lost on restart")
	}

	// --- Identity provider ---
	switch cfg.IdentityBackend {
	case config.BackendFirebase:
		admin, err := fbapp.NewAuthClient(ctx, app)
		if err != nil {
			return nil, err
		}
		b.identity = identity.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.IdentityToolkitURL,
			cfg.SecureTokenURL,
			cfg.FirebaseAPIKey,
			admin,
			resilience.NewCircuitBreaker("identity"),
			rcfg,
			logger,
		)
	default:
		idp := memory.NewIdentityProvider(0)
		b.identity, b.verifier = idp, idp
		logger.Warn("using in-memory identity provider: Google tokens are not verified")
	}

	// --- Object storage ---
	switch cfg.StorageBackend {
	case config.BackendFirebase:
		client, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		bucket, err := client.DefaultBucket()
		if err != nil {
			return nil, fmt.Errorf("storage bucket: %w", err)
		}
		b.objects = storage.NewFirebaseBucket(bucket, cfg.FirebaseStorageBucket, resilience.NewCircuitBreaker("storage"), rcfg, logger)
	case config.BackendLocal:
		local, err := storage.NewLocal(cfg.LocalStorageDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		b.objects, b.files = local, local
		logger.Info("using local object storage", zap.String("dir", cfg.LocalStorageDir))
	default:
		objects := memory.NewObjectStorage(cfg.PublicBaseURL)
		b.objects, b.files = objects, objects
	}

	// --- Events ---
	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		b.events = pub
		b.closers = append(b.closers, pub.Close)
		logger.Info("publishing transaction events", zap.String("exchange", cfg.AMQPExchange))
	} else {
		b.events = events.Nop{}
	}

	return b, nil
}
