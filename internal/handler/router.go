package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("handler")

// HealthCheck is a backend probed by /healthz and /readyz.
type HealthCheck struct {
	Name   string
	Pinger port.Pinger
}

// Services groups what the router serves. DevTools and Files are optional.
type Services struct {
	Auth         *service.AuthService
	Profile      *service.ProfileService
	Transactions *service.TransactionService
	Reports      *service.ReportService
	DevTools     *service.DevToolsService

	// Files serves stored objects under /files/ for the local backends.
	Files  http.Handler
	Checks []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Checks))
	r.Get("/readyz", readyzHandler(svcs.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if svcs.Files != nil {
		r.Handle("/files/*", svcs.Files)
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 📚 Categorias
		// =============================================
		r.Get("/categories", listCategoriesHandler(logger))

		if svcs.Auth == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "auth service unavailable: identity provider not configured")
			}))
			return
		}
		auth := JWTAuthMiddleware(svcs.Auth, logger)
		verified := RequireVerifiedEmail(logger)

		// =============================================
		// 🔐 Autenticação
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			// Public routes
			r.Post("/register", authRegisterHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/google", authGoogleHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))
			r.Post("/password/reset", authPasswordResetHandler(svcs.Auth, logger))

			// Protected routes, open to unverified accounts
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/logout", authLogoutHandler(svcs.Auth, logger))
				r.Post("/email/verification", authResendVerificationHandler(svcs.Auth, logger))
				r.Get("/me", authMeHandler(svcs.Auth, logger))
			})
		})

		// =============================================
		// 💰 Transações, 📊 Relatórios, 👤 Perfil
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(auth, verified)

			if tx := svcs.Transactions; tx != nil {
				r.Get("/transactions/overview", overviewHandler(tx, logger))
				r.Get("/transactions", listMonthHandler(tx, logger))
				r.Post("/transactions/previous", shiftMonthHandler(tx, -1, logger))
				r.Post("/transactions/next", shiftMonthHandler(tx, 1, logger))
				r.Post("/transactions", createTransactionHandler(tx, logger))
				r.Get("/transactions/{id}", getTransactionHandler(tx, logger))
				r.Put("/transactions/{id}", updateTransactionHandler(tx, logger))
				r.Delete("/transactions/{id}", deleteTransactionHandler(tx, logger))
				r.Post("/transactions/{id}/receipt", uploadReceiptHandler(tx, logger))
			}

			if rep := svcs.Reports; rep != nil {
				r.Get("/reports/summary", summaryReportHandler(rep, logger))
				r.Get("/reports/categories", categoryReportHandler(rep, logger))
			}

			if p := svcs.Profile; p != nil {
				r.Get("/profile", getProfileHandler(p, logger))
				r.Put("/profile", updateProfileHandler(p, logger))
				r.Post("/profile/photo", uploadProfilePhotoHandler(p, logger))
			}
		})

		// =============================================
		// 🛠 Dev Tools (testing helpers)
		// =============================================
		if dev := svcs.DevTools; dev != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/dev/seed-transactions", devSeedTransactionsHandler(dev, logger))
				r.Post("/dev/verify-email", devVerifyEmailHandler(dev, logger))
			})
		}
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

const healthTimeout = 2 * time.Second

// probe pings every check concurrently.
func probe(ctx context.Context, checks []HealthCheck) []domain.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	now := time.Now().Format(time.RFC3339)
	out := make([]domain.ServiceHealth, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Pinger.Ping(ctx)
			out[i] = domain.ServiceHealth{
				Name:        c.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				out[i].Status = "unhealthy"
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()
	return out
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := append([]domain.ServiceHealth{{
			Name:        "bfa-api",
			Status:      "healthy",
			LastChecked: time.Now().Format(time.RFC3339),
		}}, probe(r.Context(), checks)...)

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, s := range probe(r.Context(), checks) {
			if s.Status != "healthy" {
				logger.Warn("readiness check failed", zap.String("backend", s.Name), zap.String("error", s.Error))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "backend": s.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
