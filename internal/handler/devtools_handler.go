package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dev Tools Handlers
// ============================================================

func devSeedTransactionsHandler(devSvc *service.DevToolsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/seed-transactions")
		defer span.End()

		var req domain.SeedRequest
		if err := decodeJSON(r, &req, true); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := devSvc.Seed(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func devVerifyEmailHandler(devSvc *service.DevToolsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/verify-email")
		defer span.End()

		uid := UserIDFromContext(ctx)
		if err := devSvc.VerifyEmail(ctx, uid); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "Email marcado como verificado. Chame GET /v1/auth/me para renovar o token",
			ID:      uid,
		})
	}
}
