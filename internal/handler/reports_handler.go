package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// 📊 Relatórios & 📚 Categorias
// ============================================================

func summaryReportHandler(reportSvc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/summary")
		defer span.End()

		month, err := monthParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := reportSvc.Summary(ctx, UserIDFromContext(ctx), month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func categoryReportHandler(reportSvc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/categories")
		defer span.End()

		month, err := monthParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		t, err := typeParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := reportSvc.Categories(ctx, UserIDFromContext(ctx), month, t)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listCategoriesHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		t, err := typeParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cats := domain.Categories(t)
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Category]{Data: cats, Total: len(cats)})
	}
}
