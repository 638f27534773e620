package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// maxUploadBytes caps receipt and profile photo uploads.
const maxUploadBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into v. An empty body is accepted
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		var ve *domain.ErrValidation
		if errors.As(err, &ve) {
			return ve
		}
		return &domain.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// monthParam reads ?month=YYYY-MM. A missing parameter yields the zero Month.
func monthParam(r *http.Request) (domain.Month, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return domain.Month{}, nil
	}
	return domain.ParseMonth(v)
}

// typeParam reads ?type=income|expense. A missing parameter yields "".
func typeParam(r *http.Request) (domain.TransactionType, error) {
	t := domain.TransactionType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if t != "" && !t.Valid() {
		return "", &domain.ErrValidation{Field: "type", Message: "O tipo deve ser receita ou despesa"}
	}
	return t, nil
}

// readUpload returns the uploaded image and its content type. It accepts a
// multipart form with a "file" part or the raw image as the request body.
func readUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if mediaType == "" {
			return nil, "", &domain.ErrValidation{Field: "file", Message: "Envie uma imagem"}
		}
		return r.Body, mediaType, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", uploadError(err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &domain.ErrValidation{Field: "file", Message: "Envie uma imagem"}
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(fileExt(header.Filename)))
	}
	return file, contentType, nil
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.ErrValidation{Field: "file", Message: fmt.Sprintf("A imagem deve ter no máximo %d MB", maxUploadBytes>>20)}
	}
	return &domain.ErrValidation{Field: "file", Message: "Upload inválido"}
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var notVerified *domain.ErrEmailNotVerified
	var conflict *domain.ErrConflict
	var rateLimited *domain.ErrRateLimited
	var external *domain.ErrExternalService
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &tooLarge):
		logger.Debug("request body too large", zap.Int64("limit", tooLarge.Limit))
		writeError(w, http.StatusRequestEntityTooLarge, uploadError(err).Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notVerified):
		logger.Warn("email not verified", zap.String("email", domain.MaskEmail(notVerified.Email)))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rateLimited):
		logger.Warn("rate limited", zap.String("action", rateLimited.Action), zap.Duration("retry_after", rateLimited.RetryAfter))
		if secs := int(rateLimited.RetryAfter.Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Serviço indisponível. Tente novamente")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
