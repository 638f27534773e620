package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// 👤 Perfil
// ============================================================

func getProfileHandler(profileSvc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profile")
		defer span.End()

		claims := ClaimsFromContext(ctx)
		resp, err := profileSvc.GetProfile(ctx, claims.UserID(), claims.EmailVerified)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateProfileHandler(profileSvc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile")
		defer span.End()

		var req domain.ProfileUpdateRequest
		if err := decodeJSON(r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		claims := ClaimsFromContext(ctx)
		resp, err := profileSvc.UpdateProfile(ctx, claims.UserID(), &req, claims.EmailVerified)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func uploadProfilePhotoHandler(profileSvc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profile/photo")
		defer span.End()

		body, contentType, err := readUpload(w, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		defer body.Close()

		resp, err := profileSvc.UploadPhoto(ctx, UserIDFromContext(ctx), contentType, body)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
