package service

import (
	"context"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Password reset: POST /v1/auth/password/reset
// ============================================================

// RequestPasswordReset asks the provider to email a reset link. Unknown
// addresses are answered the same way as known ones.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req *domain.PasswordResetRequest) (err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.RequestPasswordReset")
	defer span.End()
	defer func() { s.record("password_reset", err) }()

	req.Email = strings.TrimSpace(req.Email)
	if err := domain.Validate(req); err != nil {
		return err
	}

	if err := s.idp.SendPasswordReset(ctx, req.Email); err != nil {
		s.logger.Warn("password reset failed",
			zap.String("email", domain.MaskEmail(req.Email)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("password reset requested", zap.String("email", domain.MaskEmail(req.Email)))
	return nil
}
