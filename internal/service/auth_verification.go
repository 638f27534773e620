package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Resend verification: POST /v1/auth/email/verification
// ============================================================

// ResendVerification sends another VERIFY_EMAIL message. Requests inside the
// cooldown window answer ErrRateLimited with the remaining wait.
func (s *AuthService) ResendVerification(ctx context.Context, uid string) (err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ResendVerification")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))
	defer func() { s.record("resend_verification", err) }()

	now := s.now()
	if last, ok := s.cooldowns.Get(uid); ok {
		if wait := s.cooldown - now.Sub(last); wait > 0 {
			return &domain.ErrRateLimited{Action: "resend_verification", RetryAfter: wait}
		}
	}

	idToken, ok := s.idTokens.Get(uid)
	if !ok {
		return &domain.ErrUnauthorized{Message: "Sessão expirada. Faça login novamente"}
	}

	if err := s.idp.SendEmailVerification(ctx, idToken); err != nil {
		s.logger.Warn("resend verification failed", zap.String("user_id", uid), zap.Error(err))
		return err
	}
	s.cooldowns.Set(uid, now)

	s.logger.Info("verification email sent", zap.String("user_id", uid))
	return nil
}

// ============================================================
// Me: GET /v1/auth/me
// ============================================================

// Me reloads the provider user and reports its verification state. When it
// differs from the state carried by the caller's token a new access token is
// issued.
func (s *AuthService) Me(ctx context.Context, claims *AccessClaims) (*domain.VerificationStatus, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Me")
	defer span.End()
	uid := claims.UserID()
	span.SetAttributes(attribute.String("user.id", uid))

	u, err := s.idp.LookupUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if u.Disabled {
		return nil, &domain.ErrUnauthorized{Message: "Usuário desativado"}
	}

	name := s.profileName(ctx, uid)
	if name == "" {
		name = u.DisplayName
	}
	out := &domain.VerificationStatus{
		UserID:        uid,
		Email:         u.Email,
		Name:          name,
		EmailVerified: u.EmailVerified,
	}

	if u.EmailVerified != claims.EmailVerified {
		token, err := s.signAccessToken(uid, u.Email, u.EmailVerified)
		if err != nil {
			return nil, err
		}
		out.AccessToken = token
		out.ExpiresIn = int(s.accessTTL.Seconds())
		s.logger.Info("verification state changed",
			zap.String("user_id", uid),
			zap.Bool("email_verified", u.EmailVerified),
		)
	}
	return out, nil
}
