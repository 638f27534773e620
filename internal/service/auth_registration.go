package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

// Register creates the provider account, names it, sends the verification
// email and writes the profile document. When the account cannot be
// completed the provider user is deleted again.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (resp *domain.SessionResponse, err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()
	defer func() { s.record("register", err) }()

	req.Normalize()
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.idp.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("register: sign up rejected",
			zap.String("email", domain.MaskEmail(req.Email)),
			zap.Error(err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID))

	if err := s.idp.UpdateDisplayName(ctx, sess.IDToken, req.Name); err != nil {
		s.abandon(ctx, sess.UID, "update display name", err)
		return nil, fmt.Errorf("update display name: %w", err)
	}
	sess.DisplayName = req.Name

	if err := s.idp.SendEmailVerification(ctx, sess.IDToken); err != nil {
		// The user can ask for another email from the verification screen.
		s.logger.Warn("register: verification email not sent",
			zap.String("user_id", sess.UID),
			zap.Error(err),
		)
	} else {
		s.cooldowns.Set(sess.UID, s.now())
	}

	profile := &domain.User{
		ID:       sess.UID,
		Name:     req.Name,
		Email:    sess.Email,
		PhotoURL: req.PhotoURL,
	}
	if err := s.users.CreateUser(ctx, sess.UID, profile); err != nil {
		s.abandon(ctx, sess.UID, "create profile", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", sess.UID),
		zap.String("email", domain.MaskEmail(sess.Email)),
	)
	return s.startSession(sess, req.Name)
}

// abandon deletes the profile and the provider account of a registration
// that could not finish. A failed profile write may still have committed.
func (s *AuthService) abandon(ctx context.Context, uid, step string, cause error) {
	s.logger.Error("register: abandoning account",
		zap.String("user_id", uid),
		zap.String("step", step),
		zap.Error(cause),
	)
	if err := s.users.DeleteUser(ctx, uid); err != nil {
		s.logger.Warn("register: profile cleanup failed",
			zap.String("user_id", uid),
			zap.Error(err),
		)
	}
	if err := s.idp.DeleteUser(ctx, uid); err != nil {
		s.logger.Error("register: cleanup failed, orphan provider account",
			zap.String("user_id", uid),
			zap.Error(err),
		)
	}
}
