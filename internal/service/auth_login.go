package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (resp *domain.SessionResponse, err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()
	defer func() { s.record("login", err) }()

	req.Normalize()
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.idp.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("login failed",
			zap.String("email", domain.MaskEmail(req.Email)),
			zap.Error(err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID))

	s.logger.Info("user logged in", zap.String("user_id", sess.UID))
	return s.startSession(sess, s.profileName(ctx, sess.UID))
}

// ============================================================
// Google: POST /v1/auth/google
// ============================================================

// LoginWithGoogle signs in with a Google ID token and creates the profile
// document the first time the account is seen.
func (s *AuthService) LoginWithGoogle(ctx context.Context, req *domain.GoogleLoginRequest) (resp *domain.SessionResponse, err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.LoginWithGoogle")
	defer span.End()
	defer func() { s.record("google", err) }()

	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.idp.SignInWithGoogle(ctx, req.IDToken)
	if err != nil {
		s.logger.Warn("google sign-in failed", zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID), attribute.Bool("user.new", sess.IsNewUser))

	profile, err := s.users.GetUser(ctx, sess.UID)
	var nf *domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		profile = &domain.User{
			ID:       sess.UID,
			Name:     sess.DisplayName,
			Email:    sess.Email,
			PhotoURL: sess.PhotoURL,
		}
		if err := s.users.CreateUser(ctx, sess.UID, profile); err != nil {
			if sess.IsNewUser {
				s.abandon(ctx, sess.UID, "create profile", err)
			}
			return nil, fmt.Errorf("create profile: %w", err)
		}
		s.logger.Info("profile created from google account", zap.String("user_id", sess.UID))
	case err != nil:
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return s.startSession(sess, profile.Name)
}

// ============================================================
// Logout: POST /v1/auth/logout
// ============================================================

// Logout revokes the provider refresh tokens and forgets the cached session
// state. The presented access token and every token issued to the user
// before the current second stop validating. Local state is cleared even
// when revocation fails.
func (s *AuthService) Logout(ctx context.Context, claims *AccessClaims) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()
	uid := claims.UserID()
	span.SetAttributes(attribute.String("user.id", uid))

	s.revoke(claims)
	s.idTokens.Delete(uid)
	s.cooldowns.Delete(uid)
	if s.pages != nil {
		s.pages.Invalidate(uid)
	}

	err := s.idp.RevokeSessions(ctx, uid)
	s.record("logout", err)
	if err != nil {
		s.logger.Warn("logout: revoke failed", zap.String("user_id", uid), zap.Error(err))
		return err
	}

	s.logger.Info("user logged out", zap.String("user_id", uid))
	return nil
}
