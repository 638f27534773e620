// Package service provides the business logic layer (use cases): auth,
// profile, transactions, reports and dev tools.
package service

import (
	"context"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// pageInvalidator drops per-user cached state on logout.
type pageInvalidator interface {
	Invalidate(uid string)
}

// AuthService orchestrates the sign-in flows against the identity provider
// and issues the BFA access tokens. The provider ID token stays server-side
// in idTokens, keyed by uid. revoked holds the access tokens ended by
// Logout until they would have expired anyway.
type AuthService struct {
	idp       port.IdentityProvider
	users     port.UserStore
	pages     pageInvalidator
	idTokens  port.Cache[string]
	cooldowns port.Cache[time.Time]
	revoked   port.Cache[time.Time]

	jwtSecret []byte
	accessTTL time.Duration
	cooldown  time.Duration

	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService creates the auth service. cooldowns should expire entries
// after the verification cooldown and revoked no sooner than accessTTL.
func NewAuthService(
	idp port.IdentityProvider,
	users port.UserStore,
	pages pageInvalidator,
	idTokens port.Cache[string],
	cooldowns port.Cache[time.Time],
	revoked port.Cache[time.Time],
	jwtSecret string,
	accessTTL, cooldown time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		idp:       idp,
		users:     users,
		pages:     pages,
		idTokens:  idTokens,
		cooldowns: cooldowns,
		revoked:   revoked,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		cooldown:  cooldown,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for cooldowns and token timestamps.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// startSession caches the provider ID token and issues the BFA tokens.
func (s *AuthService) startSession(sess *domain.AuthSession, name string) (*domain.SessionResponse, error) {
	if sess.IDToken != "" {
		s.idTokens.Set(sess.UID, sess.IDToken)
	}

	access, err := s.signAccessToken(sess.UID, sess.Email, sess.EmailVerified)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = sess.DisplayName
	}
	return &domain.SessionResponse{
		AccessToken:   access,
		RefreshToken:  sess.RefreshToken,
		ExpiresIn:     int(s.accessTTL.Seconds()),
		UserID:        sess.UID,
		Name:          name,
		Email:         sess.Email,
		EmailVerified: sess.EmailVerified,
	}, nil
}

// profileName returns the stored profile name, or "" when it cannot be read.
func (s *AuthService) profileName(ctx context.Context, uid string) string {
	u, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return ""
	}
	return u.Name
}

func (s *AuthService) record(flow string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.IncrAuthEvent(flow, outcome)
}
