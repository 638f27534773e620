package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Refresh: POST /v1/auth/refresh
// ============================================================

// Refresh exchanges the provider refresh token and re-issues the access
// token with the current verification state.
func (s *AuthService) Refresh(ctx context.Context, req *domain.RefreshRequest) (resp *domain.SessionResponse, err error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()
	defer func() { s.record("refresh", err) }()

	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.idp.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID))

	return s.startSession(sess, s.profileName(ctx, sess.UID))
}

// ============================================================
// ValidateAccessToken: used by JWTAuthMiddleware
// ============================================================

const accessTokenType = "access"

// AccessClaims are the claims of a BFA access token. Subject is the uid.
type AccessClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Type          string `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the uid the token was issued to.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != accessTokenType {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	if s.isRevoked(claims) {
		return nil, &domain.ErrUnauthorized{Message: "Sessão encerrada"}
	}
	return claims, nil
}

func revokedTokenKey(id string) string { return "jti:" + id }
func revokedUserKey(uid string) string { return "uid:" + uid }

// revoke denies the token in claims and every token of its user issued
// in an earlier second. iat only has second precision, so tokens from
// the logout second itself are matched by ID.
func (s *AuthService) revoke(claims *AccessClaims) {
	now := s.now()
	if claims.ID != "" {
		s.revoked.Set(revokedTokenKey(claims.ID), now)
	}
	s.revoked.Set(revokedUserKey(claims.UserID()), now.Truncate(time.Second))
}

func (s *AuthService) isRevoked(claims *AccessClaims) bool {
	if claims.ID != "" {
		if _, ok := s.revoked.Get(revokedTokenKey(claims.ID)); ok {
			return true
		}
	}
	cutoff, ok := s.revoked.Get(revokedUserKey(claims.UserID()))
	return ok && (claims.IssuedAt == nil || claims.IssuedAt.Time.Before(cutoff))
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (s *AuthService) signAccessToken(uid, email string, verified bool) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Email:         email,
		EmailVerified: verified,
		Type:          accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "finance-tracker-bfa",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}
