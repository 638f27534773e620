package domain

import (
	"strings"
	"time"
)

// ============================================================
// Auth: Request / Response types
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	PhotoURL string `json:"photoURL,omitempty" validate:"omitempty,url"`
}

// Normalize trims the form fields in place.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims the form fields in place.
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

// GoogleLoginRequest is the body for POST /v1/auth/google.
type GoogleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// RefreshRequest is the body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// PasswordResetRequest is the body for POST /v1/auth/password/reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SessionResponse is returned by every flow that signs a user in.
type SessionResponse struct {
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     int    `json:"expiresIn"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// VerificationStatus is returned by GET /v1/auth/me.
// AccessToken is set when the verification state changed and a new
// token carrying it was issued.
type VerificationStatus struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
	AccessToken   string `json:"accessToken,omitempty"`
	ExpiresIn     int    `json:"expiresIn,omitempty"`
}

// ============================================================
// Identity provider results
// ============================================================

// AuthSession is what the identity provider returns when a user signs in.
type AuthSession struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
	IDToken       string
	RefreshToken  string
	ExpiresIn     time.Duration
	IsNewUser     bool
}

// AuthUser is the identity provider's view of an account.
type AuthUser struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
	Disabled      bool
}
