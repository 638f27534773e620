// Package identity talks to the Firebase Identity Toolkit REST API for the
// end-user auth flows and to the Admin SDK for privileged operations.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"

	"firebase.google.com/go/v4/auth"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("identity")

const service = "identity"

// AdminAuth is the subset of the Admin SDK auth client used here.
// *auth.Client satisfies it.
type AdminAuth interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

// Client implements port.IdentityProvider on top of Firebase Auth.
type Client struct {
	httpClient *http.Client
	toolkitURL string
	tokenURL   string
	apiKey     string
	admin      AdminAuth
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates an identity client. admin may be nil, in which case
// LookupUser, RevokeSessions and DeleteUser fail with ErrExternalService.
func NewClient(httpClient *http.Client, toolkitURL, tokenURL, apiKey string, admin AdminAuth, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		toolkitURL: strings.TrimRight(toolkitURL, "/"),
		tokenURL:   strings.TrimRight(tokenURL, "/"),
		apiKey:     apiKey,
		admin:      admin,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// apiError is the error envelope returned by both Google endpoints:
// {"error": {"code": 400, "message": "EMAIL_EXISTS"}}.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doPost sends body to endpoint and decodes the answer into out.
// A JSON body is encoded from payload unless form is set.
func (c *Client) doPost(ctx context.Context, endpoint string, payload any, form url.Values, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if form != nil {
		reader = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		raw, err := json.Marshal(payload)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	target := endpoint + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		c.logger.Error("identity: failed to create request", zap.String("endpoint", endpoint), zap.Error(err))
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("identity: request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("identity: failed to read response body", zap.String("endpoint", endpoint), zap.Error(err))
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Message: string(body)}
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			apiErr.Message = env.Error.Message
			code, _, _ := strings.Cut(env.Error.Message, " ")
			apiErr.Code = code
		}
		c.logger.Warn("identity: non-2xx response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		// 4xx answers are final; 429 and 5xx are worth another attempt.
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(apiErr)
		}
		return apiErr
	}

	c.logger.Debug("identity: request OK", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) call(ctx context.Context, fn func() error) error {
	return toDomainError(resilience.Call(ctx, c.cb, c.cfg, service, fn))
}

func (c *Client) accounts(method string) string {
	return c.toolkitURL + "/accounts:" + method
}

// toDomainError translates provider error codes into the messages shown by the app.
func toDomainError(err error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case "EMAIL_EXISTS":
		return &domain.ErrConflict{Message: "Este email já está cadastrado"}
	case "INVALID_EMAIL":
		return &domain.ErrValidation{Field: "email", Message: "Email inválido"}
	case "WEAK_PASSWORD":
		return &domain.ErrValidation{Field: "password", Message: "A senha deve ter no mínimo 6 caracteres"}
	case "MISSING_PASSWORD":
		return &domain.ErrValidation{Field: "password", Message: "A senha é obrigatória"}
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND":
		return &domain.ErrUnauthorized{Message: "Email ou senha inválidos"}
	case "USER_DISABLED":
		return &domain.ErrUnauthorized{Message: "Usuário desativado"}
	case "INVALID_IDP_RESPONSE":
		return &domain.ErrUnauthorized{Message: "Token do Google inválido"}
	case "TOKEN_EXPIRED", "INVALID_ID_TOKEN", "INVALID_REFRESH_TOKEN", "MISSING_REFRESH_TOKEN",
		"INVALID_GRANT_TYPE", "USER_NOT_FOUND", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return &domain.ErrUnauthorized{Message: "Sessão expirada. Faça login novamente"}
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return &domain.ErrRateLimited{Action: "identity"}
	}
	return &domain.ErrExternalService{Service: service, Err: apiErr}
}

// --- Sign-up / sign-in ---

type tokenResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
	IsNewUser     bool   `json:"isNewUser"`
}

func (r *tokenResponse) session() *domain.AuthSession {
	return &domain.AuthSession{
		UID:           r.LocalID,
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		PhotoURL:      r.PhotoURL,
		EmailVerified: r.EmailVerified,
		IDToken:       r.IDToken,
		RefreshToken:  r.RefreshToken,
		ExpiresIn:     parseSeconds(r.ExpiresIn),
		IsNewUser:     r.IsNewUser,
	}
}

// SignUp creates an email/password account.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignUp")
	defer span.End()

	var out tokenResponse
	err := c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("signUp"), map[string]any{
			"email":             email,
			"password":          password,
			"returnSecureToken": true,
		}, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	sess := out.session()
	sess.IsNewUser = true
	span.SetAttributes(attribute.String("user.id", sess.UID))
	return sess, nil
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignIn")
	defer span.End()

	var out tokenResponse
	err := c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("signInWithPassword"), map[string]any{
			"email":             email,
			"password":          password,
			"returnSecureToken": true,
		}, nil, &out)
	})
	if err != nil {
		return nil, err
	}

	// signInWithPassword does not report emailVerified.
	sess := out.session()
	if err := c.fillFromLookup(ctx, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID))
	return sess, nil
}

// SignInWithGoogle exchanges a Google ID token for a provider session.
func (c *Client) SignInWithGoogle(ctx context.Context, googleIDToken string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignInWithGoogle")
	defer span.End()

	postBody := url.Values{}
	postBody.Set("id_token", googleIDToken)
	postBody.Set("providerId", "google.com")

	var out tokenResponse
	err := c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("signInWithIdp"), map[string]any{
			"postBody":            postBody.Encode(),
			"requestUri":          "http://localhost",
			"returnIdpCredential": true,
			"returnSecureToken":   true,
		}, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	sess := out.session()
	span.SetAttributes(
		attribute.String("user.id", sess.UID),
		attribute.Bool("user.new", sess.IsNewUser),
	)
	return sess, nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Refresh exchanges a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.AuthSession, error) {
	ctx, span := tracer.Start(ctx, "Identity.Refresh")
	defer span.End()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var out refreshResponse
	err := c.call(ctx, func() error {
		return c.doPost(ctx, c.tokenURL+"/token", nil, form, &out)
	})
	if err != nil {
		return nil, err
	}

	sess := &domain.AuthSession{
		UID:          out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    parseSeconds(out.ExpiresIn),
	}
	if err := c.fillFromLookup(ctx, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", sess.UID))
	return sess, nil
}

// --- Account management ---

// UpdateDisplayName sets the display name of the signed-in user.
func (c *Client) UpdateDisplayName(ctx context.Context, idToken, name string) error {
	ctx, span := tracer.Start(ctx, "Identity.UpdateDisplayName")
	defer span.End()

	return c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("update"), map[string]any{
			"idToken":           idToken,
			"displayName":       name,
			"returnSecureToken": false,
		}, nil, nil)
	})
}

// SendEmailVerification sends the VERIFY_EMAIL message to the signed-in user.
func (c *Client) SendEmailVerification(ctx context.Context, idToken string) error {
	ctx, span := tracer.Start(ctx, "Identity.SendEmailVerification")
	defer span.End()

	return c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("sendOobCode"), map[string]any{
			"requestType": "VERIFY_EMAIL",
			"idToken":     idToken,
		}, nil, nil)
	})
}

// SendPasswordReset sends the PASSWORD_RESET message. Unknown addresses
// are reported as success so the endpoint does not disclose accounts.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "Identity.SendPasswordReset")
	defer span.End()

	err := resilience.Call(ctx, c.cb, c.cfg, service, func() error {
		return c.doPost(ctx, c.accounts("sendOobCode"), map[string]any{
			"requestType": "PASSWORD_RESET",
			"email":       email,
		}, nil, nil)
	})
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == "EMAIL_NOT_FOUND" {
		c.logger.Debug("identity: password reset for unknown email", zap.String("email", domain.MaskEmail(email)))
		return nil
	}
	return toDomainError(err)
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		EmailVerified bool   `json:"emailVerified"`
		Disabled      bool   `json:"disabled"`
	} `json:"users"`
}

// fillFromLookup completes sess with the account data behind its ID token.
func (c *Client) fillFromLookup(ctx context.Context, sess *domain.AuthSession) error {
	var out lookupResponse
	err := c.call(ctx, func() error {
		return c.doPost(ctx, c.accounts("lookup"), map[string]any{"idToken": sess.IDToken}, nil, &out)
	})
	if err != nil {
		return err
	}
	if len(out.Users) == 0 {
		return &domain.ErrUnauthorized{Message: "Sessão expirada. Faça login novamente"}
	}

	u := out.Users[0]
	if u.Disabled {
		return &domain.ErrUnauthorized{Message: "Usuário desativado"}
	}
	if sess.UID == "" {
		sess.UID = u.LocalID
	}
	sess.Email = u.Email
	sess.EmailVerified = u.EmailVerified
	if u.DisplayName != "" {
		sess.DisplayName = u.DisplayName
	}
	if u.PhotoURL != "" {
		sess.PhotoURL = u.PhotoURL
	}
	return nil
}

// LookupUser reloads the account through the Admin SDK.
func (c *Client) LookupUser(ctx context.Context, uid string) (*domain.AuthUser, error) {
	ctx, span := tracer.Start(ctx, "Identity.LookupUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	if c.admin == nil {
		return nil, errNoAdmin
	}

	var rec *auth.UserRecord
	err := resilience.Call(ctx, c.cb, c.cfg, service, func() error {
		var err error
		rec, err = c.admin.GetUser(ctx, uid)
		if auth.IsUserNotFound(err) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: uid})
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	u := &domain.AuthUser{
		UID:           uid,
		EmailVerified: rec.EmailVerified,
		Disabled:      rec.Disabled,
	}
	if rec.UserInfo != nil {
		u.Email = rec.Email
		u.DisplayName = rec.DisplayName
		u.PhotoURL = rec.PhotoURL
	}
	return u, nil
}

// RevokeSessions invalidates every refresh token of uid.
func (c *Client) RevokeSessions(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Identity.RevokeSessions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	if c.admin == nil {
		return errNoAdmin
	}
	return resilience.Call(ctx, c.cb, c.cfg, service, func() error {
		return c.admin.RevokeRefreshTokens(ctx, uid)
	})
}

// DeleteUser removes the account. Deleting a missing account is not an error.
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Identity.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	if c.admin == nil {
		return errNoAdmin
	}
	return resilience.Call(ctx, c.cb, c.cfg, service, func() error {
		if err := c.admin.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
			return err
		}
		return nil
	})
}

var errNoAdmin = &domain.ErrExternalService{Service: service, Err: errors.New("admin SDK not configured")}

func parseSeconds(s string) time.Duration {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return time.Hour
	}
	return time.Duration(n) * time.Second
}
