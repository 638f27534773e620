package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

// --- Mocks ---

// failingUsers commits profile writes but reports them as failed, as when
// the response is lost. Everything else is delegated.
type failingUsers struct {
	port.UserStore
	created []string
}

func (f *failingUsers) CreateUser(ctx context.Context, uid string, u *domain.User) error {
	f.UserStore.CreateUser(ctx, uid, u)
	f.created = append(f.created, uid)
	return &domain.ErrExternalService{Service: "firestore/users", Err: errors.New("unavailable")}
}

type countingInvalidator struct {
	uids []string
}

func (c *countingInvalidator) Invalidate(uid string) {
	c.uids = append(c.uids, uid)
}

// --- Fixture ---

type authFixture struct {
	svc   *service.AuthService
	idp   *memory.IdentityProvider
	store *memory.Store
	pages *countingInvalidator
	now   time.Time
}

func newAuthFixture(t *testing.T, users port.UserStore) *authFixture {
	t.Helper()

	idTokens := cache.New[string](time.Hour)
	cooldowns := cache.New[time.Time](time.Hour)
	revoked := cache.New[time.Time](time.Hour)
	t.Cleanup(idTokens.Close)
	t.Cleanup(cooldowns.Close)
	t.Cleanup(revoked.Close)

	f := &authFixture{
		idp:   memory.NewIdentityProvider(bcrypt.MinCost),
		store: memory.NewStore(),
		pages: &countingInvalidator{},
		now:   fixedNow,
	}
	if users == nil {
		users = f.store
	}
	f.svc = service.NewAuthService(
		f.idp,
		users,
		f.pages,
		idTokens,
		cooldowns,
		revoked,
		"test-secret",
		15*time.Minute,
		60*time.Second,
		observability.NewMetrics(),
		zap.NewNop(),
	)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *authFixture) register(t *testing.T) *domain.SessionResponse {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), &domain.RegisterRequest{
		Name:     "Ana",
		Email:    " ana@example.com ",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return sess
}

// --- Tests ---

func TestRegister_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)

	if sess.Email != "ana@example.com" || sess.Name != "Ana" || sess.EmailVerified {
		t.Errorf("unexpected session %+v", sess)
	}
	if sess.ExpiresIn != 900 {
		t.Errorf("expected 900s expiry, got %d", sess.ExpiresIn)
	}

	claims, err := f.svc.ValidateAccessToken(sess.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID() != sess.UserID || claims.EmailVerified {
		t.Errorf("unexpected claims %+v", claims)
	}

	profile, err := f.store.GetUser(context.Background(), sess.UserID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if profile.Name != "Ana" || profile.Email != "ana@example.com" {
		t.Errorf("unexpected profile %+v", profile)
	}
	if n := f.idp.VerificationsSent(sess.UserID); n != 1 {
		t.Errorf("expected one verification email, got %d", n)
	}
}

func TestRegister_ProfileFailureDeletesAccount(t *testing.T) {
	users := &failingUsers{UserStore: memory.NewStore()}
	f := newAuthFixture(t, users)

	_, err := f.svc.Register(context.Background(), &domain.RegisterRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "secret1",
	})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	_, err = f.idp.SignIn(context.Background(), "ana@example.com", "secret1")
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Errorf("expected the provider account to be removed, got %v", err)
	}

	if len(users.created) != 1 {
		t.Fatalf("expected one profile write, got %v", users.created)
	}
	_, err = users.GetUser(context.Background(), users.created[0])
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected the half-written profile to be removed, got %v", err)
	}
}

func TestRegister_Errors(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.register(t)

	tests := []struct {
		name  string
		req   domain.RegisterRequest
		check func(error) bool
	}{
		{"duplicate email", domain.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"}, func(err error) bool {
			var e *domain.ErrConflict
			return errors.As(err, &e)
		}},
		{"missing name", domain.RegisterRequest{Email: "bia@example.com", Password: "secret1"}, func(err error) bool {
			var e *domain.ErrValidation
			return errors.As(err, &e) && e.Message == "O nome é obrigatório"
		}},
		{"bad email", domain.RegisterRequest{Name: "Bia", Email: "bia", Password: "secret1"}, func(err error) bool {
			var e *domain.ErrValidation
			return errors.As(err, &e) && e.Field == "email"
		}},
		{"short password", domain.RegisterRequest{Name: "Bia", Email: "bia@example.com", Password: "123"}, func(err error) bool {
			var e *domain.ErrValidation
			return errors.As(err, &e) && e.Field == "password"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Register(context.Background(), &req)
			if !tt.check(err) {
				t.Errorf("unexpected error %T %v", err, err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, nil)
	reg := f.register(t)
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.UserID != reg.UserID || sess.Name != "Ana" {
		t.Errorf("unexpected session %+v", sess)
	}

	// the app sends the fields as typed
	padded, err := f.svc.Login(ctx, &domain.LoginRequest{Email: " ana@example.com ", Password: " secret1 "})
	if err != nil {
		t.Fatalf("login with padded input: %v", err)
	}
	if padded.UserID != reg.UserID {
		t.Errorf("expected %s, got %s", reg.UserID, padded.UserID)
	}

	_, err = f.svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) || unauth.Message != "Email ou senha inválidos" {
		t.Errorf("expected invalid credentials, got %v", err)
	}
}

func TestResendVerification_Cooldown(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)
	ctx := context.Background()

	err := f.svc.ResendVerification(ctx, sess.UserID)
	var rl *domain.ErrRateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimited right after register, got %v", err)
	}
	if rl.RetryAfter != 60*time.Second {
		t.Errorf("expected 60s wait, got %v", rl.RetryAfter)
	}

	f.now = f.now.Add(61 * time.Second)
	if err := f.svc.ResendVerification(ctx, sess.UserID); err != nil {
		t.Fatalf("expected resend after cooldown, got %v", err)
	}
	if n := f.idp.VerificationsSent(sess.UserID); n != 2 {
		t.Errorf("expected 2 verification emails, got %d", n)
	}

	f.now = f.now.Add(10 * time.Second)
	if err := f.svc.ResendVerification(ctx, sess.UserID); !errors.As(err, &rl) {
		t.Errorf("expected cooldown to restart, got %v", err)
	}
}

func TestMe_ReissuesTokenWhenVerified(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)
	ctx := context.Background()

	claims, err := f.svc.ValidateAccessToken(sess.AccessToken)
	if err != nil {
		t.Fatal(err)
	}

	status, err := f.svc.Me(ctx, claims)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if status.EmailVerified || status.AccessToken != "" {
		t.Errorf("expected unchanged state, got %+v", status)
	}

	if err := f.idp.MarkEmailVerified(ctx, sess.UserID); err != nil {
		t.Fatal(err)
	}
	status, err = f.svc.Me(ctx, claims)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if !status.EmailVerified || status.AccessToken == "" {
		t.Fatalf("expected a re-issued token, got %+v", status)
	}

	fresh, err := f.svc.ValidateAccessToken(status.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.EmailVerified {
		t.Error("expected the new token to carry email_verified")
	}
}

func TestRefreshAndLogout(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)
	ctx := context.Background()

	refreshed, err := f.svc.Refresh(ctx, &domain.RefreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == sess.RefreshToken {
		t.Error("expected the refresh token to rotate")
	}

	claims, err := f.svc.ValidateAccessToken(sess.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Logout(ctx, claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(f.pages.uids) != 1 || f.pages.uids[0] != sess.UserID {
		t.Errorf("expected month page invalidated, got %v", f.pages.uids)
	}

	var unauth *domain.ErrUnauthorized
	if _, err := f.svc.Refresh(ctx, &domain.RefreshRequest{RefreshToken: refreshed.RefreshToken}); !errors.As(err, &unauth) {
		t.Errorf("expected revoked refresh token, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, sess.UserID); !errors.As(err, &unauth) {
		t.Errorf("expected missing provider session, got %v", err)
	}
}

func TestLogout_RevokesAccessTokens(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	older := f.register(t)

	f.now = fixedNow.Add(2 * time.Second)
	current, err := f.svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := f.svc.ValidateAccessToken(current.AccessToken)
	if err != nil {
		t.Fatalf("expected a valid token before logout, got %v", err)
	}
	if err := f.svc.Logout(ctx, claims); err != nil {
		t.Fatalf("logout: %v", err)
	}

	var unauth *domain.ErrUnauthorized
	for name, token := range map[string]string{"presented": current.AccessToken, "older": older.AccessToken} {
		if _, err := f.svc.ValidateAccessToken(token); !errors.As(err, &unauth) {
			t.Errorf("%s token: expected ErrUnauthorized after logout, got %v", name, err)
		}
	}

	// a new login in the logout second still works
	again, err := f.svc.Login(ctx, &domain.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ValidateAccessToken(again.AccessToken); err != nil {
		t.Errorf("expected the new session to be valid, got %v", err)
	}
}

func TestLoginWithGoogle_CreatesProfile(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	googleToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":          "caio@example.com",
		"email_verified": true,
		"name":           "Caio",
		"picture":        "https://example.com/caio.png",
	}).SignedString([]byte("google"))
	if err != nil {
		t.Fatal(err)
	}

	sess, err := f.svc.LoginWithGoogle(ctx, &domain.GoogleLoginRequest{IDToken: googleToken})
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if !sess.EmailVerified || sess.Name != "Caio" {
		t.Errorf("unexpected session %+v", sess)
	}

	profile, err := f.store.GetUser(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if profile.PhotoURL != "https://example.com/caio.png" {
		t.Errorf("unexpected profile %+v", profile)
	}

	again, err := f.svc.LoginWithGoogle(ctx, &domain.GoogleLoginRequest{IDToken: googleToken})
	if err != nil || again.UserID != sess.UserID {
		t.Errorf("expected same account on second login, got %v %v", again, err)
	}
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)

	var unauth *domain.ErrUnauthorized
	if _, err := f.svc.ValidateAccessToken(sess.AccessToken + "x"); !errors.As(err, &unauth) {
		t.Errorf("expected tampered token rejected, got %v", err)
	}

	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.svc.ValidateAccessToken(sess.AccessToken); !errors.As(err, &unauth) {
		t.Errorf("expected expired token rejected, got %v", err)
	}
}

func TestRequestPasswordReset(t *testing.T) {
	f := newAuthFixture(t, nil)
	sess := f.register(t)
	ctx := context.Background()

	if err := f.svc.RequestPasswordReset(ctx, &domain.PasswordResetRequest{Email: "ana@example.com"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n := f.idp.PasswordResetsSent(sess.UserID); n != 1 {
		t.Errorf("expected one reset email, got %d", n)
	}
	if err := f.svc.RequestPasswordReset(ctx, &domain.PasswordResetRequest{Email: "ghost@example.com"}); err != nil {
		t.Errorf("unknown email must succeed, got %v", err)
	}
}
