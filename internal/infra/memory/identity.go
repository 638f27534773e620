package memory

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = time.Hour

type account struct {
	uid           string
	email         string
	passwordHash  []byte
	displayName   string
	photoURL      string
	emailVerified bool
	disabled      bool
}

// IdentityProvider implements port.IdentityProvider in memory.
// Passwords are stored as bcrypt hashes. Google ID tokens are trusted
// without signature verification, so it must never face real users.
type IdentityProvider struct {
	mu            sync.Mutex
	cost          int
	accounts      map[string]*account // uid -> account
	byEmail       map[string]string   // lower(email) -> uid
	idTokens      map[string]string   // token -> uid
	refreshTokens map[string]string   // token -> uid

	verificationsSent map[string]int
	resetsSent        map[string]int
}

// NewIdentityProvider creates a provider hashing passwords with the given
// bcrypt cost (bcrypt.DefaultCost when cost <= 0).
func NewIdentityProvider(cost int) *IdentityProvider {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &IdentityProvider{
		cost:              cost,
		accounts:          make(map[string]*account),
		byEmail:           make(map[string]string),
		idTokens:          make(map[string]string),
		refreshTokens:     make(map[string]string),
		verificationsSent: make(map[string]int),
		resetsSent:        make(map[string]int),
	}
}

func (p *IdentityProvider) SignUp(_ context.Context, email, password string) (*domain.AuthSession, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &domain.ErrValidation{Field: "email", Message: "Email inválido"}
	}
	if len(password) < 6 {
		return nil, &domain.ErrValidation{Field: "password", Message: "A senha deve ter no mínimo 6 caracteres"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := p.byEmail[key]; exists {
		return nil, &domain.ErrConflict{Message: "Este email já está cadastrado"}
	}

	acc := &account{uid: uuid.New().String(), email: email, passwordHash: hash}
	p.accounts[acc.uid] = acc
	p.byEmail[key] = acc.uid

	sess := p.newSessionLocked(acc)
	sess.IsNewUser = true
	return sess, nil
}

func (p *IdentityProvider) SignIn(_ context.Context, email, password string) (*domain.AuthSession, error) {
	p.mu.Lock()
	acc := p.accountByEmailLocked(email)
	p.mu.Unlock()

	invalid := &domain.ErrUnauthorized{Message: "Email ou senha inválidos"}
	if acc == nil || acc.passwordHash == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, invalid
	}
	if acc.disabled {
		return nil, &domain.ErrUnauthorized{Message: "Usuário desativado"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newSessionLocked(acc), nil
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// SignInWithGoogle reads the claims of the Google ID token and signs the
// matching account in, creating it on first use.
func (p *IdentityProvider) SignInWithGoogle(_ context.Context, googleIDToken string) (*domain.AuthSession, error) {
	claims := &googleClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(googleIDToken, claims); err != nil || claims.Email == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token do Google inválido"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc := p.accountByEmailLocked(claims.Email)
	isNew := acc == nil
	if isNew {
		acc = &account{
			uid:           uuid.New().String(),
			email:         claims.Email,
			displayName:   claims.Name,
			photoURL:      claims.Picture,
			emailVerified: claims.EmailVerified,
		}
		p.accounts[acc.uid] = acc
		p.byEmail[strings.ToLower(claims.Email)] = acc.uid
	}
	if acc.disabled {
		return nil, &domain.ErrUnauthorized{Message: "Usuário desativado"}
	}

	sess := p.newSessionLocked(acc)
	sess.IsNewUser = isNew
	return sess, nil
}

func (p *IdentityProvider) Refresh(_ context.Context, refreshToken string) (*domain.AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, ok := p.refreshTokens[refreshToken]
	acc := p.accounts[uid]
	if !ok || acc == nil || acc.disabled {
		return nil, &domain.ErrUnauthorized{Message: "Sessão expirada. Faça login novamente"}
	}
	delete(p.refreshTokens, refreshToken)
	return p.newSessionLocked(acc), nil
}

func (p *IdentityProvider) UpdateDisplayName(_ context.Context, idToken, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, err := p.accountByIDTokenLocked(idToken)
	if err != nil {
		return err
	}
	acc.displayName = name
	return nil
}

func (p *IdentityProvider) SendEmailVerification(_ context.Context, idToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, err := p.accountByIDTokenLocked(idToken)
	if err != nil {
		return err
	}
	p.verificationsSent[acc.uid]++
	return nil
}

// SendPasswordReset records the request. Unknown addresses succeed silently.
func (p *IdentityProvider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if acc := p.accountByEmailLocked(email); acc != nil {
		p.resetsSent[acc.uid]++
	}
	return nil
}

func (p *IdentityProvider) LookupUser(_ context.Context, uid string) (*domain.AuthUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	return &domain.AuthUser{
		UID:           acc.uid,
		Email:         acc.email,
		DisplayName:   acc.displayName,
		PhotoURL:      acc.photoURL,
		EmailVerified: acc.emailVerified,
		Disabled:      acc.disabled,
	}, nil
}

func (p *IdentityProvider) RevokeSessions(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for token, owner := range p.refreshTokens {
		if owner == uid {
			delete(p.refreshTokens, token)
		}
	}
	for token, owner := range p.idTokens {
		if owner == uid {
			delete(p.idTokens, token)
		}
	}
	return nil
}

func (p *IdentityProvider) DeleteUser(ctx context.Context, uid string) error {
	p.RevokeSessions(ctx, uid)

	p.mu.Lock()
	defer p.mu.Unlock()

	if acc, ok := p.accounts[uid]; ok {
		delete(p.byEmail, strings.ToLower(acc.email))
		delete(p.accounts, uid)
	}
	return nil
}

// MarkEmailVerified flags the account as verified, standing in for the
// link sent by SendEmailVerification.
func (p *IdentityProvider) MarkEmailVerified(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[uid]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	acc.emailVerified = true
	return nil
}

// VerificationsSent returns how many verification emails uid received.
func (p *IdentityProvider) VerificationsSent(uid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verificationsSent[uid]
}

// PasswordResetsSent returns how many reset emails uid received.
func (p *IdentityProvider) PasswordResetsSent(uid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetsSent[uid]
}

func (p *IdentityProvider) accountByEmailLocked(email string) *account {
	uid, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil
	}
	return p.accounts[uid]
}

func (p *IdentityProvider) accountByIDTokenLocked(idToken string) (*account, error) {
	uid, ok := p.idTokens[idToken]
	acc := p.accounts[uid]
	if !ok || acc == nil {
		return nil, &domain.ErrUnauthorized{Message: "Sessão expirada. Faça login novamente"}
	}
	return acc, nil
}

func (p *IdentityProvider) newSessionLocked(acc *account) *domain.AuthSession {
	idToken := uuid.New().String()
	refreshToken := uuid.New().String()
	p.idTokens[idToken] = acc.uid
	p.refreshTokens[refreshToken] = acc.uid

	return &domain.AuthSession{
		UID:           acc.uid,
		Email:         acc.email,
		DisplayName:   acc.displayName,
		PhotoURL:      acc.photoURL,
		EmailVerified: acc.emailVerified,
		IDToken:       idToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     sessionTTL,
	}
}
