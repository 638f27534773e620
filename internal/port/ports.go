// Package port defines the interfaces (ports) that decouple the service layer
// from the external backends: identity provider, document store, object
// storage and event bus.
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
)

// --- Identity provider ---

// IdentityProvider wraps the external authentication service.
// Sign-in methods return the provider session; the BFA issues its own
// access token on top of it.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*domain.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*domain.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthSession, error)
	UpdateDisplayName(ctx context.Context, idToken, name string) error
	SendEmailVerification(ctx context.Context, idToken string) error
	SendPasswordReset(ctx context.Context, email string) error
	LookupUser(ctx context.Context, uid string) (*domain.AuthUser, error)
	RevokeSessions(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

// --- Document store ---

// TransactionStore persists transactions under users/{uid}/transactions.
type TransactionStore interface {
	AddTransaction(ctx context.Context, uid string, tx *domain.Transaction) (string, error)
	UpdateTransaction(ctx context.Context, uid string, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, uid, id string) error
	GetTransaction(ctx context.Context, uid, id string) (*domain.Transaction, error)
	// ListTransactionsBetween returns transactions with from <= date <= to, newest first.
	ListTransactionsBetween(ctx context.Context, uid string, from, to time.Time) ([]domain.Transaction, error)
	// OldestTransactionDate returns nil when the user has no transactions.
	OldestTransactionDate(ctx context.Context, uid string) (*time.Time, error)
}

// UserStore persists profile documents at users/{uid}.
type UserStore interface {
	CreateUser(ctx context.Context, uid string, u *domain.User) error
	GetUser(ctx context.Context, uid string) (*domain.User, error)
	UpdateUser(ctx context.Context, uid string, u *domain.User) error
	DeleteUser(ctx context.Context, uid string) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// --- Object storage ---

// ObjectStorage stores uploaded photos and returns a retrievable URL.
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	// PathOf returns the object path behind a URL returned by Upload.
	// URLs from elsewhere, such as a Google profile picture, report false.
	PathOf(url string) (string, bool)
}

// --- Events ---

// EventPublisher publishes transaction lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.TransactionEvent) error
}

// --- Cache ---

// Cache defines a generic TTL cache interface.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
