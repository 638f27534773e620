// Package firestore stores users and their transactions in Cloud Firestore:
// profiles at users/{uid}, transactions at users/{uid}/transactions/{id}.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("firestore")

const (
	usersCollection        = "users"
	transactionsCollection = "transactions"
)

// Store implements port.TransactionStore and port.UserStore.
type Store struct {
	client *firestore.Client
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// NewStore creates a Firestore-backed store.
func NewStore(client *firestore.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{client: client, cb: cb, cfg: cfg, logger: logger}
}

// --- Documents ---

type categoryDoc struct {
	Name string `firestore:"name"`
	Icon string `firestore:"icon"`
}

type transactionDoc struct {
	Description string      `firestore:"description"`
	Type        string      `firestore:"type"`
	Amount      float64     `firestore:"amount"`
	Date        time.Time   `firestore:"date"`
	Category    categoryDoc `firestore:"category"`
	PhotoURL    string      `firestore:"photoURL,omitempty"`
}

func toTransactionDoc(tx *domain.Transaction) transactionDoc {
	return transactionDoc{
		Description: tx.Description,
		Type:        string(tx.Type),
		Amount:      tx.Amount.InexactFloat64(),
		Date:        tx.Date.UTC(),
		Category:    categoryDoc{Name: tx.Category.Name, Icon: tx.Category.Icon},
		PhotoURL:    tx.PhotoURL,
	}
}

func (d transactionDoc) toDomain(id string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Description: d.Description,
		Type:        domain.TransactionType(d.Type),
		Amount:      decimal.NewFromFloat(d.Amount).Round(2),
		Date:        d.Date,
		Category:    domain.CategoryRef{Name: d.Category.Name, Icon: d.Category.Icon},
		PhotoURL:    d.PhotoURL,
	}
}

type userDoc struct {
	Name        string `firestore:"name"`
	Email       string `firestore:"email"`
	PhoneNumber string `firestore:"phoneNumber,omitempty"`
	PhotoURL    string `firestore:"photoURL,omitempty"`
}

// --- Helpers ---

func (s *Store) transactions(uid string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(uid).Collection(transactionsCollection)
}

func (s *Store) call(ctx context.Context, svc string, fn func() error) error {
	err := resilience.Call(ctx, s.cb, s.cfg, svc, fn)
	if err != nil {
		s.logger.Debug("firestore: call failed", zap.String("service", svc), zap.Error(err))
	}
	return err
}

// classify marks errors retrying cannot fix as permanent.
func classify(err error, svc, resource, id string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
	case codes.AlreadyExists, codes.InvalidArgument, codes.PermissionDenied, codes.FailedPrecondition, codes.Unauthenticated:
		return resilience.Permanent(&domain.ErrExternalService{Service: svc, Err: err})
	}
	return err
}

// --- Transactions ---

func (s *Store) AddTransaction(ctx context.Context, uid string, tx *domain.Transaction) (string, error) {
	ctx, span := tracer.Start(ctx, "Firestore.AddTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/transactions"
	// The id is fixed before the first attempt so retries target the same document.
	ref := s.transactions(uid).NewDoc()
	doc := toTransactionDoc(tx)
	err := s.createOnce(ctx, svc, ref.ID, func() error {
		_, err := ref.Create(ctx, doc)
		return err
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// createOnce runs create with retries. AlreadyExists after a failed attempt
// means that attempt committed before its response was lost.
func (s *Store) createOnce(ctx context.Context, svc, id string, create func() error) error {
	attempt := 0
	return s.call(ctx, svc, func() error {
		attempt++
		err := create()
		if attempt > 1 && status.Code(err) == codes.AlreadyExists {
			s.logger.Debug("firestore: create already committed", zap.String("id", id))
			return nil
		}
		return classify(err, svc, "transaction", id)
	})
}

func (s *Store) UpdateTransaction(ctx context.Context, uid string, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Firestore.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", tx.ID))

	const svc = "firestore/transactions"
	doc := toTransactionDoc(tx)
	return s.call(ctx, svc, func() error {
		_, err := s.transactions(uid).Doc(tx.ID).Update(ctx, []firestore.Update{
			{Path: "description", Value: doc.Description},
			{Path: "type", Value: doc.Type},
			{Path: "amount", Value: doc.Amount},
			{Path: "date", Value: doc.Date},
			{Path: "category", Value: doc.Category},
			{Path: "photoURL", Value: doc.PhotoURL},
		})
		return classify(err, svc, "transaction", tx.ID)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, uid, id string) error {
	ctx, span := tracer.Start(ctx, "Firestore.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	const svc = "firestore/transactions"
	return s.call(ctx, svc, func() error {
		_, err := s.transactions(uid).Doc(id).Delete(ctx, firestore.Exists)
		return classify(err, svc, "transaction", id)
	})
}

func (s *Store) GetTransaction(ctx context.Context, uid, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	const svc = "firestore/transactions"
	var tx domain.Transaction
	err := s.call(ctx, svc, func() error {
		snap, err := s.transactions(uid).Doc(id).Get(ctx)
		if err != nil {
			return classify(err, svc, "transaction", id)
		}
		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode transaction %s: %w", id, err))
		}
		tx = doc.toDomain(snap.Ref.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactionsBetween(ctx context.Context, uid string, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Firestore.ListTransactionsBetween")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/transactions"
	var out []domain.Transaction
	err := s.call(ctx, svc, func() error {
		out = make([]domain.Transaction, 0)
		iter := s.transactions(uid).
			Where("date", ">=", from.UTC()).
			Where("date", "<=", to.UTC()).
			OrderBy("date", firestore.Desc).
			Documents(ctx)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return classify(err, svc, "transactions", uid)
			}
			var doc transactionDoc
			if err := snap.DataTo(&doc); err != nil {
				s.logger.Warn("firestore: skipping undecodable transaction",
					zap.String("user_id", uid),
					zap.String("transaction_id", snap.Ref.ID),
					zap.Error(err),
				)
				continue
			}
			out = append(out, doc.toDomain(snap.Ref.ID))
		}
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("transactions.count", len(out)))
	return out, nil
}

func (s *Store) OldestTransactionDate(ctx context.Context, uid string) (*time.Time, error) {
	ctx, span := tracer.Start(ctx, "Firestore.OldestTransactionDate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/transactions"
	var oldest *time.Time
	err := s.call(ctx, svc, func() error {
		snaps, err := s.transactions(uid).OrderBy("date", firestore.Asc).Limit(1).Documents(ctx).GetAll()
		if err != nil {
			return classify(err, svc, "transactions", uid)
		}
		oldest = nil
		if len(snaps) == 0 {
			return nil
		}
		var doc transactionDoc
		if err := snaps[0].DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode transaction %s: %w", snaps[0].Ref.ID, err))
		}
		d := doc.Date
		oldest = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return oldest, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, uid string, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Firestore.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/users"
	return s.call(ctx, svc, func() error {
		_, err := s.client.Collection(usersCollection).Doc(uid).Set(ctx, userDoc{
			Name:        u.Name,
			Email:       u.Email,
			PhoneNumber: u.PhoneNumber,
			PhotoURL:    u.PhotoURL,
		})
		return classify(err, svc, "user", uid)
	})
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/users"
	var u domain.User
	err := s.call(ctx, svc, func() error {
		snap, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
		if err != nil {
			return classify(err, svc, "user", uid)
		}
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode user %s: %w", uid, err))
		}
		u = domain.User{
			ID:          uid,
			Name:        doc.Name,
			Email:       doc.Email,
			PhoneNumber: doc.PhoneNumber,
			PhotoURL:    doc.PhotoURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Firestore.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/users"
	return s.call(ctx, svc, func() error {
		_, err := s.client.Collection(usersCollection).Doc(uid).Update(ctx, []firestore.Update{
			{Path: "name", Value: u.Name},
			{Path: "phoneNumber", Value: u.PhoneNumber},
			{Path: "photoURL", Value: u.PhotoURL},
		})
		return classify(err, svc, "user", uid)
	})
}

func (s *Store) DeleteUser(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Firestore.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	const svc = "firestore/users"
	return s.call(ctx, svc, func() error {
		_, err := s.client.Collection(usersCollection).Doc(uid).Delete(ctx)
		return classify(err, svc, "user", uid)
	})
}

// Ping reads a single document to check connectivity and credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(usersCollection).Limit(1).Documents(ctx).GetAll()
	return err
}
