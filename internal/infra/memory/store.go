// Package memory provides in-process implementations of the backend ports.
// They back local development and the service and handler tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/google/uuid"
)

// Store implements port.TransactionStore and port.UserStore.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]map[string]domain.Transaction // uid -> id -> tx
	users        map[string]domain.User
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]map[string]domain.Transaction),
		users:        make(map[string]domain.User),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// --- Transactions ---

func (s *Store) AddTransaction(_ context.Context, uid string, tx *domain.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	stored := *tx
	stored.ID = id
	if s.transactions[uid] == nil {
		s.transactions[uid] = make(map[string]domain.Transaction)
	}
	s.transactions[uid][id] = stored
	return id, nil
}

func (s *Store) UpdateTransaction(_ context.Context, uid string, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[uid][tx.ID]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	s.transactions[uid][tx.ID] = *tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, uid, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[uid][id]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(s.transactions[uid], id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, uid, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[uid][id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return &tx, nil
}

func (s *Store) ListTransactionsBetween(_ context.Context, uid string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, tx := range s.transactions[uid] {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	domain.SortByDate(out, domain.SortDesc)
	return out, nil
}

func (s *Store) OldestTransactionDate(_ context.Context, uid string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *time.Time
	for _, tx := range s.transactions[uid] {
		if oldest == nil || tx.Date.Before(*oldest) {
			d := tx.Date
			oldest = &d
		}
	}
	return oldest, nil
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, uid string, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *u
	stored.ID = uid
	s.users[uid] = stored
	return nil
}

func (s *Store) GetUser(_ context.Context, uid string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	return &u, nil
}

func (s *Store) UpdateUser(_ context.Context, uid string, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[uid]; !ok {
		return &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	stored := *u
	stored.ID = uid
	s.users[uid] = stored
	return nil
}

func (s *Store) DeleteUser(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, uid)
	delete(s.transactions, uid)
	return nil
}
