package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/sqlite"

	"github.com/shopspring/decimal"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "finance.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Applying twice is a no-op.
	if err := sqlite.RunMigrations(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return sqlite.NewStore(db)
}

func TestStore_Transactions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	march := time.Date(2024, time.March, 31, 23, 59, 59, 999e6, time.UTC)
	tx := &domain.Transaction{
		Description: "Mercado",
		Type:        domain.TransactionExpense,
		Amount:      decimal.RequireFromString("0.10").Add(decimal.RequireFromString("0.20")),
		Date:        march,
		Category:    domain.CategoryRef{Name: "Alimentação", Icon: "coffee"},
	}
	id, err := store.AddTransaction(ctx, "u1", tx)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.AddTransaction(ctx, "u1", &domain.Transaction{
		Description: "Salário",
		Type:        domain.TransactionIncome,
		Amount:      decimal.NewFromInt(5000),
		Date:        time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		Category:    domain.CategoryRef{Name: "Salário", Icon: "dollar-sign"},
	})

	first := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	list, err := store.ListTransactionsBetween(ctx, "u1", first, march)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("expected only the March transaction, got %+v", list)
	}
	if !list[0].Amount.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("amount must be exact, got %s", list[0].Amount)
	}
	if !list[0].Date.Equal(march) {
		t.Errorf("expected %v, got %v", march, list[0].Date)
	}

	oldest, err := store.OldestTransactionDate(ctx, "u1")
	if err != nil || oldest == nil || !oldest.Equal(march) {
		t.Errorf("unexpected oldest %v %v", oldest, err)
	}

	got, _ := store.GetTransaction(ctx, "u1", id)
	got.PhotoURL = "https://example.com/r.jpg"
	if err := store.UpdateTransaction(ctx, "u1", got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := store.GetTransaction(ctx, "u1", id)
	if again.PhotoURL != got.PhotoURL {
		t.Errorf("update not persisted: %+v", again)
	}

	var nf *domain.ErrNotFound
	if err := store.DeleteTransaction(ctx, "u2", id); !errors.As(err, &nf) {
		t.Errorf("other users must not delete, got %v", err)
	}
	if err := store.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetTransaction(ctx, "u1", id); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_OldestDateEmpty(t *testing.T) {
	oldest, err := newStore(t).OldestTransactionDate(context.Background(), "nobody")
	if err != nil || oldest != nil {
		t.Errorf("expected nil, got %v %v", oldest, err)
	}
}

func TestStore_Users(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var nf *domain.ErrNotFound
	if _, err := store.GetUser(ctx, "u1"); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateUser(ctx, "u1", &domain.User{Name: "x"}); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}

	if err := store.CreateUser(ctx, "u1", &domain.User{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateUser(ctx, "u1", &domain.User{Name: "Ana Maria", PhoneNumber: "11987654321"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	u, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Name != "Ana Maria" || u.Email != "ana@example.com" || u.PhoneNumber != "11987654321" {
		t.Errorf("unexpected user %+v", u)
	}
}
