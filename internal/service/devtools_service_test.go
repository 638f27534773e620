package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

func TestSeed_SpreadsOverMonths(t *testing.T) {
	store := memory.NewStore()
	pages := &countingInvalidator{}
	svc := service.NewDevToolsService(store, pages, nil, time.UTC, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Seed(ctx, "u1", &domain.SeedRequest{Count: 40, Months: 3})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Created != 40 {
		t.Errorf("expected 40 created, got %d", res.Created)
	}

	now := time.Now().UTC()
	current := domain.MonthOf(now, time.UTC)
	first, _ := current.AddMonths(-2).Bounds(time.UTC)

	txs, err := store.ListTransactionsBetween(ctx, "u1", time.Time{}, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 40 {
		t.Fatalf("expected 40 stored, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Date.Before(first) || tx.Date.After(now) {
			t.Errorf("date %v outside the seeded window", tx.Date)
		}
		if _, ok := domain.FindCategory(tx.Category.Name); !ok {
			t.Errorf("category %q not in the catalog", tx.Category.Name)
		}
		if !tx.Amount.IsPositive() {
			t.Errorf("expected positive amount, got %s", tx.Amount)
		}
	}
	if len(pages.uids) != 1 {
		t.Errorf("expected the month page invalidated once, got %v", pages.uids)
	}
}

func TestSeed_RejectsOutOfRange(t *testing.T) {
	svc := service.NewDevToolsService(memory.NewStore(), &countingInvalidator{}, nil, time.UTC, zap.NewNop())

	_, err := svc.Seed(context.Background(), "u1", &domain.SeedRequest{Count: 1000})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Field != "count" {
		t.Errorf("expected count validation error, got %v", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	without := service.NewDevToolsService(memory.NewStore(), &countingInvalidator{}, nil, time.UTC, zap.NewNop())
	var forbidden *domain.ErrForbidden
	if err := without.VerifyEmail(ctx, "u1"); !errors.As(err, &forbidden) {
		t.Errorf("expected ErrForbidden without a verifier, got %v", err)
	}

	idp := memory.NewIdentityProvider(4)
	sess, err := idp.SignUp(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	with := service.NewDevToolsService(memory.NewStore(), &countingInvalidator{}, idp, time.UTC, zap.NewNop())
	if err := with.VerifyEmail(ctx, sess.UID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	u, _ := idp.LookupUser(ctx, sess.UID)
	if !u.EmailVerified {
		t.Error("expected the account verified")
	}
}
