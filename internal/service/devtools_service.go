package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var devTracer = otel.Tracer("service/devtools")

// ============================================================
// Dev Tools
// ============================================================

// EmailVerifier flags an account as verified without the email link.
// Only the in-memory identity provider implements it.
type EmailVerifier interface {
	MarkEmailVerified(ctx context.Context, uid string) error
}

const (
	defaultSeedCount  = 30
	defaultSeedMonths = 6
)

var seedDescriptions = map[domain.TransactionType][]string{
	domain.TransactionIncome:  {"Salário", "Freelance", "Reembolso", "Venda", "Rendimento"},
	domain.TransactionExpense: {"Mercado", "Aluguel", "Uber", "Farmácia", "Restaurante", "Conta de luz", "Cinema"},
}

// DevToolsService generates sample data for development environments.
type DevToolsService struct {
	store    port.TransactionStore
	pages    pageInvalidator
	verifier EmailVerifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewDevToolsService creates the dev tools service. verifier may be nil.
func NewDevToolsService(store port.TransactionStore, pages pageInvalidator, verifier EmailVerifier, loc *time.Location, logger *zap.Logger) *DevToolsService {
	if loc == nil {
		loc = time.UTC
	}
	return &DevToolsService{
		store:    store,
		pages:    pages,
		verifier: verifier,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Seed writes req.Count random transactions spread over the last
// req.Months months, current month included.
func (s *DevToolsService) Seed(ctx context.Context, uid string, req *domain.SeedRequest) (*domain.SeedResult, error) {
	ctx, span := devTracer.Start(ctx, "DevToolsService.Seed")
	defer span.End()

	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	count, months := req.Count, req.Months
	if count == 0 {
		count = defaultSeedCount
	}
	if months == 0 {
		months = defaultSeedMonths
	}

	now := s.now().In(s.loc)
	current := domain.MonthOf(now, s.loc)
	oldest := current.AddMonths(-(months - 1))

	created := 0
	for i := 0; i < count; i++ {
		tx := s.randomTransaction(oldest.AddMonths(rand.Intn(months)), now)
		if _, err := s.store.AddTransaction(ctx, uid, &tx); err != nil {
			s.logger.Error("DEV: seed aborted",
				zap.String("user_id", uid),
				zap.Int("created", created),
				zap.Error(err),
			)
			s.pages.Invalidate(uid)
			return nil, fmt.Errorf("seed transaction %d: %w", i, err)
		}
		created++
	}
	s.pages.Invalidate(uid)

	s.logger.Info("DEV: transactions seeded",
		zap.String("user_id", uid),
		zap.Int("created", created),
		zap.String("from", oldest.String()),
		zap.String("to", current.String()),
	)
	return &domain.SeedResult{
		Created: created,
		From:    oldest.String(),
		To:      current.String(),
		Message: fmt.Sprintf("%d transações geradas entre %s e %s", created, oldest.Label(), current.Label()),
	}, nil
}

// randomTransaction picks a date inside m that is not after now.
func (s *DevToolsService) randomTransaction(m domain.Month, now time.Time) domain.Transaction {
	t := domain.TransactionExpense
	if rand.Intn(4) == 0 {
		t = domain.TransactionIncome
	}
	cats := domain.Categories(t)
	cat := cats[rand.Intn(len(cats))]
	descs := seedDescriptions[t]

	first, last := m.Bounds(s.loc)
	if last.After(now) {
		last = now
	}
	window := last.Sub(first)
	date := first
	if window > 0 {
		date = first.Add(time.Duration(rand.Int63n(int64(window))))
	}

	cents := int64(500 + rand.Intn(50000))
	if t == domain.TransactionIncome {
		cents *= 5
	}

	return domain.Transaction{
		Description: descs[rand.Intn(len(descs))],
		Type:        t,
		Amount:      decimal.New(cents, -2),
		Date:        date,
		Category:    cat.Ref(),
	}
}

// VerifyEmail marks uid verified when the identity backend allows it.
func (s *DevToolsService) VerifyEmail(ctx context.Context, uid string) error {
	ctx, span := devTracer.Start(ctx, "DevToolsService.VerifyEmail")
	defer span.End()

	if s.verifier == nil {
		return &domain.ErrForbidden{Action: "verify email outside the in-memory identity backend"}
	}
	if err := s.verifier.MarkEmailVerified(ctx, uid); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	s.logger.Info("DEV: email marked verified", zap.String("user_id", uid))
	return nil
}
