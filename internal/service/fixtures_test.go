package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 2024-03-15 12:00 UTC
var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt domain.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.RoutingKey())
	}
	return out
}

// --- Fixture ---

type txFixture struct {
	svc     *service.TransactionService
	store   *memory.Store
	storage *memory.ObjectStorage
	events  *recordingPublisher
	metrics *observability.Metrics
}

func newTxFixture(t *testing.T) *txFixture {
	t.Helper()

	pages := cache.New[*domain.MonthPage](time.Minute)
	t.Cleanup(pages.Close)

	f := &txFixture{
		store:   memory.NewStore(),
		storage: memory.NewObjectStorage("http://localhost:8080"),
		events:  &recordingPublisher{},
		metrics: observability.NewMetrics(),
	}
	f.svc = service.NewTransactionService(
		f.store,
		f.storage,
		f.events,
		pages,
		resilience.NewBulkhead(2),
		time.UTC,
		f.metrics,
		zap.NewNop(),
	)
	f.svc.SetClock(func() time.Time { return fixedNow })
	return f
}

func request(desc string, typ domain.TransactionType, amount string, category string, date time.Time) *domain.TransactionRequest {
	return &domain.TransactionRequest{
		Description:  desc,
		Type:         typ,
		Amount:       domain.AmountInput{Value: decimal.RequireFromString(amount), Present: true},
		CategoryName: category,
		Date:         &date,
	}
}

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 10, 0, 0, 0, time.UTC)
}
