package service

import (
	"context"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var reportTracer = otel.Tracer("service/reports")

// ReportService builds the highlight and category reports of a month.
type ReportService struct {
	transactions *TransactionService
}

// NewReportService creates a report service reading through transactions.
func NewReportService(transactions *TransactionService) *ReportService {
	return &ReportService{transactions: transactions}
}

func (s *ReportService) load(ctx context.Context, uid string, m domain.Month) (*domain.MonthView, error) {
	if m.IsZero() {
		m = s.transactions.CurrentMonth()
	}
	return s.transactions.ListMonth(ctx, uid, m)
}

// Summary returns income, expenses and balance of month m (current month when zero).
func (s *ReportService) Summary(ctx context.Context, uid string, m domain.Month) (*domain.SummaryReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	view, err := s.load(ctx, uid, m)
	if err != nil {
		return nil, err
	}
	report := &domain.SummaryReport{
		Month:      view.Month,
		Navigation: view.Navigation,
		Summary:    view.Summary,
		Balances:   domain.SumByCategory(view.Transactions),
	}
	if len(view.Transactions) > 0 {
		report.LastTransaction = domain.FormatDate(view.Transactions[0].Date.In(s.transactions.Location()))
	}
	return report, nil
}

// Categories returns the per-category breakdown of one transaction type,
// expenses by default.
func (s *ReportService) Categories(ctx context.Context, uid string, m domain.Month, t domain.TransactionType) (*domain.CategoryReport, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Categories")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("type", string(t)))

	if t == "" {
		t = domain.TransactionExpense
	}
	if !t.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "O tipo deve ser receita ou despesa"}
	}

	view, err := s.load(ctx, uid, m)
	if err != nil {
		return nil, err
	}
	return &domain.CategoryReport{
		Month:      view.Month,
		Navigation: view.Navigation,
		Type:       t,
		Total:      domain.FormatBRL(domain.SumByType(view.Transactions, t)),
		Categories: domain.CategoryBreakdown(view.Transactions, t),
	}, nil
}
