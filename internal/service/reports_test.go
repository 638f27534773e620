package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"
)

func seedReportData(t *testing.T, f *txFixture) {
	t.Helper()
	ctx := context.Background()
	reqs := []*domain.TransactionRequest{
		request("Salário", domain.TransactionIncome, "4000", "Salário", day(time.March, 5)),
		request("Aluguel", domain.TransactionExpense, "1500", "Moradia", day(time.March, 6)),
		request("Mercado", domain.TransactionExpense, "300", "Alimentação", day(time.March, 7)),
		request("Padaria", domain.TransactionExpense, "200", "Alimentação", day(time.March, 8)),
		request("Uber", domain.TransactionExpense, "500", "Transporte", day(time.February, 8)),
	}
	for _, r := range reqs {
		if _, err := f.svc.Create(ctx, "u1", r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestReportSummary_CurrentMonth(t *testing.T) {
	f := newTxFixture(t)
	seedReportData(t, f)
	reports := service.NewReportService(f.svc)

	got, err := reports.Summary(context.Background(), "u1", domain.Month{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Month.Month != time.March {
		t.Errorf("expected current month, got %v", got.Month)
	}
	if got.IncomeFormatted != "R$ 4.000,00" || got.ExpensesFormatted != "R$ 2.000,00" || got.BalanceFormatted != "R$ 2.000,00" {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if !got.Navigation.HasPrevious {
		t.Error("expected back navigation to February")
	}

	want := map[string]string{"Salário": "R$ 4.000,00", "Moradia": "-R$ 1.500,00", "Alimentação": "-R$ 500,00"}
	if len(got.Balances) != len(want) {
		t.Fatalf("expected %d category balances, got %+v", len(want), got.Balances)
	}
	for _, b := range got.Balances {
		if want[b.Name] != b.TotalFormatted {
			t.Errorf("category %s: expected %s, got %s", b.Name, want[b.Name], b.TotalFormatted)
		}
	}
	if got.LastTransaction != "08/03/2024" {
		t.Errorf("expected newest date 08/03/2024, got %q", got.LastTransaction)
	}
}

func TestReportCategories_SortedByPercentage(t *testing.T) {
	f := newTxFixture(t)
	seedReportData(t, f)
	reports := service.NewReportService(f.svc)

	got, err := reports.Categories(context.Background(), "u1", domain.Month{Year: 2024, Month: time.March}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Type != domain.TransactionExpense {
		t.Errorf("expected expense default, got %s", got.Type)
	}
	if len(got.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got.Categories)
	}
	if got.Categories[0].Name != "Moradia" || got.Categories[0].TotalPercentage != 75 {
		t.Errorf("unexpected first category %+v", got.Categories[0])
	}

	var sum float64
	for i, c := range got.Categories {
		sum += c.TotalPercentage
		if i > 0 && c.TotalPercentage > got.Categories[i-1].TotalPercentage {
			t.Error("categories must be sorted by percentage descending")
		}
	}
	if math.Abs(sum-100) > 0.05 {
		t.Errorf("percentages should sum to 100, got %v", sum)
	}
	if got.Total != "R$ 2.000,00" {
		t.Errorf("unexpected total %q", got.Total)
	}
}

func TestReportCategories_InvalidType(t *testing.T) {
	f := newTxFixture(t)
	reports := service.NewReportService(f.svc)

	_, err := reports.Categories(context.Background(), "u1", domain.Month{}, "transfer")
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Field != "type" {
		t.Errorf("expected type validation error, got %v", err)
	}
}
