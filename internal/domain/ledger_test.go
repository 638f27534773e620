package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

func tx(id string, typ domain.TransactionType, amount string, day int, category string) domain.Transaction {
	cat, ok := domain.FindCategory(category)
	ref := domain.CategoryRef{Name: category, Icon: "circle"}
	if ok {
		ref = cat.Ref()
	}
	return domain.Transaction{
		ID:          id,
		Description: "tx " + id,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2024, time.March, day, 12, 0, 0, 0, time.UTC),
		Category:    ref,
	}
}

func sampleLedger() []domain.Transaction {
	return []domain.Transaction{
		tx("1", domain.TransactionIncome, "5000.00", 5, "Salário"),
		tx("2", domain.TransactionExpense, "1200.50", 7, "Moradia"),
		tx("3", domain.TransactionExpense, "300.25", 9, "Alimentação"),
		tx("4", domain.TransactionExpense, "99.25", 12, "Alimentação"),
		tx("5", domain.TransactionIncome, "800.00", 15, "Freelance"),
		tx("6", domain.TransactionExpense, "400.00", 20, "Lazer"),
	}
}

func TestSumByType(t *testing.T) {
	txs := sampleLedger()

	if got := domain.SumByType(txs, domain.TransactionIncome); !got.Equal(decimal.RequireFromString("5800")) {
		t.Errorf("expected income 5800, got %s", got)
	}
	if got := domain.SumByType(txs, domain.TransactionExpense); !got.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("expected expenses 2000, got %s", got)
	}
}

func TestSumByCategory_SignedTotalsMatchBalance(t *testing.T) {
	txs := sampleLedger()
	totals := domain.SumByCategory(txs)

	sum := decimal.Zero
	for _, c := range totals {
		sum = sum.Add(c.Total)
	}

	balance := domain.SumByType(txs, domain.TransactionIncome).Sub(domain.SumByType(txs, domain.TransactionExpense))
	if !sum.Equal(balance) {
		t.Errorf("expected category totals to add up to %s, got %s", balance, sum)
	}

	byName := map[string]decimal.Decimal{}
	for _, c := range totals {
		byName[c.Name] = c.Total
	}
	if !byName["Alimentação"].Equal(decimal.RequireFromString("-399.50")) {
		t.Errorf("expected Alimentação -399.50, got %s", byName["Alimentação"])
	}
	if !byName["Salário"].Equal(decimal.RequireFromString("5000")) {
		t.Errorf("expected Salário 5000, got %s", byName["Salário"])
	}
	if totals[0].Name != "Salário" {
		t.Errorf("expected first-seen order, got %s first", totals[0].Name)
	}
}

func TestCategoryBreakdown_Expenses(t *testing.T) {
	report := domain.CategoryBreakdown(sampleLedger(), domain.TransactionExpense)

	if len(report) != 3 {
		t.Fatalf("expected 3 expense categories, got %d", len(report))
	}

	wantOrder := []string{"Moradia", "Lazer", "Alimentação"}
	for i, name := range wantOrder {
		if report[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, report[i].Name)
		}
	}

	pct := 0.0
	for i, c := range report {
		pct += c.TotalPercentage
		if i > 0 && c.TotalPercentage > report[i-1].TotalPercentage {
			t.Errorf("expected descending percentages, got %v after %v", c.TotalPercentage, report[i-1].TotalPercentage)
		}
		if c.Type != domain.TransactionExpense {
			t.Errorf("expected expense type, got %s", c.Type)
		}
	}
	if math.Abs(pct-100) > 0.05 {
		t.Errorf("expected percentages to add up to 100, got %v", pct)
	}

	if report[0].TotalPercentage != 60.03 {
		t.Errorf("expected Moradia at 60.03%%, got %v", report[0].TotalPercentage)
	}
	if report[0].Color != "#5636D3" {
		t.Errorf("expected catalog color, got %s", report[0].Color)
	}
	if report[0].TotalFormatted != "R$ 1.200,50" {
		t.Errorf("unexpected formatted total %s", report[0].TotalFormatted)
	}
}

func TestCategoryBreakdown_EmptyAndUnknownCategory(t *testing.T) {
	if got := domain.CategoryBreakdown(nil, domain.TransactionExpense); len(got) != 0 {
		t.Fatalf("expected empty report, got %d entries", len(got))
	}

	txs := []domain.Transaction{tx("1", domain.TransactionExpense, "10", 1, "Pets")}
	report := domain.CategoryBreakdown(txs, domain.TransactionExpense)
	if len(report) != 1 || report[0].Color != domain.DefaultCategoryColor {
		t.Fatalf("expected default color for unknown category, got %+v", report)
	}
	if report[0].TotalPercentage != 100 {
		t.Errorf("expected 100%%, got %v", report[0].TotalPercentage)
	}
}

func TestSortByDate(t *testing.T) {
	txs := sampleLedger()
	domain.SortByDate(txs, domain.SortDesc)
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.After(txs[i-1].Date) {
			t.Fatalf("expected descending order at %d", i)
		}
	}

	domain.SortByDate(txs, domain.SortAsc)
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.Before(txs[i-1].Date) {
			t.Fatalf("expected ascending order at %d", i)
		}
	}
}

func TestFilterByMonth(t *testing.T) {
	txs := sampleLedger()
	other := tx("7", domain.TransactionExpense, "1", 1, "Outros")
	other.Date = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	txs = append(txs, other)

	got := domain.FilterByMonth(txs, domain.Month{Year: 2024, Month: time.March}, time.UTC)
	if len(got) != 6 {
		t.Errorf("expected 6 transactions in March, got %d", len(got))
	}
}

func TestSummarize(t *testing.T) {
	s := domain.Summarize(sampleLedger())
	if !s.Balance.Equal(decimal.RequireFromString("3800")) {
		t.Errorf("expected balance 3800, got %s", s.Balance)
	}
	if s.BalanceFormatted != "R$ 3.800,00" {
		t.Errorf("unexpected formatted balance %s", s.BalanceFormatted)
	}
	if s.Count != 6 {
		t.Errorf("expected count 6, got %d", s.Count)
	}
}
