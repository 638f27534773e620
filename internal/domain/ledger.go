package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger helpers: sorting, filtering and aggregation
// ============================================================

// SortOrder selects ascending or descending date order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortByDate sorts txs in place by date. Equal dates fall back to ID so
// the order is deterministic.
func SortByDate(txs []Transaction, order SortOrder) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		c := a.Date.Compare(b.Date)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if order == SortDesc {
			return -c
		}
		return c
	})
}

// FilterByMonth returns the transactions dated inside m.
func FilterByMonth(txs []Transaction, m Month, loc *time.Location) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if m.Contains(tx.Date, loc) {
			out = append(out, tx)
		}
	}
	return out
}

// SumByType sums the amounts of the transactions of type t.
func SumByType(txs []Transaction, t TransactionType) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type == t {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SumByCategory groups transactions by category name and sums the signed
// amounts: income adds, expense subtracts. Categories keep the order in
// which they first appear. The totals add up to income minus expenses.
func SumByCategory(txs []Transaction) []CategoryTotal {
	index := make(map[string]int)
	out := []CategoryTotal{}
	for _, tx := range txs {
		i, ok := index[tx.Category.Name]
		if !ok {
			i = len(out)
			index[tx.Category.Name] = i
			out = append(out, CategoryTotal{Name: tx.Category.Name, Icon: tx.Category.Icon, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Signed())
	}
	for i := range out {
		out[i].TotalFormatted = FormatBRL(out[i].Total)
	}
	return out
}

// CategoryBreakdown totals the transactions of type t per category and
// attaches each category's share of the type total, in percent. The
// result is sorted by share, largest first; ties are ordered by name.
func CategoryBreakdown(txs []Transaction, t TransactionType) []CategoryTotal {
	index := make(map[string]int)
	out := []CategoryTotal{}
	grand := decimal.Zero
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		i, ok := index[tx.Category.Name]
		if !ok {
			i = len(out)
			index[tx.Category.Name] = i
			color := DefaultCategoryColor
			if c, found := FindCategory(tx.Category.Name); found {
				color = c.Color
			}
			out = append(out, CategoryTotal{
				Name:  tx.Category.Name,
				Icon:  tx.Category.Icon,
				Type:  t,
				Color: color,
				Total: decimal.Zero,
			})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
		grand = grand.Add(tx.Amount)
	}

	hundred := decimal.NewFromInt(100)
	for i := range out {
		out[i].TotalFormatted = FormatBRL(out[i].Total)
		if grand.IsPositive() {
			out[i].TotalPercentage = out[i].Total.Mul(hundred).Div(grand).Round(2).InexactFloat64()
		}
	}

	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Summary holds the highlight figures of a set of transactions.
type Summary struct {
	Income            decimal.Decimal `json:"income"`
	Expenses          decimal.Decimal `json:"expenses"`
	Balance           decimal.Decimal `json:"balance"`
	IncomeFormatted   string          `json:"incomeFormatted"`
	ExpensesFormatted string          `json:"expensesFormatted"`
	BalanceFormatted  string          `json:"balanceFormatted"`
	Count             int             `json:"count"`
}

// Summarize computes income, expenses and balance = income - expenses.
func Summarize(txs []Transaction) Summary {
	income := SumByType(txs, TransactionIncome)
	expenses := SumByType(txs, TransactionExpense)
	balance := income.Sub(expenses)
	return Summary{
		Income:            income,
		Expenses:          expenses,
		Balance:           balance,
		IncomeFormatted:   FormatBRL(income),
		ExpensesFormatted: FormatBRL(expenses),
		BalanceFormatted:  FormatBRL(balance),
		Count:             len(txs),
	}
}
