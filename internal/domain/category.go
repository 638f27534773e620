package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is an entry of the static category catalog.
type Category struct {
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Type  TransactionType `json:"type"`
	Color string          `json:"color"`
}

// Ref returns the snapshot stored on transactions.
func (c Category) Ref() CategoryRef {
	return CategoryRef{Name: c.Name, Icon: c.Icon}
}

// CategoryTotal is a category with report totals attached.
// Totals are derived when the report is built and never persisted.
type CategoryTotal struct {
	Name            string          `json:"name"`
	Icon            string          `json:"icon"`
	Type            TransactionType `json:"type,omitempty"`
	Color           string          `json:"color,omitempty"`
	Total           decimal.Decimal `json:"total"`
	TotalFormatted  string          `json:"totalFormatted"`
	TotalPercentage float64         `json:"totalPercentage"`
}

// DefaultCategoryColor is used for categories missing from the catalog.
const DefaultCategoryColor = "#9E9E9E"

var categories = []Category{
	{Name: "Salário", Icon: "dollar-sign", Type: TransactionIncome, Color: "#12A454"},
	{Name: "Investimentos", Icon: "trending-up", Type: TransactionIncome, Color: "#2E7D32"},
	{Name: "Freelance", Icon: "briefcase", Type: TransactionIncome, Color: "#26A69A"},
	{Name: "Alimentação", Icon: "coffee", Type: TransactionExpense, Color: "#FF872C"},
	{Name: "Moradia", Icon: "home", Type: TransactionExpense, Color: "#5636D3"},
	{Name: "Transporte", Icon: "truck", Type: TransactionExpense, Color: "#E83F5B"},
	{Name: "Saúde", Icon: "heart", Type: TransactionExpense, Color: "#F06292"},
	{Name: "Educação", Icon: "book", Type: TransactionExpense, Color: "#42A5F5"},
	{Name: "Lazer", Icon: "smile", Type: TransactionExpense, Color: "#FFB300"},
	{Name: "Compras", Icon: "shopping-bag", Type: TransactionExpense, Color: "#8D6E63"},
	{Name: "Outros", Icon: "more-horizontal", Type: TransactionExpense, Color: DefaultCategoryColor},
}

// Categories returns a copy of the catalog, optionally filtered by type.
// An empty type returns every category.
func Categories(t TransactionType) []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if t == "" || c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// FindCategory looks a category up by name, ignoring case and surrounding spaces.
func FindCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}
