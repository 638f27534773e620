package domain

import "time"

// ============================================================
// Transactions / Reports API Responses
// ============================================================

// MonthView is a month page as returned to the app.
type MonthView struct {
	Month        Month         `json:"month"`
	Navigation   Navigation    `json:"navigation"`
	Transactions []Transaction `json:"transactions"`
	Summary      Summary       `json:"summary"`
	OldestDate   *time.Time    `json:"oldestDate,omitempty"`
}

// SummaryReport backs the highlight cards (income, expenses, total).
// Balances holds the signed total of each category and adds up to the
// balance. LastTransaction is the DD/MM/YYYY date of the newest entry.
type SummaryReport struct {
	Month      Month      `json:"month"`
	Navigation Navigation `json:"navigation"`
	Summary
	Balances        []CategoryTotal `json:"balances"`
	LastTransaction string          `json:"lastTransaction,omitempty"`
}

// CategoryReport is the per-category breakdown of one month.
type CategoryReport struct {
	Month      Month           `json:"month"`
	Navigation Navigation      `json:"navigation"`
	Type       TransactionType `json:"type"`
	Total      string          `json:"totalFormatted"`
	Categories []CategoryTotal `json:"categories"`
}
