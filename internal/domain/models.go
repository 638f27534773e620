// Package domain defines the core entities of the finance tracker.
// These models are independent of the external backends and represent the
// canonical data structures used throughout the BFA.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions
// ============================================================

// TransactionType is the signed kind of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Sign returns +1 for income and -1 for expense.
func (t TransactionType) Sign() decimal.Decimal {
	if t == TransactionExpense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// CategoryRef is the category snapshot stored on each transaction.
type CategoryRef struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Transaction is a single dated income or expense record.
// Amount is always positive; the sign comes from Type.
type Transaction struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Category    CategoryRef     `json:"category"`
	PhotoURL    string          `json:"photoURL,omitempty"`
}

// Signed returns the amount with the sign of its type applied.
func (t Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(t.Type.Sign())
}

// TransactionRequest is the body for POST/PUT /v1/transactions.
type TransactionRequest struct {
	Description  string          `json:"description" validate:"required"`
	Type         TransactionType `json:"type" validate:"required,oneof=income expense"`
	Amount       AmountInput     `json:"amount"`
	CategoryName string          `json:"categoryName" validate:"required"`
	Date         *time.Time      `json:"date" validate:"required"`
	PhotoURL     string          `json:"photoURL,omitempty" validate:"omitempty,url"`
}

// Normalize trims user input in place.
func (r *TransactionRequest) Normalize() {
	r.Description = strings.TrimSpace(r.Description)
	r.CategoryName = strings.TrimSpace(r.CategoryName)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
}

// AmountInput accepts either a JSON number or a string. Strings may carry
// the currency mask typed in the app, e.g. "R$ 1.234,56".
type AmountInput struct {
	Value   decimal.Decimal
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AmountInput) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		d, err := ParseCurrency(s)
		if err != nil {
			return err
		}
		a.Value, a.Present = d, true
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	a.Value, a.Present = d, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a AmountInput) MarshalJSON() ([]byte, error) {
	if !a.Present {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// ============================================================
// Users
// ============================================================

// User is the profile document stored at users/{uid}.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// ProfileResponse is returned by GET/PUT /v1/profile.
type ProfileResponse struct {
	User
	PhoneNumberMasked string `json:"phoneNumberMasked,omitempty"`
	EmailVerified     bool   `json:"emailVerified"`
}

// ProfileUpdateRequest is the body for PUT /v1/profile.
type ProfileUpdateRequest struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty" validate:"omitempty,url"`
}

// UploadResponse is returned by the photo upload endpoints.
type UploadResponse struct {
	URL string `json:"url"`
}
