package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"1", "(1"},
		{"11", "(11"},
		{"11987", "(11) 987"},
		{"1123456789", "(11) 2345-6789"},
		{"11987654321", "(11) 98765-4321"},
		{"(11) 98765-4321", "(11) 98765-4321"},
		{"1198765432199", "(11) 98765-4321"},
	}
	for _, tt := range tests {
		if got := domain.MaskPhone(tt.in); got != tt.want {
			t.Errorf("MaskPhone(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestUnmaskDigits(t *testing.T) {
	if got := domain.UnmaskDigits("(11) 98765-4321"); got != "11987654321" {
		t.Errorf("unexpected digits %q", got)
	}
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "R$ 0,00"},
		{"5", "R$ 5,00"},
		{"1234.5", "R$ 1.234,50"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-10", "-R$ 10,00"},
		{"-0.001", "R$ 0,00"},
		{"999.999", "R$ 1.000,00"},
	}
	for _, tt := range tests {
		if got := domain.FormatBRL(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatBRL(%s): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"R$ 1.234,56", "1234.56"},
		{"1234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"R$ 0,99", "0.99"},
		{"1.234.567", "1234567"},
		{"R$ 10,00", "10"},
	}
	for _, tt := range tests {
		got, err := domain.ParseCurrency(tt.in)
		if err != nil {
			t.Errorf("ParseCurrency(%q): unexpected error %v", tt.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseCurrency(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}

	_, err := domain.ParseCurrency("abc")
	var vErr *domain.ErrValidation
	if !errors.As(err, &vErr) || vErr.Field != "amount" {
		t.Fatalf("expected validation error on amount, got %v", err)
	}
}

func TestAmountInput_AcceptsNumberAndMaskedString(t *testing.T) {
	var body struct {
		A domain.AmountInput `json:"a"`
		B domain.AmountInput `json:"b"`
		C domain.AmountInput `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "R$ 1.000,10"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.A.Present || !body.A.Value.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected a: %+v", body.A)
	}
	if !body.B.Present || !body.B.Value.Equal(decimal.RequireFromString("1000.10")) {
		t.Errorf("unexpected b: %+v", body.B)
	}
	if body.C.Present {
		t.Error("missing field must not be present")
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"joana@gmail.com": "j***a@gmail.com",
		"a@b.com":         "a***@b.com",
		"invalid":         "***@***.com",
	}
	for in, want := range tests {
		if got := domain.MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q): expected %q, got %q", in, want, got)
		}
	}
}
