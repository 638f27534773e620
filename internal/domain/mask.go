package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Input masks (phone, BRL currency, email)
// ============================================================

// UnmaskDigits keeps only the ASCII digits of s.
func UnmaskDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// MaskPhone formats a Brazilian phone number as it is typed:
// "(11) 2345-6789" for landlines and "(11) 92345-6789" for mobiles.
// Partial input is masked progressively and extra digits are dropped.
func MaskPhone(s string) string {
	d := UnmaskDigits(s)
	if len(d) > 11 {
		d = d[:11]
	}
	switch {
	case len(d) == 0:
		return ""
	case len(d) <= 2:
		return "(" + d
	case len(d) <= 6:
		return "(" + d[:2] + ") " + d[2:]
	case len(d) <= 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	default:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	}
}

// FormatBRL renders an amount the way pt-BR currency formatting does,
// e.g. "R$ 1.234,56" and "-R$ 10,00".
func FormatBRL(d decimal.Decimal) string {
	rounded := d.Round(2)
	intPart, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := "R$ " + b.String() + "," + frac
	if rounded.IsNegative() {
		out = "-" + out
	}
	return out
}

// ParseCurrency reads an amount typed with or without the currency mask.
// "R$ 1.234,56", "1234,56" and "1234.56" all parse to 1234.56.
func ParseCurrency(s string) (decimal.Decimal, error) {
	invalid := &ErrValidation{Field: "amount", Message: "Valor inválido"}

	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, invalid
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid
	}
	return d, nil
}

// MaskEmail hides most of the local part for logging, e.g. "j******e@gmail.com".
func MaskEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***@***.com"
	}
	if len(local) == 1 {
		return local + "***@" + host
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + "@" + host
}
