package domain

import (
	"fmt"
	"time"
)

// MonthNames holds the Portuguese month names, January first.
var MonthNames = [12]string{
	"Janeiro",
	"Fevereiro",
	"Março",
	"Abril",
	"Maio",
	"Junho",
	"Julho",
	"Agosto",
	"Setembro",
	"Outubro",
	"Novembro",
	"Dezembro",
}

// Month identifies a calendar month. It is the unit of transaction browsing.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t as seen in loc.
func MonthOf(t time.Time, loc *time.Location) Month {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses the YYYY-MM form used in query strings.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &ErrValidation{Field: "month", Message: "Mês inválido, use o formato AAAA-MM"}
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// Next returns the following month, rolling into January of the next year.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Prev returns the preceding month, rolling into December of the previous year.
func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// AddMonths moves n months forward (or backward when n is negative).
func (m Month) AddMonths(n int) Month {
	idx := m.Year*12 + int(m.Month-1) + n
	year, month := idx/12, idx%12
	if month < 0 {
		year--
		month += 12
	}
	return Month{Year: year, Month: time.Month(month + 1)}
}

// Bounds returns the first and the last instant of the month in loc.
// The last instant is 23:59:59.999 of the last day, matching the inclusive
// range queried on the document store.
func (m Month) Bounds(loc *time.Location) (first, last time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	first = time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	last = time.Date(m.Year, m.Month+1, 0, 23, 59, 59, int(999*time.Millisecond), loc)
	return first, last
}

// Contains reports whether t falls inside the month as seen in loc.
func (m Month) Contains(t time.Time, loc *time.Location) bool {
	return MonthOf(t, loc) == m
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label renders the month the way the month selector shows it, e.g. "Março de 2024".
func (m Month) Label() string {
	if m.Month < time.January || m.Month > time.December {
		return m.String()
	}
	return fmt.Sprintf("%s de %d", MonthNames[m.Month-1], m.Year)
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FormatDate renders t as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// ============================================================
// Month navigation
// ============================================================

// Navigation tells the client which way the month selector can move.
type Navigation struct {
	Current     Month  `json:"current"`
	Label       string `json:"label"`
	Previous    *Month `json:"previous,omitempty"`
	Next        *Month `json:"next,omitempty"`
	HasPrevious bool   `json:"hasPrevious"`
	HasNext     bool   `json:"hasNext"`
}

// NewNavigation builds the selector state for the displayed month.
// Going back stops at the month of the oldest transaction (the watermark);
// going forward stops at the current month.
func NewNavigation(displayed, today Month, watermark *time.Time, loc *time.Location) Navigation {
	nav := Navigation{
		Current: displayed,
		Label:   displayed.Label(),
	}
	if watermark != nil && MonthOf(*watermark, loc).Before(displayed) {
		prev := displayed.Prev()
		nav.Previous = &prev
		nav.HasPrevious = true
	}
	if displayed.Before(today) {
		next := displayed.Next()
		nav.Next = &next
		nav.HasNext = true
	}
	return nav
}
