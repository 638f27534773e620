package domain

import "time"

// MonthPage is the cached list of one month's transactions, newest first,
// together with the watermark: the date of the user's oldest transaction.
// It is mutated only after the backend accepted the change.
//
// A MonthPage is not safe for concurrent use.
type MonthPage struct {
	Month        Month
	Transactions []Transaction
	OldestDate   *time.Time

	loc *time.Location
}

// NewMonthPage builds a page for m from the transactions dated inside it,
// sorted newest first.
func NewMonthPage(m Month, txs []Transaction, oldest *time.Time, loc *time.Location) *MonthPage {
	if loc == nil {
		loc = time.UTC
	}
	p := &MonthPage{
		Month:        m,
		Transactions: FilterByMonth(txs, m, loc),
		loc:          loc,
	}
	SortByDate(p.Transactions, SortDesc)
	p.SetWatermark(oldest)
	return p
}

// Location returns the time zone the month boundaries are evaluated in.
func (p *MonthPage) Location() *time.Location {
	return p.loc
}

// Clone returns a deep copy safe to hand out to callers.
func (p *MonthPage) Clone() *MonthPage {
	c := &MonthPage{
		Month:        p.Month,
		Transactions: append([]Transaction(nil), p.Transactions...),
		loc:          p.loc,
	}
	c.SetWatermark(p.OldestDate)
	return c
}

// SetWatermark replaces the oldest date. nil means the user has no transactions.
func (p *MonthPage) SetWatermark(t *time.Time) {
	if t == nil {
		p.OldestDate = nil
		return
	}
	v := *t
	p.OldestDate = &v
}

// Find returns the transaction with the given id if it is on the page.
func (p *MonthPage) Find(id string) (Transaction, bool) {
	if i := p.indexOf(id); i >= 0 {
		return p.Transactions[i], true
	}
	return Transaction{}, false
}

// Insert adds tx to the page when it belongs to the page month and lowers
// the watermark when tx is older than it. It reports whether the list changed.
func (p *MonthPage) Insert(tx Transaction) bool {
	p.lowerWatermark(tx.Date)
	if !p.Month.Contains(tx.Date, p.loc) {
		return false
	}
	p.Transactions = append(p.Transactions, tx)
	SortByDate(p.Transactions, SortDesc)
	return true
}

// Replace swaps prev for next. An item whose date moved out of the month
// leaves the page and one that moved in joins it. It reports whether the
// watermark has to be recomputed from the store, which happens when prev
// carried the watermark and next is later than it.
func (p *MonthPage) Replace(prev, next Transaction) (recompute bool) {
	if i := p.indexOf(next.ID); i >= 0 {
		if p.Month.Contains(next.Date, p.loc) {
			p.Transactions[i] = next
		} else {
			p.Transactions = append(p.Transactions[:i], p.Transactions[i+1:]...)
		}
	} else if p.Month.Contains(next.Date, p.loc) {
		p.Transactions = append(p.Transactions, next)
	}
	SortByDate(p.Transactions, SortDesc)

	if p.carriesWatermark(prev.Date) && next.Date.After(prev.Date) {
		return true
	}
	p.lowerWatermark(next.Date)
	return false
}

// Remove drops prev from the page. It reports whether the watermark has to
// be recomputed because prev was the oldest transaction.
func (p *MonthPage) Remove(prev Transaction) (recompute bool) {
	if i := p.indexOf(prev.ID); i >= 0 {
		p.Transactions = append(p.Transactions[:i], p.Transactions[i+1:]...)
	}
	return p.carriesWatermark(prev.Date)
}

func (p *MonthPage) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range p.Transactions {
		if p.Transactions[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *MonthPage) carriesWatermark(d time.Time) bool {
	return p.OldestDate != nil && !d.After(*p.OldestDate)
}

func (p *MonthPage) lowerWatermark(d time.Time) {
	if p.OldestDate == nil || d.Before(*p.OldestDate) {
		p.SetWatermark(&d)
	}
}
