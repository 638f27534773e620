package domain

// ============================================================
// Dev Tools: endpoints for development/testing
// ============================================================

// SeedRequest is the body for POST /v1/dev/seed-transactions.
// Zero values fall back to 30 transactions over 6 months.
type SeedRequest struct {
	Count  int `json:"count" validate:"gte=0,lte=500"`
	Months int `json:"months" validate:"gte=0,lte=36"` // how many months back, current month included
}

// SeedResult is returned by POST /v1/dev/seed-transactions.
type SeedResult struct {
	Created int    `json:"created"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}
