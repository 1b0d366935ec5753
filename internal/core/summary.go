package core

// CategoryAmount is spend aggregated by category name.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// MonthAmount is spend aggregated by YYYY-MM bucket.
type MonthAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// Period is the date range covered by a summary. Both ends are "N/A" when no date parsed.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Totals holds count, sum and mean of receipt totals.
type Totals struct {
	Receipts int     `json:"receipts"`
	Amount   float64 `json:"amount"`
	Average  float64 `json:"average"`
}

// Summary is the aggregate view over a receipt collection.
type Summary struct {
	Period     Period           `json:"period"`
	Totals     Totals           `json:"totals"`
	ByCategory []CategoryAmount `json:"by_category"`
	ByMonth    []MonthAmount    `json:"by_month"`
}
