package report

import (
	"strings"
	"time"

	"receipts/internal/core"
)

// Period names accepted by FilterByPeriod.
const (
	PeriodAll     = "all"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// PeriodWindow decides whether a receipt date falls inside a reporting period.
type PeriodWindow interface {
	// Contains reports whether date lies in the window ending at now.
	Contains(date core.Date, now time.Time) bool
}

// AllWindow keeps every receipt, dated or not.
type AllWindow struct{}

func (AllWindow) Contains(core.Date, time.Time) bool { return true }

// TrailingMonthsWindow keeps receipts dated within the last N calendar months, inclusive of now.
type TrailingMonthsWindow struct {
	Months int
}

func (w TrailingMonthsWindow) Contains(date core.Date, now time.Time) bool {
	if !date.Valid() {
		return false
	}
	start := now.AddDate(0, -w.Months, 0)
	t := date.Time
	return !t.Before(start) && !t.After(now)
}

// periodWindows is read-only after init.
var periodWindows = map[string]PeriodWindow{
	PeriodAll:     AllWindow{},
	PeriodMonth:   TrailingMonthsWindow{Months: 1},
	PeriodQuarter: TrailingMonthsWindow{Months: 3},
	PeriodYear:    TrailingMonthsWindow{Months: 12},
}

// GetPeriodWindow returns the window registered for period. An empty period means all.
func GetPeriodWindow(period string) (PeriodWindow, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = PeriodAll
	}
	w, ok := periodWindows[period]
	if !ok {
		return nil, core.ErrInvalidPeriod
	}
	return w, nil
}

// FilterByPeriod keeps the receipts whose date falls in period relative to now.
// Input order is preserved.
func FilterByPeriod(receipts []core.Receipt, period string, now time.Time) ([]core.Receipt, error) {
	w, err := GetPeriodWindow(period)
	if err != nil {
		return nil, err
	}
	return FilterByWindow(receipts, w, now), nil
}

// FilterByWindow keeps the receipts whose date w contains. Input order is preserved.
func FilterByWindow(receipts []core.Receipt, w PeriodWindow, now time.Time) []core.Receipt {
	if _, all := w.(AllWindow); all {
		return receipts
	}
	now = now.UTC()
	out := make([]core.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if w.Contains(r.Date, now) {
			out = append(out, r)
		}
	}
	return out
}
