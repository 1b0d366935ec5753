// Package report turns stored receipts into CSV, XLSX and aggregate summaries.
//
// Every function here is pure: it works on an in-memory slice and never
// touches the store.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"receipts/internal/core"
)

// Defaults substituted for missing receipt fields in exports.
const (
	DefaultVendor        = "Unknown"
	DefaultCategory      = "Uncategorized"
	DefaultPaymentMethod = "Unknown"
	DefaultCurrency      = "USD"
	DefaultStatus        = string(core.StatusProcessed)
)

// NotAvailable marks a summary period without any parseable date.
const NotAvailable = "N/A"

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"Date", "Vendor", "Amount", "Currency", "Category", "Payment Method", "Tax", "Status"}

// Row is one export line with defaults applied.
type Row struct {
	Date          string
	Vendor        string
	Amount        float64
	Currency      string
	Category      string
	PaymentMethod string
	Tax           float64
	Status        string
}

// RowOf applies export defaults to r.
func RowOf(r core.Receipt) Row {
	return Row{
		Date:          r.Date.Display(),
		Vendor:        orDefault(r.Vendor, DefaultVendor),
		Amount:        r.Total,
		Currency:      orDefault(r.Currency, DefaultCurrency),
		Category:      orDefault(r.Category, DefaultCategory),
		PaymentMethod: orDefault(r.PaymentMethod, DefaultPaymentMethod),
		Tax:           r.Tax,
		Status:        orDefault(string(r.Status), DefaultStatus),
	}
}

// Values returns the row cells in CSVHeader order.
func (row Row) Values() []any {
	return []any{row.Date, row.Vendor, row.Amount, row.Currency, row.Category, row.PaymentMethod, row.Tax, row.Status}
}

// Strings returns the row cells as text, amounts formatted as in ToCSV.
func (row Row) Strings() []string {
	return []string{
		row.Date, row.Vendor, core.FormatAmount(row.Amount), row.Currency,
		row.Category, row.PaymentMethod, core.FormatAmount(row.Tax), row.Status,
	}
}

// ToCSV renders receipts in input order. Text cells are always quoted.
func ToCSV(receipts []core.Receipt) string {
	var b strings.Builder
	b.WriteString(strings.Join(CSVHeader, ","))
	for _, r := range receipts {
		row := RowOf(r)
		b.WriteByte('\n')
		b.WriteString(strings.Join([]string{
			quote(row.Date),
			quote(row.Vendor),
			core.FormatAmount(row.Amount),
			quote(row.Currency),
			quote(row.Category),
			quote(row.PaymentMethod),
			core.FormatAmount(row.Tax),
			quote(row.Status),
		}, ","))
	}
	return b.String()
}

// Summarize aggregates receipts into totals and category/month breakdowns.
func Summarize(receipts []core.Receipt) core.Summary {
	s := core.Summary{
		Period:     core.Period{Start: NotAvailable, End: NotAvailable},
		ByCategory: []core.CategoryAmount{},
		ByMonth:    []core.MonthAmount{},
	}

	total := decimal.Zero
	var first, last time.Time
	var categoryOrder []string
	byCategory := make(map[string]decimal.Decimal)
	byMonth := make(map[string]decimal.Decimal)

	for _, r := range receipts {
		amount := decimal.NewFromFloat(r.Total)
		total = total.Add(amount)

		cat := orDefault(r.Category, DefaultCategory)
		if _, seen := byCategory[cat]; !seen {
			categoryOrder = append(categoryOrder, cat)
		}
		byCategory[cat] = byCategory[cat].Add(amount)

		if !r.Date.Valid() {
			continue
		}
		byMonth[r.Date.MonthKey()] = byMonth[r.Date.MonthKey()].Add(amount)
		if first.IsZero() || r.Date.Before(first) {
			first = r.Date.Time
		}
		if last.IsZero() || r.Date.After(last) {
			last = r.Date.Time
		}
	}

	if !first.IsZero() {
		s.Period = core.Period{Start: first.Format("2006-01-02"), End: last.Format("2006-01-02")}
	}

	s.Totals.Receipts = len(receipts)
	s.Totals.Amount = total.InexactFloat64()
	if len(receipts) > 0 {
		s.Totals.Average = total.Div(decimal.NewFromInt(int64(len(receipts)))).InexactFloat64()
	}

	for _, cat := range categoryOrder {
		s.ByCategory = append(s.ByCategory, core.CategoryAmount{Category: cat, Amount: byCategory[cat].InexactFloat64()})
	}
	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		return s.ByCategory[i].Amount > s.ByCategory[j].Amount
	})

	for month, amount := range byMonth {
		s.ByMonth = append(s.ByMonth, core.MonthAmount{Month: month, Amount: amount.InexactFloat64()})
	}
	sort.Slice(s.ByMonth, func(i, j int) bool {
		return s.ByMonth[i].Month > s.ByMonth[j].Month
	})

	return s
}

// Filename builds an export file name such as "receipts-export-2026-10-18.csv".
func Filename(prefix, ext string, now time.Time) string {
	if prefix == "" {
		prefix = "receipts-export"
	}
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
