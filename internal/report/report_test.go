package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"receipts/internal/core"
)

func receipt(vendor string, total float64, category, date string) core.Receipt {
	return core.Receipt{Vendor: vendor, Total: total, Category: category, Date: core.ParseDate(date)}
}

func TestToCSV(t *testing.T) {
	receipts := []core.Receipt{
		{Vendor: "Acme, Inc.", Total: 12.5, Category: "Shopping", Date: core.ParseDate("2024-03-05"), Currency: "EUR", PaymentMethod: "Card", Tax: 1.25, Status: core.StatusProcessed},
		{Total: 3},
		{Vendor: `Joe's "Diner"`, Total: 20, Category: "Restaurants", Date: core.ParseDate("not a date")},
	}

	got := ToCSV(receipts)
	lines := strings.Split(got, "\n")
	if len(lines) != len(receipts)+1 {
		t.Fatalf("got %d lines, want %d", len(lines), len(receipts)+1)
	}
	if lines[0] != "Date,Vendor,Amount,Currency,Category,Payment Method,Tax,Status" {
		t.Errorf("header = %q", lines[0])
	}

	tests := []struct {
		name string
		line string
		want string
	}{
		{"full row", lines[1], `"Mar 5, 2024","Acme, Inc.",12.5,"EUR","Shopping","Card",1.25,"processed"`},
		{"defaults", lines[2], `"Unknown Date","Unknown",3,"USD","Uncategorized","Unknown",0,"processed"`},
		{"escaped quotes and invalid date", lines[3], `"Invalid Date","Joe's ""Diner""",20,"USD","Restaurants","Unknown",0,"processed"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.line != tt.want {
				t.Errorf("row = %s\nwant  %s", tt.line, tt.want)
			}
		})
	}
}

func TestToCSVQuotesVendorAndCategory(t *testing.T) {
	receipts := []core.Receipt{
		receipt("A", 1, "X", "2024-01-01"),
		receipt("B", 2, "Y", "2024-01-02"),
	}
	lines := strings.Split(ToCSV(receipts), "\n")
	for i, r := range receipts {
		row := lines[i+1]
		if !strings.Contains(row, `"`+r.Vendor+`"`) || !strings.Contains(row, `"`+r.Category+`"`) {
			t.Errorf("row %d %q does not quote vendor and category", i, row)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Totals.Receipts != 0 || s.Totals.Amount != 0 || s.Totals.Average != 0 {
		t.Errorf("unexpected totals %+v", s.Totals)
	}
	if s.Period.Start != NotAvailable || s.Period.End != NotAvailable {
		t.Errorf("period = %+v, want N/A", s.Period)
	}
	if s.ByCategory == nil || len(s.ByCategory) != 0 || s.ByMonth == nil || len(s.ByMonth) != 0 {
		t.Errorf("breakdowns should be empty lists: %+v %+v", s.ByCategory, s.ByMonth)
	}
}

func TestSummarize(t *testing.T) {
	receipts := []core.Receipt{
		receipt("A", 0.1, "Food", "2024-02-10"),
		receipt("B", 0.2, "Fuel", "2024-01-05"),
		receipt("C", 0.2, "Food", "2024-03-01"),
		receipt("D", 0.3, "Fuel", "garbage"),
		receipt("E", 0.5, "", ""),
	}

	s := Summarize(receipts)

	if s.Totals.Receipts != 5 {
		t.Errorf("receipts = %d", s.Totals.Receipts)
	}
	if s.Totals.Amount != 1.3 {
		t.Errorf("amount = %v, want 1.3", s.Totals.Amount)
	}
	if s.Totals.Average != 0.26 {
		t.Errorf("average = %v, want 0.26", s.Totals.Average)
	}
	if s.Period.Start != "2024-01-05" || s.Period.End != "2024-03-01" {
		t.Errorf("period = %+v", s.Period)
	}

	wantCats := []core.CategoryAmount{{Category: "Fuel", Amount: 0.5}, {Category: "Uncategorized", Amount: 0.5}, {Category: "Food", Amount: 0.3}}
	if len(s.ByCategory) != len(wantCats) {
		t.Fatalf("by_category = %+v", s.ByCategory)
	}
	for i, c := range wantCats {
		if s.ByCategory[i] != c {
			t.Errorf("by_category[%d] = %+v, want %+v", i, s.ByCategory[i], c)
		}
	}

	wantMonths := []string{"2024-03", "2024-02", "2024-01"}
	if len(s.ByMonth) != len(wantMonths) {
		t.Fatalf("by_month = %+v", s.ByMonth)
	}
	for i, m := range wantMonths {
		if s.ByMonth[i].Month != m {
			t.Errorf("by_month[%d] = %s, want %s", i, s.ByMonth[i].Month, m)
		}
	}
}

func TestSummarizeAmountIsOrderInsensitive(t *testing.T) {
	receipts := []core.Receipt{
		receipt("A", 19.99, "X", ""),
		receipt("B", 0.01, "Y", ""),
		receipt("C", 100.1, "X", ""),
		receipt("D", 7.3, "Z", ""),
	}
	reversed := make([]core.Receipt, len(receipts))
	for i, r := range receipts {
		reversed[len(receipts)-1-i] = r
	}
	a, b := Summarize(receipts).Totals.Amount, Summarize(reversed).Totals.Amount
	if a != b || a != 127.4 {
		t.Errorf("amounts %v and %v, want 127.4", a, b)
	}
}

func TestSummarizeCategoryTiesKeepFirstSeen(t *testing.T) {
	receipts := []core.Receipt{
		receipt("A", 5, "Beta", ""),
		receipt("B", 5, "Alpha", ""),
		receipt("C", 9, "Gamma", ""),
	}
	s := Summarize(receipts)
	got := []string{s.ByCategory[0].Category, s.ByCategory[1].Category, s.ByCategory[2].Category}
	want := []string{"Gamma", "Beta", "Alpha"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFilterByPeriod(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	fifteenDaysAgo := now.AddDate(0, 0, -15).Format("2006-01-02")
	twoMonthsAgo := now.AddDate(0, -2, 0).Format("2006-01-02")
	thirteenMonthsAgo := now.AddDate(0, -13, 0).Format("2006-01-02")

	receipts := []core.Receipt{
		receipt("recent", 1, "X", fifteenDaysAgo),
		receipt("two-months", 1, "X", twoMonthsAgo),
		receipt("old", 1, "X", thirteenMonthsAgo),
		receipt("undated", 1, "X", ""),
		receipt("future", 1, "X", "2024-07-01"),
	}

	tests := []struct {
		period string
		want   []string
	}{
		{"all", []string{"recent", "two-months", "old", "undated", "future"}},
		{"", []string{"recent", "two-months", "old", "undated", "future"}},
		{"month", []string{"recent"}},
		{"quarter", []string{"recent", "two-months"}},
		{"YEAR", []string{"recent", "two-months"}},
	}
	for _, tt := range tests {
		t.Run("period "+tt.period, func(t *testing.T) {
			got, err := FilterByPeriod(receipts, tt.period, now)
			if err != nil {
				t.Fatalf("FilterByPeriod: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d receipts, want %v", len(got), tt.want)
			}
			for i, v := range tt.want {
				if got[i].Vendor != v {
					t.Errorf("got[%d] = %s, want %s", i, got[i].Vendor, v)
				}
			}
		})
	}
}

func TestFilterByPeriodUnknown(t *testing.T) {
	_, err := FilterByPeriod(nil, "decade", time.Now())
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if !core.IsClientError(err) {
		t.Fatal("invalid period should be a client error")
	}
}

func TestFilterByWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got := FilterByWindow([]core.Receipt{
		receipt("in", 1, "X", "2024-06-10"),
		receipt("out", 1, "X", "2024-06-01"),
	}, weekWindow{}, now)
	if _, err := GetPeriodWindow("week"); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("custom windows must not leak into the period registry, got %v", err)
	}
	if len(got) != 1 || got[0].Vendor != "in" {
		t.Fatalf("unexpected result %+v", got)
	}
}

type weekWindow struct{}

func (weekWindow) Contains(d core.Date, now time.Time) bool {
	return d.Valid() && now.Sub(d.Time) <= 7*24*time.Hour
}

func TestSummarizeKeepsOffsetWallClockDate(t *testing.T) {
	s := Summarize([]core.Receipt{receipt("Late", 5, "X", "2024-01-31T20:00:00-05:00")})

	if len(s.ByMonth) != 1 || s.ByMonth[0].Month != "2024-01" {
		t.Errorf("by_month = %+v, want 2024-01", s.ByMonth)
	}
	if s.Period.Start != "2024-01-31" || s.Period.End != "2024-01-31" {
		t.Errorf("period = %+v, want 2024-01-31", s.Period)
	}
	if !strings.Contains(ToCSV([]core.Receipt{receipt("Late", 5, "X", "2024-01-31T20:00:00-05:00")}), `"Jan 31, 2024"`) {
		t.Error("csv date should keep the wall-clock day")
	}
}

func TestFilterByPeriodOffsetDate(t *testing.T) {
	// 2024-06-14T22:00-05:00 is 2024-06-15T03:00Z, after now.
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := FilterByPeriod([]core.Receipt{
		receipt("inside", 1, "X", "2024-06-14T18:00:00-05:00"),
		receipt("future", 1, "X", "2024-06-14T22:00:00-05:00"),
	}, PeriodMonth, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Vendor != "inside" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		prefix, ext, want string
	}{
		{"", "csv", "receipts-export-2026-10-18.csv"},
		{"receipts-summary", ".json", "receipts-summary-2026-10-18.json"},
	}
	for _, tt := range tests {
		if got := Filename(tt.prefix, tt.ext, now); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.prefix, tt.ext, got, tt.want)
		}
	}
}

func TestToXLSX(t *testing.T) {
	receipts := []core.Receipt{
		receipt("A", 10, "X", "2024-01-02"),
		receipt("B", 100, "Y", "2024-02-03"),
	}
	data, err := ToXLSX(receipts, Summarize(receipts))
	if err != nil {
		t.Fatalf("ToXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(receiptsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "Date" || rows[2][1] != "B" {
		t.Fatalf("unexpected receipts sheet %v", rows)
	}

	total, err := f.GetCellValue(summarySheet, "B3")
	if err != nil || total != "110" {
		t.Fatalf("summary total = %q, %v", total, err)
	}
}
