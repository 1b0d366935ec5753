package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"receipts/internal/core"
	"receipts/internal/report"
)

// dailyWindowDays is the fixed window used for the average daily spend.
const dailyWindowDays = 30

// HeuristicProvider computes deterministic output from the receipts alone.
type HeuristicProvider struct{}

var _ InsightProvider = HeuristicProvider{}

func (HeuristicProvider) Name() string { return PathHeuristic }

// Insights renders up to maxInsights bullets: totals, averages, top category,
// most frequent vendor and largest receipt. Ties go to the first occurrence.
func (HeuristicProvider) Insights(_ context.Context, receipts []core.Receipt, maxInsights int) (string, error) {
	if len(receipts) == 0 {
		return "", core.ErrNoReceipts
	}
	st := computeStats(receipts)

	bullets := []string{
		fmt.Sprintf("Total spend: %s across %s", core.FormatUSD(st.total), plural(len(receipts), "receipt")),
		fmt.Sprintf("Average receipt: %s; average daily spend over %d days: %s",
			core.FormatUSD(st.average), dailyWindowDays, core.FormatUSD(st.total/dailyWindowDays)),
		fmt.Sprintf("Top category: %s at %s (%s%% of total spend)",
			st.topCategory.Category, core.FormatUSD(st.topCategory.Amount), share(st.topCategory.Amount, st.total)),
		fmt.Sprintf("Most frequent vendor: %s (%s)", st.topVendor, plural(st.topVendorCount, "receipt")),
		fmt.Sprintf("Largest purchase: %s at %s", core.FormatUSD(st.largest.Total), vendorName(st.largest)),
	}
	return renderBullets(bullets, ClampInsights(maxInsights)), nil
}

// SavingAdvice flags vendors with receipts above 1.5x the average receipt and
// adds general guidance referencing them.
func (HeuristicProvider) SavingAdvice(_ context.Context, receipts []core.Receipt, maxTips int) (string, error) {
	if len(receipts) == 0 {
		return "", core.ErrNoReceipts
	}
	st := computeStats(receipts)
	flagged := HighTicketVendors(receipts, st.average)

	var bullets []string
	bullets = append(bullets, fmt.Sprintf("Your average receipt is %s across %s.",
		core.FormatUSD(st.average), plural(len(receipts), "receipt")))
	if len(flagged) > 0 {
		bullets = append(bullets, fmt.Sprintf("Review high-ticket purchases at %s: these receipts exceed 1.5x your average of %s.",
			strings.Join(flagged, ", "), core.FormatUSD(st.average)))
		bullets = append(bullets, fmt.Sprintf("Before the next purchase at %s, compare prices or wait 48 hours.", flagged[0]))
	} else {
		bullets = append(bullets, fmt.Sprintf("No vendor stands out above 1.5x your average of %s; keep purchases in that range.",
			core.FormatUSD(st.average)))
	}
	bullets = append(bullets,
		fmt.Sprintf("Set a monthly cap for %s, your largest category at %s.", st.topCategory.Category, core.FormatUSD(st.topCategory.Amount)),
		"Audit recurring charges and cancel subscriptions you no longer use.",
		"Plan grocery trips with a list and compare unit prices.",
		"Cook at home more often to cut eating-out spend.",
		fmt.Sprintf("Track small purchases at %s; frequent visits add up.", st.topVendor),
	)
	return "## Saving advice\n\n" + renderBullets(bullets, ClampTips(maxTips)), nil
}

// BudgetSuggestions proposes round(total/3) per category, half away from zero.
func (HeuristicProvider) BudgetSuggestions(_ context.Context, categories []CategorySpend) ([]BudgetSuggestion, error) {
	if len(categories) == 0 {
		return nil, core.ErrNoCategories
	}
	out := make([]BudgetSuggestion, 0, len(categories))
	three := decimal.NewFromInt(3)
	for _, c := range categories {
		monthly := decimal.NewFromFloat(c.LastThreeMonthTotal).Div(three).Round(0)
		out = append(out, BudgetSuggestion{Category: c.Category, SuggestedBudget: monthly.InexactFloat64()})
	}
	return out, nil
}

// HighTicketVendors returns the distinct vendors, in first-seen order, of
// receipts whose total exceeds 1.5 times average.
func HighTicketVendors(receipts []core.Receipt, average float64) []string {
	threshold := decimal.NewFromFloat(average).Mul(decimal.NewFromFloat(1.5))
	seen := make(map[string]bool)
	var out []string
	for _, r := range receipts {
		if !decimal.NewFromFloat(r.Total).GreaterThan(threshold) {
			continue
		}
		v := vendorName(r)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type stats struct {
	total          float64
	average        float64
	topCategory    core.CategoryAmount
	topVendor      string
	topVendorCount int
	largest        core.Receipt
}

func computeStats(receipts []core.Receipt) stats {
	summary := report.Summarize(receipts)
	st := stats{
		total:   summary.Totals.Amount,
		average: summary.Totals.Average,
	}
	if len(summary.ByCategory) > 0 {
		st.topCategory = summary.ByCategory[0]
	}

	counts := make(map[string]int)
	var order []string
	for i, r := range receipts {
		v := vendorName(r)
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
		if i == 0 || r.Total > st.largest.Total {
			st.largest = r
		}
	}
	for _, v := range order {
		if counts[v] > st.topVendorCount {
			st.topVendor = v
			st.topVendorCount = counts[v]
		}
	}
	return st
}

func share(part, total float64) string {
	if total == 0 {
		return "0.0"
	}
	return decimal.NewFromFloat(part).Div(decimal.NewFromFloat(total)).Mul(decimal.NewFromInt(100)).StringFixed(1)
}

func vendorName(r core.Receipt) string {
	if strings.TrimSpace(r.Vendor) == "" {
		return report.DefaultVendor
	}
	return r.Vendor
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func renderBullets(bullets []string, limit int) string {
	if limit > 0 && len(bullets) > limit {
		bullets = bullets[:limit]
	}
	var b strings.Builder
	for i, line := range bullets {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(line)
	}
	return b.String()
}
