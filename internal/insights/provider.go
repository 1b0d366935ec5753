// Package insights generates spending insights, saving advice and budget
// suggestions from receipts. A model-backed provider is used when one is
// configured; a deterministic heuristic provider covers every other case.
package insights

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"receipts/internal/core"
)

// Limits applied to every request.
const (
	MaxReceipts        = 400
	DefaultMaxInsights = 10
	MaxInsights        = 50
	DefaultMaxTips     = 25
	MinTips            = 5
	MaxTips            = 50
	MinBullets         = 5
)

// Generation paths reported in metrics and logs.
const (
	PathAI        = "ai"
	PathHeuristic = "heuristic"
	PathFallback  = "fallback"
)

// Result kinds.
const (
	KindInsights = "insights"
	KindAdvice   = "advice"
	KindBudget   = "budget"
)

var (
	// ErrQualityGate is returned when model output has too few bullet points.
	ErrQualityGate = errors.New("model output failed quality gate")
	// ErrUnparseableOutput is returned when model output is not the requested JSON.
	ErrUnparseableOutput = errors.New("model output is not valid budget JSON")
)

// Result is generated markdown text. Fallback is set when the model path was
// attempted and the heuristic output replaced it.
type Result struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Path     string `json:"-"`
}

// CategorySpend is one budget-suggestion input row.
type CategorySpend struct {
	Category            string  `json:"category"`
	LastThreeMonthTotal float64 `json:"lastThreeMonthTotal"`
}

// BudgetSuggestion is a proposed monthly budget in whole currency units.
type BudgetSuggestion struct {
	Category        string  `json:"category"`
	SuggestedBudget float64 `json:"suggested_budget"`
}

// InsightProvider produces insight, advice and budget output.
type InsightProvider interface {
	Name() string
	Insights(ctx context.Context, receipts []core.Receipt, maxInsights int) (string, error)
	SavingAdvice(ctx context.Context, receipts []core.Receipt, maxTips int) (string, error)
	BudgetSuggestions(ctx context.Context, categories []CategorySpend) ([]BudgetSuggestion, error)
}

// Recorder receives one call per produced result.
type Recorder interface {
	InsightGenerated(kind, path string)
}

var bulletLine = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)\S`)

// CountBullets counts top-level bullet or numbered-list lines. Indented lines do not count.
func CountBullets(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if bulletLine.MatchString(strings.TrimRight(line, "\r")) {
			n++
		}
	}
	return n
}

// PassesQualityGate reports whether text has at least MinBullets top-level bullets.
func PassesQualityGate(text string) bool {
	return CountBullets(text) >= MinBullets
}

// ClampInsights bounds n to [1, MaxInsights]; zero or negative means DefaultMaxInsights.
func ClampInsights(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxInsights
	case n > MaxInsights:
		return MaxInsights
	default:
		return n
	}
}

// ClampTips bounds n to [MinTips, MaxTips]; zero or negative means DefaultMaxTips.
func ClampTips(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxTips
	case n < MinTips:
		return MinTips
	case n > MaxTips:
		return MaxTips
	default:
		return n
	}
}

// capReceipts keeps the first MaxReceipts receipts in caller order.
func capReceipts(receipts []core.Receipt) []core.Receipt {
	if len(receipts) > MaxReceipts {
		return receipts[:MaxReceipts]
	}
	return receipts
}
