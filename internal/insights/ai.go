package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"receipts/internal/cache"
	"receipts/internal/core"
	"receipts/internal/llm"
)

// AIProvider asks a chat model for output. Accepted responses are cached.
type AIProvider struct {
	llm    llm.Completer
	model  string
	cache  cache.Cache[string]
	logger *slog.Logger
}

var _ InsightProvider = (*AIProvider)(nil)

// NewAIProvider wraps completer. model only scopes cache keys; c may be nil.
func NewAIProvider(completer llm.Completer, model string, c cache.Cache[string], logger *slog.Logger) *AIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIProvider{llm: completer, model: model, cache: c, logger: logger}
}

func (p *AIProvider) Name() string { return PathAI }

func (p *AIProvider) Insights(ctx context.Context, receipts []core.Receipt, maxInsights int) (string, error) {
	prompt := llm.Prompt{
		System: "You are a personal finance analyst. Reply with markdown bullet points only, no preamble or conclusion.",
		User: fmt.Sprintf(`Analyze these receipts and write up to %d concise insights as markdown bullet points.
Cover category concentration, daily and average spend, trends over time, anomalies,
vendor frequency and concrete recommendations. Reference real categories and vendors.

Receipts (JSON):
%s`, ClampInsights(maxInsights), receiptsJSON(receipts)),
	}
	out, err := p.ask(ctx, KindInsights, prompt, PassesQualityGate)
	if err != nil {
		return "", err
	}
	if !PassesQualityGate(out) {
		return "", fmt.Errorf("%w: %d bullets", ErrQualityGate, CountBullets(out))
	}
	return out, nil
}

func (p *AIProvider) SavingAdvice(ctx context.Context, receipts []core.Receipt, maxTips int) (string, error) {
	prompt := llm.Prompt{
		System: "You are a frugal personal finance coach. Reply in markdown only.",
		User: fmt.Sprintf(`Write at most %d saving tips for the receipts below, grouped under these markdown headings:
## High-ticket purchases
## Subscriptions
## Grocery optimization
## Eating out
## Miscellaneous
Each tip is a bullet point that references concrete categories or vendors from the data.

Receipts (JSON):
%s`, ClampTips(maxTips), receiptsJSON(receipts)),
	}
	accept := func(s string) bool { return CountBullets(s) > 0 }
	out, err := p.ask(ctx, KindAdvice, prompt, accept)
	if err != nil {
		return "", err
	}
	if !accept(out) {
		return "", fmt.Errorf("%w: no bullet tips", ErrQualityGate)
	}
	return out, nil
}

// BudgetSuggestions returns ErrUnparseableOutput when the reply is not a JSON
// array of {category, suggested_budget} objects.
func (p *AIProvider) BudgetSuggestions(ctx context.Context, categories []CategorySpend) ([]BudgetSuggestion, error) {
	in, _ := json.Marshal(categories)
	prompt := llm.Prompt{
		System: "You are a budgeting assistant. Reply with JSON only.",
		User: fmt.Sprintf(`For each category below, propose one monthly budget in whole currency units based on
its total spend over the last three months. Return ONLY a JSON array of objects with exactly the keys
"category" and "suggested_budget" (a number). No other keys, no prose.

Categories (JSON):
%s`, in),
	}
	accept := func(s string) bool {
		_, err := decodeBudgets(s)
		return err == nil
	}
	out, err := p.ask(ctx, KindBudget, prompt, accept)
	if err != nil {
		return nil, err
	}
	suggestions, err := decodeBudgets(out)
	if err != nil {
		p.logger.WarnContext(ctx, "Budget suggestions unparseable", "error", err, "content_len", len(out))
		return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}
	return suggestions, nil
}

// ask returns a cached response when present; otherwise it calls the model
// and caches the response when accept approves it.
func (p *AIProvider) ask(ctx context.Context, kind string, prompt llm.Prompt, accept func(string) bool) (string, error) {
	key := cache.Key(kind, p.model, prompt.System, prompt.User)
	if p.cache != nil {
		if v, ok := p.cache.Get(ctx, key); ok {
			p.logger.DebugContext(ctx, "AI response served from cache", "kind", kind)
			return v, nil
		}
	}
	out, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return "", core.NewDependencyError("llm", err)
	}
	if p.cache != nil && accept(out) {
		p.cache.Set(ctx, key, out)
	}
	return out, nil
}

func decodeBudgets(s string) ([]BudgetSuggestion, error) {
	raw := []byte(llm.StripCodeFences(s))
	if err := llm.ValidateJSONAgainstSchema(llm.BudgetSuggestionsSchema(), raw); err != nil {
		return nil, err
	}
	var out []BudgetSuggestion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	if out == nil {
		out = []BudgetSuggestion{}
	}
	return out, nil
}

type promptReceipt struct {
	Vendor        string  `json:"vendor"`
	Total         float64 `json:"total"`
	Category      string  `json:"category"`
	Date          string  `json:"date,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

func receiptsJSON(receipts []core.Receipt) string {
	rows := make([]promptReceipt, 0, len(receipts))
	for _, r := range receipts {
		date := r.Date.ISO()
		if date == "" {
			date = r.Date.Raw
		}
		rows = append(rows, promptReceipt{
			Vendor:        vendorName(r),
			Total:         r.Total,
			Category:      strings.TrimSpace(r.Category),
			Date:          date,
			PaymentMethod: r.PaymentMethod,
		})
	}
	b, _ := json.Marshal(rows)
	return string(b)
}
