package insights

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"receipts/internal/core"
)

// Options configures Engine and BudgetAdvisor.
type Options struct {
	// AI is the model-backed provider. Leave nil when no credential is configured.
	AI InsightProvider
	// Timeout bounds each model call. Zero means no extra deadline.
	Timeout  time.Duration
	Logger   *slog.Logger
	Recorder Recorder
}

type runner struct {
	ai        InsightProvider
	heuristic HeuristicProvider
	timeout   time.Duration
	logger    *slog.Logger
	recorder  Recorder
}

func newRunner(opts Options) runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return runner{
		ai:       opts.AI,
		timeout:  opts.Timeout,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// HasAI reports whether the model path is configured.
func (r runner) HasAI() bool { return r.ai != nil }

func (r runner) aiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

func (r runner) record(kind, path string) {
	if r.recorder != nil {
		r.recorder.InsightGenerated(kind, path)
	}
}

// text runs gen against the AI provider when configured and falls back to the
// heuristic provider on any AI error.
func (r runner) text(ctx context.Context, kind string, gen func(context.Context, InsightProvider) (string, error)) (Result, error) {
	if r.ai != nil {
		aiCtx, cancel := r.aiContext(ctx)
		out, err := gen(aiCtx, r.ai)
		cancel()
		if err == nil {
			r.record(kind, PathAI)
			return Result{Text: out, Path: PathAI}, nil
		}
		r.logger.WarnContext(ctx, "AI generation failed, using heuristic fallback",
			"kind", kind, "error", err, "timeout", errors.Is(err, context.DeadlineExceeded))
	}

	out, err := gen(ctx, r.heuristic)
	if err != nil {
		return Result{}, err
	}
	if r.ai != nil {
		r.record(kind, PathFallback)
		return Result{Text: out, Fallback: true, Path: PathFallback}, nil
	}
	r.record(kind, PathHeuristic)
	return Result{Text: out, Path: PathHeuristic}, nil
}

// Engine generates markdown spending insights.
type Engine struct {
	runner
}

func NewEngine(opts Options) *Engine {
	return &Engine{runner: newRunner(opts)}
}

// Generate returns up to maxInsights bullet insights for the first MaxReceipts receipts.
// maxInsights is clamped to [1, MaxInsights]; zero means DefaultMaxInsights.
func (e *Engine) Generate(ctx context.Context, receipts []core.Receipt, maxInsights int) (Result, error) {
	if len(receipts) == 0 {
		return Result{}, core.ErrNoReceipts
	}
	receipts = capReceipts(receipts)
	n := ClampInsights(maxInsights)

	res, err := e.text(ctx, KindInsights, func(ctx context.Context, p InsightProvider) (string, error) {
		return p.Insights(ctx, receipts, n)
	})
	if err != nil {
		return Result{}, err
	}
	e.logger.InfoContext(ctx, "Insights generated", "receipts", len(receipts), "path", res.Path)
	return res, nil
}

// BudgetAdvisor produces budget suggestions and saving advice.
type BudgetAdvisor struct {
	runner
}

func NewBudgetAdvisor(opts Options) *BudgetAdvisor {
	return &BudgetAdvisor{runner: newRunner(opts)}
}

// SuggestBudgets proposes one monthly budget per category. Unparseable model
// output yields an empty list without fallback; a failing model call yields
// the heuristic suggestions with fallback set.
func (a *BudgetAdvisor) SuggestBudgets(ctx context.Context, categories []CategorySpend) ([]BudgetSuggestion, bool, error) {
	if len(categories) == 0 {
		return nil, false, core.ErrNoCategories
	}

	if a.ai != nil {
		aiCtx, cancel := a.aiContext(ctx)
		out, err := a.ai.BudgetSuggestions(aiCtx, categories)
		cancel()
		switch {
		case err == nil:
			a.record(KindBudget, PathAI)
			return out, false, nil
		case errors.Is(err, ErrUnparseableOutput):
			a.record(KindBudget, PathAI)
			return []BudgetSuggestion{}, false, nil
		default:
			a.logger.WarnContext(ctx, "AI budget suggestions failed, using heuristic fallback", "error", err)
		}
	}

	out, err := a.heuristic.BudgetSuggestions(ctx, categories)
	if err != nil {
		return nil, false, err
	}
	if a.ai != nil {
		a.record(KindBudget, PathFallback)
		return out, true, nil
	}
	a.record(KindBudget, PathHeuristic)
	return out, false, nil
}

// SavingAdvice returns markdown saving tips for the first MaxReceipts receipts.
// maxTips is clamped to [MinTips, MaxTips]; zero means DefaultMaxTips.
func (a *BudgetAdvisor) SavingAdvice(ctx context.Context, receipts []core.Receipt, maxTips int) (Result, error) {
	if len(receipts) == 0 {
		return Result{}, core.ErrNoReceipts
	}
	receipts = capReceipts(receipts)
	n := ClampTips(maxTips)

	return a.text(ctx, KindAdvice, func(ctx context.Context, p InsightProvider) (string, error) {
		return p.SavingAdvice(ctx, receipts, n)
	})
}
