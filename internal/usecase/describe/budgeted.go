package describe

import (
	"context"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
	domusage "github.com/kailas-cloud/pictura/internal/domain/usage"
)

// BudgetChecker gates and records provider token usage.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(used domusage.Tokens)
}

// Budgeted wraps a Describer with a token budget.
type Budgeted struct {
	inner  domain.Describer
	budget BudgetChecker
}

// NewBudgeted creates a budget-enforcing describer.
func NewBudgeted(inner domain.Describer, budget BudgetChecker) *Budgeted {
	return &Budgeted{inner: inner, budget: budget}
}

// Describe checks the budget, calls the provider and records the tokens it used.
func (b *Budgeted) Describe(ctx context.Context, meta painting.Metadata) (domain.DescriptionResult, error) {
	if err := b.budget.Check(ctx); err != nil {
		return domain.DescriptionResult{}, err
	}

	res, err := b.inner.Describe(ctx, meta)
	if err != nil {
		return domain.DescriptionResult{}, err
	}

	used := domusage.Tokens{Prompt: int64(res.PromptTokens), Completion: int64(res.CompletionTokens)}
	if used.Total() == 0 && res.TotalTokens > 0 {
		// Providers that only report a total are charged as completion tokens.
		used.Completion = int64(res.TotalTokens)
	}
	b.budget.Record(used)
	return res, nil
}
