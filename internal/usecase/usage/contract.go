package usage

import domusage "github.com/kailas-cloud/pictura/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsage() domusage.Tokens
	MonthlyUsage() domusage.Tokens
}
