// Package usage describes description-token consumption reports.
package usage

import (
	"fmt"

	"github.com/kailas-cloud/pictura/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. An empty name means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("period must be %q or %q, got %q: %w", PeriodDay, PeriodMonth, s, domain.ErrInvalidInput)
	}
}

// Tokens splits description token consumption into the prompt sent to the
// provider and the completion it returned.
type Tokens struct {
	Prompt     int64
	Completion int64
}

// Total returns prompt plus completion tokens.
func (t Tokens) Total() int64 { return t.Prompt + t.Completion }

// Add returns the sum of t and o.
func (t Tokens) Add(o Tokens) Tokens {
	return Tokens{Prompt: t.Prompt + o.Prompt, Completion: t.Completion + o.Completion}
}

// Report is a token usage snapshot for one period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	used        Tokens
	limit       int64
}

// NewReport creates a usage report. Timestamps are unix millis; a zero limit means unlimited.
func NewReport(period Period, start, end int64, used Tokens, limit int64) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		used:        used,
		limit:       limit,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp, which is also when the budget resets.
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Used returns the prompt/completion split consumed in the period.
func (r *Report) Used() Tokens { return r.used }

// TokensUsed returns all tokens consumed in the period.
func (r *Report) TokensUsed() int64 { return r.used.Total() }

// TokensLimit returns the token cap (0 = unlimited).
func (r *Report) TokensLimit() int64 { return r.limit }

// TokensRemaining returns tokens left, never negative (-1 = unlimited).
func (r *Report) TokensRemaining() int64 {
	if r.limit == 0 {
		return -1
	}
	return max(r.limit-r.used.Total(), 0)
}

// IsExhausted reports whether a capped budget is spent.
func (r *Report) IsExhausted() bool { return r.limit > 0 && r.used.Total() >= r.limit }
