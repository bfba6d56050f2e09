package describe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	domusage "github.com/kailas-cloud/pictura/internal/domain/usage"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request; the caller falls back to the template.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for token counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

const persistTimeout = 2 * time.Second

type tokenKind string

const (
	kindPrompt     tokenKind = "prompt"
	kindCompletion tokenKind = "completion"
)

// window accumulates tokens for one UTC day or month.
type window struct {
	name   string // key segment: daily, monthly
	layout string // key date layout
	limit  int64
	start  time.Time
	used   domusage.Tokens
	trunc  func(time.Time) time.Time
}

// roll starts a fresh window once now has moved past the current one.
func (w *window) roll(now time.Time) {
	if s := w.trunc(now); s.After(w.start) {
		w.start = s
		w.used = domusage.Tokens{}
	}
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used.Total() >= w.limit }

// BudgetTracker caps the tokens one provider model may spend on descriptions
// per UTC day and month. Prompt and completion tokens are counted separately
// and limited on their sum. Check reads in-memory counters only; Record
// writes behind to the store.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	model    string
	action   BudgetAction
	day      window
	month    window
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider, model string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		provider: provider,
		model:    model,
		action:   action,
		day:      window{name: "daily", layout: "2006-01-02", limit: dailyLimit, trunc: truncateToDay},
		month:    window{name: "monthly", layout: "2006-01", limit: monthlyLimit, trunc: truncateToMonth},
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.day.start = truncateToDay(now)
	b.month.start = truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollAll()
	for _, w := range b.windows() {
		used, err := b.loadWindow(ctx, w)
		if err != nil {
			b.logger.Warn("Failed to load description budget from store",
				zap.String("window", w.name), zap.Error(err))
			continue
		}
		w.used = used
	}

	b.logger.Info("Description budget loaded",
		zap.String("provider", b.provider),
		zap.String("model", b.model),
		zap.Int64("daily_prompt", b.day.used.Prompt),
		zap.Int64("daily_completion", b.day.used.Completion),
		zap.Int64("monthly_used", b.month.used.Total()),
	)
}

func (b *BudgetTracker) loadWindow(ctx context.Context, w *window) (domusage.Tokens, error) {
	prompt, err := b.store.Get(ctx, b.key(w, kindPrompt))
	if err != nil {
		return domusage.Tokens{}, err
	}
	completion, err := b.store.Get(ctx, b.key(w, kindCompletion))
	if err != nil {
		return domusage.Tokens{}, err
	}
	return domusage.Tokens{Prompt: prompt, Completion: completion}, nil
}

// key names one counter, e.g. pictura:budget:openai:gpt-4o-mini:daily:2026-03-14:prompt.
func (b *BudgetTracker) key(w *window, kind tokenKind) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s:%s:%s",
		domain.KeyPrefix, b.provider, b.model, w.name, w.start.Format(w.layout), kind)
}

func (b *BudgetTracker) windows() []*window { return []*window{&b.day, &b.month} }

func (b *BudgetTracker) rollAll() {
	now := b.now()
	b.day.roll(now)
	b.month.roll(now)
}

// Check reports whether a new description request is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollAll()
	for _, w := range b.windows() {
		if !w.exceeded() {
			continue
		}
		if b.action == BudgetActionReject {
			return fmt.Errorf("%w: %s limit %d reached", domain.ErrDescriptionBudgetExceeded, w.name, w.limit)
		}
		b.logger.Warn("Description token budget exceeded",
			zap.String("provider", b.provider),
			zap.String("model", b.model),
			zap.String("window", w.name),
			zap.Int64("prompt_tokens", w.used.Prompt),
			zap.Int64("completion_tokens", w.used.Completion),
			zap.Int64("limit", w.limit),
		)
		return nil
	}
	return nil
}

type counterWrite struct {
	key string
	n   int64
}

// Record adds consumed tokens in memory, then persists them if a store is attached.
func (b *BudgetTracker) Record(used domusage.Tokens) {
	if used.Total() <= 0 {
		return
	}

	b.mu.Lock()
	b.rollAll()
	var writes []counterWrite
	for _, w := range b.windows() {
		w.used = w.used.Add(used)
		if used.Prompt > 0 {
			writes = append(writes, counterWrite{b.key(w, kindPrompt), used.Prompt})
		}
		if used.Completion > 0 {
			writes = append(writes, counterWrite{b.key(w, kindCompletion), used.Completion})
		}
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for _, wr := range writes {
		if err := store.IncrBy(ctx, wr.key, wr.n); err != nil {
			b.logger.Warn("Failed to persist description budget", zap.String("key", wr.key), zap.Error(err))
		}
	}
}

// DailyLimit returns the daily token cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.day.limit }

// MonthlyLimit returns the monthly token cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.month.limit }

// DailyUsage returns tokens consumed today.
func (b *BudgetTracker) DailyUsage() domusage.Tokens {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollAll()
	return b.day.used
}

// MonthlyUsage returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsage() domusage.Tokens {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollAll()
	return b.month.used
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
