// Package budget persists description token counters in the key-value cache.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/pictura/internal/db"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// fallbackTTL applies to keys whose window cannot be parsed.
const fallbackTTL = 62 * 24 * time.Hour

// Store keeps description token counters as INCRBY keys of the form
// <prefix>budget:<provider>:<model>:<daily|monthly>:<date>:<prompt|completion>.
// Each key expires retention after its window closes, so a counter for
// 2026-03 lives until 2026-04-01 plus retention regardless of when it was
// first written.
type Store struct {
	store     store
	retention time.Duration
	now       func() time.Time
}

// New creates a budget store that keeps counters for retention past their window.
func New(s store, retention time.Duration) *Store {
	return &Store{
		store:     s,
		retention: retention,
		now:       time.Now,
	}
}

// IncrBy atomically increments the counter and sets its TTL on first write.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	// NX keeps the first expiry.
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Get returns the counter value, or 0 when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttlForKey(key string) time.Duration {
	end, ok := windowEnd(key)
	if !ok {
		return fallbackTTL
	}
	ttl := end.Add(s.retention).Sub(s.now())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// windowEnd returns the UTC instant the key's day or month window closes.
func windowEnd(key string) (time.Time, bool) {
	parts := strings.Split(key, ":")
	for i := 0; i+1 < len(parts); i++ {
		switch parts[i] {
		case "daily":
			start, err := time.Parse("2006-01-02", parts[i+1])
			if err != nil {
				return time.Time{}, false
			}
			return start.AddDate(0, 0, 1), true
		case "monthly":
			start, err := time.Parse("2006-01", parts[i+1])
			if err != nil {
				return time.Time{}, false
			}
			return start.AddDate(0, 1, 0), true
		}
	}
	return time.Time{}, false
}
