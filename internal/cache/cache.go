// Package cache provides the short-lived result cache for bucketed candle
// series. The backing store is injected through the Cache interface so tests
// can supply a deterministic clock and isolated state per case.
package cache

import (
	"context"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// Key identifies one cached payload.
type Key struct {
	Subject  string
	Interval model.Interval
	SourceID string
}

// String renders the key in the "candles:{subject}:{interval}:{source}" form
// used for the Redis backend and for log lines.
func (k Key) String() string {
	return "candles:" + k.Subject + ":" + string(k.Interval) + ":" + k.SourceID
}

// Entry is a cached candle series plus its fetch timestamp and TTL.
// Entries are overwritten on refresh, never appended; there is no eviction
// goroutine; a get that finds only an expired entry simply triggers a
// re-fetch in the caller.
type Entry struct {
	Payload     model.CandleSeries `json:"payload"`
	FetchedAtMs int64              `json:"fetched_at"`
	TTLMs       int64              `json:"ttl"`
}

// Fresh reports whether the entry is within its TTL at the given time.
func (e *Entry) Fresh(nowMs int64) bool {
	return nowMs-e.FetchedAtMs < e.TTLMs
}

// Cache is the injected result-cache abstraction.
//
// Get returns the entry for a key whether fresh or expired; freshness is the
// caller's call via Entry.Fresh, because the stale-serve fallback reads past
// the TTL deliberately. The bool reports presence.
type Cache interface {
	Get(ctx context.Context, key Key) (*Entry, bool, error)
	Put(ctx context.Context, key Key, payload model.CandleSeries, ttl time.Duration) error
}
