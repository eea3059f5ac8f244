// Package resolve owns the ordered provider fallback chain. A resolve call
// tries providers in configured priority order, consulting the compliance
// policy before any non-primary fetch, and falls back to the cache's
// last-known-good value (marked stale) when every live provider fails.
package resolve

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/cache"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/ingest"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/logger"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/metrics"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
)

// Error kinds surfaced to the caller. Individual provider failures are
// absorbed internally; only the terminal chain outcome is raised.
var (
	// ErrUpstreamUnavailable: every provider failed and no cache entry exists.
	ErrUpstreamUnavailable = errors.New("all providers failed and no cached data exists")
	// ErrInvalidInterval: the requested granularity is not derivable from any
	// configured provider (native candles cannot be re-bucketed).
	ErrInvalidInterval = errors.New("requested granularity not derivable from any configured provider")
	// ErrComplianceBlocked: the policy denied every remaining candidate
	// before the chain was exhausted.
	ErrComplianceBlocked = errors.New("redistribution policy denied every remaining provider")
)

// policyTable is the compliance gate consumed from the policy collaborator.
type policyTable interface {
	IsAllowed(sourceID, purpose string) bool
	Attribution(sourceID string) string
}

// auditor records policy decisions and fetch outcomes. May be nil.
type auditor interface {
	PolicyDecision(sourceID, purpose string, allowed bool)
	Fetch(sourceID, subject, outcome string)
}

// Resolution is a successful resolve result. SourceID is always attached so
// the compliance trail stays auditable end to end; Stale marks a payload
// served from an expired cache entry.
type Resolution struct {
	Series      model.CandleSeries
	SourceID    string
	Stale       bool
	Attribution string
}

// Config wires a Resolver.
type Config struct {
	// Chains maps a purpose onto its ordered provider list. Order is fixed
	// per purpose: display-safe primaries always come before sources that
	// need redistribution clearance.
	Chains map[string][]ingest.Ingestor
	Policy policyTable
	Cache  cache.Cache
	TTLFor func(model.Interval) time.Duration
	// Optional collaborators.
	Metrics *metrics.Metrics
	Audit   auditor
	Now     func() time.Time
}

// Resolver drives the fetch → bucket → cache pipeline for one request.
type Resolver struct {
	chains  map[string][]ingest.Ingestor
	policy  policyTable
	cache   cache.Cache
	ttlFor  func(model.Interval) time.Duration
	metrics *metrics.Metrics
	audit   auditor
	now     func() time.Time
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		chains:  cfg.Chains,
		policy:  cfg.Policy,
		cache:   cfg.Cache,
		ttlFor:  cfg.TTLFor,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		now:     now,
	}
}

// Resolve returns the candle series for (subject, interval) over the trailing
// window of days, for the given purpose. Candidates are tried strictly in
// configured order and never in parallel: a successful primary fetch
// short-circuits all fallback cost.
func (r *Resolver) Resolve(ctx context.Context, subject string, interval model.Interval, days int, purpose string) (Resolution, error) {
	start := r.now()
	res, err := r.resolve(ctx, subject, interval, days, purpose)
	if r.metrics != nil {
		r.metrics.ResolveDuration.Observe(r.now().Sub(start).Seconds())
		if err != nil {
			kind := "upstream_unavailable"
			switch {
			case errors.Is(err, ErrInvalidInterval):
				kind = "invalid_interval"
			case errors.Is(err, ErrComplianceBlocked):
				kind = "compliance_blocked"
			}
			r.metrics.ResolveFailures.WithLabelValues(kind).Inc()
		}
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, subject string, interval model.Interval, days int, purpose string) (Resolution, error) {
	widthMs := interval.WidthMs()
	if widthMs == 0 {
		return Resolution{}, ErrInvalidInterval
	}
	chain := r.chains[purpose]
	if len(chain) == 0 {
		return Resolution{}, ErrUpstreamUnavailable
	}
	nowMs := r.now().UnixMilli()
	trace := ""
	if tid := logger.TraceID(ctx); tid != "" {
		trace = " trace=" + tid
	}

	// Fresh cache first, in chain priority order.
	for _, cand := range chain {
		key := cache.Key{Subject: subject, Interval: interval, SourceID: cand.ID()}
		entry, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[resolve] cache get %s: %v%s", key, err, trace)
			continue
		}
		if ok && entry.Fresh(nowMs) {
			if r.metrics != nil {
				r.metrics.CacheHits.Inc()
			}
			return Resolution{
				Series:      entry.Payload,
				SourceID:    cand.ID(),
				Attribution: r.policy.Attribution(cand.ID()),
			}, nil
		}
	}
	if r.metrics != nil {
		r.metrics.CacheMisses.Inc()
	}

	// Live fetch, strictly in priority order. The policy gate runs BEFORE
	// any network I/O: fetching first and discarding later would not satisfy
	// a redistribution-license obligation.
	unsupported := 0
	attempted := 0
	endedOnDenial := false
	for _, cand := range chain {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}

		if !cand.Primary() {
			allowed := r.policy.IsAllowed(cand.ID(), purpose)
			if r.audit != nil {
				r.audit.PolicyDecision(cand.ID(), purpose, allowed)
			}
			if !allowed {
				if r.metrics != nil {
					r.metrics.PolicyDenials.WithLabelValues(cand.ID(), purpose).Inc()
				}
				endedOnDenial = true
				continue
			}
		}
		endedOnDenial = false

		attempted++
		result, err := cand.Fetch(ctx, subject, interval, days)
		switch {
		case errors.Is(err, ingest.ErrUnsupportedInterval):
			unsupported++
			r.noteFetch(cand.ID(), subject, "error")
			continue
		case errors.Is(err, ingest.ErrEmptyResult):
			r.noteFetch(cand.ID(), subject, "empty")
			continue
		case err != nil:
			log.Printf("[resolve] %s fetch failed for %s/%s: %v%s", cand.ID(), subject, interval, err, trace)
			r.noteFetch(cand.ID(), subject, "error")
			continue
		}

		series := result.Candles
		if !result.Native {
			b := bucket.New(widthMs, result.VolumeMode, cand.ID())
			series = b.Bucket(result.Ticks)
			if r.metrics != nil {
				r.metrics.CandlesBucketed.Add(float64(len(series)))
			}
		}
		if len(series) == 0 {
			r.noteFetch(cand.ID(), subject, "empty")
			continue
		}
		r.noteFetch(cand.ID(), subject, "ok")

		r.store(ctx, cand, subject, interval, series)
		return Resolution{
			Series:      series,
			SourceID:    cand.ID(),
			Attribution: r.policy.Attribution(cand.ID()),
		}, nil
	}

	// Every live candidate failed: degrade to the most recent cached payload
	// for this (subject, interval) regardless of TTL, explicitly marked stale.
	if res, ok := r.staleLookup(ctx, chain, subject, interval); ok {
		if r.metrics != nil {
			r.metrics.StaleServes.Inc()
		}
		return res, nil
	}

	if attempted > 0 && unsupported == attempted {
		return Resolution{}, ErrInvalidInterval
	}
	if endedOnDenial {
		// The policy denial(s) left zero remaining candidates; this is a
		// compliance outcome, not a transport failure.
		return Resolution{}, ErrComplianceBlocked
	}
	return Resolution{}, ErrUpstreamUnavailable
}

// store writes the freshly bucketed payload through the cache, gated on the
// source's redistribution clearance. The primary is configured cacheable;
// everything else must carry the "cache" purpose in the policy table.
func (r *Resolver) store(ctx context.Context, cand ingest.Ingestor, subject string, interval model.Interval, series model.CandleSeries) {
	if !cand.Primary() {
		allowed := r.policy.IsAllowed(cand.ID(), policy.PurposeCache)
		if r.audit != nil {
			r.audit.PolicyDecision(cand.ID(), policy.PurposeCache, allowed)
		}
		if !allowed {
			return
		}
	}
	key := cache.Key{Subject: subject, Interval: interval, SourceID: cand.ID()}
	if err := r.cache.Put(ctx, key, series, r.ttlFor(interval)); err != nil {
		log.Printf("[resolve] cache put %s: %v", key, err)
	}
}

// staleLookup returns the most recently fetched cache entry across the
// chain's sources for (subject, interval), if any exists.
func (r *Resolver) staleLookup(ctx context.Context, chain []ingest.Ingestor, subject string, interval model.Interval) (Resolution, bool) {
	var best *cache.Entry
	var bestSource string
	for _, cand := range chain {
		key := cache.Key{Subject: subject, Interval: interval, SourceID: cand.ID()}
		entry, ok, err := r.cache.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		if best == nil || entry.FetchedAtMs > best.FetchedAtMs {
			best = entry
			bestSource = cand.ID()
		}
	}
	if best == nil {
		return Resolution{}, false
	}
	return Resolution{
		Series:      best.Payload,
		SourceID:    bestSource,
		Stale:       true,
		Attribution: r.policy.Attribution(bestSource),
	}, true
}

func (r *Resolver) noteFetch(sourceID, subject, outcome string) {
	if r.metrics != nil {
		r.metrics.FetchAttempts.WithLabelValues(sourceID, outcome).Inc()
	}
	if r.audit != nil {
		r.audit.Fetch(sourceID, subject, outcome)
	}
}
