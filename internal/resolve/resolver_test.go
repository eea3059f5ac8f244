package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/cache"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/ingest"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
)

// fakeIngestor is a scriptable provider for resolver tests.
type fakeIngestor struct {
	id      string
	primary bool
	result  ingest.Result
	err     error
	calls   int
}

func (f *fakeIngestor) ID() string    { return f.id }
func (f *fakeIngestor) Primary() bool { return f.primary }

func (f *fakeIngestor) Fetch(context.Context, string, model.Interval, int) (ingest.Result, error) {
	f.calls++
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return f.result, nil
}

func nativeResult(sourceID string, closes ...float64) ingest.Result {
	series := make(model.CandleSeries, len(closes))
	for i, c := range closes {
		series[i] = model.Candle{
			BucketStartMs: int64(i) * model.Interval1h.WidthMs(),
			Open:          c, High: c, Low: c, Close: c,
			SourceID: sourceID,
		}
	}
	return ingest.Result{Native: true, Candles: series}
}

func tickResult(closes ...float64) ingest.Result {
	ticks := make([]model.Tick, len(closes))
	for i, c := range closes {
		ticks[i] = model.Tick{TimestampMs: int64(i) * model.Interval1h.WidthMs(), Price: c}
	}
	return ingest.Result{Ticks: ticks, VolumeMode: bucket.VolumeSum}
}

func openPolicy() *policy.Policy {
	return policy.New([]policy.Entry{
		{SourceID: "primary", AllowDisplay: true, AllowRedistribution: true,
			AllowedPurposes: map[string]bool{"display": true}},
		{SourceID: "secondary", AllowDisplay: true, AllowRedistribution: true,
			AllowedPurposes: map[string]bool{"display": true}, Attribution: "Data by Secondary"},
	})
}

func closedPolicy() *policy.Policy {
	return policy.New([]policy.Entry{
		{SourceID: "primary", AllowDisplay: true, AllowRedistribution: true},
	})
}

type resolverOpts struct {
	chain  []ingest.Ingestor
	policy *policy.Policy
	cache  cache.Cache
	now    func() time.Time
}

func newTestResolver(o resolverOpts) *Resolver {
	if o.policy == nil {
		o.policy = openPolicy()
	}
	if o.cache == nil {
		o.cache = cache.NewMemory(o.now)
	}
	return New(Config{
		Chains: map[string][]ingest.Ingestor{"display": o.chain},
		Policy: o.policy,
		Cache:  o.cache,
		TTLFor: func(model.Interval) time.Duration { return time.Minute },
		Now:    o.now,
	})
}

func TestResolve_PrimarySuccess(t *testing.T) {
	primary := &fakeIngestor{id: "primary", primary: true, result: nativeResult("primary", 1, 2, 3)}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 9)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary, secondary}})

	res, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID != "primary" || res.Stale {
		t.Errorf("expected fresh primary result, got source=%q stale=%v", res.SourceID, res.Stale)
	}
	if secondary.calls != 0 {
		t.Errorf("successful primary must short-circuit fallback, secondary called %d times", secondary.calls)
	}
}

func TestResolve_FallbackOrder(t *testing.T) {
	// Primary errors, secondary succeeds: the result carries the
	// secondary's source id, never a blend.
	primary := &fakeIngestor{id: "primary", primary: true, err: errors.New("boom")}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 5, 6)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary, secondary}})

	res, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID != "secondary" {
		t.Errorf("expected secondary source, got %q", res.SourceID)
	}
	if res.Attribution != "Data by Secondary" {
		t.Errorf("expected attribution attached, got %q", res.Attribution)
	}
	if primary.calls != 1 {
		t.Errorf("primary should be attempted exactly once, got %d", primary.calls)
	}
}

func TestResolve_TicksAreBucketed(t *testing.T) {
	primary := &fakeIngestor{id: "primary", primary: true, result: tickResult(10, 20, 30)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}})

	res, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := res.Series.Validate(model.Interval1h.WidthMs()); err != nil {
		t.Fatalf("bucketed series invalid: %v", err)
	}
	if len(res.Series) != 3 {
		t.Errorf("expected 3 candles, got %d", len(res.Series))
	}
	if res.Series[0].SourceID != "primary" {
		t.Errorf("bucketed candles must carry the source id, got %q", res.Series[0].SourceID)
	}
}

func TestResolve_CompliancePrecedesNetwork(t *testing.T) {
	// The denied secondary must never be fetched, even though the primary
	// failed and the chain moves on.
	primary := &fakeIngestor{id: "primary", primary: true, err: errors.New("down")}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 1)}
	tertiary := &fakeIngestor{id: "tertiary", result: nativeResult("tertiary", 2)}
	pol := policy.New([]policy.Entry{
		{SourceID: "secondary"}, // all purposes denied
		{SourceID: "tertiary", AllowDisplay: true, AllowRedistribution: true},
	})
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary, secondary, tertiary}, policy: pol})

	res, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondary.calls != 0 {
		t.Errorf("policy-denied provider must never be fetched, got %d calls", secondary.calls)
	}
	if res.SourceID != "tertiary" {
		t.Errorf("expected tertiary source, got %q", res.SourceID)
	}
}

func TestResolve_FreshCacheHitSkipsFetch(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	mem := cache.NewMemory(clock)
	primary := &fakeIngestor{id: "primary", primary: true, result: nativeResult("primary", 1)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}, cache: mem, now: clock})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display"); err != nil {
		t.Fatalf("warmup resolve: %v", err)
	}
	if _, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display"); err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("second resolve should be a cache hit, provider called %d times", primary.calls)
	}
}

func TestResolve_StaleServe(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	mem := cache.NewMemory(clock)
	primary := &fakeIngestor{id: "primary", primary: true, result: nativeResult("primary", 42)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}, cache: mem, now: clock})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display"); err != nil {
		t.Fatalf("warmup resolve: %v", err)
	}

	// TTL (1m in the test resolver) expires, and the provider dies.
	now = now.Add(time.Hour)
	primary.err = errors.New("outage")

	res, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("expected stale serve, got error: %v", err)
	}
	if !res.Stale {
		t.Error("expected isStale=true on a stale serve")
	}
	if res.SourceID != "primary" || res.Series[0].Close != 42 {
		t.Errorf("wrong stale payload: source=%q series=%+v", res.SourceID, res.Series)
	}
}

func TestResolve_UpstreamUnavailable(t *testing.T) {
	primary := &fakeIngestor{id: "primary", primary: true, err: errors.New("down")}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}})

	_, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestResolve_ComplianceBlocked(t *testing.T) {
	// Primary fails on transport; every remaining candidate is denied by
	// policy. The skip leaves zero candidates, so the distinct compliance
	// error is raised instead of a transport failure.
	primary := &fakeIngestor{id: "primary", primary: true, err: errors.New("down")}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 1)}
	r := newTestResolver(resolverOpts{
		chain:  []ingest.Ingestor{primary, secondary},
		policy: closedPolicy(),
	})

	_, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if !errors.Is(err, ErrComplianceBlocked) {
		t.Errorf("expected ErrComplianceBlocked, got %v", err)
	}
	if secondary.calls != 0 {
		t.Errorf("denied provider fetched %d times", secondary.calls)
	}
}

func TestResolve_TransportAfterDenialIsUpstream(t *testing.T) {
	// A transport failure terminal in the chain outranks an earlier denial.
	primary := &fakeIngestor{id: "primary", primary: true, err: errors.New("down")}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 1)}
	tertiary := &fakeIngestor{id: "tertiary", err: errors.New("also down")}
	pol := policy.New([]policy.Entry{
		{SourceID: "secondary"},
		{SourceID: "tertiary", AllowDisplay: true},
	})
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary, secondary, tertiary}, policy: pol})

	_, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestResolve_InvalidInterval(t *testing.T) {
	// Every attempted provider serves only native candles at other
	// granularities; nothing can derive the request.
	primary := &fakeIngestor{id: "primary", primary: true, err: ingest.ErrUnsupportedInterval}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}})

	_, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestResolve_EmptyResultFallsThrough(t *testing.T) {
	primary := &fakeIngestor{id: "primary", primary: true, err: ingest.ErrEmptyResult}
	secondary := &fakeIngestor{id: "secondary", result: nativeResult("secondary", 3)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary, secondary}})

	res, err := r.Resolve(context.Background(), "bitcoin", model.Interval1h, 7, "display")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceID != "secondary" {
		t.Errorf("expected secondary after empty primary, got %q", res.SourceID)
	}
}

func TestResolve_NonRedistributableSourceNotCached(t *testing.T) {
	// A source without redistribution clearance must not be written through
	// the cache; its next resolve fetches live again.
	provider := &fakeIngestor{id: "norights", result: nativeResult("norights", 8)}
	pol := policy.New([]policy.Entry{
		{SourceID: "norights", AllowDisplay: true, AllowRedistribution: false,
			AllowedPurposes: map[string]bool{"display": true}},
	})
	mem := cache.NewMemory(nil)
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{provider}, policy: pol, cache: mem})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("non-redistributable payload must not be cached, found %d entries", mem.Len())
	}
	if _, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected live re-fetch both times, got %d calls", provider.calls)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	primary := &fakeIngestor{id: "primary", primary: true, result: nativeResult("primary", 1)}
	r := newTestResolver(resolverOpts{chain: []ingest.Ingestor{primary}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "bitcoin", model.Interval1h, 7, "display")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
