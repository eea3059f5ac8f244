package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/pkg/partnerapi"
)

// partnerClient is the slice of the partner API the ingestor needs.
type partnerClient interface {
	History(ctx context.Context, subject string, fromMs, toMs int64) ([]partnerapi.Sample, error)
}

// Partner fetches loose price/volume samples from the session-authenticated
// partner feed. Always last in the chain and never display-safe; the policy
// table restricts it to non-display purposes.
type Partner struct {
	client partnerClient
	now    func() time.Time
}

// NewPartner wraps an authenticated partner client. now may be nil for
// time.Now.
func NewPartner(client partnerClient, now func() time.Time) *Partner {
	if now == nil {
		now = time.Now
	}
	return &Partner{client: client, now: now}
}

func (p *Partner) ID() string    { return "partner" }
func (p *Partner) Primary() bool { return false }

// Fetch returns per-trade ticks over the trailing window; volumes are deltas.
func (p *Partner) Fetch(ctx context.Context, subject string, _ model.Interval, days int) (Result, error) {
	toMs := p.now().UnixMilli()
	fromMs := toMs - int64(days)*86_400_000

	samples, err := p.client.History(ctx, subject, fromMs, toMs)
	if err != nil {
		return Result{}, fmt.Errorf("partner fetch: %w", err)
	}
	if len(samples) == 0 {
		return Result{}, ErrEmptyResult
	}

	ticks := make([]model.Tick, len(samples))
	for i, s := range samples {
		ticks[i] = model.Tick{TimestampMs: s.TimestampMs, Price: s.Price, Volume: s.Volume}
	}
	return Result{Ticks: ticks, VolumeMode: bucket.VolumeSum}, nil
}
