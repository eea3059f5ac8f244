// Package bucket groups loose price/volume ticks into fixed-width OHLCV
// candles. Bucketing is deterministic: the same chronologically-ordered tick
// list always produces byte-identical output.
package bucket

import (
	"sort"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// VolumeMode selects how per-bucket volume is derived from tick volumes.
type VolumeMode int

const (
	// VolumeSum accumulates tick volumes as deltas (sum per bucket).
	VolumeSum VolumeMode = iota
	// VolumeSnapshot keeps the most-recent known volume sample per bucket,
	// for upstreams that report running totals rather than per-trade deltas.
	VolumeSnapshot
)

// Bucketer aggregates ticks into candles of a fixed width.
//
// Close reflects the last-processed tick for each bucket, so tick input must
// be presented in chronological order for close to be meaningful. This is a
// documented precondition, not enforced internally.
type Bucketer struct {
	widthMs  int64
	mode     VolumeMode
	sourceID string
}

// New creates a Bucketer. widthMs must be a positive bucket width in
// milliseconds; sourceID is stamped on every emitted candle.
func New(widthMs int64, mode VolumeMode, sourceID string) *Bucketer {
	return &Bucketer{widthMs: widthMs, mode: mode, sourceID: sourceID}
}

// candleState holds the in-progress candle plus volume bookkeeping for one bucket.
type candleState struct {
	candle    model.Candle
	volume    float64
	hasVolume bool
}

// Bucket aggregates the given ticks into a CandleSeries sorted ascending by
// bucket start. An empty tick list yields an empty series, not an error.
// A single tick yields one candle with open=high=low=close.
func (b *Bucketer) Bucket(ticks []model.Tick) model.CandleSeries {
	if len(ticks) == 0 {
		return model.CandleSeries{}
	}

	states := make(map[int64]*candleState)

	for i := range ticks {
		t := &ticks[i]
		start := floorDiv(t.TimestampMs, b.widthMs) * b.widthMs

		st, ok := states[start]
		if !ok {
			// First tick seen for this bucket seeds all four prices.
			st = &candleState{
				candle: model.Candle{
					BucketStartMs: start,
					Open:          t.Price,
					High:          t.Price,
					Low:           t.Price,
					Close:         t.Price,
					SourceID:      b.sourceID,
				},
			}
			states[start] = st
		} else {
			c := &st.candle
			if t.Price > c.High {
				c.High = t.Price
			}
			if t.Price < c.Low {
				c.Low = t.Price
			}
			c.Close = t.Price
		}

		if t.Volume != nil {
			switch b.mode {
			case VolumeSnapshot:
				st.volume = *t.Volume
			default:
				st.volume += *t.Volume
			}
			st.hasVolume = true
		}
	}

	out := make(model.CandleSeries, 0, len(states))
	for _, st := range states {
		if st.hasVolume {
			v := st.volume
			st.candle.Volume = &v
		}
		out = append(out, st.candle)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BucketStartMs < out[j].BucketStartMs
	})
	return out
}

// WidthMs returns the configured bucket width in milliseconds.
func (b *Bucketer) WidthMs() int64 { return b.widthMs }

// floorDiv is floor division for possibly-negative timestamps, so pre-epoch
// ticks still land on the bucket boundary at or before them.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
