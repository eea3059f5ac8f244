package model

import (
	"encoding/json"
	"fmt"
)

// Candle is a derived OHLCV summary of all ticks within one fixed-width time
// bucket. It is recomputed on each aggregation pass, never mutated in place.
// BucketStartMs is always an exact multiple of the bucket width.
type Candle struct {
	BucketStartMs int64    `json:"t"`
	Open          float64  `json:"o"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Close         float64  `json:"c"`
	Volume        *float64 `json:"v,omitempty"`
	SourceID      string   `json:"source,omitempty"`
}

// Validate checks the OHLC invariant: low <= open,close <= high.
func (c *Candle) Validate() error {
	if c.Low > c.High {
		return fmt.Errorf("candle t=%d: low %.8f > high %.8f", c.BucketStartMs, c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("candle t=%d: open %.8f outside [%.8f, %.8f]", c.BucketStartMs, c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("candle t=%d: close %.8f outside [%.8f, %.8f]", c.BucketStartMs, c.Close, c.Low, c.High)
	}
	return nil
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// CandleSeries is an ordered sequence of candles with strictly increasing
// bucket starts and no duplicate buckets. Gaps are permitted: sparse data is
// not interpolated.
type CandleSeries []Candle

// Closes extracts the closing-price series, oldest to newest.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Last returns the newest candle, or nil for an empty series.
func (s CandleSeries) Last() *Candle {
	if len(s) == 0 {
		return nil
	}
	return &s[len(s)-1]
}

// Validate checks series-level invariants: strictly increasing bucket starts,
// each an exact multiple of widthMs, and per-candle OHLC bounds.
func (s CandleSeries) Validate(widthMs int64) error {
	var prev int64 = -1
	for i := range s {
		c := &s[i]
		if widthMs > 0 && c.BucketStartMs%widthMs != 0 {
			return fmt.Errorf("candle %d: bucket start %d not aligned to width %d", i, c.BucketStartMs, widthMs)
		}
		if c.BucketStartMs <= prev {
			return fmt.Errorf("candle %d: bucket start %d not strictly increasing (prev %d)", i, c.BucketStartMs, prev)
		}
		prev = c.BucketStartMs
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
