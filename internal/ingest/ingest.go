// Package ingest fetches raw market observations from one named upstream
// provider. An ingestor returns an empty result or an error on failure; the
// fallback decision always belongs to the resolver, never to the ingestor.
package ingest

import (
	"context"
	"errors"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// ErrUnsupportedInterval is returned by an ingestor that can serve neither
// native candles at the requested interval nor loose ticks to bucket.
var ErrUnsupportedInterval = errors.New("interval not supported by provider")

// ErrEmptyResult is returned when the upstream answered but carried no data.
var ErrEmptyResult = errors.New("provider returned no data")

// Result is one successful fetch. Either Candles carries native pre-bucketed
// OHLCV (Native=true), or Ticks carries a loose observation list the caller
// must hand to the bucketer with VolumeMode.
type Result struct {
	Native     bool
	Candles    model.CandleSeries
	Ticks      []model.Tick
	VolumeMode bucket.VolumeMode
}

// Ingestor fetches raw samples from one named provider.
type Ingestor interface {
	// ID returns the stable source identifier stamped on payloads and
	// checked against the compliance policy.
	ID() string
	// Primary reports whether this is the designated display-safe primary
	// that skips the policy gate.
	Primary() bool
	// Fetch retrieves observations for the subject over the trailing window
	// of days at the requested interval.
	Fetch(ctx context.Context, subject string, interval model.Interval, days int) (Result, error)
}
