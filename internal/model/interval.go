package model

import (
	"fmt"
	"time"
)

// Interval is one of the fixed candle granularities the engine serves.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var intervalWidths = map[Interval]int64{
	Interval1m:  60_000,
	Interval5m:  300_000,
	Interval15m: 900_000,
	Interval1h:  3_600_000,
	Interval4h:  14_400_000,
	Interval1d:  86_400_000,
	Interval1w:  604_800_000,
}

// ParseInterval validates a request interval string.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalWidths[iv]; !ok {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return iv, nil
}

// WidthMs returns the bucket width in milliseconds. Returns 0 for an
// unknown interval.
func (iv Interval) WidthMs() int64 { return intervalWidths[iv] }

// Width returns the bucket width as a time.Duration.
func (iv Interval) Width() time.Duration {
	return time.Duration(iv.WidthMs()) * time.Millisecond
}

func (iv Interval) String() string { return string(iv) }
