package model

// Tick represents a single observed trade or quote from an upstream provider.
// Timestamps are epoch milliseconds (UTC) and need not arrive sorted or
// evenly spaced. Volume is nil when the upstream reports no volume for the
// observation.
type Tick struct {
	TimestampMs int64    `json:"ts"`
	Price       float64  `json:"price"`
	Volume      *float64 `json:"volume,omitempty"`
}

// Vol is a convenience constructor for an optional volume value.
func Vol(v float64) *float64 { return &v }
