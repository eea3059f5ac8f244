package model

import "fmt"

// IndicatorKind identifies one of the supported technical indicators.
type IndicatorKind string

const (
	IndRSI  IndicatorKind = "rsi"
	IndSMA  IndicatorKind = "sma"
	IndEMA  IndicatorKind = "ema"
	IndMACD IndicatorKind = "macd"
	IndBB   IndicatorKind = "bb"
)

// ParseIndicatorKind validates an indicator selector string.
func ParseIndicatorKind(s string) (IndicatorKind, error) {
	switch IndicatorKind(s) {
	case IndRSI, IndSMA, IndEMA, IndMACD, IndBB:
		return IndicatorKind(s), nil
	}
	return "", fmt.Errorf("unknown indicator %q", s)
}

// Bands holds the three Bollinger Band values.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorResult is a single computed indicator value. It is computed fresh
// per request and never cached independently of the candle series it was
// derived from. Bands is set only for kind "bb"; Value carries the scalar
// result for every other kind.
type IndicatorResult struct {
	Kind   IndicatorKind `json:"kind"`
	Value  float64       `json:"value"`
	Bands  *Bands        `json:"bands,omitempty"`
	Window int           `json:"window"`
	AsOfMs int64         `json:"as_of"`
}
