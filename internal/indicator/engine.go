// Package indicator computes technical indicators over closing-price series.
//
// All functions consume a series ordered oldest to newest. Any indicator
// requiring more samples than available fails with *InsufficientDataError
// naming the required minimum; none silently return a zero value.
package indicator

import (
	"fmt"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// Engine maps indicator kinds onto their computations and stamps window and
// as-of metadata from the candle series the closes were derived from.
type Engine struct {
	SMAPeriod int
	EMAPeriod int
	RSIPeriod int
	BBPeriod  int
	BBMult    float64
}

// NewEngine returns an Engine with the conventional default windows:
// SMA(20), EMA(20), RSI(14), Bollinger(20, 2).
func NewEngine() *Engine {
	return &Engine{
		SMAPeriod: 20,
		EMAPeriod: 20,
		RSIPeriod: DefaultRSIPeriod,
		BBPeriod:  DefaultBBPeriod,
		BBMult:    DefaultBBMult,
	}
}

// Compute evaluates one indicator over the series and returns the result
// stamped with the newest candle's bucket start. The caller keeps the series
// and the result together; results are never cached on their own.
func (e *Engine) Compute(kind model.IndicatorKind, series model.CandleSeries) (model.IndicatorResult, error) {
	closes := series.Closes()
	res := model.IndicatorResult{Kind: kind}
	if last := series.Last(); last != nil {
		res.AsOfMs = last.BucketStartMs
	}

	switch kind {
	case model.IndSMA:
		v, err := SMA(closes, e.SMAPeriod)
		if err != nil {
			return res, err
		}
		res.Value = v
		res.Window = e.SMAPeriod

	case model.IndEMA:
		v, err := EMA(closes, e.EMAPeriod)
		if err != nil {
			return res, err
		}
		res.Value = v
		res.Window = e.EMAPeriod

	case model.IndRSI:
		v, err := RSI(closes, e.RSIPeriod)
		if err != nil {
			return res, err
		}
		res.Value = v
		res.Window = e.RSIPeriod

	case model.IndMACD:
		v, err := MACD(closes)
		if err != nil {
			return res, err
		}
		res.Value = v
		res.Window = MACDSlowPeriod

	case model.IndBB:
		bands, err := Bollinger(closes, e.BBPeriod, e.BBMult)
		if err != nil {
			return res, err
		}
		res.Bands = &bands
		res.Value = bands.Middle
		res.Window = e.BBPeriod

	default:
		return res, fmt.Errorf("unknown indicator kind %q", kind)
	}
	return res, nil
}
