package indicator

import (
	"math"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// Bollinger Band defaults.
const (
	DefaultBBPeriod = 20
	DefaultBBMult   = 2.0
)

// Bollinger computes the moving-average envelope over the last period closes:
// middle = arithmetic mean, bands = middle +/- mult * stddev. The standard
// deviation is the POPULATION form (divide by N, not N-1).
func Bollinger(closes []float64, period int, mult float64) (model.Bands, error) {
	if period <= 0 {
		return model.Bands{}, insufficient("Bollinger Bands", 1, period)
	}
	if len(closes) < period {
		return model.Bands{}, insufficient("Bollinger Bands", period, len(closes))
	}

	window := closes[len(closes)-period:]
	mean := 0.0
	for _, p := range window {
		mean += p
	}
	mean /= float64(period)

	variance := 0.0
	for _, p := range window {
		d := p - mean
		variance += d * d
	}
	variance /= float64(period)
	sd := math.Sqrt(variance)

	return model.Bands{
		Upper:  mean + mult*sd,
		Middle: mean,
		Lower:  mean - mult*sd,
	}, nil
}
