package indicator

// EMA computes an exponential moving average seeded with the first close and
// applied recursively across the ENTIRE series, not just the last period
// samples. The result is therefore path-dependent on how much history was
// fetched; a trailing-window reimplementation diverges from these values and
// must not be treated as equivalent.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, insufficient("EMA", 1, period)
	}
	if len(closes) < 1 {
		return 0, insufficient("EMA", 1, 0)
	}
	k := 2.0 / float64(period+1)
	ema := closes[0]
	for _, p := range closes[1:] {
		ema = (p-ema)*k + ema
	}
	return ema, nil
}
