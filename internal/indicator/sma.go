package indicator

// SMA returns the arithmetic mean of the last period closes.
// closes must be ordered oldest to newest.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, insufficient("SMA", 1, period)
	}
	if len(closes) < period {
		return 0, insufficient("SMA", period, len(closes))
	}
	sum := 0.0
	for _, p := range closes[len(closes)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}
