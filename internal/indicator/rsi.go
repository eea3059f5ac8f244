package indicator

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI computes the Relative Strength Index over the last period successive
// deltas using SIMPLE gain/loss averages, not Wilder smoothing. Gains and
// absolute losses over the window are averaged by period; avgLoss == 0 pins
// the result at 100. Needs period+1 closes.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, insufficient("RSI", 2, period+1)
	}
	if len(closes) < period+1 {
		return 0, insufficient("RSI", period+1, len(closes))
	}

	window := closes[len(closes)-period-1:]
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
