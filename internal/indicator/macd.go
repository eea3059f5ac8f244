package indicator

// MACD fast/slow EMA periods.
const (
	MACDFastPeriod = 12
	MACDSlowPeriod = 26
)

// MACD returns EMA(12) - EMA(26), both computed with the full-series
// recursive EMA definition. No signal line or histogram is produced.
func MACD(closes []float64) (float64, error) {
	fast, err := EMA(closes, MACDFastPeriod)
	if err != nil {
		return 0, insufficient("MACD", 1, len(closes))
	}
	slow, err := EMA(closes, MACDSlowPeriod)
	if err != nil {
		return 0, insufficient("MACD", 1, len(closes))
	}
	return fast - slow, nil
}
