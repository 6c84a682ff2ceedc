package indicator

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI returns the Relative Strength Index of prices in [0, 100].
//
// Gains and losses are simple averages over the last period price changes,
// each divided by period even when fewer changes exist. A window with no
// movement at all reads 50. Otherwise a zero average loss is floored to 1
// instead of dividing by zero, so a steadily rising series reads
// 100*g/(g+1). Fewer than two prices yields 50.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < 2 {
		return 50
	}

	window := tail(prices, period+1)
	gains, losses := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if gains == 0 && losses == 0 {
		return 50
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		avgLoss = 1
	}

	rs := avgGain / avgLoss
	rsi := 100.0 - (100.0 / (1.0 + rs))
	return clamp(finite(rsi, 50), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
