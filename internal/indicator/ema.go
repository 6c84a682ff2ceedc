package indicator

// EMA returns the final exponential moving average of prices.
// The average is seeded with the first price and updated with multiplier
// 2/(period+1). Empty input yields 0.
func EMA(prices []float64, period int) float64 {
	series := EMASeries(prices, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries returns the EMA value after every price.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) == 0 {
		return nil
	}
	if period < 1 {
		period = 1
	}
	multiplier := 2.0 / float64(period+1)

	out := make([]float64, len(prices))
	ema := prices[0]
	out[0] = ema
	for i := 1; i < len(prices); i++ {
		// EMA = (Price - EMA_prev) * multiplier + EMA_prev
		ema = (prices[i]-ema)*multiplier + ema
		out[i] = finite(ema, out[i-1])
		ema = out[i]
	}
	return out
}
