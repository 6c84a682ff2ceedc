package indicator

import "math"

// DefaultVolatilityPeriod is the number of daily closes used for volatility.
const DefaultVolatilityPeriod = 30

// Volatility returns annualized realized volatility in percent: the
// root-mean-square of daily log returns over the last period prices scaled by √365 and 100. Pairs with a non-positive price are
// skipped; fewer than two usable returns yields 0.
func Volatility(prices []float64, period int) float64 {
	window := tail(prices, period)

	sumSq := 0.0
	n := 0
	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		r := math.Log(cur / prev)
		sumSq += r * r
		n++
	}
	if n < 2 {
		return 0
	}

	return finite(math.Sqrt(sumSq/float64(n))*math.Sqrt(365)*100, 0)
}
