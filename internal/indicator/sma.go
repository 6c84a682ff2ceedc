package indicator

// SMA returns the arithmetic mean of the last period prices.
//
// When fewer than period prices exist the mean is taken over all of them, so
// a 200-period average of a 60-bar history is the 60-bar average rather
// than a value dragged towards zero. Empty input or period <= 0 yields 0.
func SMA(prices []float64, period int) float64 {
	return finite(mean(tail(prices, period)), 0)
}
