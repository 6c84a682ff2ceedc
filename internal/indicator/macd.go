package indicator

import "crypto-forecast/internal/model"

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// MACD returns EMA(12) - EMA(26) of prices.
func MACD(prices []float64) float64 {
	return EMA(prices, macdFast) - EMA(prices, macdSlow)
}

// MACDFull returns the MACD line with its 9-period signal line and the
// histogram (line - signal). The signal is the EMA of the per-bar MACD line,
// so a series that has just turned shows a non-zero histogram.
func MACDFull(prices []float64) model.MACD {
	if len(prices) == 0 {
		return model.MACD{}
	}
	fast := EMASeries(prices, macdFast)
	slow := EMASeries(prices, macdSlow)

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}

	value := line[len(line)-1]
	signal := EMA(line, macdSignal)
	return model.MACD{
		Value:     value,
		Signal:    signal,
		Histogram: value - signal,
	}
}
