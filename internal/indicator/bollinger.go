package indicator

import (
	"math"

	"crypto-forecast/internal/model"
)

const (
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
)

// Bollinger returns SMA ± k·σ over the last period prices, with σ the
// population standard deviation of that window. Short input uses whatever
// prices exist, as SMA does; empty input yields zero bands.
func Bollinger(prices []float64, period int, k float64) model.Bands {
	window := tail(prices, period)
	if len(window) == 0 {
		return model.Bands{}
	}

	mid := mean(window)
	variance := 0.0
	for _, p := range window {
		d := p - mid
		variance += d * d
	}
	std := finite(math.Sqrt(variance/float64(len(window))), 0)

	return model.Bands{
		Upper:  mid + k*std,
		Middle: mid,
		Lower:  mid - k*std,
	}
}
