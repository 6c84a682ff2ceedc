package signal

import (
	"math"

	"crypto-forecast/internal/indicator"
	"crypto-forecast/internal/model"
)

// Contribution names reported in model.Composite.Contributions.
const (
	KeyRSI       = "rsi"
	KeyMACD      = "macd"
	KeyBollinger = "bollinger"
	KeyVolume    = "volume"
	KeyOrderBook = "orderBook"
	KeySentiment = "sentiment"
	KeyTrend     = "trend"
)

// Inputs is everything the composer reads. OrderBook and Sentiment are
// optional; a nil value contributes nothing and is left out of confidence.
type Inputs struct {
	Snapshot  model.IndicatorSnapshot
	Price     float64
	OrderBook *model.OrderBookSnapshot
	Sentiment *model.SentimentSample
}

// Compose blends the inputs into a composite signal.
//
// Each active signal contributes a signed amount bounded by its weight.
// TechnicalStrength is their sum. The trend multiplier is 1 + strength,
// clipped to ±MaxWeeklyDrift. Confidence rises from ConfidenceFloor towards
// 1 as the active signals approach their full weight; it says how loudly the
// inputs speak, not whether they agree.
func Compose(in Inputs, w Weights) model.Composite {
	snap := in.Snapshot
	c := make(map[string]float64, 7)
	maxTotal := 0.0

	c[KeyRSI] = RSISignal(snap.RSI, w)
	c[KeyMACD] = signed(snap.MACD.Value, w.MACD)
	c[KeyBollinger] = BollingerSignal(in.Price, snap.Bollinger, w)
	c[KeyVolume] = VolumeSignal(snap.VolumeRatio, w)
	c[KeyTrend] = signed(indicator.TrendScore(snap), w.MATrend)
	maxTotal += w.RSI + w.MACD + w.Bollinger + w.Volume + w.MATrend

	if in.OrderBook != nil {
		c[KeyOrderBook] = OrderBookSignal(in.OrderBook.PressureRatio(), w)
		maxTotal += w.OrderBook
	}
	if in.Sentiment != nil {
		c[KeySentiment] = clamp(in.Sentiment.Score, -1, 1) * w.Sentiment
		maxTotal += w.Sentiment
	}

	strength, magnitude := 0.0, 0.0
	for _, v := range c {
		strength += v
		magnitude += math.Abs(v)
	}

	activity := 0.0
	if maxTotal > 0 {
		activity = clamp(magnitude/maxTotal, 0, 1)
	}

	return model.Composite{
		Contributions:     c,
		TechnicalStrength: strength,
		TrendMultiplier:   1 + clamp(strength, -w.MaxWeeklyDrift, w.MaxWeeklyDrift),
		Confidence:        clamp(w.ConfidenceFloor+(1-w.ConfidenceFloor)*activity, 0, 1),
		VolatilityDamping: VolatilityDamping(snap.Volatility, w),
	}
}

// RSISignal is +w.RSI when oversold, -w.RSI when overbought, else 0.
func RSISignal(rsi float64, w Weights) float64 {
	switch {
	case rsi > w.RSIOverbought:
		return -w.RSI
	case rsi < w.RSIOversold:
		return w.RSI
	default:
		return 0
	}
}

// BollingerSignal leans against a price outside the envelope: above the
// upper band is -w.Bollinger, below the lower band is +w.Bollinger.
func BollingerSignal(price float64, b model.Bands, w Weights) float64 {
	if b.Upper <= b.Lower {
		return 0
	}
	switch {
	case price > b.Upper:
		return -w.Bollinger
	case price < b.Lower:
		return w.Bollinger
	default:
		return 0
	}
}

// VolumeSignal is ±w.Volume when the volume ratio leaves 1±VolumeDeadband.
func VolumeSignal(ratio float64, w Weights) float64 {
	switch {
	case ratio > 1+w.VolumeDeadband:
		return w.Volume
	case ratio < 1-w.VolumeDeadband:
		return -w.Volume
	default:
		return 0
	}
}

// OrderBookSignal is +w.OrderBook under buy pressure (ratio above
// PressureHigh) and -w.OrderBook under sell pressure (below PressureLow).
func OrderBookSignal(ratio float64, w Weights) float64 {
	switch {
	case ratio > w.PressureHigh:
		return w.OrderBook
	case ratio < w.PressureLow:
		return -w.OrderBook
	default:
		return 0
	}
}

// VolatilityDamping is max(VolatilityFloor, 1 - volatility/100), capped at 1.
func VolatilityDamping(volatility float64, w Weights) float64 {
	return clamp(math.Max(w.VolatilityFloor, 1-volatility/100), 0, 1)
}

func signed(v, weight float64) float64 {
	switch {
	case v > 0:
		return weight
	case v < 0:
		return -weight
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
