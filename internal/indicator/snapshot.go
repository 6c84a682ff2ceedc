package indicator

import "crypto-forecast/internal/model"

// Market sentiment labels derived from RSI.
const (
	Overbought = "overbought"
	Oversold   = "oversold"
	Neutral    = "neutral"
)

// Trend labels derived from moving-average structure.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// RSI thresholds used for the market sentiment label.
const (
	RSIOverbought = 70.0
	RSIOversold   = 30.0
)

// Compute derives an IndicatorSnapshot from a series. It is deterministic:
// the same series always yields the same snapshot.
func Compute(series model.PriceSeries) model.IndicatorSnapshot {
	closes := series.Closes()
	volumes := series.Volumes()

	snap := model.IndicatorSnapshot{
		MA7:        SMA(closes, 7),
		MA14:       SMA(closes, 14),
		MA30:       SMA(closes, 30),
		MA50:       SMA(closes, 50),
		MA200:      SMA(closes, 200),
		RSI:        RSI(closes, DefaultRSIPeriod),
		MACD:       MACDFull(closes),
		Bollinger:  Bollinger(closes, DefaultBollingerPeriod, DefaultBollingerK),
		Volatility: Volatility(closes, DefaultVolatilityPeriod),
	}
	snap.VolumeRatio = VolumeRatio(volumes)
	snap.VolumeTrend = VolumeTrend(snap.VolumeRatio)
	snap.PriceChange = PriceChange(closes, barsPerDay(series.Granularity))
	snap.MarketSentiment = SentimentLabel(snap.RSI)
	snap.Trend = TrendLabel(TrendScore(snap))
	return snap
}

// PriceChange returns the percent change of the last price versus the price
// lookback bars earlier (or the first price when the series is shorter).
func PriceChange(prices []float64, lookback int) float64 {
	if len(prices) < 2 || lookback <= 0 {
		return 0
	}
	from := len(prices) - 1 - lookback
	if from < 0 {
		from = 0
	}
	base := prices[from]
	if base == 0 {
		return 0
	}
	return finite((prices[len(prices)-1]-base)/base*100, 0)
}

// SentimentLabel maps RSI to overbought/oversold/neutral.
func SentimentLabel(rsi float64) string {
	switch {
	case rsi > RSIOverbought:
		return Overbought
	case rsi < RSIOversold:
		return Oversold
	default:
		return Neutral
	}
}

// TrendScore blends short (7/14), medium (14/30) and long (50/200)
// moving-average crossovers with weights 0.15, 0.10 and 0.05. Positive means
// the shorter averages sit above the longer ones.
func TrendScore(s model.IndicatorSnapshot) float64 {
	return 0.15*sign(s.MA7-s.MA14) + 0.10*sign(s.MA14-s.MA30) + 0.05*sign(s.MA50-s.MA200)
}

// TrendLabel maps a TrendScore to up/down/flat.
func TrendLabel(score float64) string {
	switch {
	case score > 0:
		return TrendUp
	case score < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}

// relEpsilon absorbs float noise when comparing averages of equal data.
const relEpsilon = 1e-9

func sign(v float64) float64 {
	switch {
	case v > relEpsilon:
		return 1
	case v < -relEpsilon:
		return -1
	default:
		return 0
	}
}

func barsPerDay(g model.Granularity) int {
	secs := g.Seconds()
	if secs <= 0 {
		return 1
	}
	n := int(86400 / secs)
	if n < 1 {
		return 1
	}
	return n
}
