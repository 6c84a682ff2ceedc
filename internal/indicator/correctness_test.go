package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func linear(from, to float64, n int) []float64 {
	out := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA(3) = (104+103+105)/3 = 104.0
	prices := []float64{100, 102, 104, 103, 105}
	assertClose(t, "SMA(3)", SMA(prices, 3), 104.0, 1e-9)
}

func TestSMA_ShortInputAveragesWhatExists(t *testing.T) {
	assertClose(t, "SMA(5) of 2 prices", SMA([]float64{10, 20}, 5), 15.0, 1e-9)
	assert.Equal(t, 0.0, SMA(nil, 5))
	assert.Equal(t, 0.0, SMA([]float64{1, 2}, 0))
}

func TestSMA_ConstantSeries(t *testing.T) {
	prices := constant(42.5, 60)
	for _, period := range []int{1, 7, 14, 30, 60} {
		assertClose(t, "SMA constant", SMA(prices, period), 42.5, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeededWithFirstPrice(t *testing.T) {
	// multiplier for period 3 = 0.5
	// 10 → 10.5 → 11.25
	series := EMASeries([]float64{10, 11, 12}, 3)
	assert.Len(t, series, 3)
	assertClose(t, "EMA[0]", series[0], 10, 1e-9)
	assertClose(t, "EMA[1]", series[1], 10.5, 1e-9)
	assertClose(t, "EMA[2]", series[2], 11.25, 1e-9)
	assertClose(t, "EMA", EMA([]float64{10, 11, 12}, 3), 11.25, 1e-9)
}

func TestEMA_Empty(t *testing.T) {
	assert.Equal(t, 0.0, EMA(nil, 12))
	assert.Nil(t, EMASeries(nil, 12))
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_FlatSeriesIs50(t *testing.T) {
	assertClose(t, "RSI flat", RSI(constant(100, 30), 14), 50, 1e-9)
}

func TestRSI_LossDenominatorFloor(t *testing.T) {
	// 15 prices rising by 2: avgGain = 28/14 = 2, avgLoss floored to 1
	// RS = 2 → RSI = 100 - 100/3 = 66.6667
	assertClose(t, "RSI rising by 2", RSI(linear(100, 128, 15), 14), 66.666667, 1e-5)
}

func TestRSI_StrictlyFalling(t *testing.T) {
	// no gains → RS = 0 → RSI = 0
	assertClose(t, "RSI falling", RSI(linear(130, 100, 31), 14), 0, 1e-9)
}

func TestRSI_ShortInput(t *testing.T) {
	assert.Equal(t, 50.0, RSI(nil, 14))
	assert.Equal(t, 50.0, RSI([]float64{100}, 14))

	v := RSI([]float64{100, 103}, 14)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_ConstantSeriesIsZero(t *testing.T) {
	prices := constant(250, 60)
	assertClose(t, "MACD", MACD(prices), 0, 1e-9)

	full := MACDFull(prices)
	assertClose(t, "MACD value", full.Value, 0, 1e-9)
	assertClose(t, "MACD signal", full.Signal, 0, 1e-9)
	assertClose(t, "MACD histogram", full.Histogram, 0, 1e-9)
}

func TestMACD_RisingSeriesIsPositive(t *testing.T) {
	prices := linear(100, 160, 61)
	full := MACDFull(prices)
	assert.Greater(t, full.Value, 0.0)
	assertClose(t, "MACD matches line", full.Value, MACD(prices), 1e-9)
	assertClose(t, "histogram", full.Histogram, full.Value-full.Signal, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Bollinger
// ────────────────────────────────────────────────────────────

func TestBollinger_Correctness(t *testing.T) {
	// mean 5, population σ 2
	b := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	assertClose(t, "upper", b.Upper, 9, 1e-9)
	assertClose(t, "middle", b.Middle, 5, 1e-9)
	assertClose(t, "lower", b.Lower, 1, 1e-9)
}

func TestBollinger_Empty(t *testing.T) {
	b := Bollinger(nil, 20, 2)
	assert.Zero(t, b.Upper)
	assert.Zero(t, b.Middle)
	assert.Zero(t, b.Lower)
}

// ────────────────────────────────────────────────────────────
// Volatility
// ────────────────────────────────────────────────────────────

func TestVolatility_ConstantSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(constant(100, 60), 30))
}

func TestVolatility_Correctness(t *testing.T) {
	// returns ±ln(1.1); sqrt(2·ln(1.1)²/2)·√365·100
	want := math.Log(1.1) * math.Sqrt(365) * 100
	assertClose(t, "volatility", Volatility([]float64{100, 110, 100}, 30), want, 1e-9)
	assertClose(t, "volatility approx", want, 182.088, 0.01)
}

func TestVolatility_ThirtyDayWindow(t *testing.T) {
	// 40 closes alternating +2% / -1%; only the last 30 prices (29 returns)
	// count, and the squared returns are averaged over 29.
	prices := make([]float64, 40)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		if i%2 == 1 {
			prices[i] = prices[i-1] * 1.02
		} else {
			prices[i] = prices[i-1] * 0.99
		}
	}

	window := prices[10:]
	sumSq := 0.0
	for i := 1; i < len(window); i++ {
		r := math.Log(window[i] / window[i-1])
		sumSq += r * r
	}
	want := math.Sqrt(sumSq/29) * math.Sqrt(365) * 100

	assertClose(t, "volatility 30d", Volatility(prices, 30), want, 1e-9)
}

func TestVolatility_ShortAndInvalidInput(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil, 30))
	assert.Equal(t, 0.0, Volatility([]float64{100, 101}, 30))
	assert.Equal(t, 0.0, Volatility([]float64{0, 0, 0, 0}, 30))
}

// ────────────────────────────────────────────────────────────
// Volume
// ────────────────────────────────────────────────────────────

func TestVolumeRatio(t *testing.T) {
	volumes := append(constant(100, 23), constant(200, 7)...)
	assertClose(t, "ratio", VolumeRatio(volumes), 2, 1e-9)
	assert.Equal(t, VolumeIncreasing, VolumeTrend(VolumeRatio(volumes)))

	assert.Equal(t, 1.0, VolumeRatio(constant(500, 30)))
	assert.Equal(t, VolumeDecreasing, VolumeTrend(1.0))
}

func TestVolumeRatio_ShortInputIsNeutral(t *testing.T) {
	assert.Equal(t, 1.0, VolumeRatio(nil))
	assert.Equal(t, 1.0, VolumeRatio(constant(10, 7)))
	assert.Equal(t, 1.0, VolumeRatio(append(constant(0, 5), constant(10, 7)...)))
}

// ────────────────────────────────────────────────────────────
// Price change
// ────────────────────────────────────────────────────────────

func TestPriceChange(t *testing.T) {
	assertClose(t, "1 bar", PriceChange([]float64{90, 100, 110}, 1), 10, 1e-9)
	assertClose(t, "lookback beyond start", PriceChange([]float64{100, 150}, 24), 50, 1e-9)
	assert.Equal(t, 0.0, PriceChange([]float64{100}, 1))
	assert.Equal(t, 0.0, PriceChange([]float64{0, 10}, 1))
}

// ────────────────────────────────────────────────────────────
// Never NaN
// ────────────────────────────────────────────────────────────

func TestIndicators_NeverNaN(t *testing.T) {
	inputs := [][]float64{
		nil,
		{0},
		{1},
		{0, 0, 0},
		{1, -1, 1, -1},
		{math.MaxFloat64, math.MaxFloat64},
	}
	for _, in := range inputs {
		for _, v := range []float64{
			SMA(in, 7), EMA(in, 12), RSI(in, 14), MACD(in),
			Volatility(in, 30), VolumeRatio(in), PriceChange(in, 1),
		} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "input %v produced %v", in, v)
		}
	}
}
