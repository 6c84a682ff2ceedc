package forecast

import (
	"math"
	"time"

	"crypto-forecast/internal/indicator"
	"crypto-forecast/internal/model"
	"crypto-forecast/internal/signal"
)

// headlineDays is the horizon the summary prediction reports.
const headlineDays = 30

// Generate projects price over every horizon:
//
//	price      = current · multiplier^(days/7)
//	confidence = clamp(prior · composite.Confidence · damping, min, max)
//
// Only the prior depends on the horizon, so non-increasing priors give
// non-increasing confidence.
func Generate(now time.Time, current float64, c model.Composite, hs []Horizon, w signal.Weights) map[string]model.Prediction {
	out := make(map[string]model.Prediction, len(hs))
	for _, h := range hs {
		out[h.Name] = Predict(now, current, c, h, w)
	}
	return out
}

// Predict projects a single horizon.
func Predict(now time.Time, current float64, c model.Composite, h Horizon, w signal.Weights) model.Prediction {
	price := current
	if c.TrendMultiplier > 0 && c.TrendMultiplier != 1 {
		price = current * math.Pow(c.TrendMultiplier, h.Days/7)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		price = current
	}

	conf := h.Prior * c.Confidence * c.VolatilityDamping
	conf = math.Min(w.MaxConfidence, math.Max(w.MinConfidence, conf))

	return model.Prediction{
		Horizon:        h.Name,
		HorizonSeconds: h.Seconds(),
		Time:           now.Add(time.Duration(h.Seconds()) * time.Second).Unix(),
		Price:          price,
		Confidence:     conf,
	}
}

// Summarize picks the headline prediction: the longest horizon not beyond a
// month, or the shortest horizon when every horizon is longer. Trend is up
// when the headline price is above current.
func Summarize(current float64, preds map[string]model.Prediction, hs []Horizon) model.Summary {
	sorted := Sorted(hs)
	if len(sorted) == 0 {
		return model.Summary{Price: current, Trend: indicator.TrendFlat}
	}

	pick := sorted[0]
	for _, h := range sorted {
		if h.Days <= headlineDays {
			pick = h
		}
	}

	p, ok := preds[pick.Name]
	if !ok {
		return model.Summary{Price: current, Trend: indicator.TrendFlat}
	}

	trend := indicator.TrendFlat
	switch {
	case p.Price > current:
		trend = indicator.TrendUp
	case p.Price < current:
		trend = indicator.TrendDown
	}
	return model.Summary{Price: p.Price, Trend: trend, Confidence: p.Confidence}
}
