// Package signal blends indicator values, order-book pressure and keyword
// sentiment into one bounded composite signal.
package signal

import (
	"errors"
	"fmt"
)

// Weights enumerates every tunable constant of the composer. The compiled-in
// values come from DefaultWeights; deployments override them from YAML.
type Weights struct {
	RSI           float64 `yaml:"rsi"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`

	MACD float64 `yaml:"macd"`

	Bollinger float64 `yaml:"bollinger"`

	Volume         float64 `yaml:"volume"`
	VolumeDeadband float64 `yaml:"volume_deadband"`

	OrderBook    float64 `yaml:"order_book"`
	PressureHigh float64 `yaml:"pressure_high"`
	PressureLow  float64 `yaml:"pressure_low"`

	Sentiment float64 `yaml:"sentiment"`

	MATrend float64 `yaml:"ma_trend"`

	// MaxWeeklyDrift bounds |trendMultiplier-1|; predictions compound it
	// once per week of horizon.
	MaxWeeklyDrift float64 `yaml:"max_weekly_drift"`

	ConfidenceFloor float64 `yaml:"confidence_floor"`
	VolatilityFloor float64 `yaml:"volatility_floor"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxConfidence   float64 `yaml:"max_confidence"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{
		RSI:             0.2,
		RSIOverbought:   70,
		RSIOversold:     30,
		MACD:            0.1,
		Bollinger:       0.15,
		Volume:          0.1,
		VolumeDeadband:  0.05,
		OrderBook:       0.15,
		PressureHigh:    1.2,
		PressureLow:     0.8,
		Sentiment:       0.2,
		MATrend:         0.05,
		MaxWeeklyDrift:  0.05,
		ConfidenceFloor: 0.6,
		VolatilityFloor: 0.7,
		MinConfidence:   0.05,
		MaxConfidence:   0.98,
	}
}

// Validate checks that the weights describe a usable composer.
func (w Weights) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"rsi": w.RSI, "macd": w.MACD, "bollinger": w.Bollinger, "volume": w.Volume,
		"order_book": w.OrderBook, "sentiment": w.Sentiment, "ma_trend": w.MATrend,
		"volume_deadband": w.VolumeDeadband, "max_weekly_drift": w.MaxWeeklyDrift,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if w.RSIOversold >= w.RSIOverbought {
		errs = append(errs, fmt.Errorf("rsi_oversold (%.2f) must be below rsi_overbought (%.2f)", w.RSIOversold, w.RSIOverbought))
	}
	if w.PressureLow >= w.PressureHigh {
		errs = append(errs, fmt.Errorf("pressure_low (%.2f) must be below pressure_high (%.2f)", w.PressureLow, w.PressureHigh))
	}
	if w.MaxWeeklyDrift >= 1 {
		errs = append(errs, errors.New("max_weekly_drift must be below 1"))
	}
	if !inUnit(w.ConfidenceFloor) || !inUnit(w.VolatilityFloor) {
		errs = append(errs, errors.New("confidence_floor and volatility_floor must be within [0,1]"))
	}
	if !inUnit(w.MinConfidence) || !inUnit(w.MaxConfidence) || w.MinConfidence > w.MaxConfidence {
		errs = append(errs, errors.New("min_confidence and max_confidence must satisfy 0 <= min <= max <= 1"))
	}
	return errors.Join(errs...)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
