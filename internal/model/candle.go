package model

import (
	"strings"
	"time"
)

// Granularity is the bar width of a PriceSeries.
type Granularity string

const (
	Minute Granularity = "minute"
	Hour   Granularity = "hour"
	Day    Granularity = "day"
)

// Seconds returns the nominal bar width in seconds.
func (g Granularity) Seconds() int64 {
	switch g {
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	default:
		return 0
	}
}

// Bar is a single OHLCV bar as reported by the price provider.
// Time is the bar open time in unix seconds. VolumeTo is quote volume (USD).
type Bar struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	VolumeFrom float64 `json:"volumefrom"`
	VolumeTo   float64 `json:"volumeto"`
}

// TS returns the bar open time as UTC.
func (b Bar) TS() time.Time {
	return time.Unix(b.Time, 0).UTC()
}

// PriceSeries is an ordered run of bars for one symbol, oldest first.
// Timestamps are strictly increasing; the normalizer guarantees it.
type PriceSeries struct {
	Symbol      string      `json:"symbol"`
	Granularity Granularity `json:"granularity"`
	Bars        []Bar       `json:"bars"`
}

// Key returns "symbol:granularity".
func (s PriceSeries) Key() string {
	return strings.ToUpper(s.Symbol) + ":" + string(s.Granularity)
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes returns close prices oldest→newest.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns quote volumes oldest→newest.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.VolumeTo
	}
	return out
}

// Last returns the newest bar and false when the series is empty.
func (s PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// History returns the {time, close} points the chart consumes.
func (s PriceSeries) History() []HistoryPoint {
	out := make([]HistoryPoint, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = HistoryPoint{Time: b.Time, Close: b.Close}
	}
	return out
}

// HistoryPoint is one historical close for charting.
type HistoryPoint struct {
	Time  int64   `json:"time"`
	Close float64 `json:"close"`
}
