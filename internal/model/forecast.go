package model

import (
	"encoding/json"
	"time"
)

// MACD holds the MACD line, its signal line and the histogram.
type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Bands is a Bollinger envelope.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSnapshot is the set of indicator values derived from one
// PriceSeries at one point in time. It is a value type and is never mutated
// after the indicator package builds it.
type IndicatorSnapshot struct {
	MA7             float64 `json:"ma7"`
	MA14            float64 `json:"ma14"`
	MA30            float64 `json:"ma30"`
	MA50            float64 `json:"ma50"`
	MA200           float64 `json:"ma200"`
	RSI             float64 `json:"rsi"`
	MACD            MACD    `json:"macd"`
	Bollinger       Bands   `json:"bollingerBands"`
	Volatility      float64 `json:"volatility"`
	VolumeRatio     float64 `json:"volumeRatio"`
	VolumeTrend     string  `json:"volumeTrend"`
	PriceChange     float64 `json:"priceChange"`
	MarketSentiment string  `json:"marketSentiment"`
	Trend           string  `json:"trend"`
}

// SentimentSample is the keyword score of a text corpus.
type SentimentSample struct {
	Score         float64        `json:"score"`
	Mentions      int            `json:"mentions"`
	PositiveCount int            `json:"positiveCount"`
	NegativeCount int            `json:"negativeCount"`
	Keywords      map[string]int `json:"keywords"`
}

// Composite is the Signal Composer output for one request.
type Composite struct {
	Contributions     map[string]float64 `json:"contributions"`
	TechnicalStrength float64            `json:"technicalStrength"`
	TrendMultiplier   float64            `json:"trendMultiplier"`
	Confidence        float64            `json:"confidence"`
	VolatilityDamping float64            `json:"volatilityDamping"`
}

// Prediction is the projected price for one horizon. Confidence is a
// fraction in [0,1].
type Prediction struct {
	Horizon        string  `json:"-"`
	HorizonSeconds int64   `json:"horizonSeconds"`
	Time           int64   `json:"time"`
	Price          float64 `json:"price"`
	Confidence     float64 `json:"confidence"`
}

// Summary is the single headline prediction.
type Summary struct {
	Price      float64 `json:"price"`
	Trend      string  `json:"trend"`
	Confidence float64 `json:"confidence"`
}

// ForecastBundle is the response of one forecast request. It is built per
// call, serialized and discarded.
type ForecastBundle struct {
	Symbol            string                `json:"symbol"`
	CurrentPrice      float64               `json:"currentPrice"`
	History           []HistoryPoint        `json:"history"`
	DailyHistory      []Bar                 `json:"dailyHistory,omitempty"`
	HourlyHistory     []Bar                 `json:"hourlyHistory,omitempty"`
	MinuteData        []Bar                 `json:"minuteData,omitempty"`
	Predictions       map[string]Prediction `json:"predictions"`
	Prediction        Summary               `json:"prediction"`
	TechnicalAnalysis IndicatorSnapshot     `json:"technicalAnalysis"`
	Signal            Composite             `json:"signal"`
	Sentiment         *SentimentSample      `json:"sentiment,omitempty"`
	OrderBookPressure *float64              `json:"orderBookPressure,omitempty"`
	LastUpdated       time.Time             `json:"lastUpdated"`
}

// JSON returns the JSON-encoded bundle (ignoring errors).
func (b *ForecastBundle) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
