package engine

import (
	"time"

	"crypto-forecast/internal/forecast"
	"crypto-forecast/internal/indicator"
	"crypto-forecast/internal/model"
	"crypto-forecast/internal/signal"
)

// Inputs are the joined upstream results of one request.
type Inputs struct {
	Symbol  string
	Variant Variant
	Price   float64
	Daily   model.PriceSeries
	Hourly  model.PriceSeries
	Minute  model.PriceSeries

	// OrderBook is nil when no order-book source is configured.
	OrderBook *model.OrderBookSnapshot
	// Corpus is nil when no corpus source is configured.
	Corpus []string
}

// Compute derives the bundle from joined inputs. It performs no I/O and is
// deterministic for a given now.
func Compute(in Inputs, cfg Config, now time.Time) *model.ForecastBundle {
	snap := indicator.Compute(in.Daily)

	var sentiment *model.SentimentSample
	if in.Corpus != nil {
		s := signal.ScoreSentiment(in.Corpus, cfg.Lexicon)
		sentiment = &s
	}

	composite := signal.Compose(signal.Inputs{
		Snapshot:  snap,
		Price:     in.Price,
		OrderBook: in.OrderBook,
		Sentiment: sentiment,
	}, cfg.Weights)

	preds := forecast.Generate(now, in.Price, composite, cfg.Horizons, cfg.Weights)

	b := &model.ForecastBundle{
		Symbol:            in.Symbol,
		CurrentPrice:      in.Price,
		History:           in.Daily.History(),
		Predictions:       preds,
		Prediction:        forecast.Summarize(in.Price, preds, cfg.Horizons),
		TechnicalAnalysis: snap,
		Signal:            composite,
		LastUpdated:       now.UTC(),
	}

	switch in.Variant {
	case Standard:
		b.DailyHistory = in.Daily.Bars
		b.HourlyHistory = in.Hourly.Bars
	case Enhanced:
		b.MinuteData = in.Minute.Bars
		b.Sentiment = sentiment
		if in.OrderBook != nil {
			p := in.OrderBook.PressureRatio()
			b.OrderBookPressure = &p
		}
	}
	return b
}
