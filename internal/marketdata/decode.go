// Package marketdata fetches and normalizes upstream market data.
//
// Decoders are the validation boundary: upstream payloads are untyped JSON,
// and anything missing or non-finite is rejected here with
// model.ErrDataUnavailable instead of flowing into indicator arithmetic.
package marketdata

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-forecast/internal/model"
)

type historyEnvelope struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     *struct {
		Data *[]rawBar `json:"Data"`
	} `json:"Data"`
}

type rawBar struct {
	Time       *int64   `json:"time"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      *float64 `json:"close"`
	VolumeFrom float64  `json:"volumefrom"`
	VolumeTo   float64  `json:"volumeto"`
}

// DecodeHistory parses a CryptoCompare histo* response into a series sorted
// oldest first. It fails with ErrDataUnavailable when Data.Data is missing or
// empty, the provider reports an error, a bar lacks time or close, a close is
// not a positive finite number, or two bars share a timestamp.
func DecodeHistory(symbol string, g model.Granularity, body []byte) (model.PriceSeries, error) {
	var env historyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.PriceSeries{}, model.Unavailable("%s %s history: decode: %v", symbol, g, err)
	}
	if strings.EqualFold(env.Response, "Error") {
		return model.PriceSeries{}, model.Unavailable("%s %s history: provider error: %s", symbol, g, env.Message)
	}
	if env.Data == nil || env.Data.Data == nil {
		return model.PriceSeries{}, model.Unavailable("%s %s history: missing Data.Data", symbol, g)
	}
	raw := *env.Data.Data
	if len(raw) == 0 {
		return model.PriceSeries{}, model.Unavailable("%s %s history: empty series", symbol, g)
	}

	bars := make([]model.Bar, 0, len(raw))
	for i, r := range raw {
		if r.Time == nil || r.Close == nil {
			return model.PriceSeries{}, model.Unavailable("%s %s history: bar %d missing time or close", symbol, g, i)
		}
		if !positive(*r.Close) {
			return model.PriceSeries{}, model.Unavailable("%s %s history: bar %d has invalid close %v", symbol, g, i, *r.Close)
		}
		bars = append(bars, model.Bar{
			Time:       *r.Time,
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      *r.Close,
			VolumeFrom: nonNegative(r.VolumeFrom),
			VolumeTo:   nonNegative(r.VolumeTo),
		})
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	for i := 1; i < len(bars); i++ {
		if bars[i].Time == bars[i-1].Time {
			return model.PriceSeries{}, model.Unavailable("%s %s history: duplicate timestamp %d", symbol, g, bars[i].Time)
		}
	}

	return model.PriceSeries{Symbol: symbol, Granularity: g, Bars: bars}, nil
}

// DecodePrice parses a CryptoCompare /data/price response ({"USD": n}).
func DecodePrice(symbol string, body []byte) (float64, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, model.Unavailable("%s price: decode: %v", symbol, err)
	}
	if resp, ok := env["Response"]; ok && strings.Contains(strings.ToLower(string(resp)), "error") {
		var msg string
		_ = json.Unmarshal(env["Message"], &msg)
		return 0, model.Unavailable("%s price: provider error: %s", symbol, msg)
	}
	raw, ok := env["USD"]
	if !ok {
		return 0, model.Unavailable("%s price: missing USD", symbol)
	}
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil || !positive(price) {
		return 0, model.Unavailable("%s price: invalid USD value %s", symbol, string(raw))
	}
	return price, nil
}

type depthEnvelope struct {
	Bids *[][]string `json:"bids"`
	Asks *[][]string `json:"asks"`
}

// DecodeOrderBook parses a Binance-style depth response whose levels are
// ["price", "quantity"] decimal strings.
func DecodeOrderBook(symbol string, body []byte) (model.OrderBookSnapshot, error) {
	var env depthEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.OrderBookSnapshot{}, model.Unavailable("%s order book: decode: %v", symbol, err)
	}
	if env.Bids == nil || env.Asks == nil {
		return model.OrderBookSnapshot{}, model.Unavailable("%s order book: missing bids or asks", symbol)
	}

	bids, err := decodeLevels(*env.Bids)
	if err != nil {
		return model.OrderBookSnapshot{}, model.Unavailable("%s order book bids: %v", symbol, err)
	}
	asks, err := decodeLevels(*env.Asks)
	if err != nil {
		return model.OrderBookSnapshot{}, model.Unavailable("%s order book asks: %v", symbol, err)
	}
	return model.OrderBookSnapshot{Symbol: symbol, Bids: bids, Asks: asks}, nil
}

func decodeLevels(raw [][]string) ([]model.Level, error) {
	out := make([]model.Level, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, errShortLevel
		}
		price, err := decimal.NewFromString(lv[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(lv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, model.Level{Price: price, Quantity: qty})
	}
	return out, nil
}

type corpusEnvelope struct {
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// DecodeCorpus extracts text from a scrape response. "data" may be a list of
// strings, a list of documents or a single document; documents contribute
// their markdown, content and text fields.
func DecodeCorpus(symbol string, body []byte) ([]string, error) {
	var env corpusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, model.Unavailable("%s corpus: decode: %v", symbol, err)
	}
	if env.Success != nil && !*env.Success {
		return nil, model.Unavailable("%s corpus: provider error: %s", symbol, env.Error)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, model.Unavailable("%s corpus: missing data", symbol)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		items = []json.RawMessage{env.Data}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
			continue
		}
		var doc struct {
			Markdown string `json:"markdown"`
			Content  string `json:"content"`
			Text     string `json:"text"`
		}
		if json.Unmarshal(item, &doc) == nil {
			for _, t := range []string{doc.Markdown, doc.Content, doc.Text} {
				if t != "" {
					out = append(out, t)
				}
			}
		}
	}
	return out, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
