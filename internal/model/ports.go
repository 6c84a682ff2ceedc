package model

import "context"

// ── Upstream Port Interfaces ──
// These interfaces decouple the engine from concrete market data providers
// (CryptoCompare, Binance, Firecrawl) and from the response cache.

// PriceSource returns the latest USD price for a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// HistorySource returns up to limit bars of the given granularity,
// oldest first.
type HistorySource interface {
	History(ctx context.Context, symbol string, g Granularity, limit int) (PriceSeries, error)
}

// OrderBookSource returns a depth snapshot.
type OrderBookSource interface {
	OrderBook(ctx context.Context, symbol string) (OrderBookSnapshot, error)
}

// CorpusSource returns free text mentioning the symbol for sentiment scoring.
type CorpusSource interface {
	Corpus(ctx context.Context, symbol string) ([]string, error)
}

// MarketData bundles the price and history ports served by one provider.
type MarketData interface {
	PriceSource
	HistorySource
}
