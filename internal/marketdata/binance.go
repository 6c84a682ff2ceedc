package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crypto-forecast/internal/model"
)

const (
	binanceURL        = "https://api.binance.com"
	defaultDepthLimit = 100
)

// Binance serves order-book depth snapshots from the public spot API.
type Binance struct {
	base
	quote string
	limit int
}

// NewBinance creates a depth client quoting symbols against USDT.
func NewBinance(opts ...Option) *Binance {
	return &Binance{
		base:  newBase("binance", binanceURL, opts),
		quote: "USDT",
		limit: defaultDepthLimit,
	}
}

// OrderBook returns the top levels of the SYMBOL/USDT book.
func (b *Binance) OrderBook(ctx context.Context, symbol string) (model.OrderBookSnapshot, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol)+b.quote)
	q.Set("limit", strconv.Itoa(b.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v3/depth?"+q.Encode(), nil)
	if err != nil {
		return model.OrderBookSnapshot{}, model.Unavailable("%s: build request: %v", b.name, err)
	}
	if b.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	// Depth moves too fast to cache.
	var ob model.OrderBookSnapshot
	err = b.fetch(ctx, req, "", func(body []byte) (err error) {
		ob, err = DecodeOrderBook(symbol, body)
		return err
	})
	return ob, err
}
