package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"crypto-forecast/internal/model"
)

const cryptoCompareURL = "https://min-api.cryptocompare.com"

// CryptoCompare serves prices and OHLCV history from the CryptoCompare
// min-api. It implements model.MarketData.
type CryptoCompare struct {
	base
}

// NewCryptoCompare creates a CryptoCompare client.
func NewCryptoCompare(opts ...Option) *CryptoCompare {
	return &CryptoCompare{base: newBase("cryptocompare", cryptoCompareURL, opts)}
}

// CurrentPrice returns the latest USD price.
func (c *CryptoCompare) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("fsym", symbol)
	q.Set("tsyms", "USD")

	var price float64
	err := c.get(ctx, "/data/price", q, func(body []byte) (err error) {
		price, err = DecodePrice(symbol, body)
		return err
	})
	return price, err
}

// History returns up to limit bars of granularity g against USD.
func (c *CryptoCompare) History(ctx context.Context, symbol string, g model.Granularity, limit int) (model.PriceSeries, error) {
	endpoint, ok := histoEndpoints[g]
	if !ok {
		return model.PriceSeries{}, model.Unavailable("%s: unsupported granularity %q", symbol, g)
	}
	q := url.Values{}
	q.Set("fsym", symbol)
	q.Set("tsym", "USD")
	q.Set("limit", strconv.Itoa(limit))

	var series model.PriceSeries
	err := c.get(ctx, endpoint, q, func(body []byte) (err error) {
		series, err = DecodeHistory(symbol, g, body)
		return err
	})
	return series, err
}

var histoEndpoints = map[model.Granularity]string{
	model.Minute: "/data/v2/histominute",
	model.Hour:   "/data/v2/histohour",
	model.Day:    "/data/v2/histoday",
}

func (c *CryptoCompare) get(ctx context.Context, path string, q url.Values, decode func([]byte) error) error {
	// The cache key is taken before the credential is attached.
	cacheKey := c.name + ":" + path + "?" + q.Encode()
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return model.Unavailable("%s: build request: %v", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.fetch(ctx, req, cacheKey, decode)
}
