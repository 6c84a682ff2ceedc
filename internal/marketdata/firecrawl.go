package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"crypto-forecast/internal/model"
)

const firecrawlURL = "https://api.firecrawl.dev"

// Firecrawl scrapes social pages mentioning a symbol to build a sentiment
// corpus.
type Firecrawl struct {
	base
	sources []string
}

// NewFirecrawl creates a scrape client. sources are URL templates in which
// "{symbol}" is replaced by the query-escaped symbol.
func NewFirecrawl(sources []string, opts ...Option) *Firecrawl {
	return &Firecrawl{
		base:    newBase("firecrawl", firecrawlURL, opts),
		sources: sources,
	}
}

// DefaultCorpusSources returns the social search pages scraped by default.
func DefaultCorpusSources() []string {
	return []string{
		"https://twitter.com/search?q={symbol}%20crypto",
		"https://reddit.com/r/cryptocurrency/search?q={symbol}",
	}
}

type scrapeRequest struct {
	URLs          []string `json:"urls"`
	ScrapeOptions struct {
		Formats   []string `json:"formats"`
		Selectors []string `json:"selectors"`
	} `json:"scrapeOptions"`
}

// Corpus returns the text scraped for symbol.
func (f *Firecrawl) Corpus(ctx context.Context, symbol string) ([]string, error) {
	var payload scrapeRequest
	for _, src := range f.sources {
		payload.URLs = append(payload.URLs, expand(src, symbol))
	}
	payload.ScrapeOptions.Formats = []string{"text"}
	payload.ScrapeOptions.Selectors = []string{".tweet-text", ".post-title", ".post-content"}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, model.Unavailable("%s: encode request: %v", f.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/scrape", bytes.NewReader(raw))
	if err != nil {
		return nil, model.Unavailable("%s: build request: %v", f.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	var corpus []string
	err = f.fetch(ctx, req, f.name+":"+symbol, func(body []byte) (err error) {
		corpus, err = DecodeCorpus(symbol, body)
		return err
	})
	return corpus, err
}

func expand(tmpl, symbol string) string {
	return strings.ReplaceAll(tmpl, "{symbol}", url.QueryEscape(symbol))
}
