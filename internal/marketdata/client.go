package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"crypto-forecast/internal/model"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 8 << 20

var errShortLevel = errors.New("level needs price and quantity")

// BodyCache stores raw upstream response bodies. Implementations must treat
// every failure as a miss; the cache is never allowed to fail a request.
type BodyCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// base holds what every upstream client shares.
type base struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      BodyCache
	name       string
}

// Option configures an upstream client.
type Option func(*base)

// WithBaseURL overrides the provider endpoint (tests point it at httptest).
func WithBaseURL(u string) Option {
	return func(b *base) { b.baseURL = u }
}

// WithAPIKey sets the provider credential.
func WithAPIKey(key string) Option {
	return func(b *base) { b.apiKey = key }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *base) { b.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithCache enables response caching.
func WithCache(c BodyCache) Option {
	return func(b *base) { b.cache = c }
}

func newBase(name, defaultURL string, opts []Option) base {
	b := base{
		name:       name,
		baseURL:    defaultURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// fetch executes req and hands the body to decode. cacheKey, when non-empty,
// is looked up first; a fresh body is stored only once decode accepts it, so
// provider error payloads served with 200 never reach the cache.
func (b *base) fetch(ctx context.Context, req *http.Request, cacheKey string, decode func([]byte) error) error {
	caching := b.cache != nil && cacheKey != ""
	if caching {
		if body, ok := b.cache.Get(ctx, cacheKey); ok {
			if err := decode(body); err == nil {
				return nil
			}
		}
	}

	resp, err := b.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return classify(ctx, b.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classify(ctx, b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Unavailable("%s: status %d: %s", b.name, resp.StatusCode, truncate(body, 200))
	}

	if err := decode(body); err != nil {
		return err
	}
	if caching {
		b.cache.Set(ctx, cacheKey, body)
	}
	return nil
}

// classify maps transport failures onto the pipeline error kinds: deadline
// and network timeouts become ErrUpstreamTimeout, anything else means the
// data is unavailable.
func classify(ctx context.Context, name string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", model.ErrUpstreamTimeout, name, err)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrDataUnavailable, name, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
