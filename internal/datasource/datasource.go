// Package datasource fetches the raw inputs of an analysis run: price
// history from Yahoo Finance and per-ticker headlines from Yahoo Finanzas
// (HTML) or the Yahoo headline RSS feed, with a deterministic synthetic
// fallback for news.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// --- Sentinel errors ---

// ErrTickerNotFound is returned when the feed has no result for a ticker.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrInvalidInterval is returned for a bar interval the feed does not know.
var ErrInvalidInterval = errors.New("invalid interval")

// ErrHTTP wraps a non-success HTTP response.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// IsHTTPStatus reports whether err wraps an *ErrHTTP.
func IsHTTPStatus(err error) bool {
	var he *ErrHTTP
	return errors.As(err, &he)
}

// --- Observer ---

// Observer receives per-ticker degradation events. The metrics recorder
// implements it; NopObserver discards everything.
type Observer interface {
	MarketOmitted(reason string)
	NewsFallback(reason models.FallbackReason)
}

// NopObserver is the default Observer.
type NopObserver struct{}

func (NopObserver) MarketOmitted(string)                {}
func (NopObserver) NewsFallback(models.FallbackReason) {}

// Market omission reasons.
const (
	OmitError = "error"
	OmitEmpty = "empty"
)

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultTimeout bounds every price and news request.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout
// when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doGet performs a GET request and returns the body of a 200 response.
// Any other status is returned as *ErrHTTP. The caller closes the body.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "es-US,es;q=0.9,en;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}

// newLimiter returns a limiter allowing perSecond requests with an equal
// burst. A non-positive rate disables limiting.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a thread-safe in-memory cache with TTL. A zero TTL disables it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL. Expired entries are swept on
// every write so a long-running process does not accumulate stale bars.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.ExpiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}
}
