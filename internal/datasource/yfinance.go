package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// PriceFeed returns the price history of one ticker over [from, to].
// An empty series with a nil error means the feed has no bars in range.
type PriceFeed interface {
	History(ctx context.Context, ticker string, from, to time.Time, interval string) (models.PriceSeries, error)
}

// DefaultYahooBaseURL is the Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// ValidIntervals lists the bar intervals accepted by the chart API.
var ValidIntervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}

// IsValidInterval reports whether interval is in ValidIntervals.
func IsValidInterval(interval string) bool {
	for _, v := range ValidIntervals {
		if v == interval {
			return true
		}
	}
	return false
}

// YFinance implements PriceFeed against the Yahoo Finance v8 chart API.
type YFinance struct {
	baseURL string
	client  *http.Client
	cache   *Cache
	limiter *rate.Limiter
}

// YFinanceOption configures YFinance.
type YFinanceOption func(*YFinance)

// WithYFinanceBaseURL points the feed at another host (tests, proxies).
func WithYFinanceBaseURL(u string) YFinanceOption {
	return func(y *YFinance) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithYFinanceHTTPClient sets the HTTP client.
func WithYFinanceHTTPClient(c *http.Client) YFinanceOption {
	return func(y *YFinance) { y.client = c }
}

// WithYFinanceRateLimit caps requests per second; 0 disables the cap.
func WithYFinanceRateLimit(perSecond float64) YFinanceOption {
	return func(y *YFinance) { y.limiter = newLimiter(perSecond) }
}

// WithYFinanceCacheTTL sets how long responses are reused; 0 disables caching.
func WithYFinanceCacheTTL(ttl time.Duration) YFinanceOption {
	return func(y *YFinance) { y.cache = NewCache(ttl) }
}

// NewYFinance creates a Yahoo Finance price feed.
func NewYFinance(opts ...YFinanceOption) *YFinance {
	y := &YFinance{
		baseURL: DefaultYahooBaseURL,
		client:  NewHTTPClient(DefaultTimeout),
		cache:   NewCache(5 * time.Minute),
		limiter: newLimiter(5),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	DataGranular string `json:"dataGranularity"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// History returns bars for ticker between from and to.
func (y *YFinance) History(ctx context.Context, ticker string, from, to time.Time, interval string) (models.PriceSeries, error) {
	if interval == "" {
		interval = "1d"
	}
	if !IsValidInterval(interval) {
		return models.PriceSeries{}, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	cacheKey := fmt.Sprintf("hist:%s:%d:%d:%s", ticker, from.Unix(), to.Unix(), interval)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(models.PriceSeries), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return models.PriceSeries{}, err
	}

	u := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&events=div,split&includeAdjustedClose=true",
		y.baseURL, url.PathEscape(ticker), from.Unix(), to.Unix(), interval,
	)

	body, err := doGet(ctx, y.client, u, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("yfinance chart %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.PriceSeries{}, fmt.Errorf("parse yfinance chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return models.PriceSeries{}, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	series := parseYFSeries(ticker, interval, resp.Chart.Result[0])
	y.cache.Set(cacheKey, series)
	return series, nil
}

// --- Helpers ---

// parseYFSeries converts a chart result into the normalized series. Bars
// without a close are dropped. HasAdjClose is set only when every kept bar
// carries an adjusted close.
func parseYFSeries(ticker, interval string, result yfChartResult) models.PriceSeries {
	series := models.PriceSeries{Ticker: ticker, Interval: interval, Bars: []models.PriceBar{}}
	if len(result.Indicators.Quote) == 0 {
		return series
	}
	q := result.Indicators.Quote[0]

	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	allAdj := len(adjCloses) > 0
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		b := models.PriceBar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			b.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			b.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			b.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			b.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			b.AdjClose = *adjCloses[i]
		} else {
			allAdj = false
		}
		series.Bars = append(series.Bars, b)
	}
	series.HasAdjClose = allAdj && len(series.Bars) > 0
	return series
}
