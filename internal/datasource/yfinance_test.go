package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD"},
      "timestamp": [1710115200, 1710201600, 1710288000],
      "indicators": {
        "quote": [{
          "open":   [170.0, 171.0, 172.0],
          "high":   [172.0, 173.0, 174.0],
          "low":    [169.0, 170.0, 171.0],
          "close":  [171.0, null, 173.5],
          "volume": [1000, 2000, 3000]
        }],
        "adjclose": [{"adjclose": [170.5, null, 173.0]}]
      }
    }],
    "error": null
  }
}`

func TestIsValidInterval(t *testing.T) {
	for _, iv := range []string{"1d", "1wk", "1h", "5m"} {
		if !IsValidInterval(iv) {
			t.Errorf("IsValidInterval(%q) = false", iv)
		}
	}
	for _, iv := range []string{"", "1day", "7d"} {
		if IsValidInterval(iv) {
			t.Errorf("IsValidInterval(%q) = true", iv)
		}
	}
}

func TestParseYFSeriesEmpty(t *testing.T) {
	s := parseYFSeries("AAPL", "1d", yfChartResult{})
	if !s.IsEmpty() {
		t.Fatalf("expected empty series, got %d bars", len(s.Bars))
	}
	if s.Bars == nil {
		t.Fatal("Bars must be non-nil")
	}
	if s.HasAdjClose {
		t.Fatal("empty series cannot have adj close")
	}
}

func TestParseYFSeries(t *testing.T) {
	open, high, low, closeP, adj := 100.0, 105.0, 98.0, 103.0, 102.5
	vol := int64(1000)

	result := yfChartResult{
		Timestamp: []int64{1700000000, 1700086400},
		Indicators: yfIndicators{
			Quote: []yfOHLCV{{
				Open:   []*float64{&open, &open},
				High:   []*float64{&high, &high},
				Low:    []*float64{&low, &low},
				Close:  []*float64{&closeP, &closeP},
				Volume: []*int64{&vol, &vol},
			}},
			AdjClose: []yfAdjClose{{AdjClose: []*float64{&adj, &adj}}},
		},
	}

	s := parseYFSeries("AAPL", "1d", result)
	require.Len(t, s.Bars, 2)
	assert.True(t, s.HasAdjClose)
	assert.Equal(t, "AAPL", s.Ticker)
	assert.Equal(t, 103.0, s.Bars[0].Close)
	assert.Equal(t, 102.5, s.Bars[1].AdjClose)
	assert.Equal(t, int64(1000), s.Bars[0].Volume)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), s.Bars[0].Date)
}

func TestParseYFSeriesWithoutAdjClose(t *testing.T) {
	c := 10.0
	result := yfChartResult{
		Timestamp:  []int64{1700000000},
		Indicators: yfIndicators{Quote: []yfOHLCV{{Close: []*float64{&c}}}},
	}
	s := parseYFSeries("X", "1d", result)
	require.Len(t, s.Bars, 1)
	assert.False(t, s.HasAdjClose)
	assert.Equal(t, 10.0, s.Price(s.Bars[0]))
}

func TestYFinanceHistory(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON)
	}))
	defer srv.Close()

	y := NewYFinance(WithYFinanceBaseURL(srv.URL), WithYFinanceRateLimit(0))
	from := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	s, err := y.History(context.Background(), "AAPL", from, to, "1d")
	require.NoError(t, err)

	// the bar with a null close is dropped
	require.Len(t, s.Bars, 2)
	assert.True(t, s.HasAdjClose)
	assert.Equal(t, 173.0, s.Price(s.Bars[1]))

	// second call is served from cache
	_, err = y.History(context.Background(), "AAPL", from, to, "1d")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestYFinanceHistoryErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/NOPE":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		case "/v8/finance/chart/EMPTY":
			fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
		case "/v8/finance/chart/BAD":
			fmt.Fprint(w, `{"chart":`)
		}
	}))
	defer srv.Close()

	y := NewYFinance(WithYFinanceBaseURL(srv.URL), WithYFinanceRateLimit(0), WithYFinanceCacheTTL(0))
	now := time.Now()

	_, err := y.History(context.Background(), "NOPE", now.AddDate(0, 0, -7), now, "1d")
	assert.True(t, IsHTTPStatus(err), "got %v", err)

	_, err = y.History(context.Background(), "EMPTY", now.AddDate(0, 0, -7), now, "1d")
	assert.True(t, errors.Is(err, ErrTickerNotFound), "got %v", err)

	_, err = y.History(context.Background(), "BAD", now.AddDate(0, 0, -7), now, "1d")
	assert.Error(t, err)

	_, err = y.History(context.Background(), "AAPL", now.AddDate(0, 0, -7), now, "7days")
	assert.True(t, errors.Is(err, ErrInvalidInterval), "got %v", err)
}
