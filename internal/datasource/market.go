package datasource

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// Market fetches price history for a batch of tickers. A ticker whose
// fetch fails or returns no bars is left out of the result; it never
// aborts the batch.
type Market struct {
	feed        PriceFeed
	days        int
	interval    string
	concurrency int
	log         zerolog.Logger
	obs         Observer
	now         func() time.Time
}

// MarketOption configures Market.
type MarketOption func(*Market)

// WithMarketWindow sets the lookback in days and the bar interval.
func WithMarketWindow(days int, interval string) MarketOption {
	return func(m *Market) {
		m.days = days
		if interval != "" {
			m.interval = interval
		}
	}
}

// WithMarketConcurrency bounds the number of in-flight ticker fetches.
func WithMarketConcurrency(n int) MarketOption {
	return func(m *Market) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithMarketLogger sets the logger.
func WithMarketLogger(l zerolog.Logger) MarketOption {
	return func(m *Market) { m.log = l }
}

// WithMarketObserver sets the degradation observer.
func WithMarketObserver(o Observer) MarketOption {
	return func(m *Market) {
		if o != nil {
			m.obs = o
		}
	}
}

// WithMarketClock overrides time.Now, for tests.
func WithMarketClock(now func() time.Time) MarketOption {
	return func(m *Market) { m.now = now }
}

// NewMarket creates a market fetcher over feed.
func NewMarket(feed PriceFeed, opts ...MarketOption) *Market {
	m := &Market{
		feed:        feed,
		days:        7,
		interval:    "1d",
		concurrency: 4,
		log:         zerolog.Nop(),
		obs:         NopObserver{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fetch returns the non-empty price series of each ticker over the
// configured window.
func (m *Market) Fetch(ctx context.Context, tickers []string) models.MarketData {
	from, to := utils.Window(m.now(), m.days)

	// each goroutine owns exactly one slot
	results := make([]models.PriceSeries, len(tickers))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			series, err := m.feed.History(ctx, t, from, to, m.interval)
			if err != nil {
				m.log.Warn().Err(err).Str("ticker", t).Msg("price fetch failed, omitting ticker")
				m.obs.MarketOmitted(OmitError)
				return nil
			}
			if series.IsEmpty() {
				m.log.Warn().Str("ticker", t).Time("from", from).Time("to", to).Msg("no price data in window, omitting ticker")
				m.obs.MarketOmitted(OmitEmpty)
				return nil
			}
			if series.Ticker == "" {
				series.Ticker = t
			}
			results[i] = series
			return nil
		})
	}
	_ = g.Wait()

	data := make(models.MarketData, len(tickers))
	for i, t := range tickers {
		if !results[i].IsEmpty() {
			data[t] = results[i]
		}
	}
	return data
}
