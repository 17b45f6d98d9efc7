// Package models defines the core data structures shared across marketbrief.
package models

import (
	"sort"
	"time"
)

// PriceBar is a single dated bar of price data.
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close,omitempty"`
	Volume   int64     `json:"volume"`
}

// PriceSeries is the normalized price history of one ticker.
// HasAdjClose is set by the feed adapter when every bar carries an
// adjusted close; consumers never inspect the raw payload.
type PriceSeries struct {
	Ticker      string     `json:"ticker"`
	Interval    string     `json:"interval"`
	HasAdjClose bool       `json:"has_adj_close"`
	Bars        []PriceBar `json:"bars"`
}

// IsEmpty reports whether the series holds no bars.
func (s PriceSeries) IsEmpty() bool { return len(s.Bars) == 0 }

// Sorted returns a copy of the bars in ascending date order.
func (s PriceSeries) Sorted() []PriceBar {
	bars := make([]PriceBar, len(s.Bars))
	copy(bars, s.Bars)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// Price returns the reference price of a bar: the adjusted close when the
// series carries one, the close otherwise.
func (s PriceSeries) Price(b PriceBar) float64 {
	if s.HasAdjClose {
		return b.AdjClose
	}
	return b.Close
}

// MarketData maps a ticker to its price series. Tickers whose fetch failed
// or returned no bars are absent.
type MarketData map[string]PriceSeries

// Tickers returns the tickers present, sorted alphabetically.
func (m MarketData) Tickers() []string {
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Summary column names, in display order.
const (
	ColTicker        = "ticker"
	ColStartDate     = "start_date"
	ColEndDate       = "end_date"
	ColStartPrice    = "start_price"
	ColEndPrice      = "end_price"
	ColPercentChange = "percent_change"
)

var summaryColumns = []string{ColTicker, ColStartDate, ColEndDate, ColStartPrice, ColEndPrice, ColPercentChange}

// MarketSummaryRow is the start/end comparison for one ticker.
type MarketSummaryRow struct {
	Ticker        string    `json:"ticker"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	StartPrice    float64   `json:"start_price"`
	EndPrice      float64   `json:"end_price"`
	PercentChange float64   `json:"percent_change"`
}

// MarketSummary is a table with one row per ticker that had data.
type MarketSummary struct {
	Rows []MarketSummaryRow `json:"rows"`
}

// NewMarketSummary returns an empty summary whose Rows is non-nil.
func NewMarketSummary() MarketSummary {
	return MarketSummary{Rows: []MarketSummaryRow{}}
}

// Columns returns the fixed column set, independent of the row count.
func (MarketSummary) Columns() []string {
	out := make([]string, len(summaryColumns))
	copy(out, summaryColumns)
	return out
}

// Len returns the number of rows.
func (s MarketSummary) Len() int { return len(s.Rows) }

// Row returns the row for ticker, if any.
func (s MarketSummary) Row(ticker string) (MarketSummaryRow, bool) {
	for _, r := range s.Rows {
		if r.Ticker == ticker {
			return r, true
		}
	}
	return MarketSummaryRow{}, false
}
