// Package market reduces price series to start/end comparison rows.
package market

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// ErrDivisionByZero is returned when a series starts at a zero price and
// the percent change is undefined.
var ErrDivisionByZero = errors.New("division by zero: start price is zero")

// ErrEmptySeries is returned when a row is requested for a series with no bars.
var ErrEmptySeries = errors.New("empty price series")

var hundred = decimal.NewFromInt(100)

// PercentChange returns (end-start)/start*100 rounded half away from zero
// to two decimals. The subtraction and division use unrounded prices.
func PercentChange(start, end float64) (float64, error) {
	s := decimal.NewFromFloat(start)
	if s.IsZero() {
		return 0, ErrDivisionByZero
	}
	e := decimal.NewFromFloat(end)
	return e.Sub(s).Div(s).Mul(hundred).Round(2).InexactFloat64(), nil
}

// NewSummaryRow builds the row for one series. Bars are sorted by date
// first; the reference price is the adjusted close when the series has one.
func NewSummaryRow(s models.PriceSeries) (models.MarketSummaryRow, error) {
	if s.IsEmpty() {
		return models.MarketSummaryRow{}, fmt.Errorf("%s: %w", s.Ticker, ErrEmptySeries)
	}
	bars := s.Sorted()
	first, last := bars[0], bars[len(bars)-1]
	start, end := s.Price(first), s.Price(last)

	pct, err := PercentChange(start, end)
	if err != nil {
		return models.MarketSummaryRow{}, fmt.Errorf("%s: %w", s.Ticker, err)
	}

	return models.MarketSummaryRow{
		Ticker:        s.Ticker,
		StartDate:     first.Date,
		EndDate:       last.Date,
		StartPrice:    round2(start),
		EndPrice:      round2(end),
		PercentChange: pct,
	}, nil
}

// Summarize returns one row per series. Rows follow order; tickers present
// in data but missing from order come after, alphabetically. A ticker whose
// row cannot be built is left out and its error is joined into the returned
// error, which never hides the rows that were built.
func Summarize(data models.MarketData, order []string) (models.MarketSummary, error) {
	summary := models.NewMarketSummary()
	if len(data) == 0 {
		return summary, nil
	}

	var errs []error
	for _, t := range orderedTickers(data, order) {
		s := data[t]
		if s.Ticker == "" {
			s.Ticker = t
		}
		row, err := NewSummaryRow(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary, errors.Join(errs...)
}

func orderedTickers(data models.MarketData, order []string) []string {
	out := make([]string, 0, len(data))
	seen := make(map[string]bool, len(data))
	for _, t := range order {
		if _, ok := data[t]; ok && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	var rest []string
	for t := range data {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
