package models

import (
	"time"

	"github.com/google/uuid"
)

// Narrative is the generated analysis text. Fallback is true when the
// language model could not be reached and Text holds the stock message.
type Narrative struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

// AnalysisRecord is the full outcome of one pipeline run. It is not
// modified after being appended to the history.
type AnalysisRecord struct {
	ID            uuid.UUID         `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	Duration      time.Duration     `json:"duration"`
	Query         string            `json:"query"`
	Tickers       []string          `json:"tickers"`
	MarketRaw     MarketData        `json:"market_raw"`
	MarketSummary MarketSummary     `json:"market_summary"`
	News          NewsByTicker      `json:"news"`
	Sentiments    SentimentByTicker `json:"sentiments"`
	Narrative     Narrative         `json:"narrative"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// NewAnalysisRecord returns a record with a fresh ID and empty, non-nil
// containers.
func NewAnalysisRecord(query string, now time.Time) *AnalysisRecord {
	return &AnalysisRecord{
		ID:            uuid.New(),
		CreatedAt:     now,
		Query:         query,
		Tickers:       []string{},
		MarketRaw:     MarketData{},
		MarketSummary: NewMarketSummary(),
		News:          NewsByTicker{},
		Sentiments:    SentimentByTicker{},
	}
}

// HasTickers reports whether any ticker was extracted from the query.
func (r *AnalysisRecord) HasTickers() bool { return len(r.Tickers) > 0 }

// AddWarning appends a human-readable warning.
func (r *AnalysisRecord) AddWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// RecordSummary is the compact listing form of a record.
type RecordSummary struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Query     string    `json:"query"`
	Tickers   []string  `json:"tickers"`
	Fallback  bool      `json:"narrative_fallback"`
}

// Summary returns the compact listing form.
func (r *AnalysisRecord) Summary() RecordSummary {
	return RecordSummary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Query:     r.Query,
		Tickers:   r.Tickers,
		Fallback:  r.Narrative.Fallback,
	}
}
