package models

// SentimentLabel is the class assigned to a headline.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentLabels lists every label in tie-break order: when two labels
// share the highest count, the one listed first wins.
var SentimentLabels = []SentimentLabel{SentimentNegative, SentimentNeutral, SentimentPositive}

// Valid reports whether l is one of the three known labels.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// SentimentResult is the per-ticker outcome of classifying its headlines.
type SentimentResult struct {
	Labels   []SentimentLabel `json:"sentiments"`
	Overall  SentimentLabel   `json:"sentiment_global"`
	Positive int              `json:"num_pos"`
	Negative int              `json:"num_neg"`
	Neutral  int              `json:"num_neu"`
}

// Total returns the number of classified headlines.
func (r SentimentResult) Total() int { return r.Positive + r.Negative + r.Neutral }

// SentimentByTicker maps a ticker to its sentiment result.
type SentimentByTicker map[string]SentimentResult
