package models

// NewsItem is one headline. URL is empty when the item has no link,
// which is always the case for synthetic headlines.
type NewsItem struct {
	Headline string `json:"headline"`
	URL      string `json:"url,omitempty"`
}

// Provenance tells whether a NewsSet came from the network or from the
// fallback generator.
type Provenance string

const (
	ProvenanceReal      Provenance = "real"
	ProvenanceSynthetic Provenance = "synthetic"
)

// FallbackReason names the condition that switched a ticker to synthetic news.
type FallbackReason string

const (
	FallbackTransport  FallbackReason = "transport_error"
	FallbackHTTPStatus FallbackReason = "http_status"
	FallbackNoItems    FallbackReason = "no_items"
	FallbackParse      FallbackReason = "parse_error"
)

// FallbackInfo records why synthetic news was produced.
type FallbackInfo struct {
	Reason FallbackReason `json:"reason"`
	Error  string         `json:"error,omitempty"`
}

// NewsSet is the news gathered for one ticker.
type NewsSet struct {
	Ticker     string        `json:"ticker"`
	Provenance Provenance    `json:"provenance"`
	Items      []NewsItem    `json:"items"`
	Cleaned    []string      `json:"cleaned,omitempty"`
	Fallback   *FallbackInfo `json:"fallback,omitempty"`
}

// Headlines returns the headline text of every item, in order.
func (n NewsSet) Headlines() []string {
	out := make([]string, len(n.Items))
	for i, it := range n.Items {
		out[i] = it.Headline
	}
	return out
}

// IsSynthetic reports whether the set was generated by the fallback.
func (n NewsSet) IsSynthetic() bool { return n.Provenance == ProvenanceSynthetic }

// NewsByTicker maps a ticker to its news set.
type NewsByTicker map[string]NewsSet

// Headlines flattens the map into ticker -> headline texts.
func (m NewsByTicker) Headlines() map[string][]string {
	out := make(map[string][]string, len(m))
	for t, set := range m {
		out[t] = set.Headlines()
	}
	return out
}
