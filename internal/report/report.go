// Package report renders an analysis record for people and machines:
// console text, markdown, a standalone HTML page, JSON and YAML.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Formats
// ════════════════════════════════════════════════════════════════════

// Format names an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatHTML, FormatJSON, FormatYAML}
}

// ParseFormat accepts a format name or a common alias ("md", "yml", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	}
	return "text/plain; charset=utf-8"
}

// ════════════════════════════════════════════════════════════════════
// Rendering
// ════════════════════════════════════════════════════════════════════

// Render writes rec to w in the requested format.
func Render(w io.Writer, rec *models.AnalysisRecord, format Format) error {
	if rec == nil {
		return fmt.Errorf("report: nil record")
	}
	switch format {
	case FormatText:
		return RenderText(w, rec)
	case FormatMarkdown:
		return RenderMarkdown(w, rec)
	case FormatHTML:
		return RenderHTML(w, rec)
	case FormatJSON:
		return RenderJSON(w, rec)
	case FormatYAML:
		return RenderYAML(w, rec)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// String renders rec into a string.
func String(rec *models.AnalysisRecord, format Format) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, rec, format); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ── Shared helpers ──

// orderedTickers lists the tickers of a record in query order, followed by
// any ticker that only appears in the news or sentiment maps.
func orderedTickers(rec *models.AnalysisRecord) []string {
	keys := make([]string, 0, len(rec.News)+len(rec.Sentiments))
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			keys = append(keys, t)
		}
	}
	for _, t := range rec.Tickers {
		add(t)
	}
	for t := range rec.News {
		add(t)
	}
	for t := range rec.Sentiments {
		add(t)
	}
	return utils.OrderTickers(rec.Tickers, keys)
}

func headlines(set models.NewsSet) []string {
	out := make([]string, 0, len(set.Items))
	for _, it := range set.Items {
		if it.Headline != "" {
			out = append(out, it.Headline)
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
