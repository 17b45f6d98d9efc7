package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// SummaryTable lays the market summary out as an aligned plain-text table.
// The header is always printed; an empty summary adds a "(sin datos)" line.
func SummaryTable(s models.MarketSummary) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(s.Columns(), "\t")+"\t")
	for _, r := range s.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t\n",
			r.Ticker,
			utils.FormatDate(r.StartDate),
			utils.FormatDate(r.EndDate),
			r.StartPrice,
			r.EndPrice,
			r.PercentChange,
		)
	}
	tw.Flush()
	if len(s.Rows) == 0 {
		sb.WriteString("(sin datos)\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SentimentLine formats one ticker's sentiment the way the analyst prompt
// and the console report show it.
func SentimentLine(ticker string, r models.SentimentResult) string {
	return fmt.Sprintf("%s: global=%s, pos=%d, neg=%d, neu=%d",
		ticker, r.Overall, r.Positive, r.Negative, r.Neutral)
}

// RenderText writes the console report.
func RenderText(w io.Writer, rec *models.AnalysisRecord) error {
	var sb strings.Builder
	section := func(title string) {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "=== %s ===\n", title)
	}

	section("Consulta del usuario")
	sb.WriteString(rec.Query + "\n")

	section("Tickers detectados")
	if rec.HasTickers() {
		sb.WriteString(strings.Join(rec.Tickers, ", ") + "\n")
	} else {
		sb.WriteString("(ninguno)\n")
	}

	section("Resumen de mercado (últimos días)")
	sb.WriteString(SummaryTable(rec.MarketSummary) + "\n")

	tickers := orderedTickers(rec)

	section("Sentimiento por ticker")
	for _, t := range tickers {
		if s, ok := rec.Sentiments[t]; ok {
			sb.WriteString(SentimentLine(t, s) + "\n")
		}
	}

	section("Titulares")
	for _, t := range tickers {
		set, ok := rec.News[t]
		if !ok {
			continue
		}
		label := "reales"
		if set.Provenance == models.ProvenanceSynthetic {
			label = "sintéticos"
		}
		fmt.Fprintf(&sb, "%s (%s):\n", t, label)
		for _, h := range headlines(set) {
			fmt.Fprintf(&sb, "  - %s\n", h)
		}
	}

	section("Informe del Analista (LLM)")
	sb.WriteString(strings.TrimSpace(rec.Narrative.Text) + "\n")

	if len(rec.Warnings) > 0 {
		section("Avisos")
		for _, msg := range rec.Warnings {
			fmt.Fprintf(&sb, "- %s\n", msg)
		}
	}

	fmt.Fprintf(&sb, "\n[%s] %s\n", rec.ID, formatDuration(rec.Duration))
	_, err := io.WriteString(w, sb.String())
	return err
}
