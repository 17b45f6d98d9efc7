// Package prompts contains the analyst prompts and the template that turns
// an analysis into the message sent to the language model.
package prompts

import (
	"strings"
	"text/template"

	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ── System Prompt ──

// AnalystSystemPrompt frames the model as an academic analyst writing in Spanish.
const AnalystSystemPrompt = `Eres un analista financiero que escribe informes cortos y claros en español.
Estás trabajando en un entorno académico: NO debes dar recomendaciones reales,
solo recomendaciones simuladas y siempre con un aviso de que no es asesoría financiera.`

// ── User Prompt ──

const analystTemplate = `Consulta del usuario:
"""{{.Query}}"""

Resumen de mercado (últimos días):
{{.Summary}}

Resumen de sentimiento por ticker:
{{range .Sentiments}}{{.}}
{{end}}
Titulares recientes por ticker:
{{range .Headlines}}{{.Ticker}}: {{join .Titles " | "}}
{{end}}
Tareas:

1. Describe brevemente el comportamiento reciente de cada acción.
2. Relaciona el movimiento de precios con el contexto de noticias y el sentimiento.
3. Propón una recomendación SIMULADA para cada acción (comprar, mantener, vender),
   explicando la lógica de forma sencilla.
4. Termina con una nota clara de que este análisis es solo con fines académicos
   y no constituye asesoría financiera.

Escribe el informe en formato de texto, usando subtítulos por ticker.
`

var analystTmpl = template.Must(template.New("analyst").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(analystTemplate))

// AnalystInput is everything the analyst prompt reports on.
type AnalystInput struct {
	Query      string
	Tickers    []string
	Summary    models.MarketSummary
	Sentiments models.SentimentByTicker
	News       models.NewsByTicker
}

type tickerHeadlines struct {
	Ticker string
	Titles []string
}

type analystView struct {
	Query      string
	Summary    string
	Sentiments []string
	Headlines  []tickerHeadlines
}

// RenderAnalyst fills the user prompt. Tickers are listed in query order;
// headlines are the raw titles, whether real or synthetic.
func RenderAnalyst(in AnalystInput) (string, error) {
	view := analystView{
		Query:   in.Query,
		Summary: report.SummaryTable(in.Summary),
	}

	for _, t := range utils.OrderTickers(in.Tickers, keys(in.Sentiments)) {
		view.Sentiments = append(view.Sentiments, report.SentimentLine(t, in.Sentiments[t]))
	}
	for _, t := range utils.OrderTickers(in.Tickers, keys(in.News)) {
		var titles []string
		for _, it := range in.News[t].Items {
			if it.Headline != "" {
				titles = append(titles, it.Headline)
			}
		}
		view.Headlines = append(view.Headlines, tickerHeadlines{Ticker: t, Titles: titles})
	}

	var sb strings.Builder
	if err := analystTmpl.Execute(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
