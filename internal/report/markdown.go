package report

import (
	"io"
	"strings"
	"text/template"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

const markdownTemplate = `# Informe de mercado

> {{cell .Rec.Query}}

_Generado {{datetime .Rec.CreatedAt}} · {{duration .Rec.Duration}} · ` + "`{{.Rec.ID}}`" + `_

## Resumen de mercado

{{- if .Rec.MarketSummary.Rows}}

| Ticker | Inicio | Fin | Precio inicial | Precio final | Cambio |
|---|---|---|---:|---:|---:|
{{- range .Rec.MarketSummary.Rows}}
| {{.Ticker}} | {{date .StartDate}} | {{date .EndDate}} | {{price .StartPrice}} | {{price .EndPrice}} | {{percent .PercentChange}} |
{{- end}}
{{- else}}

_Sin datos de mercado._
{{- end}}

## Sentimiento

{{- if .Sentiments}}

| Ticker | Global | Positivos | Negativos | Neutrales |
|---|---|---:|---:|---:|
{{- range .Sentiments}}
| {{.Ticker}} | {{.Result.Overall}} | {{.Result.Positive}} | {{.Result.Negative}} | {{.Result.Neutral}} |
{{- end}}
{{- else}}

_Sin titulares que clasificar._
{{- end}}

## Titulares
{{range .News}}
### {{.Ticker}}{{if .Synthetic}} (sintéticos){{end}}
{{range .Set.Items}}
- {{if .URL}}[{{cell .Headline}}]({{.URL}}){{else}}{{cell .Headline}}{{end}}
{{- end}}
{{end}}
## Informe del analista

{{.Rec.Narrative.Text}}
{{- if .Rec.Narrative.Fallback}}

> El modelo de lenguaje no respondió; el texto anterior es el mensaje de respaldo.
{{- end}}
{{- if .Rec.Warnings}}

## Avisos
{{range .Rec.Warnings}}
- {{.}}
{{- end}}
{{- end}}
`

var funcs = template.FuncMap{
	"cell":     markdownCell,
	"date":     utils.FormatDate,
	"datetime": utils.FormatDateTime,
	"duration": formatDuration,
	"price":    utils.FormatPrice,
	"percent":  utils.FormatPercent,
}

var markdownTmpl = template.Must(template.New("markdown").Funcs(funcs).Parse(markdownTemplate))

type tickerSentiment struct {
	Ticker string
	Result models.SentimentResult
}

type tickerNews struct {
	Ticker    string
	Set       models.NewsSet
	Synthetic bool
}

type markdownView struct {
	Rec        *models.AnalysisRecord
	Sentiments []tickerSentiment
	News       []tickerNews
}

func newMarkdownView(rec *models.AnalysisRecord) markdownView {
	v := markdownView{Rec: rec}
	for _, t := range orderedTickers(rec) {
		if s, ok := rec.Sentiments[t]; ok {
			v.Sentiments = append(v.Sentiments, tickerSentiment{Ticker: t, Result: s})
		}
		if set, ok := rec.News[t]; ok {
			v.News = append(v.News, tickerNews{
				Ticker:    t,
				Set:       set,
				Synthetic: set.Provenance == models.ProvenanceSynthetic,
			})
		}
	}
	return v
}

// RenderMarkdown writes the record as a markdown document.
func RenderMarkdown(w io.Writer, rec *models.AnalysisRecord) error {
	return markdownTmpl.Execute(w, newMarkdownView(rec))
}

// markdownCell keeps a value on one line and away from table and link syntax.
func markdownCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := strings.NewReplacer("|", `\|`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
