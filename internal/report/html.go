package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/seenimoa/marketbrief/pkg/models"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root { --text: #1a1a2e; --muted: #6b7280; --border: #e5e7eb; --accent: #2563eb; --section-bg: #f8fafc; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: var(--text);
         line-height: 1.6; max-width: 900px; margin: 0 auto; padding: 20px; }
  h1 { color: var(--accent); border-bottom: 3px solid var(--accent); padding-bottom: 8px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  table { border-collapse: collapse; width: 100%; margin: 8px 0; }
  th, td { border: 1px solid var(--border); padding: 6px 10px; }
  th { background: var(--section-bg); text-align: left; }
  blockquote { color: var(--muted); border-left: 4px solid var(--border); margin: 8px 0; padding-left: 12px; }
  .chart { margin: 16px 0; }
</style>
</head>
<body>
<div class="chart">{{.Chart}}</div>
{{.Body}}
</body>
</html>
`

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

type pageView struct {
	Title string
	Chart template.HTML
	Body  template.HTML
}

// RenderHTML writes a standalone page: the relative price chart followed by
// the markdown report converted to HTML. Raw HTML inside the narrative is
// not passed through.
func RenderHTML(w io.Writer, rec *models.AnalysisRecord) error {
	var md bytes.Buffer
	if err := RenderMarkdown(&md, rec); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := markdownRenderer.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("report: convert markdown: %w", err)
	}
	return pageTmpl.Execute(w, pageView{
		Title: "Informe de mercado: " + rec.Query,
		Chart: template.HTML(PriceChart(rec.MarketRaw, rec.Tickers, DefaultChartConfig())),
		Body:  template.HTML(body.String()),
	})
}
