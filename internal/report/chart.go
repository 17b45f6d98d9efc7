package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Price Chart
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int
	Height       int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
	BgColor      string
	GridColor    string
	TextColor    string
	FontSize     int
	Title        string
}

// DefaultChartConfig returns the chart size used by the HTML report.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        760,
		Height:       320,
		MarginTop:    40,
		MarginRight:  30,
		MarginBottom: 40,
		MarginLeft:   60,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
		Title:        "Evolución relativa del precio (%)",
	}
}

func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// Series is one named line. NaN values leave a gap.
type Series struct {
	Name   string
	Values []float64
	Color  string
}

var palette = []string{"#2563eb", "#ea580c", "#16a34a", "#dc2626", "#9333ea", "#0891b2"}

// PriceChart draws every ticker of the market data as its percent change
// from the first bar, so tickers at different price levels share one axis.
// Labels come from the longest series.
func PriceChart(data models.MarketData, order []string, cfg ChartConfig) string {
	var series []Series
	var labels []string
	for _, t := range utils.OrderTickers(order, data.Tickers()) {
		s := data[t]
		bars := s.Sorted()
		if len(bars) == 0 {
			continue
		}
		base := s.Price(bars[0])
		values := make([]float64, len(bars))
		for i, b := range bars {
			if base == 0 {
				values[i] = math.NaN()
				continue
			}
			values[i] = (s.Price(b) - base) / base * 100
		}
		series = append(series, Series{Name: t, Values: values})
		if len(bars) > len(labels) {
			labels = labels[:0]
			for _, b := range bars {
				labels = append(labels, b.Date.Format("02/01"))
			}
		}
	}
	return LineChart(series, labels, cfg)
}

// LineChart renders one or more series over a shared Y axis.
func LineChart(series []Series, labels []string, cfg ChartConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if len(series) == 0 {
		return emptySVG(cfg, "Sin datos de mercado")
	}

	px, py, pw, ph := cfg.plotArea()

	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	maxLen := 0
	for _, s := range series {
		maxLen = max(maxLen, len(s.Values))
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if maxLen == 0 || minVal > maxVal {
		return emptySVG(cfg, "Sin datos de mercado")
	}

	vRange := maxVal - minVal
	if vRange < 0.001 {
		vRange = 1
	}
	minVal -= vRange * 0.05
	maxVal += vRange * 0.05
	vRange = maxVal - minVal

	xAt := func(i int) float64 {
		if maxLen == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(i)*float64(pw)/float64(maxLen-1)
	}
	yAt := func(v float64) float64 {
		return float64(py+ph) - (v-minVal)/vRange*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))

	const gridLines = 5
	for i := 0; i <= gridLines; i++ {
		val := minVal + vRange*float64(i)/gridLines
		y := yAt(val)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%.1f</text>`,
			px-5, y+4, cfg.FontSize, cfg.TextColor, val)
	}

	for si, s := range series {
		color := s.Color
		if color == "" {
			color = palette[si%len(palette)]
		}

		var path []string
		for i, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			cmd := "L"
			if len(path) == 0 {
				cmd = "M"
			}
			path = append(path, fmt.Sprintf("%s%.1f,%.1f", cmd, xAt(i), yAt(v)))
		}
		switch len(path) {
		case 0:
		case 1:
			p := strings.Split(path[0][1:], ",")
			fmt.Fprintf(&sb, `<circle cx="%s" cy="%s" r="3" fill="%s"/>`, p[0], p[1], color)
		default:
			fmt.Fprintf(&sb, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`,
				strings.Join(path, " "), color)
		}

		ly := py + 10 + si*16
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`,
			px+10, ly, px+30, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" font-size="10" fill="%s">%s</text>`,
			px+35, ly+4, cfg.TextColor, escapeXML(s.Name))
	}

	step := max(maxLen/6, 1)
	for i := 0; i < len(labels) && i < maxLen; i += step {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="%d" fill="%s" text-anchor="middle">%s</text>`,
			xAt(i), py+ph+18, cfg.FontSize-1, cfg.TextColor, escapeXML(labels[i]))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ── SVG helpers ──

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
