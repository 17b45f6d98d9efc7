// Package metrics records pipeline events as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seenimoa/marketbrief/pkg/models"
)

const namespace = "marketbrief"

// Pipeline stages reported to ObserveStage.
const (
	StageMarket    = "market"
	StageNews      = "news"
	StageSentiment = "sentiment"
	StageSummary   = "summary"
	StageAnalyst   = "analyst"
	StageTotal     = "total"
)

// Recorder implements the pipeline observers on its own registry, so several
// recorders can coexist in one process (tests, embedded servers).
type Recorder struct {
	reg *prometheus.Registry

	runs          prometheus.Counter
	newsFallbacks *prometheus.CounterVec
	marketOmitted *prometheus.CounterVec
	labels        *prometheus.CounterVec
	llmFallbacks  prometheus.Counter
	stages        *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of completed analysis runs",
		}),
		newsFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_fallbacks_total",
			Help:      "Tickers served synthetic headlines, by reason",
		}, []string{"reason"}),
		marketOmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_omitted_total",
			Help:      "Tickers omitted from market data, by reason",
		}, []string{"reason"}),
		labels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_labels_total",
			Help:      "Classified headlines, by label",
		}, []string{"label"}),
		llmFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Runs whose narrative fell back to the canned message",
		}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route", "method"}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// MarketOmitted implements datasource.Observer.
func (r *Recorder) MarketOmitted(reason string) {
	r.marketOmitted.WithLabelValues(reason).Inc()
}

// NewsFallback implements datasource.Observer.
func (r *Recorder) NewsFallback(reason models.FallbackReason) {
	r.newsFallbacks.WithLabelValues(string(reason)).Inc()
}

// RunCompleted counts a finished run.
func (r *Recorder) RunCompleted() { r.runs.Inc() }

// SentimentLabel counts one classified headline.
func (r *Recorder) SentimentLabel(label models.SentimentLabel) {
	r.labels.WithLabelValues(string(label)).Inc()
}

// LLMFallback counts a fallback narrative.
func (r *Recorder) LLMFallback() { r.llmFallbacks.Inc() }

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route should be the route pattern,
// not the raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Noop discards every event.
type Noop struct{}

func (Noop) MarketOmitted(string)                           {}
func (Noop) NewsFallback(models.FallbackReason)             {}
func (Noop) RunCompleted()                                  {}
func (Noop) SentimentLabel(models.SentimentLabel)           {}
func (Noop) LLMFallback()                                   {}
func (Noop) ObserveStage(string, time.Duration)             {}
func (Noop) ObserveHTTP(string, string, int, time.Duration) {}
