// Package agent runs the analysis pipeline: ticker extraction, market and
// news collection, sentiment classification, summarization and the
// analyst narrative. Every completed run is kept in a History.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketbrief/internal/agent/prompts"
	"github.com/seenimoa/marketbrief/internal/analysis/market"
	"github.com/seenimoa/marketbrief/internal/analysis/sentiment"
	"github.com/seenimoa/marketbrief/internal/metrics"
	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// WarnNoTickers is recorded when a query yields no ticker symbols.
const WarnNoTickers = "no tickers found in query"

// ── Collaborators ──

// MarketFetcher returns the price series of each ticker that has data.
type MarketFetcher interface {
	Fetch(ctx context.Context, tickers []string) models.MarketData
}

// NewsFetcher returns one news set per ticker, real or synthetic.
type NewsFetcher interface {
	Fetch(ctx context.Context, tickers []string) models.NewsByTicker
}

// SentimentClassifier labels headlines per ticker.
type SentimentClassifier interface {
	Validate() error
	Classify(headlines map[string][]string) models.SentimentByTicker
}

// Narrator writes the narrative report. It must not fail; degradation is
// reported through Narrative.Fallback.
type Narrator interface {
	Narrate(ctx context.Context, in prompts.AnalystInput) models.Narrative
}

// SummarizeFunc reduces market data to summary rows in the given order.
type SummarizeFunc func(data models.MarketData, order []string) (models.MarketSummary, error)

// Metrics receives pipeline events. *metrics.Recorder and metrics.Noop
// satisfy it.
type Metrics interface {
	RunCompleted()
	SentimentLabel(label models.SentimentLabel)
	LLMFallback()
	ObserveStage(stage string, d time.Duration)
}

// ── Configuration ──

// Options tunes the sources the coordinator builds for itself when none
// are injected. Zero fields take the tagged defaults.
type Options struct {
	Days              int           `default:"7"`
	Interval          string        `default:"1d"`
	MaxArticles       int           `default:"5"`
	ConcurrentFetches int           `default:"4"`
	RequestTimeout    time.Duration `default:"10s"`
	HistoryLimit      int           `default:"0"`
	CleanHeadlines    bool          `default:"false"`
}

// CoordinatorConfig holds the collaborators of a Coordinator. Nil fields
// are filled in: Yahoo-backed market and news sources built from Options,
// the shared default classifier, market.Summarize, an analyst without a
// provider and no-op metrics.
type CoordinatorConfig struct {
	Market     MarketFetcher
	News       NewsFetcher
	Classifier SentimentClassifier
	Summarize  SummarizeFunc
	Analyst    Narrator
	Metrics    Metrics
	History    *History
	Logger     zerolog.Logger
	Options    Options
	Clock      func() time.Time
}

// Coordinator runs one query at a time through the pipeline and records
// the outcome. It is safe for concurrent use; the history serializes
// appends.
type Coordinator struct {
	market     MarketFetcher
	news       NewsFetcher
	classifier SentimentClassifier
	summarize  SummarizeFunc
	analyst    Narrator
	metrics    Metrics
	history    *History
	log        zerolog.Logger
	opts       Options
	now        func() time.Time
}

// NewCoordinator validates the classifier and wires the defaults. An
// untrained classifier is an error here rather than at classify time.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	opts := cfg.Options
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply option defaults: %w", err)
	}

	c := &Coordinator{
		market:     cfg.Market,
		news:       cfg.News,
		classifier: cfg.Classifier,
		summarize:  cfg.Summarize,
		analyst:    cfg.Analyst,
		metrics:    cfg.Metrics,
		history:    cfg.History,
		log:        cfg.Logger,
		opts:       opts,
		now:        cfg.Clock,
	}

	if c.metrics == nil {
		c.metrics = metrics.Noop{}
	}
	if c.classifier == nil {
		clf, err := sentiment.Default()
		if err != nil {
			return nil, err
		}
		c.classifier = clf
	}
	if err := c.classifier.Validate(); err != nil {
		return nil, fmt.Errorf("sentiment classifier: %w", err)
	}
	if c.market == nil {
		c.market = defaultMarket(opts, c.metrics, c.log)
	}
	if c.news == nil {
		c.news = defaultNews(opts, c.metrics, c.log)
	}
	if c.summarize == nil {
		c.summarize = market.Summarize
	}
	if c.analyst == nil {
		c.analyst = NewAnalyst(nil, WithAnalystLogger(c.log))
	}
	if c.history == nil {
		c.history = NewHistory(PolicyForLimit(opts.HistoryLimit))
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// History returns the run history.
func (c *Coordinator) History() *History { return c.history }

// Options returns the effective options.
func (c *Coordinator) Options() Options { return c.opts }

// ── Pipeline ──

// Run extracts tickers from query and runs the pipeline.
func (c *Coordinator) Run(ctx context.Context, query string) (*models.AnalysisRecord, error) {
	return c.RunWithTickers(ctx, query, nil)
}

// RunWithTickers runs the pipeline on an explicit ticker list. An empty
// list falls back to extracting tickers from query.
//
// The only error is a context already done before the run starts. Source
// failures degrade the record instead: missing market data is omitted,
// news falls back to synthetic headlines and the narrative to a stock
// message.
func (c *Coordinator) RunWithTickers(ctx context.Context, query string, tickers []string) (*models.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := c.now()
	rec := models.NewAnalysisRecord(query, start)

	tickers = utils.NormalizeTickers(tickers)
	if len(tickers) == 0 {
		tickers = utils.ExtractTickers(query)
	}
	rec.Tickers = tickers
	if len(tickers) == 0 {
		rec.AddWarning(WarnNoTickers)
		c.log.Warn().Str("query", query).Msg(WarnNoTickers)
	}

	// each branch writes only its own variables
	var (
		marketRaw  models.MarketData
		news       models.NewsByTicker
		sentiments models.SentimentByTicker
	)
	var g errgroup.Group
	g.Go(func() error {
		t0 := time.Now()
		marketRaw = c.market.Fetch(ctx, tickers)
		c.metrics.ObserveStage(metrics.StageMarket, time.Since(t0))
		return nil
	})
	g.Go(func() error {
		t0 := time.Now()
		news = c.news.Fetch(ctx, tickers)
		c.metrics.ObserveStage(metrics.StageNews, time.Since(t0))

		t0 = time.Now()
		sentiments = c.classifier.Classify(headlinesByTicker(news))
		c.metrics.ObserveStage(metrics.StageSentiment, time.Since(t0))
		return nil
	})
	_ = g.Wait()

	if marketRaw != nil {
		rec.MarketRaw = marketRaw
	}
	if news != nil {
		rec.News = news
	}
	if sentiments != nil {
		rec.Sentiments = sentiments
	}
	for _, res := range rec.Sentiments {
		for _, l := range res.Labels {
			c.metrics.SentimentLabel(l)
		}
	}

	t0 := time.Now()
	summary, err := c.summarize(rec.MarketRaw, tickers)
	c.metrics.ObserveStage(metrics.StageSummary, time.Since(t0))
	if summary.Rows != nil {
		rec.MarketSummary = summary
	}
	for _, e := range splitErrors(err) {
		rec.AddWarning(e.Error())
		c.log.Warn().Err(e).Msg("market summary row omitted")
	}

	t0 = time.Now()
	rec.Narrative = c.analyst.Narrate(ctx, prompts.AnalystInput{
		Query:      query,
		Tickers:    tickers,
		Summary:    rec.MarketSummary,
		Sentiments: rec.Sentiments,
		News:       rec.News,
	})
	c.metrics.ObserveStage(metrics.StageAnalyst, time.Since(t0))
	if rec.Narrative.Fallback {
		c.metrics.LLMFallback()
	}

	rec.Duration = c.now().Sub(start)
	c.history.Append(rec)
	c.metrics.RunCompleted()
	c.metrics.ObserveStage(metrics.StageTotal, rec.Duration)

	c.log.Info().
		Str("id", rec.ID.String()).
		Int("tickers", len(tickers)).
		Int("market_rows", rec.MarketSummary.Len()).
		Bool("llm_fallback", rec.Narrative.Fallback).
		Dur("duration", rec.Duration).
		Msg("analysis complete")
	return rec, nil
}

// headlinesByTicker extracts the raw headline text of every news set.
func headlinesByTicker(news models.NewsByTicker) map[string][]string {
	out := make(map[string][]string, len(news))
	for t, set := range news {
		titles := make([]string, 0, len(set.Items))
		for _, it := range set.Items {
			if it.Headline != "" {
				titles = append(titles, it.Headline)
			}
		}
		out[t] = titles
	}
	return out
}

// splitErrors flattens an errors.Join result.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

