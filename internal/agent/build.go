package agent

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketbrief/internal/analysis/sentiment"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/datasource"
	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/internal/metrics"
)

// NewFromConfig builds a coordinator whose sources, classifier and analyst
// follow cfg. provider may be nil, in which case every narrative is the
// fallback message.
func NewFromConfig(cfg *config.Config, provider llm.LLMProvider, m Metrics, log zerolog.Logger) (*Coordinator, error) {
	if m == nil {
		m = metrics.Noop{}
	}
	opts := Options{
		Days:              cfg.Pipeline.Days,
		Interval:          cfg.Pipeline.Interval,
		MaxArticles:       cfg.Pipeline.MaxArticles,
		ConcurrentFetches: cfg.Pipeline.ConcurrentFetches,
		RequestTimeout:    cfg.Pipeline.RequestTimeout,
		HistoryLimit:      cfg.Pipeline.HistoryLimit,
		CleanHeadlines:    cfg.Pipeline.CleanHeadlines,
	}
	client := datasource.NewHTTPClient(cfg.Pipeline.RequestTimeout)

	feed := datasource.NewYFinance(
		datasource.WithYFinanceBaseURL(cfg.Market.BaseURL),
		datasource.WithYFinanceHTTPClient(client),
		datasource.WithYFinanceRateLimit(cfg.Market.RateLimit),
		datasource.WithYFinanceCacheTTL(cfg.Market.CacheTTL),
	)

	src, err := datasource.NewHeadlineSource(cfg.News.Source, cfg.News.BaseURL, cfg.News.RSSURL, client, cfg.News.RateLimit)
	if err != nil {
		return nil, err
	}

	clf, err := loadClassifier(cfg.Sentiment.CorpusFile)
	if err != nil {
		return nil, err
	}

	analyst := NewAnalyst(provider,
		WithChatOptions(&llm.ChatOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}),
		WithAnalystLogger(logger.Component(log, "analyst")),
	)

	return NewCoordinator(CoordinatorConfig{
		Market:     newMarket(feed, opts, m, log),
		News:       newNews(src, opts, m, log),
		Classifier: clf,
		Analyst:    analyst,
		Metrics:    m,
		Logger:     logger.Component(log, "coordinator"),
		Options:    opts,
	})
}

func loadClassifier(corpusFile string) (*sentiment.Classifier, error) {
	if corpusFile == "" {
		return sentiment.Default()
	}
	corpus, err := sentiment.LoadCorpusFile(corpusFile)
	if err != nil {
		return nil, err
	}
	clf, err := sentiment.Train(corpus)
	if err != nil {
		return nil, fmt.Errorf("train on %s: %w", corpusFile, err)
	}
	return clf, nil
}

// ── Default sources ──

func defaultMarket(opts Options, m Metrics, log zerolog.Logger) *datasource.Market {
	feed := datasource.NewYFinance(datasource.WithYFinanceHTTPClient(httpClient(opts)))
	return newMarket(feed, opts, m, log)
}

func defaultNews(opts Options, m Metrics, log zerolog.Logger) *datasource.News {
	return newNews(datasource.NewHTMLScraper(datasource.WithHTMLHTTPClient(httpClient(opts))), opts, m, log)
}

func newMarket(feed datasource.PriceFeed, opts Options, m Metrics, log zerolog.Logger) *datasource.Market {
	return datasource.NewMarket(feed,
		datasource.WithMarketWindow(opts.Days, opts.Interval),
		datasource.WithMarketConcurrency(opts.ConcurrentFetches),
		datasource.WithMarketLogger(logger.Component(log, "market")),
		datasource.WithMarketObserver(observer(m)),
	)
}

func newNews(src datasource.HeadlineSource, opts Options, m Metrics, log zerolog.Logger) *datasource.News {
	newsOpts := []datasource.NewsOption{
		datasource.WithMaxArticles(opts.MaxArticles),
		datasource.WithNewsConcurrency(opts.ConcurrentFetches),
		datasource.WithNewsLogger(logger.Component(log, "news")),
		datasource.WithNewsObserver(observer(m)),
	}
	if opts.CleanHeadlines {
		newsOpts = append(newsOpts, datasource.WithTextCleaner(sentiment.Normalizer{}))
	}
	return datasource.NewNews(src, newsOpts...)
}

func httpClient(opts Options) *http.Client {
	return datasource.NewHTTPClient(opts.RequestTimeout)
}

// observer forwards source degradation events when m also counts them.
func observer(m Metrics) datasource.Observer {
	if o, ok := m.(datasource.Observer); ok {
		return o
	}
	return datasource.NopObserver{}
}
