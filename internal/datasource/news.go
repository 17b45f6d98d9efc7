package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// Default news endpoints.
const (
	DefaultNewsBaseURL = "https://es-us.finanzas.yahoo.com"
	DefaultNewsRSSURL  = "https://feeds.finance.yahoo.com/rss/2.0/headline"
)

// News source kinds, as named in configuration.
const (
	SourceHTML = "html"
	SourceRSS  = "rss"
)

// errParse marks a 200 response whose body could not be parsed.
var errParse = errors.New("parse news response")

// HeadlineSource returns up to max headline items for a ticker. A nil
// error with zero items means the page had no usable headlines.
type HeadlineSource interface {
	Name() string
	Headlines(ctx context.Context, ticker string, max int) ([]models.NewsItem, error)
}

// TextCleaner transforms a headline before it is stored in NewsSet.Cleaned.
type TextCleaner interface {
	Clean(text string) string
}

// CleanerFunc adapts a function to TextCleaner.
type CleanerFunc func(string) string

// Clean calls f.
func (f CleanerFunc) Clean(text string) string { return f(text) }

// --- HTML scraper (Yahoo Finanzas quote news page) ---

// HTMLScraper extracts headline links from the quote news page.
type HTMLScraper struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// HTMLOption configures HTMLScraper.
type HTMLOption func(*HTMLScraper)

// WithHTMLBaseURL sets the site root used both for requests and to resolve
// relative links.
func WithHTMLBaseURL(u string) HTMLOption {
	return func(s *HTMLScraper) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTMLHTTPClient sets the HTTP client.
func WithHTMLHTTPClient(c *http.Client) HTMLOption {
	return func(s *HTMLScraper) { s.client = c }
}

// WithHTMLRateLimit caps requests per second; 0 disables the cap.
func WithHTMLRateLimit(perSecond float64) HTMLOption {
	return func(s *HTMLScraper) { s.limiter = newLimiter(perSecond) }
}

// NewHTMLScraper creates the default headline source.
func NewHTMLScraper(opts ...HTMLOption) *HTMLScraper {
	s := &HTMLScraper{
		baseURL: DefaultNewsBaseURL,
		client:  NewHTTPClient(DefaultTimeout),
		limiter: newLimiter(2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the source name.
func (s *HTMLScraper) Name() string { return "Yahoo Finanzas" }

// NewsURL returns the page fetched for ticker.
func (s *HTMLScraper) NewsURL(ticker string) string {
	return fmt.Sprintf("%s/quote/%s/news/", s.baseURL, url.PathEscape(ticker))
}

// Headlines fetches the news page and returns anchors whose href contains
// "/news/" and whose text is non-empty, in document order.
func (s *HTMLScraper) Headlines(ctx context.Context, ticker string, max int) ([]models.NewsItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := doGet(ctx, s.client, s.NewsURL(ticker), map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, fmt.Errorf("news page %s: %w", ticker, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParse, err)
	}

	base, _ := url.Parse(s.baseURL + "/")
	items := make([]models.NewsItem, 0, max)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(items) >= max {
			return false
		}
		href, _ := a.Attr("href")
		text := collapseSpace(a.Text())
		if !strings.Contains(href, "/news/") || text == "" {
			return true
		}
		items = append(items, models.NewsItem{Headline: text, URL: resolveURL(base, href)})
		return len(items) < max
	})
	return items, nil
}

// --- RSS scraper (Yahoo headline feed) ---

// RSSScraper reads the per-ticker Yahoo headline RSS feed.
type RSSScraper struct {
	feedURL string
	client  *http.Client
	limiter *rate.Limiter
}

// RSSOption configures RSSScraper.
type RSSOption func(*RSSScraper)

// WithRSSURL sets the feed endpoint; the ticker is passed as the "s" parameter.
func WithRSSURL(u string) RSSOption {
	return func(s *RSSScraper) { s.feedURL = u }
}

// WithRSSHTTPClient sets the HTTP client.
func WithRSSHTTPClient(c *http.Client) RSSOption {
	return func(s *RSSScraper) { s.client = c }
}

// WithRSSRateLimit caps requests per second; 0 disables the cap.
func WithRSSRateLimit(perSecond float64) RSSOption {
	return func(s *RSSScraper) { s.limiter = newLimiter(perSecond) }
}

// NewRSSScraper creates an RSS headline source.
func NewRSSScraper(opts ...RSSOption) *RSSScraper {
	s := &RSSScraper{
		feedURL: DefaultNewsRSSURL,
		client:  NewHTTPClient(DefaultTimeout),
		limiter: newLimiter(2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the source name.
func (s *RSSScraper) Name() string { return "Yahoo RSS" }

// FeedURL returns the feed fetched for ticker.
func (s *RSSScraper) FeedURL(ticker string) string {
	q := url.Values{}
	q.Set("s", ticker)
	q.Set("region", "US")
	q.Set("lang", "es-US")
	sep := "?"
	if strings.Contains(s.feedURL, "?") {
		sep = "&"
	}
	return s.feedURL + sep + q.Encode()
}

// Headlines fetches the feed and returns item titles and links.
func (s *RSSScraper) Headlines(ctx context.Context, ticker string, max int) ([]models.NewsItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := doGet(ctx, s.client, s.FeedURL(ticker), map[string]string{
		"Accept": "application/rss+xml, application/xml, text/xml",
	})
	if err != nil {
		return nil, fmt.Errorf("news feed %s: %w", ticker, err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errParse, err)
	}

	items := make([]models.NewsItem, 0, max)
	for _, it := range feed.Items {
		if len(items) >= max {
			break
		}
		title := collapseSpace(cleanHTML(it.Title))
		if title == "" {
			continue
		}
		items = append(items, models.NewsItem{Headline: title, URL: it.Link})
	}
	return items, nil
}

// --- News: per-ticker fetch with synthetic fallback ---

// News gathers headlines for a batch of tickers. Every ticker ends in
// exactly one terminal state: real headlines, or the synthetic fallback
// when the request fails, returns a non-200 status, or yields no items.
// There is no retry.
type News struct {
	source      HeadlineSource
	maxArticles int
	concurrency int
	cleaner     TextCleaner
	log         zerolog.Logger
	obs         Observer
}

// NewsOption configures News.
type NewsOption func(*News)

// WithMaxArticles caps headlines per ticker and sets the fallback size.
func WithMaxArticles(limit int) NewsOption {
	return func(nw *News) {
		if limit > 0 {
			nw.maxArticles = limit
		}
	}
}

// WithNewsConcurrency bounds the number of in-flight ticker fetches.
func WithNewsConcurrency(n int) NewsOption {
	return func(nw *News) {
		if n > 0 {
			nw.concurrency = n
		}
	}
}

// WithTextCleaner fills NewsSet.Cleaned using c.
func WithTextCleaner(c TextCleaner) NewsOption {
	return func(nw *News) { nw.cleaner = c }
}

// WithNewsLogger sets the logger.
func WithNewsLogger(l zerolog.Logger) NewsOption {
	return func(nw *News) { nw.log = l }
}

// WithNewsObserver sets the degradation observer.
func WithNewsObserver(o Observer) NewsOption {
	return func(nw *News) {
		if o != nil {
			nw.obs = o
		}
	}
}

// NewNews creates a news fetcher over source.
func NewNews(source HeadlineSource, opts ...NewsOption) *News {
	n := &News{
		source:      source,
		maxArticles: 5,
		concurrency: 4,
		log:         zerolog.Nop(),
		obs:         NopObserver{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// MaxArticles returns the per-ticker cap.
func (n *News) MaxArticles() int { return n.maxArticles }

// Fetch returns one NewsSet per ticker.
func (n *News) Fetch(ctx context.Context, tickers []string) models.NewsByTicker {
	sets := make([]models.NewsSet, len(tickers))

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			sets[i] = n.FetchTicker(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	out := make(models.NewsByTicker, len(tickers))
	for i, t := range tickers {
		out[t] = sets[i]
	}
	return out
}

// FetchTicker runs the fetch state machine for a single ticker.
func (n *News) FetchTicker(ctx context.Context, ticker string) models.NewsSet {
	items, err := n.source.Headlines(ctx, ticker, n.maxArticles)

	var set models.NewsSet
	switch {
	case err != nil:
		set = n.fallback(ticker, classifyNewsError(err), err)
	case len(items) == 0:
		set = n.fallback(ticker, models.FallbackNoItems, nil)
	default:
		if len(items) > n.maxArticles {
			items = items[:n.maxArticles]
		}
		set = models.NewsSet{Ticker: ticker, Provenance: models.ProvenanceReal, Items: items}
	}

	if n.cleaner != nil {
		set.Cleaned = make([]string, len(set.Items))
		for i, it := range set.Items {
			set.Cleaned[i] = n.cleaner.Clean(it.Headline)
		}
	}
	return set
}

func (n *News) fallback(ticker string, reason models.FallbackReason, err error) models.NewsSet {
	info := &models.FallbackInfo{Reason: reason}
	ev := n.log.Warn().Str("ticker", ticker).Str("source", n.source.Name()).Str("reason", string(reason))
	if err != nil {
		info.Error = err.Error()
		ev = ev.Err(err)
	}
	ev.Msg("news unavailable, using synthetic headlines")
	n.obs.NewsFallback(reason)

	return models.NewsSet{
		Ticker:     ticker,
		Provenance: models.ProvenanceSynthetic,
		Items:      FallbackHeadlines(ticker, n.maxArticles),
		Fallback:   info,
	}
}

func classifyNewsError(err error) models.FallbackReason {
	switch {
	case IsHTTPStatus(err):
		return models.FallbackHTTPStatus
	case errors.Is(err, errParse):
		return models.FallbackParse
	default:
		return models.FallbackTransport
	}
}

// fallbackTemplates are the synthetic headline patterns; %s is the ticker.
var fallbackTemplates = []string{
	"%s: La compañía reporta resultados trimestrales mejor de lo esperado.",
	"%s: Analistas revisan sus perspectivas para la acción.",
	"%s: Noticias mixtas en el sector impactan el desempeño reciente.",
	"%s: El precio de la acción se mantiene estable a la espera de nuevos datos.",
	"%s: Inversionistas siguen de cerca la próxima publicación de resultados.",
}

// FallbackHeadlines returns exactly n synthetic items for ticker, cycling
// through the fixed templates. URLs are always empty.
func FallbackHeadlines(ticker string, n int) []models.NewsItem {
	if n < 0 {
		n = 0
	}
	items := make([]models.NewsItem, n)
	for i := range items {
		items[i] = models.NewsItem{Headline: fmt.Sprintf(fallbackTemplates[i%len(fallbackTemplates)], ticker)}
	}
	return items
}

// --- Helpers ---

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// NewHeadlineSource builds the source named by kind ("html" or "rss").
func NewHeadlineSource(kind, baseURL, rssURL string, client *http.Client, perSecond float64) (HeadlineSource, error) {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	switch kind {
	case "", SourceHTML:
		opts := []HTMLOption{WithHTMLHTTPClient(client), WithHTMLRateLimit(perSecond)}
		if baseURL != "" {
			opts = append(opts, WithHTMLBaseURL(baseURL))
		}
		return NewHTMLScraper(opts...), nil
	case SourceRSS:
		opts := []RSSOption{WithRSSHTTPClient(client), WithRSSRateLimit(perSecond)}
		if rssURL != "" {
			opts = append(opts, WithRSSURL(rssURL))
		}
		return NewRSSScraper(opts...), nil
	default:
		return nil, fmt.Errorf("unknown news source %q", kind)
	}
}
