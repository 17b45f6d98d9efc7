package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketbrief/internal/config"
)

// Router sends requests to the primary provider and walks the fallback
// chain when it fails. It satisfies LLMProvider itself.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithRouterLogger sets the logger used to report provider failures.
func WithRouterLogger(l zerolog.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: 1 * time.Second,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
// It tries the primary provider first, then falls back in order.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.log.Warn().Err(err).Str("provider", providerName).Msg("llm provider failed, trying next")

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies LLMProvider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, name := range r.sortedNames() {
		for _, m := range r.providers[name].Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers, sorted.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// Chain returns the provider order Chat will try.
func (r *Router) Chain() []string { return r.providerChain() }

// ── Internal Helpers ──

func (r *Router) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isNonRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that another attempt on the same provider
// cannot fix. The router still moves on to the next provider.
func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength) ||
		errors.Is(err, ErrProviderDown) ||
		errors.Is(err, ErrEmptyResponse)
}

// NewRouterFromConfig creates a Router from the application config. Ollama
// is registered whenever a URL is set; hosted providers only with a key.
// Providers other than the primary become fallbacks in registration order.
func NewRouterFromConfig(cfg *config.Config, log zerolog.Logger) (*Router, error) {
	router := NewRouter(cfg.LLM.Primary,
		WithMaxRetries(1),
		WithRetryDelay(time.Second),
		WithRouterLogger(log),
	)
	httpClient := &http.Client{Timeout: cfg.LLM.Timeout}

	var fallbacks []string
	register := func(p LLMProvider) {
		router.RegisterProvider(p)
		if p.Name() != cfg.LLM.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.LLM.OllamaURL != "" {
		model := cfg.LLM.Model
		if cfg.LLM.Primary != ProviderOllama {
			model = DefaultOllamaModel
		}
		p, err := NewOllamaProvider(cfg.LLM.OllamaURL,
			WithOllamaModel(model),
			WithOllamaHTTPClient(httpClient),
		)
		if err == nil {
			register(p)
		}
	}

	if cfg.LLM.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey,
			WithOpenAIModel(modelFor(cfg, "gpt", "gpt-4o-mini")),
			WithOpenAIHTTPClient(httpClient),
		)
		if err == nil {
			register(p)
		}
	}

	if cfg.LLM.AnthropicKey != "" {
		p, err := NewAnthropicProvider(cfg.LLM.AnthropicKey,
			WithAnthropicModel(modelFor(cfg, "claude", defaultAnthropicModelName)),
			WithAnthropicHTTPClient(httpClient),
		)
		if err == nil {
			register(p)
		}
	}

	if cfg.LLM.GeminiKey != "" {
		p, err := NewGeminiProvider(cfg.LLM.GeminiKey,
			WithGeminiModel(modelFor(cfg, "gemini", defaultGeminiModelName)),
			WithGeminiHTTPClient(httpClient),
		)
		if err != nil {
			log.Warn().Err(err).Msg("gemini provider disabled")
		} else {
			register(p)
		}
	}

	if len(router.ProviderNames()) == 0 {
		return nil, ErrNoProviders
	}
	router.fallbacks = fallbacks
	return router, nil
}

// modelFor keeps the configured model when it belongs to the provider's
// family and falls back to a known default otherwise.
func modelFor(cfg *config.Config, prefix, fallback string) string {
	if strings.HasPrefix(cfg.LLM.Model, prefix) {
		return cfg.LLM.Model
	}
	return fallback
}
