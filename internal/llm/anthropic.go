package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModelName = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 1024
)

// anthropicModels lists commonly available Anthropic models.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// AnthropicProvider implements LLMProvider on the Anthropic Messages API
// through the official SDK.
type AnthropicProvider struct {
	model      string
	maxTokens  int
	clientOpts []option.RequestOption

	send func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
	list func(ctx context.Context) error
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.clientOpts = append(p.clientOpts, option.WithBaseURL(strings.TrimRight(url, "/")+"/"))
	}
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.clientOpts = append(p.clientOpts, option.WithHTTPClient(client))
	}
}

// WithAnthropicMaxRetries sets how often the SDK retries failed requests.
func WithAnthropicMaxRetries(n int) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.clientOpts = append(p.clientOpts, option.WithMaxRetries(n))
	}
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &AnthropicProvider{
		model:     defaultAnthropicModelName,
		maxTokens: defaultAnthropicMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(120 * time.Second),
	}, p.clientOpts...)
	client := anthropic.NewClient(clientOpts...)

	p.send = func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
		return client.Messages.New(ctx, params)
	}
	p.list = func(ctx context.Context) error {
		_, err := client.Models.List(ctx, anthropic.ModelListParams{})
		return err
	}
	return p, nil
}

func (p *AnthropicProvider) Name() string     { return ProviderAnthropic }
func (p *AnthropicProvider) Models() []string { return anthropicModels }

// Ping verifies the API key by listing models.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if err := p.list(ctx); err != nil {
		return mapAnthropicError(err)
	}
	return nil
}

// Chat sends a Messages API request. System messages become the system prompt.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	params := p.buildParams(messages, opts)

	msg, err := p.send(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &Response{
		Content:      text.String(),
		FinishReason: mapFinishReason(string(msg.StopReason)),
		Model:        string(msg.Model),
		Provider:     ProviderAnthropic,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}

func (p *AnthropicProvider) buildParams(messages []Message, opts *ChatOptions) anthropic.MessageNewParams {
	system, turns := splitSystem(messages)

	model, maxTokens := p.model, p.maxTokens
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts != nil {
		if opts.Temperature > 0 {
			params.Temperature = anthropic.Float(opts.Temperature)
		}
		if opts.TopP > 0 {
			params.TopP = anthropic.Float(opts.TopP)
		}
		if len(opts.Stop) > 0 {
			params.StopSequences = opts.Stop
		}
	}
	return params
}

// mapAnthropicError translates SDK status errors into the package sentinels.
func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: anthropic: %v", ErrProviderDown, err)
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: anthropic: %v", ErrNoAPIKey, err)
	case http.StatusTooManyRequests, 529:
		return fmt.Errorf("%w: anthropic: %v", ErrRateLimit, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: anthropic: %v", ErrInvalidModel, err)
	}
	return fmt.Errorf("anthropic: API error (%d): %w", apiErr.StatusCode, err)
}
