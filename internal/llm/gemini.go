package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModelName = "gemini-2.0-flash"

// geminiModels lists commonly available Gemini models.
var geminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

// GeminiProvider implements LLMProvider on the Gemini API through the
// google.golang.org/genai client.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	client     *genai.Client
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = client }
}

// WithGeminiBaseURL points the client at a different endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = strings.TrimRight(url, "/") + "/" }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &GeminiProvider{
		apiKey:     apiKey,
		model:      defaultGeminiModelName,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Name() string     { return ProviderGemini }
func (p *GeminiProvider) Models() []string { return geminiModels }

// Ping checks that the configured model is visible to the API key.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return mapGeminiError(err)
	}
	return nil
}

// Chat sends a GenerateContent request. System messages become the system
// instruction; assistant turns map to the model role.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := p.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}

	system, turns := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := string(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = string(genai.RoleModel)
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if opts != nil {
		if opts.Temperature > 0 {
			config.Temperature = genai.Ptr(float32(opts.Temperature))
		}
		if opts.TopP > 0 {
			config.TopP = genai.Ptr(float32(opts.TopP))
		}
		if opts.MaxTokens > 0 {
			config.MaxOutputTokens = int32(opts.MaxTokens)
		}
		config.StopSequences = opts.Stop
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	var text strings.Builder
	var finish FinishReason = FinishStop
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				text.WriteString(part.Text)
			}
			if text.Len() > 0 {
				finish = mapFinishReason(string(cand.FinishReason))
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	out := &Response{
		Content:      text.String(),
		FinishReason: finish,
		Model:        model,
		Provider:     ProviderGemini,
		Latency:      time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	default:
		return fmt.Errorf("%w: gemini: %v", ErrProviderDown, err)
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: gemini: %s", ErrNoAPIKey, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: gemini: %s", ErrRateLimit, apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: gemini: %s", ErrInvalidModel, apiErr.Message)
	}
	return fmt.Errorf("gemini: API error (%d): %s", apiErr.Code, apiErr.Message)
}
