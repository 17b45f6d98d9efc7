package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketbrief/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// provider.go: Types & Helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("Eres un analista.")
	if sys.Role != RoleSystem || sys.Content != "Eres un analista." {
		t.Fatalf("SystemMessage: got %+v", sys)
	}

	user := UserMessage("hola")
	if user.Role != RoleUser || user.Content != "hola" {
		t.Fatalf("UserMessage: got %+v", user)
	}

	asst := AssistantMessage("buenas")
	if asst.Role != RoleAssistant || asst.Content != "buenas" {
		t.Fatalf("AssistantMessage: got %+v", asst)
	}
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		SystemMessage("uno"),
		UserMessage("pregunta"),
		SystemMessage("dos"),
		AssistantMessage("respuesta"),
	})
	if system != "uno\n\ndos" {
		t.Fatalf("system: got %q", system)
	}
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("turns: got %+v", turns)
	}
}

func TestResponseString(t *testing.T) {
	r := &Response{
		Provider: "ollama", Model: "llama3",
		Content: "short answer",
		Usage:   Usage{TotalTokens: 50},
		Latency: 100 * time.Millisecond,
	}
	s := r.String()
	if !strings.Contains(s, "ollama/llama3") || !strings.Contains(s, "50 tokens") {
		t.Fatalf("unexpected String(): %s", s)
	}

	r.Content = strings.Repeat("x", 200)
	if !strings.Contains(r.String(), "...") {
		t.Fatal("expected truncation for long content")
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := map[string]FinishReason{
		"stop":       FinishStop,
		"end_turn":   FinishStop,
		"STOP":       FinishStop,
		"length":     FinishLength,
		"max_tokens": FinishLength,
		"other":      FinishReason("other"),
	}
	for in, want := range tests {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIProviderNew(t *testing.T) {
	_, err := NewOpenAIProvider("")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got: %v", err)
	}

	p, err := NewOpenAIProvider("sk-test", WithOpenAIModel("gpt-4o"), WithOpenAIBaseURL("http://custom/"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openai" || p.model != "gpt-4o" || p.baseURL != "http://custom" {
		t.Fatalf("unexpected config: %+v", p)
	}
	if len(p.Models()) == 0 {
		t.Fatal("Models() should not be empty")
	}
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing auth header")
		}

		var req openAIChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature not forwarded: %v", req.Temperature)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 256 {
			t.Errorf("max_tokens not forwarded: %v", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(openAIChatResponse{
			ID: "chatcmpl-123",
			Choices: []openAIChoice{{
				Message:      openAIMessage{Role: "assistant", Content: "AAPL subió 2%"},
				FinishReason: "stop",
			}},
			Usage: openAIUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
			Model: "gpt-4o-mini",
		})
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Eres un analista."), UserMessage("¿Cómo va AAPL?")},
		&ChatOptions{Temperature: 0.2, MaxTokens: 256})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "AAPL subió 2%" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.Provider != "openai" || resp.Usage.TotalTokens != 30 || resp.FinishReason != FinishStop {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", 401, `{"error":{"message":"bad key","type":"auth"}}`, ErrNoAPIKey},
		{"rate limit", 429, `{"error":{"message":"slow down"}}`, ErrRateLimit},
		{"context length", 400, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, ErrContextLength},
		{"model", 404, `{"error":{"message":"no such model","code":"model_not_found"}}`, ErrInvalidModel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broke")
	}))
	defer server.Close()
	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	good, _ := NewOpenAIProvider("good", WithOpenAIBaseURL(server.URL))
	if err := good.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	bad, _ := NewOpenAIProvider("bad", WithOpenAIBaseURL(server.URL))
	if err := bad.Ping(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// ollama.go
// ════════════════════════════════════════════════════════════════════

func TestOllamaProviderNew(t *testing.T) {
	p, err := NewOllamaProvider("")
	if err != nil {
		t.Fatal(err)
	}
	if p.baseURL != "http://localhost:11434" || p.model != DefaultOllamaModel {
		t.Fatalf("unexpected config: %+v", p)
	}
	if p.Name() != "ollama" || len(p.Models()) == 0 {
		t.Fatal("basic methods failed")
	}
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false for Chat")
		}
		if req.Options == nil || req.Options.Temperature != 0.2 || req.Options.NumPredict != 512 {
			t.Errorf("options not forwarded: %+v", req.Options)
		}

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3",
			Message:         ollamaMessage{Role: "assistant", Content: "Informe de AAPL"},
			Done:            true,
			PromptEvalCount: 15,
			EvalCount:       8,
		})
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Eres un analista."), UserMessage("AAPL")},
		&ChatOptions{Temperature: 0.2, MaxTokens: 512})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Informe de AAPL" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.Provider != "ollama" || resp.Usage.TotalTokens != 23 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOllamaNoOptions(t *testing.T) {
	p, _ := NewOllamaProvider("http://unused")
	req := p.buildRequest([]Message{UserMessage("x")}, "llama3", &ChatOptions{})
	if req.Options != nil {
		t.Fatalf("empty ChatOptions should not produce options: %+v", req.Options)
	}
}

func TestOllamaHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"llama9\" not found"}`)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL, WithOllamaModel("llama9"))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p, _ := NewOllamaProvider(url, WithOllamaHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrProviderDown) {
		t.Fatalf("expected ErrProviderDown, got %v", err)
	}
	if err := p.Ping(context.Background()); !errors.Is(err, ErrProviderDown) {
		t.Fatalf("Ping: expected ErrProviderDown, got %v", err)
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// anthropic.go
// ════════════════════════════════════════════════════════════════════

func TestAnthropicProviderNew(t *testing.T) {
	_, err := NewAnthropicProvider("")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got: %v", err)
	}
	p, err := NewAnthropicProvider("sk-ant-test", WithAnthropicModel("claude-3-5-haiku-20241022"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "anthropic" || p.model != "claude-3-5-haiku-20241022" {
		t.Fatalf("unexpected config: %+v", p)
	}
}

func TestAnthropicBuildParams(t *testing.T) {
	p, _ := NewAnthropicProvider("sk-ant-test")
	params := p.buildParams([]Message{
		SystemMessage("Eres un analista."),
		UserMessage("AAPL"),
	}, &ChatOptions{MaxTokens: 300, Temperature: 0.2})

	if string(params.Model) != defaultAnthropicModelName {
		t.Fatalf("model: got %q", params.Model)
	}
	if params.MaxTokens != 300 {
		t.Fatalf("max tokens: got %d", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "Eres un analista." {
		t.Fatalf("system: got %+v", params.System)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("messages: got %d", len(params.Messages))
	}
}

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "sk-ant-test" {
			t.Errorf("missing api key header")
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["system"]; !ok {
			t.Errorf("system prompt not sent: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Informe simulado"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicMaxRetries(0),
	)
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Eres un analista."), UserMessage("AAPL")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Informe simulado" || resp.Provider != "anthropic" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 16 || resp.FinishReason != FinishStop {
		t.Fatalf("unexpected usage/finish: %+v", resp)
	}
}

func TestAnthropicChatKeepsOnlyTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_02",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "thinking", "thinking": "revisar datos", "signature": "sig"},
				{"type": "text", "text": "Parte uno. "},
				{"type": "text", "text": "Parte dos."}
			],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 5, "output_tokens": 6}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicMaxRetries(0),
	)
	resp, err := p.Chat(context.Background(), []Message{UserMessage("AAPL")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Parte uno. Parte dos." {
		t.Fatalf("content: got %q", resp.Content)
	}
}

func TestAnthropicChatWithoutText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_03",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "thinking", "thinking": "nada", "signature": "sig"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 5, "output_tokens": 1}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-test",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicMaxRetries(0),
	)
	_, err := p.Chat(context.Background(), []Message{UserMessage("AAPL")}, nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestAnthropicErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("sk-ant-bad",
		WithAnthropicBaseURL(server.URL),
		WithAnthropicMaxRetries(0),
	)
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// gemini.go
// ════════════════════════════════════════════════════════════════════

func TestGeminiProviderNew(t *testing.T) {
	_, err := NewGeminiProvider("")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got: %v", err)
	}
	p, err := NewGeminiProvider("gm-test", WithGeminiModel("gemini-2.5-flash"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "gemini" || p.model != "gemini-2.5-flash" {
		t.Fatalf("unexpected config: %+v", p)
	}
}

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Informe "}, {"text": "Gemini"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 3, "totalTokenCount": 8}
		}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider("gm-test", WithGeminiBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("Eres un analista."), UserMessage("AAPL")},
		&ChatOptions{Temperature: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Informe Gemini" || resp.Provider != "gemini" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

// ════════════════════════════════════════════════════════════════════
// router.go
// ════════════════════════════════════════════════════════════════════

// mockProvider implements LLMProvider for testing the router.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
	pingErr  error
	calls    int32
}

func (m *mockProvider) Name() string                   { return m.name }
func (m *mockProvider) Models() []string               { return []string{m.name + "-model"} }
func (m *mockProvider) Ping(ctx context.Context) error { return m.pingErr }
func (m *mockProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, opts)
	}
	return &Response{Content: "mock response", Provider: m.name}, nil
}

func failing(err error) func(context.Context, []Message, *ChatOptions) (*Response, error) {
	return func(context.Context, []Message, *ChatOptions) (*Response, error) { return nil, err }
}

func TestRouterBasic(t *testing.T) {
	r := NewRouter("primary")
	r.RegisterProvider(&mockProvider{name: "primary"})

	p, err := r.Primary()
	if err != nil || p.Name() != "primary" {
		t.Fatalf("Primary: %v, %v", p, err)
	}
	if names := r.ProviderNames(); len(names) != 1 || names[0] != "primary" {
		t.Fatalf("ProviderNames: %v", names)
	}
	if r.Name() != "router/primary" {
		t.Fatalf("Name: %s", r.Name())
	}
}

func TestRouterFallback(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: failing(fmt.Errorf("%w: primary down", ErrProviderDown))}
	backup := &mockProvider{name: "backup"}

	r := NewRouter("primary", WithFallbacks("backup"), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provider != "backup" {
		t.Fatalf("expected fallback response, got: %+v", resp)
	}
	// provider down is not retried on the same provider
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("calls: primary=%d backup=%d", primary.calls, backup.calls)
	}
}

func TestRouterRetriesTransientErrors(t *testing.T) {
	var n int32
	flaky := &mockProvider{name: "flaky", chatFunc: func(context.Context, []Message, *ChatOptions) (*Response, error) {
		if atomic.AddInt32(&n, 1) < 3 {
			return nil, ErrRateLimit
		}
		return &Response{Content: "ok", Provider: "flaky"}, nil
	}}
	r := NewRouter("flaky", WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(flaky)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" || flaky.calls != 3 {
		t.Fatalf("expected success on third attempt, calls=%d", flaky.calls)
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(0))
	r.RegisterProvider(&mockProvider{name: "a", chatFunc: failing(ErrProviderDown)})
	r.RegisterProvider(&mockProvider{name: "b", chatFunc: failing(ErrRateLimit)})

	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if err == nil || !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("last error should be wrapped: %v", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("nonexistent")
	_, err := r.Chat(context.Background(), []Message{UserMessage("test")}, nil)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if err := r.Ping(context.Background()); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Ping: expected ErrNoProviders, got %v", err)
	}
}

func TestRouterContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&mockProvider{name: "a", chatFunc: func(context.Context, []Message, *ChatOptions) (*Response, error) {
		cancel()
		return nil, ErrRateLimit
	}})
	b := &mockProvider{name: "b"}
	r.RegisterProvider(b)

	_, err := r.Chat(ctx, []Message{UserMessage("x")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.calls != 0 {
		t.Fatal("fallback should not run after cancellation")
	}
}

func TestRouterHealthCheckAndModels(t *testing.T) {
	r := NewRouter("a")
	r.RegisterProvider(&mockProvider{name: "a"})
	r.RegisterProvider(&mockProvider{name: "b", pingErr: ErrProviderDown})

	health := r.HealthCheck(context.Background())
	if health["a"] != nil || !errors.Is(health["b"], ErrProviderDown) {
		t.Fatalf("unexpected health: %v", health)
	}
	models := r.Models()
	if len(models) != 2 || models[0] != "a-model" || models[1] != "b-model" {
		t.Fatalf("unexpected models: %v", models)
	}
}

func TestIsNonRetryable(t *testing.T) {
	for _, err := range []error{ErrNoAPIKey, ErrInvalidModel, ErrContextLength, ErrProviderDown,
		fmt.Errorf("wrapped: %w", ErrNoAPIKey)} {
		if !isNonRetryable(err) {
			t.Errorf("%v should be non-retryable", err)
		}
	}
	for _, err := range []error{nil, ErrRateLimit, errors.New("boom")} {
		if isNonRetryable(err) {
			t.Errorf("%v should be retryable", err)
		}
	}
}

func testConfig() *config.Config {
	return &config.Config{LLM: config.LLMConfig{
		Primary:   ProviderOllama,
		OllamaURL: "http://localhost:11434",
		Model:     "llama3",
		Timeout:   time.Minute,
	}}
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := testConfig()
	r, err := NewRouterFromConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if chain := r.Chain(); len(chain) != 1 || chain[0] != ProviderOllama {
		t.Fatalf("chain: %v", chain)
	}

	cfg.LLM.OpenAIKey = "sk-test-key"
	cfg.LLM.AnthropicKey = "sk-ant-key"
	r, err = NewRouterFromConfig(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic}
	if chain := r.Chain(); strings.Join(chain, ",") != strings.Join(want, ",") {
		t.Fatalf("chain: got %v, want %v", chain, want)
	}
	p, _ := r.GetProvider(ProviderOpenAI)
	if p.(*OpenAIProvider).model != "gpt-4o-mini" {
		t.Fatalf("openai model should fall back to default, got %q", p.(*OpenAIProvider).model)
	}

	cfg.LLM.Primary = ProviderAnthropic
	r, _ = NewRouterFromConfig(cfg, zerolog.Nop())
	if chain := r.Chain(); chain[0] != ProviderAnthropic || len(chain) != 3 {
		t.Fatalf("chain with anthropic primary: %v", chain)
	}
}

func TestNewRouterFromConfigNoProviders(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.OllamaURL = ""
	_, err := NewRouterFromConfig(cfg, zerolog.Nop())
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}
