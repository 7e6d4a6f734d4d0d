package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	anthropicProviderName = "anthropic"
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicAPIVersion   = "2023-06-01"

	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
)

// AnthropicConfig configures the Anthropic adapter. APIKey falls back to
// ANTHROPIC_API_KEY, then the container secret.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// AnthropicProvider adapts the Anthropic Messages API to the Provider
// interface. Anthropic has no official Go SDK in our dependency set, so
// the adapter speaks the REST API directly.
type AnthropicProvider struct {
	baseURL string
	apiKey  string
	model   string

	maxTokens   int
	temperature float32
	httpClient  *http.Client
	logger      *slog.Logger
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider builds an Anthropic Messages API adapter. Fails
// fast when no credential can be resolved.
func NewAnthropicProvider(cfg AnthropicConfig, logger *slog.Logger) (*AnthropicProvider, error) {
	key := cfg.APIKey
	if key == "" {
		key = readSecret("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrMissingAPIKey)
	}

	p := &AnthropicProvider{
		baseURL:     cfg.BaseURL,
		apiKey:      key,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
	if p.baseURL == "" {
		p.baseURL = anthropicBaseURL
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultMaxTokens
	}
	if p.temperature <= 0 {
		p.temperature = defaultTemperature
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

func (p *AnthropicProvider) Name() string  { return anthropicProviderName }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) GenerateCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *AnthropicProvider) GenerateTests(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *AnthropicProvider) ReviewCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *AnthropicProvider) ExplainCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

// complete issues one Messages API call and normalizes the response.
// Total token usage is input plus output, matching the OpenAI convention.
func (p *AnthropicProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		System:      systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return nil, newProviderError(anthropicProviderName, KindInvalidResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, newProviderError(anthropicProviderName, KindInvalidResponse, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, newProviderError(anthropicProviderName, classifyTransportErr(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, newProviderError(anthropicProviderName, classifyTransportErr(err), err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newProviderError(anthropicProviderName, KindInvalidResponse,
			fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Errorf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = fmt.Errorf("status %d: %s: %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
		}
		return nil, newProviderError(anthropicProviderName, classifyStatus(resp.StatusCode), msg)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, newProviderError(anthropicProviderName, KindInvalidResponse, ErrEmptyCompletion)
	}

	p.logger.Debug("completion finished",
		slog.String("provider", anthropicProviderName),
		slog.String("model", parsed.Model),
		slog.Int("total_tokens", parsed.Usage.InputTokens+parsed.Usage.OutputTokens),
		slog.Duration("elapsed", time.Since(start)))

	return &LLMResponse{
		Content:      text,
		TokensUsed:   parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		ModelUsed:    parsed.Model,
		FinishReason: parsed.StopReason,
	}, nil
}

// Health reports credential presence without a billable API call. The
// Messages API has no free probe endpoint.
func (p *AnthropicProvider) Health(ctx context.Context) HealthStatus {
	return HealthStatus{
		Available:        p.apiKey != "",
		Provider:         anthropicProviderName,
		Model:            p.model,
		APIKeyConfigured: p.apiKey != "",
		LastCheck:        time.Now().UTC(),
	}
}
