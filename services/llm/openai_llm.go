package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIProviderName = "openai"
	defaultOpenAIModel = "gpt-4"

	defaultMaxTokens   = 4000
	defaultTemperature = 0.1
)

// OpenAIConfig configures the OpenAI-compatible adapter. APIKey falls back
// to the OPENAI_API_KEY environment variable, then the container secret.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAIProvider adapts the OpenAI chat completion API to the Provider
// interface. It also backs the Azure adapter, which differs only in
// client configuration.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string

	maxTokens   int
	temperature float32
	keySet      bool
	logger      *slog.Logger
}

// NewOpenAIProvider builds an adapter against api.openai.com or a
// compatible BaseURL. Fails fast when no credential can be resolved.
func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	key := cfg.APIKey
	if key == "" {
		key = readSecret("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrMissingAPIKey)
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	p := &OpenAIProvider{
		name:        openAIProviderName,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		keySet:      true,
		logger:      logger,
	}
	p.applyDefaults()
	return p, nil
}

func (p *OpenAIProvider) applyDefaults() {
	if p.model == "" {
		p.model = defaultOpenAIModel
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
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) GenerateCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *OpenAIProvider) GenerateTests(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *OpenAIProvider) ReviewCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

func (p *OpenAIProvider) ExplainCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	return p.complete(ctx, systemPrompt, userPrompt)
}

// complete issues one chat completion and normalizes the response.
func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, newProviderError(p.name, KindInvalidResponse, ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	p.logger.Debug("completion finished",
		slog.String("provider", p.name),
		slog.String("model", resp.Model),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	return &LLMResponse{
		Content:      choice.Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		ModelUsed:    resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// classify maps go-openai errors onto the uniform failure taxonomy.
func (p *OpenAIProvider) classify(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newProviderError(p.name, classifyStatus(apiErr.HTTPStatusCode), err)
	}
	return newProviderError(p.name, classifyTransportErr(err), err)
}

// Health lists models as a cheap credential and connectivity probe.
func (p *OpenAIProvider) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Provider:         p.name,
		Model:            p.model,
		APIKeyConfigured: p.keySet,
		LastCheck:        time.Now().UTC(),
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := p.client.ListModels(probeCtx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Available = true
	return status
}
