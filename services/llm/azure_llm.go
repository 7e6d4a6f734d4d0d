package llm

import (
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const azureProviderName = "azure"

// AzureConfig configures the Azure OpenAI adapter. Endpoint and APIKey
// fall back to AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY.
type AzureConfig struct {
	APIKey      string
	Endpoint    string
	Deployment  string
	MaxTokens   int
	Temperature float32
}

// NewAzureProvider builds an adapter against an Azure OpenAI deployment.
// Azure shares the OpenAI wire format, so the adapter reuses the OpenAI
// implementation with Azure client configuration and its own name.
func NewAzureProvider(cfg AzureConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	key := cfg.APIKey
	if key == "" {
		key = readSecret("AZURE_OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: AZURE_OPENAI_API_KEY not set", ErrMissingAPIKey)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = readSecret("AZURE_OPENAI_ENDPOINT")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("azure provider requires AZURE_OPENAI_ENDPOINT")
	}

	clientCfg := openai.DefaultAzureConfig(key, endpoint)

	p := &OpenAIProvider{
		name:        azureProviderName,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Deployment,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		keySet:      true,
		logger:      logger,
	}
	p.applyDefaults()
	return p, nil
}
