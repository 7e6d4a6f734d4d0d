// Package llm contains the vendor adapters that turn prompt pairs into
// normalized completions. Adapters differ only in request marshaling,
// authentication, and error mapping; prompt text is owned by callers.
package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LLMResponse is the normalized result of a single provider call.
type LLMResponse struct {
	// Content is the raw completion text.
	Content string `json:"content"`

	// TokensUsed is the vendor-reported total token consumption for the
	// call (prompt plus completion).
	TokensUsed int `json:"tokens_used"`

	// ModelUsed is the concrete model identifier that served the call.
	ModelUsed string `json:"model_used"`

	// FinishReason is the vendor stop reason, when reported.
	FinishReason string `json:"finish_reason,omitempty"`
}

// HealthStatus reports whether a provider is usable right now.
type HealthStatus struct {
	Available        bool      `json:"available"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	APIKeyConfigured bool      `json:"api_key_configured"`
	Error            string    `json:"error,omitempty"`
	LastCheck        time.Time `json:"last_check"`
}

// Provider is the uniform capability set every vendor adapter implements.
// Callers build prompts themselves; adapters never alter prompt text.
//
// Thread Safety: implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the registry name of the provider (e.g., "openai").
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// GenerateCode produces source code from a prompt pair. Failures are
	// returned as *ProviderError so callers can classify them.
	GenerateCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error)

	// GenerateTests produces unit tests from a prompt pair.
	GenerateTests(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error)

	// ReviewCode produces a structured review from a prompt pair.
	ReviewCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error)

	// ExplainCode produces prose documentation from a prompt pair.
	ExplainCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error)

	// Health probes provider readiness. Implementations report credential
	// presence without making a billable call where possible.
	Health(ctx context.Context) HealthStatus
}

// readSecret resolves a credential by env var name, falling back to the
// conventional container secret path /run/secrets/<lowercased name>.
func readSecret(envVar string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	path := filepath.Join("/run/secrets", strings.ToLower(envVar))
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
