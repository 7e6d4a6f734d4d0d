package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Factory constructs a provider on first use. Construction fails when
// credentials are missing, which keeps unconfigured providers listable
// without making them usable.
type Factory func(logger *slog.Logger) (Provider, error)

// defaultRequestsPerSecond throttles outbound vendor calls per provider.
const (
	defaultRequestsPerSecond = 2
	defaultBurst             = 4
)

// Registry maps provider names to lazily constructed, rate-limited
// provider instances.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	providers map[string]Provider

	rps    rate.Limit
	burst  int
	logger *slog.Logger
}

// NewRegistry builds an empty registry with default rate limits.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
		rps:       defaultRequestsPerSecond,
		burst:     defaultBurst,
		logger:    logger,
	}
}

// SetRateLimit overrides the per-provider outbound call budget. Applies
// to providers constructed after the call.
func (r *Registry) SetRateLimit(rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rps > 0 {
		r.rps = rate.Limit(rps)
	}
	if burst > 0 {
		r.burst = burst
	}
}

// Register adds a named factory. Re-registering a name replaces the
// factory and drops any cached instance.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.providers, name)
}

// Get returns the provider for name, constructing it on first use.
//
// Outputs:
//
//	Provider - Rate-limited provider instance
//	error    - ErrUnknownProvider for unregistered names, or the
//	           factory's construction error (e.g., ErrMissingAPIKey)
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.providers[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	inner, err := factory(r.logger)
	if err != nil {
		return nil, fmt.Errorf("constructing provider %s: %w", name, err)
	}

	p := &throttledProvider{
		Provider: inner,
		limiter:  rate.NewLimiter(r.rps, r.burst),
	}
	r.providers[name] = p
	r.logger.Info("provider initialized", slog.String("provider", name), slog.String("model", inner.Model()))
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health probes every registered provider. Providers whose factories
// fail (usually missing credentials) report as unavailable rather than
// erroring the whole probe.
func (r *Registry) Health(ctx context.Context) map[string]HealthStatus {
	out := make(map[string]HealthStatus)
	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err != nil {
			out[name] = HealthStatus{
				Provider:  name,
				Error:     err.Error(),
				LastCheck: time.Now().UTC(),
			}
			continue
		}
		out[name] = p.Health(ctx)
	}
	return out
}

// RegisterDefaults installs the built-in vendor adapters.
func RegisterDefaults(r *Registry) {
	r.Register(openAIProviderName, func(logger *slog.Logger) (Provider, error) {
		return NewOpenAIProvider(OpenAIConfig{}, logger)
	})
	r.Register(azureProviderName, func(logger *slog.Logger) (Provider, error) {
		return NewAzureProvider(AzureConfig{}, logger)
	})
	r.Register(anthropicProviderName, func(logger *slog.Logger) (Provider, error) {
		return NewAnthropicProvider(AnthropicConfig{}, logger)
	})
}

// throttledProvider applies a token-bucket limit to completion calls.
// Health probes bypass the limiter so readiness checks stay prompt.
type throttledProvider struct {
	Provider
	limiter *rate.Limiter
}

func (t *throttledProvider) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return newProviderError(t.Name(), KindTimeout, err)
	}
	return nil
}

func (t *throttledProvider) GenerateCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.GenerateCode(ctx, systemPrompt, userPrompt)
}

func (t *throttledProvider) GenerateTests(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.GenerateTests(ctx, systemPrompt, userPrompt)
}

func (t *throttledProvider) ReviewCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.ReviewCode(ctx, systemPrompt, userPrompt)
}

func (t *throttledProvider) ExplainCode(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.Provider.ExplainCode(ctx, systemPrompt, userPrompt)
}
