// Package completion adapts hosted LLM APIs to the single-shot completion
// call the conversation engine needs.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no provider credentials are set.
	ErrNotConfigured = errors.New("completion: provider not configured")
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("completion: empty response")
)

// Request is one system+user prompt pair.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Provider produces a reply for a request.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderGemini:
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}

// New returns the configured provider. Without an API key it returns an
// Unconfigured provider so callers degrade to their fallback text.
func New(cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(name)
	}
	if cfg.APIKey == "" {
		logger.Warn("Completion provider has no API key, replies will use the fallback text", "provider", name)
		return Unconfigured{provider: name}, nil
	}

	switch name {
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderGemini:
		return NewGemini(cfg), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

// Unconfigured always fails with ErrNotConfigured.
type Unconfigured struct {
	provider string
}

// Complete implements Provider.
func (u Unconfigured) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// Name implements Provider.
func (u Unconfigured) Name() string {
	if u.provider == "" {
		return "unconfigured"
	}
	return u.provider + " (unconfigured)"
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
