package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// Anthropic calls the Messages API.
type Anthropic struct {
	cfg    Config
	once   sync.Once
	client anthropic.Client
}

// NewAnthropic returns an Anthropic provider; the client is built on first use.
func NewAnthropic(cfg Config) *Anthropic {
	return &Anthropic{cfg: cfg}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) initializeClientIfNeeded() {
	a.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(a.cfg.APIKey),
			option.WithMaxRetries(a.cfg.MaxRetries),
		}
		if a.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(a.cfg.BaseURL))
		}
		if a.cfg.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(a.cfg.HTTPClient))
		}
		a.client = anthropic.NewClient(opts...)
	})
}

// Complete implements Provider.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	a.initializeClientIfNeeded()
	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
