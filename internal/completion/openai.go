package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	cfg    Config
	once   sync.Once
	client openai.Client
}

// NewOpenAI returns an OpenAI provider; the client is built on first use.
func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{cfg: cfg}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) initializeClientIfNeeded() {
	o.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(o.cfg.APIKey),
			option.WithMaxRetries(o.cfg.MaxRetries),
		}
		if o.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(o.cfg.BaseURL))
		}
		if o.cfg.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(o.cfg.HTTPClient))
		}
		o.client = openai.NewClient(opts...)
	})
}

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	o.initializeClientIfNeeded()
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
