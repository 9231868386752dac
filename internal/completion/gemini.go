package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	cfg    Config
	mu     sync.Mutex
	client *genai.Client
}

// NewGemini returns a Gemini provider; the client is built on first use.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg}
}

// Name implements Provider.
func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) initializeClientIfNeeded(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.cfg.HTTPClient != nil {
		clientConfig.HTTPClient = g.cfg.HTTPClient
	}
	if g.cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	client, err := g.initializeClientIfNeeded(ctx)
	if err != nil {
		return "", err
	}

	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	result, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var content strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought || part.Text == "" {
				continue
			}
			content.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(content.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
