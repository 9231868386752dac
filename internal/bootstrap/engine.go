// Package bootstrap builds the conversation engine from configuration. It is
// shared by the server and the CLI.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/config"
	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Engine returns the completion provider and an engine wired to it.
func Engine(cfg *config.Config, logger *slog.Logger) (*conversation.Engine, completion.Provider, error) {
	provider, err := completion.New(completion.Config{
		Provider:   cfg.Completion.Provider,
		Model:      cfg.Completion.Model,
		APIKey:     cfg.Completion.APIKey(),
		BaseURL:    cfg.Completion.BaseURL,
		Timeout:    cfg.Completion.Timeout,
		MaxRetries: cfg.Completion.MaxRetries,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	kw := conversation.DefaultKeywords()
	if path := cfg.Conversation.TriggersFile; path != "" {
		kw, err = conversation.LoadKeywords(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load triggers: %w", err)
		}
		logger.Info("Loaded trigger table", "path", path, "topics", len(kw.Topics))
	}

	policy, err := conversation.ParseUpsellPolicy(cfg.Conversation.UpsellPolicy)
	if err != nil {
		return nil, nil, err
	}

	engine, err := conversation.NewEngine(provider, conversation.Options{
		Keywords:     kw,
		UpsellPolicy: policy,
		UpsellRule:   cfg.Conversation.UpsellRule,
		DailyLimit:   cfg.Conversation.DailyFreeQuestions,
		MaxTokens:    cfg.Completion.MaxTokens,
		Layered:      cfg.Conversation.LayeredReplies,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build conversation engine: %w", err)
	}
	return engine, provider, nil
}

// DefaultGuide parses the configured default persona, falling back to the Vedic Guru.
func DefaultGuide(cfg *config.Config, logger *slog.Logger) domain.Persona {
	p, err := domain.ParsePersona(cfg.DefaultGuide)
	if err != nil {
		logger.Warn("Unknown DEFAULT_GUIDE, using the Vedic Guru", "value", cfg.DefaultGuide)
		return domain.VedicGuru
	}
	return p
}
