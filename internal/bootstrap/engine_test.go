package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cosmic-guide/internal/completion"
	"github.com/ashureev/cosmic-guide/internal/config"
	"github.com/ashureev/cosmic-guide/internal/conversation"
	"github.com/ashureev/cosmic-guide/internal/domain"
)

func baseConfig() *config.Config {
	return &config.Config{
		DefaultGuide: "cosmic_strategist",
		Completion:   config.CompletionConfig{Provider: "openai", Timeout: time.Second},
		Conversation: config.ConversationConfig{UpsellPolicy: "always"},
	}
}

func TestEngineWithoutKeyUsesFallback(t *testing.T) {
	engine, provider, err := Engine(baseConfig(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "openai (unconfigured)", provider.Name())

	s := domain.NewSession("u:s", "u", domain.VedicGuru, time.Now())
	res, err := engine.HandleUserTurn(context.Background(), s, "When will I get a promotion at work?")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, conversation.FallbackMessage, res.Assistant.Content)
	assert.Equal(t, domain.TopicCareer, s.CurrentTopic)

	_, err = provider.Complete(context.Background(), completion.Request{})
	assert.ErrorIs(t, err, completion.ErrNotConfigured)
}

func TestEngineLoadsTriggersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	body := "topics:\n  - name: money\n    triggers: [crypto]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg := baseConfig()
	cfg.Conversation.TriggersFile = path
	engine, _, err := Engine(cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, domain.TopicMoney, engine.Detector().Detect("Should I buy crypto?"))

	cfg.Conversation.TriggersFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err = Engine(cfg, slog.Default())
	assert.Error(t, err)
}

func TestEngineRejectsBadPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.Conversation.UpsellPolicy = "sometimes"
	_, _, err := Engine(cfg, slog.Default())
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Conversation.UpsellRule = "topic +"
	_, _, err = Engine(cfg, slog.Default())
	assert.Error(t, err)
}

func TestDefaultGuide(t *testing.T) {
	cfg := baseConfig()
	assert.Equal(t, domain.CosmicStrategist, DefaultGuide(cfg, slog.Default()))
	cfg.DefaultGuide = "oracle"
	assert.Equal(t, domain.VedicGuru, DefaultGuide(cfg, slog.Default()))
}
