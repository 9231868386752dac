// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	GRPCHealthPort  string
	FrontendURL     string
	SessionStore    string // memory, sqlite or postgres
	DBPath          string
	DatabaseURL     string
	SessionTTL      time.Duration
	DefaultGuide    string
	Completion      CompletionConfig
	Conversation    ConversationConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// CompletionConfig selects and configures the language model provider.
type CompletionConfig struct {
	Provider     string
	Model        string
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	BaseURL      string
	Timeout      time.Duration
	MaxTokens    int
	MaxRetries   int
}

// APIKey returns the key for the selected provider.
func (c CompletionConfig) APIKey() string {
	switch c.Provider {
	case "anthropic":
		return c.AnthropicKey
	case "gemini":
		return c.GeminiKey
	default:
		return c.OpenAIKey
	}
}

// ConversationConfig tunes the topic and phase tracker.
type ConversationConfig struct {
	UpsellPolicy       string
	UpsellRule         string
	TriggersFile       string
	DailyFreeQuestions int
	LayeredReplies     bool
}

// RateLimitConfig bounds chat requests per anonymous user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

var defaults = map[string]any{
	"PORT":                            "8080",
	"GRPC_HEALTH_PORT":                "9090",
	"FRONTEND_URL":                    "",
	"SESSION_STORE":                   "memory",
	"DB_PATH":                         "./data/guide.db",
	"DATABASE_URL":                    "",
	"SESSION_TTL":                     "60m",
	"DEFAULT_GUIDE":                   "vedic_guru",
	"COMPLETION_PROVIDER":             "openai",
	"COMPLETION_MODEL":                "",
	"COMPLETION_BASE_URL":             "",
	"OPENAI_API_KEY":                  "",
	"ANTHROPIC_API_KEY":               "",
	"GEMINI_API_KEY":                  "",
	"COMPLETION_TIMEOUT":              "30s",
	"COMPLETION_MAX_TOKENS":           600,
	"COMPLETION_MAX_RETRIES":          2,
	"UPSELL_POLICY":                   "always",
	"UPSELL_RULE":                     "",
	"TRIGGERS_FILE":                   "",
	"DAILY_FREE_QUESTIONS":            0,
	"LAYERED_REPLIES":                 false,
	"RATE_LIMIT_REQUESTS":             10,
	"RATE_LIMIT_WINDOW":               "1m",
	"CONVERSATION_LOG_ENABLED":        true,
	"CONVERSATION_LOG_DIR":            "./data/logs/conversations",
	"CONVERSATION_LOG_GLOBAL_ENABLED": false,
	"CONVERSATION_LOG_GLOBAL_PATH":    "./data/logs/conversations/all.ndjson",
	"CONVERSATION_LOG_QUEUE_SIZE":     1000,
}

// Load reads configuration from environment variables, layered over an
// optional YAML or JSON file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	queueSize := v.GetInt("CONVERSATION_LOG_QUEUE_SIZE")
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		GRPCHealthPort: v.GetString("GRPC_HEALTH_PORT"),
		FrontendURL:    v.GetString("FRONTEND_URL"),
		SessionStore:   strings.ToLower(v.GetString("SESSION_STORE")),
		DBPath:         v.GetString("DB_PATH"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		DefaultGuide:   v.GetString("DEFAULT_GUIDE"),
		Completion: CompletionConfig{
			Provider:     strings.ToLower(v.GetString("COMPLETION_PROVIDER")),
			Model:        v.GetString("COMPLETION_MODEL"),
			OpenAIKey:    v.GetString("OPENAI_API_KEY"),
			AnthropicKey: v.GetString("ANTHROPIC_API_KEY"),
			GeminiKey:    v.GetString("GEMINI_API_KEY"),
			BaseURL:      v.GetString("COMPLETION_BASE_URL"),
			Timeout:      v.GetDuration("COMPLETION_TIMEOUT"),
			MaxTokens:    v.GetInt("COMPLETION_MAX_TOKENS"),
			MaxRetries:   v.GetInt("COMPLETION_MAX_RETRIES"),
		},
		Conversation: ConversationConfig{
			UpsellPolicy:       v.GetString("UPSELL_POLICY"),
			UpsellRule:         v.GetString("UPSELL_RULE"),
			TriggersFile:       v.GetString("TRIGGERS_FILE"),
			DailyFreeQuestions: v.GetInt("DAILY_FREE_QUESTIONS"),
			LayeredReplies:     v.GetBool("LAYERED_REPLIES"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowDuration:    v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       v.GetBool("CONVERSATION_LOG_ENABLED"),
			Dir:           v.GetString("CONVERSATION_LOG_DIR"),
			GlobalEnabled: v.GetBool("CONVERSATION_LOG_GLOBAL_ENABLED"),
			GlobalPath:    v.GetString("CONVERSATION_LOG_GLOBAL_PATH"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.SessionStore {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when SESSION_STORE=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty when SESSION_STORE=postgres")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory, sqlite or postgres, got %q", c.SessionStore)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	switch c.Completion.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be openai, anthropic or gemini, got %q", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Conversation.DailyFreeQuestions < 0 {
		return fmt.Errorf("DAILY_FREE_QUESTIONS cannot be negative")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}
