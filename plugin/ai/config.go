package ai

import (
	"errors"
	"time"

	"github.com/hrygo/eventchain/internal/profile"
	"github.com/hrygo/eventchain/plugin/ai/timeout"
)

// LLMConfig represents the model gateway configuration.
type LLMConfig struct {
	Provider          string        // openai, deepseek, siliconflow, ollama
	Model             string        // gpt-4o
	APIKey            string
	BaseURL           string
	MaxTokens         int           // default: 1024
	Temperature       float32       // default: 0
	Timeout           time.Duration // per gateway call, default: timeout.GatewayTimeout
	RequestsPerSecond float64       // 0 disables client-side rate limiting
}

// NewLLMConfigFromProfile creates the gateway config from profile.
func NewLLMConfigFromProfile(p *profile.Profile) *LLMConfig {
	cfg := &LLMConfig{
		Provider:          p.LLMProvider,
		Model:             p.LLMModel,
		APIKey:            p.LLMAPIKey,
		BaseURL:           p.LLMBaseURL,
		MaxTokens:         p.LLMMaxTokens,
		Temperature:       p.LLMTemperature,
		Timeout:           p.LLMTimeout,
		RequestsPerSecond: p.LLMRequestsPerSecond,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *LLMConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout.GatewayTimeout
	}
}

// Validate validates the configuration.
func (c *LLMConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.Model == "" {
		return errors.New("LLM model is required")
	}

	if c.RequestsPerSecond < 0 {
		return errors.New("requests per second must not be negative")
	}

	return nil
}
