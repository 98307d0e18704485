package profile

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by FromViper.
const EnvPrefix = "EVENTCHAIN"

// Profile is the configuration to start the CLI or the HTTP server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// HTTPRequestsPerSecond limits requests per client IP; 0 disables the limit
	HTTPRequestsPerSecond float64
	// HTTPBurst is the burst size of the per-client limit
	HTTPBurst int

	// LLM Configuration
	LLMProvider          string        // EVENTCHAIN_LLM_PROVIDER (default: openai)
	LLMModel             string        // EVENTCHAIN_LLM_MODEL (default: gpt-4o)
	LLMAPIKey            string        // EVENTCHAIN_LLM_API_KEY (fallback: OPENAI_API_KEY)
	LLMBaseURL           string        // EVENTCHAIN_LLM_BASE_URL (default depends on provider)
	LLMMaxTokens         int           // EVENTCHAIN_LLM_MAX_TOKENS (default: 1024)
	LLMTemperature       float32       // EVENTCHAIN_LLM_TEMPERATURE (default: 0)
	LLMTimeout           time.Duration // EVENTCHAIN_LLM_TIMEOUT (default: 30s)
	LLMRequestsPerSecond float64       // EVENTCHAIN_LLM_REQUESTS_PER_SECOND (default: 0, unlimited)

	// Pipeline Configuration
	ConfidenceThreshold float64 // EVENTCHAIN_CONFIDENCE_THRESHOLD (default: 0.7)
	Signer              string  // EVENTCHAIN_SIGNER (default: nozaki)
	Timezone            string  // EVENTCHAIN_TIMEZONE (default: Local)
	Concurrency         int     // EVENTCHAIN_CONCURRENCY (default: 4)
	TemplateConfirm     bool    // EVENTCHAIN_TEMPLATE_CONFIRM (default: false)

	// Logging
	LogLevel  string // EVENTCHAIN_LOG_LEVEL (default: info)
	LogFormat string // EVENTCHAIN_LOG_FORMAT (default: text)
}

// defaultBaseURLs maps providers to their OpenAI-compatible endpoints.
var defaultBaseURLs = map[string]string{
	"openai":      "https://api.openai.com/v1",
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"ollama":      "http://localhost:11434/v1",
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8081)
	v.SetDefault("http.requests_per_second", 10)
	v.SetDefault("http.burst", 20)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("confidence_threshold", 0.7)
	v.SetDefault("signer", "nozaki")
	v.SetDefault("timezone", "Local")
	v.SetDefault("concurrency", 4)
	v.SetDefault("template_confirm", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadDotEnv loads the first .env file found in paths. Missing files are not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("loaded env file", slog.String("path", path))
			return
		}
	}
}

// NewViper returns a viper instance reading EVENTCHAIN_* variables with defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// FromViper populates the profile from v.
func (p *Profile) FromViper(v *viper.Viper) {
	p.Mode = v.GetString("mode")
	p.Addr = v.GetString("addr")
	p.Port = v.GetInt("port")
	p.HTTPRequestsPerSecond = v.GetFloat64("http.requests_per_second")
	p.HTTPBurst = v.GetInt("http.burst")

	p.LLMProvider = strings.ToLower(v.GetString("llm.provider"))
	p.LLMModel = v.GetString("llm.model")
	p.LLMAPIKey = v.GetString("llm.api_key")
	if p.LLMAPIKey == "" {
		p.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	p.LLMBaseURL = v.GetString("llm.base_url")
	p.LLMMaxTokens = v.GetInt("llm.max_tokens")
	p.LLMTemperature = float32(v.GetFloat64("llm.temperature"))
	p.LLMTimeout = v.GetDuration("llm.timeout")
	p.LLMRequestsPerSecond = v.GetFloat64("llm.requests_per_second")

	p.ConfidenceThreshold = v.GetFloat64("confidence_threshold")
	p.Signer = v.GetString("signer")
	p.Timezone = v.GetString("timezone")
	p.Concurrency = v.GetInt("concurrency")
	p.TemplateConfirm = v.GetBool("template_confirm")

	p.LogLevel = strings.ToLower(v.GetString("log.level"))
	p.LogFormat = strings.ToLower(v.GetString("log.format"))
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location resolves the configured timezone, falling back to time.Local.
func (p *Profile) Location() *time.Location {
	if p.Timezone == "" || p.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		slog.Warn("invalid timezone, using local", slog.String("timezone", p.Timezone), slog.String("error", err.Error()))
		return time.Local
	}
	return loc
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.LLMBaseURL == "" {
		base, ok := defaultBaseURLs[p.LLMProvider]
		if !ok {
			return errors.Errorf("unsupported LLM provider: %s", p.LLMProvider)
		}
		p.LLMBaseURL = base
	}

	if p.LLMProvider != "ollama" && p.LLMAPIKey == "" {
		return errors.New("LLM API key is required, set EVENTCHAIN_LLM_API_KEY or OPENAI_API_KEY")
	}

	if p.LLMModel == "" {
		return errors.New("LLM model is required")
	}

	if p.LLMTimeout <= 0 {
		return errors.Errorf("LLM timeout must be positive, got %s", p.LLMTimeout)
	}

	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold must be within [0,1], got %v", p.ConfidenceThreshold)
	}

	if p.Concurrency <= 0 {
		p.Concurrency = 1
	}

	if p.HTTPRequestsPerSecond < 0 {
		return errors.Errorf("HTTP requests per second must not be negative, got %v", p.HTTPRequestsPerSecond)
	}
	if p.HTTPBurst <= 0 {
		p.HTTPBurst = 1
	}

	if _, err := time.LoadLocation(p.Timezone); p.Timezone != "Local" && p.Timezone != "" && err != nil {
		return errors.Wrapf(err, "unable to load timezone %s", p.Timezone)
	}

	return nil
}

// NewLogger builds the process logger from the log settings.
func (p *Profile) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch p.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if p.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
