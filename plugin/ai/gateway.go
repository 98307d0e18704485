package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/eventchain/plugin/ai/timeout"
)

// Request is a single structured-output call.
type Request struct {
	SystemInstruction string
	UserContent       string
	Schema            *Schema
}

// Gateway is the model gateway: a prompt in, a value conforming to the schema out.
// Implementations return *GatewayError on every failure.
type Gateway interface {
	// Generate decodes the model answer into out, which must be a pointer.
	Generate(ctx context.Context, req *Request, out any) error
}

// OpenAIGateway implements Gateway over any OpenAI-compatible chat completions API.
// It is safe for concurrent use.
type OpenAIGateway struct {
	client  *openai.Client
	cfg     LLMConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// GatewayOption customizes an OpenAIGateway.
type GatewayOption func(*gatewayOptions)

type gatewayOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient overrides the HTTP client used to reach the provider.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(o *gatewayOptions) { o.httpClient = c }
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(o *gatewayOptions) { o.logger = l }
}

// NewOpenAIGateway creates a gateway from cfg.
func NewOpenAIGateway(cfg *LLMConfig, opts ...GatewayOption) (*OpenAIGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	c.applyDefaults()

	o := &gatewayOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	clientConfig := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		clientConfig.BaseURL = c.BaseURL
	}
	if o.httpClient != nil {
		clientConfig.HTTPClient = o.httpClient
	}

	g := &OpenAIGateway{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    c,
		logger: o.logger,
	}
	if c.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}
	return g, nil
}

// Generate performs one chat completion constrained to req.Schema.
func (g *OpenAIGateway) Generate(ctx context.Context, req *Request, out any) error {
	if req == nil || req.Schema == nil {
		return NewGatewayError(ErrKindSchema, "request has no response schema", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			if callCtx.Err() == nil {
				return g.fail(req, NewGatewayError(ErrKindTimeout, "rate limit wait exceeds call deadline", err))
			}
			return g.fail(req, ClassifyError(callCtx, err))
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: req.UserContent},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      req.Schema.Definition,
				Strict:      true,
			},
		},
	}

	g.logger.Debug("model call started",
		"schema", req.Schema.Name,
		"model", g.cfg.Model,
		"input", Truncate(req.UserContent, timeout.MaxTruncateLength))

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, chatReq)
	latency := time.Since(start)
	if err != nil {
		return g.fail(req, ClassifyError(callCtx, err))
	}

	if len(resp.Choices) == 0 {
		return g.fail(req, NewGatewayError(ErrKindEmpty, "empty response from model", nil))
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return g.fail(req, NewGatewayError(ErrKindRefused, "model refused: "+Truncate(msg.Refusal, timeout.MaxTruncateLength), nil))
	}
	if strings.TrimSpace(msg.Content) == "" {
		return g.fail(req, NewGatewayError(ErrKindEmpty, "model returned no content", nil))
	}

	if err := Decode(msg.Content, out); err != nil {
		g.logger.Debug("model response rejected", "schema", req.Schema.Name, "content", Truncate(msg.Content, timeout.MaxTruncateLength))
		return g.fail(req, err)
	}

	g.logger.Debug("model call completed",
		"schema", req.Schema.Name,
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens)
	return nil
}

func (g *OpenAIGateway) fail(req *Request, err error) error {
	gwErr := ClassifyError(context.Background(), err)
	if gwErr.Schema == "" && req != nil && req.Schema != nil {
		gwErr.Schema = req.Schema.Name
	}
	g.logger.Warn("model call failed", "schema", gwErr.Schema, "kind", gwErr.Kind, "error", gwErr.Error())
	return gwErr
}

var codeFencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// Decode parses a structured model answer into out and validates it.
// Markdown code fences around the JSON are tolerated.
func Decode(content string, out any) error {
	content = strings.TrimSpace(content)
	if m := codeFencePattern.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return NewGatewayError(ErrKindSchema, "response is not valid JSON for schema", err)
	}
	if err := ValidateStruct(out); err != nil {
		return NewGatewayError(ErrKindSchema, "response violates schema constraints", err)
	}
	return nil
}

// Truncate shortens s to at most maxLen bytes for logging without splitting a rune.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Ensure OpenAIGateway implements Gateway
var _ Gateway = (*OpenAIGateway)(nil)
