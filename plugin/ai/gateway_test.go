package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	Title string  `json:"title" jsonschema:"title of the record" validate:"required"`
	Score float64 `json:"score" jsonschema:"score between 0 and 1" validate:"gte=0,lte=1"`
	When  string  `json:"when" jsonschema:"ISO 8601 date" validate:"iso8601"`
}

var sampleSchema = MustSchemaFor[sampleRecord]("sample_record", "A sample record")

// chatCompletionBody renders a minimal chat completion response carrying content.
func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, mutate func(*LLMConfig)) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/v1",
		Timeout:  2 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}
	gw, err := NewOpenAIGateway(cfg)
	require.NoError(t, err)
	return gw
}

func sampleRequest() *Request {
	return &Request{
		SystemInstruction: "Extract the record.",
		UserContent:       "A record called alpha, very likely, on 2026-10-20.",
		Schema:            sampleSchema,
	}
}

func TestOpenAIGateway_Generate(t *testing.T) {
	var captured map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody(`{"title":"alpha","score":0.9,"when":"2026-10-20"}`))
	}, nil)

	var out sampleRecord
	require.NoError(t, gw.Generate(context.Background(), sampleRequest(), &out))

	assert.Equal(t, "alpha", out.Title)
	assert.InDelta(t, 0.9, out.Score, 1e-9)

	assert.Equal(t, "gpt-4o", captured["model"])
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_schema", format["type"])
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sample_record", schema["name"])
	assert.Equal(t, true, schema["strict"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIGateway_Generate_CodeFence(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody("```json\n{\"title\":\"beta\",\"score\":0.5,\"when\":\"2026-10-20T14:00:00Z\"}\n```"))
	}, nil)

	var out sampleRecord
	require.NoError(t, gw.Generate(context.Background(), sampleRequest(), &out))
	assert.Equal(t, "beta", out.Title)
}

func TestOpenAIGateway_Generate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{name: "malformed json", status: http.StatusOK, body: chatCompletionBody(`{"title":`), wantKind: ErrKindSchema},
		{name: "out of range score", status: http.StatusOK, body: chatCompletionBody(`{"title":"x","score":1.7,"when":"2026-10-20"}`), wantKind: ErrKindSchema},
		{name: "bad date", status: http.StatusOK, body: chatCompletionBody(`{"title":"x","score":0.2,"when":"next tuesday"}`), wantKind: ErrKindSchema},
		{name: "empty content", status: http.StatusOK, body: chatCompletionBody(""), wantKind: ErrKindEmpty},
		{name: "no choices", status: http.StatusOK, body: `{"id":"x","object":"chat.completion","choices":[]}`, wantKind: ErrKindEmpty},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"boom","type":"server_error"}}`, wantKind: ErrKindUpstream},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`, wantKind: ErrKindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}, nil)

			var out sampleRecord
			err := gw.Generate(context.Background(), sampleRequest(), &out)
			require.Error(t, err)

			var gwErr *GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantKind, gwErr.Kind)
			assert.Equal(t, "sample_record", gwErr.Schema)
		})
	}
}

func TestOpenAIGateway_Generate_Refusal(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"","refusal":"I can't help with that."},"finish_reason":"stop"}]}`)
	}, nil)

	var out sampleRecord
	err := gw.Generate(context.Background(), sampleRequest(), &out)
	assert.True(t, IsKind(err, ErrKindRefused), "got %v", err)
}

func TestOpenAIGateway_Generate_Timeout(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}, func(cfg *LLMConfig) { cfg.Timeout = 50 * time.Millisecond })

	var out sampleRecord
	err := gw.Generate(context.Background(), sampleRequest(), &out)
	assert.True(t, IsKind(err, ErrKindTimeout), "got %v", err)
}

func TestOpenAIGateway_Generate_Canceled(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var out sampleRecord
	err := gw.Generate(ctx, sampleRequest(), &out)
	assert.True(t, IsKind(err, ErrKindCanceled), "got %v", err)
}

func TestOpenAIGateway_Generate_RateLimited(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatCompletionBody(`{"title":"alpha","score":0.9,"when":"2026-10-20"}`))
	}, func(cfg *LLMConfig) {
		cfg.RequestsPerSecond = 0.5
		cfg.Timeout = 100 * time.Millisecond
	})

	var out sampleRecord
	require.NoError(t, gw.Generate(context.Background(), sampleRequest(), &out))

	// The second token is two seconds away, beyond the call deadline.
	err := gw.Generate(context.Background(), sampleRequest(), &out)
	assert.True(t, IsKind(err, ErrKindTimeout), "got %v", err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIGateway_Generate_NoSchema(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider should not be called")
	}, nil)

	err := gw.Generate(context.Background(), &Request{UserContent: "x"}, &sampleRecord{})
	assert.True(t, IsKind(err, ErrKindSchema))
}

func TestNewOpenAIGateway_InvalidConfig(t *testing.T) {
	_, err := NewOpenAIGateway(nil)
	assert.Error(t, err)

	_, err = NewOpenAIGateway(&LLMConfig{Provider: "openai", Model: "gpt-4o"})
	assert.Error(t, err, "API key is required for openai")

	gw, err := NewOpenAIGateway(&LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.Nil(t, gw.limiter)
}

func TestDecode(t *testing.T) {
	var out sampleRecord
	require.NoError(t, Decode("  ```\n{\"title\":\"t\",\"score\":0,\"when\":\"2026-01-02T15:04\"}\n```  ", &out))
	assert.Equal(t, "t", out.Title)

	err := Decode(`{"title":"","score":0.1,"when":"2026-01-02"}`, &out)
	assert.True(t, IsKind(err, ErrKindSchema))
}

func TestParseISO8601(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2026-10-20T14:00:00+02:00", time.Date(2026, 10, 20, 14, 0, 0, 0, time.FixedZone("", 2*3600)), true},
		{"2026-10-20T14:00:00", time.Date(2026, 10, 20, 14, 0, 0, 0, loc), true},
		{"2026-10-20T14:00", time.Date(2026, 10, 20, 14, 0, 0, 0, loc), true},
		{"2026-10-20", time.Date(2026, 10, 20, 0, 0, 0, 0, loc), true},
		{"Tuesday 2pm", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseISO8601(tt.input, loc)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestGatewayError(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewGatewayError(ErrKindTimeout, "model call timed out", cause)
	err.Schema = "event_details"

	assert.Equal(t, "[TIMEOUT] model call timed out (schema event_details): context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ErrKindTimeout, KindOf(fmt.Errorf("wrapped: %w", err), ErrKindTransport))
	assert.Equal(t, ErrKindTransport, KindOf(fmt.Errorf("plain"), ErrKindTransport))
}

func TestClassifyError(t *testing.T) {
	ctx := context.Background()
	expired, cancel := context.WithTimeout(ctx, -time.Second)
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want ErrorKind
	}{
		{name: "wrapped deadline", ctx: ctx, err: fmt.Errorf("extract: %w", context.DeadlineExceeded), want: ErrKindTimeout},
		{name: "wrapped cancel", ctx: ctx, err: fmt.Errorf("extract: %w", context.Canceled), want: ErrKindCanceled},
		{name: "gateway error kept", ctx: ctx, err: NewGatewayError(ErrKindSchema, "bad", nil), want: ErrKindSchema},
		{name: "plain error", ctx: ctx, err: fmt.Errorf("boom"), want: ErrKindTransport},
		{name: "expired context", ctx: expired, err: fmt.Errorf("boom"), want: ErrKindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.ctx, tt.err).Kind)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// "é" is two bytes; cutting at 2 would split it
	assert.Equal(t, "a...", Truncate("aé", 2))
	assert.True(t, utf8.ValidString(Truncate("日本語のテキスト", 7)))
}

func TestSchemaFor(t *testing.T) {
	s := MustSchemaFor[sampleRecord]("sample_record", "desc").WithEnum("title", "alpha", "beta")
	assert.Equal(t, "sample_record", s.Name)
	assert.Equal(t, []any{"alpha", "beta"}, s.Definition.Properties["title"].Enum)
	assert.ElementsMatch(t, []string{"title", "score", "when"}, s.Definition.Required)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"enum":["alpha","beta"]`)

	assert.Panics(t, func() { s.WithEnum("missing", "x") })
}
