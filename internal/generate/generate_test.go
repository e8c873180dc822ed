package generate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/resilience"
	"github.com/sells-group/leadgen-enrich/pkg/anthropic"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Response), args.Error(1)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetrying_RetriesTransient(t *testing.T) {
	m := &mockGenerator{}
	req := Request{Stage: "s1", Prompt: "p"}
	m.On("Generate", mock.Anything, req).
		Return(nil, providerError(errors.New("overloaded"), 529, "anthropic", "s1")).Once()
	m.On("Generate", mock.Anything, req).
		Return(&Response{Text: "{}"}, nil).Once()

	resp, err := WithRetry(m, fastRetry()).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	m.AssertExpectations(t)
}

func TestRetrying_DoesNotRetryBadRequest(t *testing.T) {
	m := &mockGenerator{}
	req := Request{Stage: "s4"}
	m.On("Generate", mock.Anything, req).
		Return(nil, providerError(errors.New("bad schema"), 400, "openai", "s4")).Once()

	_, err := WithRetry(m, fastRetry()).Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGeneration))
	m.AssertNumberOfCalls(t, "Generate", 1)
}

func TestProviderError(t *testing.T) {
	err := providerError(errors.New("rate limited"), 429, "anthropic", "s2")
	assert.True(t, errors.Is(err, model.ErrGeneration))
	assert.True(t, resilience.IsTransient(err))

	err = providerError(errors.New("unauthorized"), 401, "anthropic", "s2")
	assert.True(t, errors.Is(err, model.ErrGeneration))
	assert.False(t, resilience.IsTransient(err))

	err = providerError(context.DeadlineExceeded, 0, "openai", "s2")
	assert.Equal(t, model.ErrorKindTimeout, model.KindOf(err))
}

func TestUsage_Add(t *testing.T) {
	var u Usage
	u.Add(Usage{Provider: "anthropic", Model: "m", InputTokens: 10, OutputTokens: 2})
	u.Add(Usage{Provider: "openai", Model: "x", InputTokens: 5, OutputTokens: 1, CacheReadTokens: 3})
	assert.Equal(t, "anthropic", u.Provider)
	assert.Equal(t, "m", u.Model)
	assert.Equal(t, int64(15), u.InputTokens)
	assert.Equal(t, int64(3), u.OutputTokens)
	assert.Equal(t, int64(3), u.CacheReadTokens)
}

func TestAnthropicGenerator(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"description":"x"}`}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 100, "output_tokens": 20, "cache_read_input_tokens": 80},
		})
	}))
	defer ts.Close()

	g := NewAnthropic(anthropic.NewClient("k", option.WithBaseURL(ts.URL)), Options{Model: "claude-haiku-4-5-20251001", MaxTokens: 512})
	resp, err := g.Generate(context.Background(), Request{Stage: "s1", System: "sys", Prompt: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, `{"description":"x"}`, resp.Text)
	assert.Equal(t, "anthropic", resp.Usage.Provider)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(80), resp.Usage.CacheReadTokens)
	assert.Equal(t, float64(512), body["max_tokens"])
}

func TestAnthropicGenerator_EmptyText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id": "msg_2", "type": "message", "role": "assistant",
			"content":     []map[string]any{},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 1, "output_tokens": 0},
		})
	}))
	defer ts.Close()

	g := NewAnthropic(anthropic.NewClient("k", option.WithBaseURL(ts.URL)), Options{Model: "m", MaxTokens: 64})
	_, err := g.Generate(context.Background(), Request{Stage: "s4", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGeneration))
}

func TestAnthropicGenerator_StatusMapping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "slow down"},
		})
	}))
	defer ts.Close()

	client := anthropic.NewClient("k", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	g := NewAnthropic(client, Options{Model: "m", MaxTokens: 64})
	_, err := g.Generate(context.Background(), Request{Stage: "s1", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGeneration))
	assert.True(t, resilience.IsTransient(err))
}

func TestOpenAIGenerator(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/chat/completions")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": `{"name":"Acme"}`}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 30, "completion_tokens": 8, "total_tokens": 38},
		})
	}))
	defer ts.Close()

	g := NewOpenAI("k", ts.URL+"/", Options{Model: "gpt-4o-mini", MaxTokens: 256})
	resp, err := g.Generate(context.Background(), Request{Stage: "s1", System: "sys", Prompt: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Acme"}`, resp.Text)
	assert.Equal(t, int64(30), resp.Usage.InputTokens)
	assert.Equal(t, "openai", resp.Usage.Provider)

	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	msgs := body["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestOpenAIGenerator_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
	}))
	defer ts.Close()

	g := NewOpenAI("k", ts.URL, Options{Model: "gpt-4o-mini"})
	_, err := g.Generate(context.Background(), Request{Stage: "s5", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGeneration))
	assert.True(t, resilience.IsTransient(err))
}

func TestRetrying_DoesNotRetryEmptyResponse(t *testing.T) {
	m := &mockGenerator{}
	req := Request{Stage: "s3"}
	m.On("Generate", mock.Anything, req).Return(nil, emptyResponse("anthropic", "s3")).Once()

	_, err := WithRetry(m, fastRetry()).Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGeneration)
	m.AssertNumberOfCalls(t, "Generate", 1)
}
