// Package generate adapts inference providers to the single structured
// call each pipeline stage makes.
package generate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/resilience"
)

// Request is one stage prompt.
type Request struct {
	// Stage labels the call in logs and metrics.
	Stage     string
	System    string
	Prompt    string
	MaxTokens int64
}

// Usage is the token consumption of one call.
type Usage struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	InputTokens      int64  `json:"input_tokens"`
	OutputTokens     int64  `json:"output_tokens"`
	CacheWriteTokens int64  `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int64  `json:"cache_read_tokens,omitempty"`
}

// Add accumulates o into u. Provider and model are kept from the first
// non-empty value.
func (u *Usage) Add(o Usage) {
	if u.Provider == "" {
		u.Provider = o.Provider
	}
	if u.Model == "" {
		u.Model = o.Model
	}
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheWriteTokens += o.CacheWriteTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// Response is the raw text of a generation and its usage.
type Response struct {
	Text  string
	Usage Usage
}

// Generator produces a structured payload for a stage prompt. Failed or
// empty responses are reported as model.ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Options holds the shared provider settings.
type Options struct {
	Model     string
	MaxTokens int64
}

func emptyResponse(provider, stage string) error {
	return eris.Wrapf(model.ErrGeneration, "generate: %s: %s returned an empty response", stage, provider)
}

// providerError maps a transport failure onto model.ErrGeneration.
// Retryable statuses and network faults are additionally marked
// transient so Retrying tries again.
func providerError(err error, status int, provider, stage string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(err, "generate: %s: %s", stage, provider)
	}
	gen := eris.Wrapf(model.ErrGeneration, "generate: %s: %s: %v", stage, provider, err)
	if resilience.IsTransientHTTPStatus(status) || (status == 0 && resilience.IsTransient(err)) {
		return resilience.NewTransientError(gen, status)
	}
	return gen
}

// Retrying retries transient provider failures of Next and bounds each
// attempt by the retry config's attempt timeout.
type Retrying struct {
	Next  Generator
	Retry resilience.RetryConfig
}

// WithRetry wraps g with retry.
func WithRetry(g Generator, cfg resilience.RetryConfig) *Retrying {
	return &Retrying{Next: g, Retry: cfg}
}

// Generate calls Next until it succeeds or fails permanently.
func (r *Retrying) Generate(ctx context.Context, req Request) (*Response, error) {
	return resilience.DoVal(ctx, r.Retry, func(ctx context.Context) (*Response, error) {
		return r.Next.Generate(ctx, req)
	})
}
