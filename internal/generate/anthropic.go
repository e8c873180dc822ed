package generate

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/sells-group/leadgen-enrich/pkg/anthropic"
)

const providerAnthropic = "anthropic"

// AnthropicGenerator calls the Anthropic Messages API. The stage system
// prompt is sent as a cached block.
type AnthropicGenerator struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropic creates an AnthropicGenerator.
func NewAnthropic(client anthropic.Client, opts Options) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, opts: opts}
}

// Generate sends one message and returns the concatenated text.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.opts.MaxTokens
	}
	temp := 0.2
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       g.opts.Model,
		MaxTokens:   maxTokens,
		System:      anthropic.CachedSystem(req.System, "5m"),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		status := 0
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, providerError(err, status, providerAnthropic, req.Stage)
	}

	text := resp.Text()
	if text == "" {
		return nil, emptyResponse(providerAnthropic, req.Stage)
	}
	return &Response{
		Text: text,
		Usage: Usage{
			Provider:         providerAnthropic,
			Model:            g.opts.Model,
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		},
	}, nil
}
