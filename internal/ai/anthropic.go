package ai

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 8192

// AnthropicBackend calls the Anthropic Messages API through the official SDK.
type AnthropicBackend struct {
	client anthropic.Client

	// Gen is applied to every request. Set by the factory from config.
	Gen GenParams
}

// NewAnthropicBackend creates a backend with the given API key.
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) params(model, prompt string) anthropic.MessageNewParams {
	maxTokens := int64(b.Gen.MaxTokens)
	if maxTokens <= 0 {
		// The Messages API requires max_tokens on every request.
		maxTokens = anthropicMaxTokens
	}
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if b.Gen.Temperature > 0 {
		p.Temperature = anthropic.Float(b.Gen.Temperature)
	}
	return p
}

// Complete sends a messages request and concatenates the text blocks.
func (b *AnthropicBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	message, err := b.client.Messages.New(ctx, b.params(model, prompt))
	if err != nil {
		return "", mapAnthropicError(err)
	}
	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}
	return content, nil
}

// Stream streams a messages request, delivering text deltas to onDelta.
func (b *AnthropicBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	stream := b.client.Messages.NewStreaming(ctx, b.params(model, prompt))
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					onDelta(deltaVariant.Text)
				}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return mapAnthropicError(err)
	}
	return nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return mapStatus(&APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()})
	}
	if isConnectionErr(err) {
		return &UnreachableError{Err: err}
	}
	return err
}
