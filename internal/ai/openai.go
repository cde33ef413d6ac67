package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls the OpenAI API through the go-openai library.
type OpenAIBackend struct {
	client *openai.Client

	// Gen is applied to every request. Set by the factory from config.
	Gen GenParams
}

// NewOpenAIBackend creates a backend with the given API key.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClient(apiKey)}
}

func (b *OpenAIBackend) Name() string { return "openai" }

// Complete sends a chat completion request.
func (b *OpenAIBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   b.Gen.MaxTokens,
		Temperature: float32(b.Gen.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no content returned from model")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream streams a chat completion, delivering each delta to onDelta.
func (b *OpenAIBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	stream, err := b.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   b.Gen.MaxTokens,
		Temperature: float32(b.Gen.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return mapOpenAIError(err)
	}
	defer stream.Close()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream recv: %w", err)
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			onDelta(resp.Choices[0].Delta.Content)
		}
	}
}

// mapOpenAIError folds go-openai errors into this package's taxonomy.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		base := &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		return mapStatus(base)
	}
	if isConnectionErr(err) {
		return &UnreachableError{Err: err}
	}
	return err
}

// mapStatus routes an APIError by status code.
func mapStatus(base *APIError) error {
	switch {
	case base.StatusCode == http.StatusUnauthorized || base.StatusCode == http.StatusForbidden:
		return &AuthError{base}
	case base.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{APIError: base}
	case base.StatusCode == http.StatusNotFound:
		return &ModelNotFoundError{base}
	case base.StatusCode == http.StatusBadRequest:
		return &BadRequestError{base}
	case base.StatusCode >= 500 && base.StatusCode <= 599:
		return &ServerError{base}
	}
	return base
}
