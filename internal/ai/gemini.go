package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through the official genai SDK.
// Client construction can fail; the error is held and returned on first use
// so the factory keeps a uniform constructor shape.
type GeminiBackend struct {
	client  *genai.Client
	initErr error

	// Gen is applied to every request. Set by the factory from config.
	Gen GenParams
}

// NewGeminiBackend creates a backend with the given API key.
func NewGeminiBackend(apiKey string) *GeminiBackend {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiBackend{initErr: fmt.Errorf("initialize gemini client: %w", err)}
	}
	return &GeminiBackend{client: client}
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) genConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if b.Gen.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(b.Gen.MaxTokens)
	}
	if b.Gen.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(b.Gen.Temperature))
	}
	return cfg
}

// Complete sends a generate-content request.
func (b *GeminiBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	if b.initErr != nil {
		return "", b.initErr
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	response, err := b.client.Models.GenerateContent(ctx, model, contents, b.genConfig())
	if err != nil {
		return "", mapGeminiError(err)
	}
	text := response.Text()
	if text == "" {
		return "", errors.New("no content returned from model")
	}
	return text, nil
}

// Stream iterates the streaming generate-content response.
func (b *GeminiBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	if b.initErr != nil {
		return b.initErr
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	for response, err := range b.client.Models.GenerateContentStream(ctx, model, contents, b.genConfig()) {
		if err != nil {
			return mapGeminiError(err)
		}
		if text := response.Text(); text != "" {
			onDelta(text)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(&APIError{StatusCode: apiErr.Code, Message: apiErr.Message})
	}
	if isConnectionErr(err) {
		return &UnreachableError{Err: err}
	}
	return err
}
