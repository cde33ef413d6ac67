package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// OllamaBackend is a minimal HTTP client for a local Ollama runtime.
type OllamaBackend struct {
	httpClient *http.Client
	host       string

	// Gen is applied to every request. Set by the factory from config.
	Gen GenParams
}

// NewOllamaBackend creates a backend targeting host
// (e.g., http://127.0.0.1:11434).
func NewOllamaBackend(host string, httpTimeout time.Duration) *OllamaBackend {
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}
	return &OllamaBackend{
		httpClient: &http.Client{Timeout: httpTimeout},
		host:       host,
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

// ollamaOptions maps generation settings onto Ollama's naming.
type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Complete sends a non-streaming chat request to /api/chat.
func (b *OllamaBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.post(ctx, model, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", b.classify(resp, model)
	}
	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Message.Content, nil
}

// Stream reads Ollama's line-delimited JSON stream.
func (b *OllamaBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	resp, err := b.post(ctx, model, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b.classify(resp, model)
	}
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			onDelta(chunk.Message.Content)
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}

func (b *OllamaBackend) post(ctx context.Context, model, prompt string, stream bool) (*http.Response, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	var opts *ollamaOptions
	if b.Gen.MaxTokens > 0 || b.Gen.Temperature > 0 {
		opts = &ollamaOptions{
			NumPredict:  b.Gen.MaxTokens,
			Temperature: b.Gen.temperaturePtr(),
		}
	}
	payload, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
		Options:  opts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		// A local runtime that is down looks like connection refused.
		return nil, &UnreachableError{Host: b.host, Err: err}
	}
	return resp, nil
}

func (b *OllamaBackend) classify(resp *http.Response, model string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	apiErr.Message = body.Error
	if resp.StatusCode == http.StatusNotFound || containsFold(body.Error, "not found") {
		if apiErr.Message == "" {
			apiErr.Message = "model " + model + " is not installed"
		}
		return &ModelNotFoundError{apiErr}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{apiErr}
	}
	return apiErr
}
