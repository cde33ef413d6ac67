package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OpenRouterBackend talks to the OpenRouter chat-completions API. It makes
// a single attempt per call and classifies failures into the typed errors
// in this package; the Service decides what to retry.
type OpenRouterBackend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string

	// Gen is applied to every request. Set by the factory from config.
	Gen GenParams
}

// NewOpenRouterBackend returns a backend with the given key and timeout.
func NewOpenRouterBackend(apiKey string, httpTimeout time.Duration) *OpenRouterBackend {
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}
	return &OpenRouterBackend{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
	}
}

// NewOpenRouterBackendWithBaseURL allows injecting a custom base URL (used in tests).
func NewOpenRouterBackendWithBaseURL(apiKey string, httpTimeout time.Duration, baseURL string) *OpenRouterBackend {
	b := NewOpenRouterBackend(apiKey, httpTimeout)
	if baseURL != "" {
		b.baseURL = baseURL
	}
	return b
}

func (b *OpenRouterBackend) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a non-streaming chat request.
func (b *OpenRouterBackend) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.post(ctx, chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   b.Gen.MaxTokens,
		Temperature: b.Gen.temperaturePtr(),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", b.classify(resp)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no content returned from model")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat request and parses SSE deltas.
func (b *OpenRouterBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	resp, err := b.post(ctx, chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Stream:      true,
		MaxTokens:   b.Gen.MaxTokens,
		Temperature: b.Gen.temperaturePtr(),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b.classify(resp)
	}
	type streamDelta struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var d streamDelta
		if err := json.Unmarshal([]byte(data), &d); err == nil && len(d.Choices) > 0 {
			onDelta(d.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}

func (b *OpenRouterBackend) post(ctx context.Context, req chatRequest) (*http.Response, error) {
	if b.apiKey == "" {
		return nil, &AuthError{&APIError{StatusCode: http.StatusUnauthorized, Message: "OPENROUTER_API_KEY is missing"}}
	}
	if req.Model == "" {
		return nil, &BadRequestError{&APIError{StatusCode: http.StatusBadRequest, Message: "model cannot be empty"}}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/specloom-cli")
	httpReq.Header.Set("X-Title", "Specloom CLI")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if isConnectionErr(err) {
			return nil, &UnreachableError{Host: b.baseURL, Err: err}
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

// classify maps a non-2xx response to a typed error. Consumes the body.
func (b *OpenRouterBackend) classify(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if v, ok := raw["error"].(map[string]any); ok {
		if msg, ok := v["message"].(string); ok {
			apiErr.Message = msg
		}
		if code, ok := v["code"].(string); ok {
			apiErr.Code = code
		}
	} else {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
	}

	sc := resp.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if apiErr.Code == "model_not_found" || containsAllFold(apiErr.Message, "model", "not", "found") {
			return &ModelNotFoundError{apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{apiErr}
	case apiErr.Code == "quota_exceeded" || containsAnyFold(apiErr.Message, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{apiErr}
	}
	return apiErr
}

func isConnectionErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After header as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
