package ai

import (
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/specloom-cli/internal/config"
)

// ResolveBackend picks a backend for the given model name and returns it
// together with the model identifier the backend expects. Models prefixed
// with "ollama:" are routed to a local Ollama runtime with the prefix
// stripped; vendor-specific names (gpt-*, claude-*, gemini-*) go to the
// vendor API when its key is present; everything else goes through
// OpenRouter.
func ResolveBackend(cfg *config.Global, model string) (Backend, string) {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	gen := GenParams{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}

	if rest, ok := strings.CutPrefix(model, "ollama:"); ok {
		b := NewOllamaBackend(cfg.OllamaHost, timeout)
		b.Gen = gen
		return b, rest
	}

	switch {
	case hasAnyPrefix(model, "gpt-", "o1", "o3", "o4"):
		if key := envKey("OPENAI_API_KEY"); key != "" {
			b := NewOpenAIBackend(key)
			b.Gen = gen
			return b, model
		}
	case strings.HasPrefix(model, "claude-"):
		if key := envKey("ANTHROPIC_API_KEY"); key != "" {
			b := NewAnthropicBackend(key)
			b.Gen = gen
			return b, model
		}
	case strings.HasPrefix(model, "gemini-"):
		if key := envKey("GEMINI_API_KEY"); key != "" {
			b := NewGeminiBackend(key)
			b.Gen = gen
			return b, model
		}
	}

	key := cfg.APIKey
	if key == "" {
		key = envKey("OPENROUTER_API_KEY")
	}
	b := NewOpenRouterBackend(key, timeout)
	b.Gen = gen
	return b, openrouterModel(model)
}

// openrouterModel maps bare vendor model names onto OpenRouter's
// vendor-qualified namespace. Already-qualified names pass through.
func openrouterModel(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	switch {
	case hasAnyPrefix(model, "gpt-", "o1", "o3", "o4"):
		return "openai/" + model
	case strings.HasPrefix(model, "claude-"):
		return "anthropic/" + model
	case strings.HasPrefix(model, "gemini-"):
		return "google/" + model
	}
	return model
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func envKey(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
