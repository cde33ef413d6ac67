package ai

import "context"

// Backend is the narrow surface every model provider implements. A backend
// performs exactly one attempt per call; retry policy lives in the Service.
type Backend interface {
	// Name identifies the provider for logging.
	Name() string

	// Complete sends prompt to model and returns the full response text.
	Complete(ctx context.Context, model, prompt string) (string, error)

	// Stream sends prompt to model and delivers response chunks to onDelta
	// as they arrive. The caller assembles the full text.
	Stream(ctx context.Context, model, prompt string, onDelta func(string)) error
}

// GenParams are the generation settings applied to every request a backend
// sends. Zero values leave the provider's own defaults in place.
type GenParams struct {
	MaxTokens   int
	Temperature float64
}

func (p GenParams) temperaturePtr() *float64 {
	if p.Temperature <= 0 {
		return nil
	}
	t := p.Temperature
	return &t
}
