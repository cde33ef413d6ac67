package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/cache"
	"github.com/KaramelBytes/specloom-cli/internal/config"
	"github.com/KaramelBytes/specloom-cli/internal/prompts"
	"github.com/KaramelBytes/specloom-cli/internal/utils"
)

// Service is the single entry point for model calls. It owns prompt
// rendering, response caching, model selection, and the retry policy;
// backends below it make exactly one attempt per call.
type Service struct {
	cfg     *config.Global
	cache   *cache.Store
	prompts *prompts.Library
	log     *zap.Logger

	model        string
	backend      Backend
	backendModel string

	// OnDelta, when set, receives streamed output fragments as they
	// arrive. Cache hits deliver the whole response in one call.
	OnDelta func(string)

	resolve func(*config.Global, string) (Backend, string) // test hook
	sleep   func(time.Duration)                            // test hook
}

// NewService builds a Service using cfg.DefaultModel. The backend is
// resolved lazily on first use so construction never touches the network.
func NewService(cfg *config.Global, store *cache.Store, lib *prompts.Library, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		cache:   store,
		prompts: lib,
		log:     log,
		model:   cfg.DefaultModel,
		resolve: ResolveBackend,
		sleep:   time.Sleep,
	}
}

// Model returns the model currently in effect.
func (s *Service) Model() string { return s.model }

// SetModel switches the active model. The backend is re-resolved on the
// next call since the new model may route to a different vendor.
func (s *Service) SetModel(model string) {
	if model == "" || model == s.model {
		return
	}
	s.log.Info("switching model", zap.String("from", s.model), zap.String("to", model))
	s.model = model
	s.backend = nil
}

// WithModel runs fn with a temporary model override, restoring the previous
// model afterwards even if fn fails.
func (s *Service) WithModel(model string, fn func() error) error {
	prev := s.model
	s.SetModel(model)
	defer s.SetModel(prev)
	return fn()
}

func (s *Service) ensureBackend() {
	if s.backend == nil {
		s.backend, s.backendModel = s.resolve(s.cfg, s.model)
		s.log.Debug("resolved backend",
			zap.String("backend", s.backend.Name()),
			zap.String("model", s.backendModel))
	}
}

// ask performs one logical model call with bounded retries on transient
// failures. Rate-limit responses that carry a Retry-After hint wait that
// long instead of the backoff schedule.
func (s *Service) ask(ctx context.Context, operation, prompt string) (string, error) {
	s.ensureBackend()

	maxAttempts := s.cfg.RetryMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := time.Duration(s.cfg.RetryBaseDelayMs) * time.Millisecond

	s.log.Info("model call",
		zap.String("operation", operation),
		zap.String("backend", s.backend.Name()),
		zap.String("model", s.backendModel),
		zap.Int("prompt_tokens_est", utils.CountTokens(prompt)))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := s.attempt(ctx, prompt)
		if err == nil {
			s.log.Info("model response",
				zap.String("operation", operation),
				zap.Int("response_tokens_est", utils.CountTokens(out)))
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == maxAttempts {
			break
		}
		delay := baseDelay << (attempt - 1)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			delay = rl.RetryAfter
		}
		s.log.Warn("model call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		s.sleep(delay)
	}
	s.log.Error("model call failed",
		zap.String("operation", operation),
		zap.Error(lastErr))
	return "", fmt.Errorf("%s: %w", operation, lastErr)
}

func (s *Service) attempt(ctx context.Context, prompt string) (string, error) {
	if s.OnDelta == nil {
		return s.backend.Complete(ctx, s.backendModel, prompt)
	}
	var sb strings.Builder
	err := s.backend.Stream(ctx, s.backendModel, prompt, func(delta string) {
		sb.WriteString(delta)
		s.OnDelta(delta)
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// cachedAsk memoizes ask on (operation, model, args). The effective model is
// part of the key so switching models never serves another model's output.
func (s *Service) cachedAsk(ctx context.Context, operation, prompt string, args ...string) (string, error) {
	key := cache.Key(operation, s.model, args...)
	if out, ok := s.cache.Get(key); ok {
		s.log.Info("cache hit", zap.String("operation", operation))
		if s.OnDelta != nil {
			s.OnDelta(out)
		}
		return out, nil
	}
	out, err := s.ask(ctx, operation, prompt)
	if err != nil {
		return "", err
	}
	s.cache.Put(key, out)
	return out, nil
}

// GenerateInitialSpec produces a first-draft specification from a free-form
// product description.
func (s *Service) GenerateInitialSpec(ctx context.Context, description string) (string, error) {
	prompt, err := s.prompts.Initial(description)
	if err != nil {
		return "", err
	}
	return s.cachedAsk(ctx, "initial_spec", prompt, description)
}

// MaxQuestionsPerRound caps how many follow-up questions a single
// refinement round may surface.
const MaxQuestionsPerRound = 3

// FollowUpQuestions asks the model what is still unclear about spec, given
// the Q&A history answered so far. An empty slice means the model considers
// the specification complete.
func (s *Service) FollowUpQuestions(ctx context.Context, spec, answered string) ([]Question, error) {
	prompt, err := s.prompts.Refinement(spec, answered)
	if err != nil {
		return nil, err
	}
	out, err := s.cachedAsk(ctx, "refinement_questions", prompt, spec, answered)
	if err != nil {
		return nil, err
	}
	qs := ParseQuestions(out)
	if len(qs) > MaxQuestionsPerRound {
		qs = qs[:MaxQuestionsPerRound]
	}
	return qs, nil
}

// ApplyAnswers rewrites spec to incorporate the answered Q&A history.
func (s *Service) ApplyAnswers(ctx context.Context, spec, answered string) (string, error) {
	prompt, err := s.prompts.ApplyAnswers(spec, answered)
	if err != nil {
		return "", err
	}
	return s.cachedAsk(ctx, "apply_answers", prompt, spec, answered)
}

// FinalizeSpec runs the final polish pass. It degrades gracefully: if the
// model call fails, the input document is returned unchanged so a network
// blip at the last step cannot lose the session's work.
func (s *Service) FinalizeSpec(ctx context.Context, spec string) (string, error) {
	prompt, err := s.prompts.FinalRefinement(spec)
	if err != nil {
		return spec, err
	}
	out, err := s.cachedAsk(ctx, "final_refinement", prompt, spec)
	if err != nil {
		s.log.Warn("final polish failed, keeping unpolished document", zap.Error(err))
		return spec, nil
	}
	return out, nil
}

// SuggestProjectName derives a short project name from a specification.
func (s *Service) SuggestProjectName(ctx context.Context, spec string) (string, error) {
	prompt := "Based on the following specification, suggest a short project name " +
		"(2-4 words, no punctuation). Respond with the name only.\n\n" + spec
	out, err := s.cachedAsk(ctx, "project_name", prompt, spec)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"'`))
	if idx := strings.IndexByte(name, '\n'); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	if name == "" {
		return "", errors.New("model returned an empty project name")
	}
	return name, nil
}

// GenerateTaskList builds an engineering to-do list from spec, one model
// call per section. Sections are cached independently, so an interrupted
// run resumes without repeating completed sections. A section whose call
// fails is logged and skipped rather than failing the whole list.
func (s *Service) GenerateTaskList(ctx context.Context, spec string) ([]Task, error) {
	var tasks []Task
	for _, section := range TaskSections {
		prompt, err := s.prompts.Todo(spec, section)
		if err != nil {
			return nil, err
		}
		out, err := s.cachedAsk(ctx, "todo_section", prompt, spec, section)
		if err != nil {
			if ctx.Err() != nil {
				return tasks, ctx.Err()
			}
			s.log.Warn("task section failed, skipping",
				zap.String("section", section), zap.Error(err))
			continue
		}
		tasks = append(tasks, ParseTasks(section, out)...)
	}
	if len(tasks) == 0 {
		return nil, errors.New("no tasks could be generated")
	}
	return tasks, nil
}
