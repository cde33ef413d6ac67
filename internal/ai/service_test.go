package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/cache"
	"github.com/KaramelBytes/specloom-cli/internal/config"
	"github.com/KaramelBytes/specloom-cli/internal/prompts"
)

// stubBackend scripts responses per call and counts invocations.
type stubBackend struct {
	calls     int
	responses []string
	errs      []error
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Complete(_ context.Context, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "ok", nil
}

func (s *stubBackend) Stream(ctx context.Context, model, prompt string, onDelta func(string)) error {
	out, err := s.Complete(ctx, model, prompt)
	if err != nil {
		return err
	}
	onDelta(out)
	return nil
}

func newTestService(t *testing.T, backend Backend) *Service {
	t.Helper()
	cfg := &config.Global{
		DefaultModel:     "test-model",
		RetryMaxAttempts: 3,
		RetryBaseDelayMs: 1,
	}
	lib, err := prompts.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	store := cache.New(t.TempDir(), time.Hour, zap.NewNop())
	svc := NewService(cfg, store, lib, zap.NewNop())
	svc.resolve = func(*config.Global, string) (Backend, string) {
		return backend, svc.model
	}
	svc.sleep = func(time.Duration) {}
	return svc
}

func serverErr() error {
	return &ServerError{&APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}}
}

func TestAskRetriesTransientUpToMaxAttempts(t *testing.T) {
	backend := &stubBackend{errs: []error{serverErr(), serverErr(), serverErr(), serverErr()}}
	svc := newTestService(t, backend)

	_, err := svc.ask(context.Background(), "test_op", "prompt")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if backend.calls != 3 {
		t.Fatalf("calls = %d, want 3", backend.calls)
	}
}

func TestAskSucceedsAfterTransientFailure(t *testing.T) {
	backend := &stubBackend{
		errs:      []error{serverErr(), nil},
		responses: []string{"", "recovered"},
	}
	svc := newTestService(t, backend)

	out, err := svc.ask(context.Background(), "test_op", "prompt")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("out = %q, want %q", out, "recovered")
	}
	if backend.calls != 2 {
		t.Fatalf("calls = %d, want 2", backend.calls)
	}
}

func TestAskDoesNotRetryPermanentErrors(t *testing.T) {
	authErr := &AuthError{&APIError{StatusCode: http.StatusUnauthorized}}
	backend := &stubBackend{errs: []error{authErr, authErr, authErr}}
	svc := newTestService(t, backend)

	_, err := svc.ask(context.Background(), "test_op", "prompt")
	var want *AuthError
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if backend.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on auth failure)", backend.calls)
	}
}

func TestAskHonorsRetryAfterHint(t *testing.T) {
	rlErr := &RateLimitError{
		APIError:   &APIError{StatusCode: http.StatusTooManyRequests},
		RetryAfter: 7 * time.Second,
	}
	backend := &stubBackend{errs: []error{rlErr, nil}, responses: []string{"", "ok"}}
	svc := newTestService(t, backend)

	var slept []time.Duration
	svc.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := svc.ask(context.Background(), "test_op", "prompt"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("slept = %v, want [7s]", slept)
	}
}

func TestCachedAskSecondCallSkipsBackend(t *testing.T) {
	backend := &stubBackend{responses: []string{"draft spec"}}
	svc := newTestService(t, backend)

	first, err := svc.GenerateInitialSpec(context.Background(), "a todo app")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GenerateInitialSpec(context.Background(), "a todo app")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Fatalf("cached response differs: %q vs %q", first, second)
	}
	if backend.calls != 1 {
		t.Fatalf("calls = %d, want 1 (second call should hit the cache)", backend.calls)
	}
}

func TestCacheKeyedByModel(t *testing.T) {
	backend := &stubBackend{responses: []string{"from model a", "from model b"}}
	svc := newTestService(t, backend)

	a, err := svc.GenerateInitialSpec(context.Background(), "same description")
	if err != nil {
		t.Fatalf("model a: %v", err)
	}
	svc.SetModel("other-model")
	b, err := svc.GenerateInitialSpec(context.Background(), "same description")
	if err != nil {
		t.Fatalf("model b: %v", err)
	}
	if a == b {
		t.Fatal("different models must not share cache entries")
	}
	if backend.calls != 2 {
		t.Fatalf("calls = %d, want 2", backend.calls)
	}
}

func TestWithModelRestoresPrevious(t *testing.T) {
	backend := &stubBackend{}
	svc := newTestService(t, backend)

	err := svc.WithModel("override-model", func() error {
		if svc.Model() != "override-model" {
			t.Fatalf("inside override: model = %q", svc.Model())
		}
		return errors.New("fn failed")
	})
	if err == nil {
		t.Fatal("expected fn error to propagate")
	}
	if svc.Model() != "test-model" {
		t.Fatalf("after override: model = %q, want test-model", svc.Model())
	}
}

func TestFollowUpQuestionsCapped(t *testing.T) {
	many := `[
		{"section":"A","question":"Q one?"},
		{"section":"B","question":"Q two?"},
		{"section":"C","question":"Q three?"},
		{"section":"D","question":"Q four?"},
		{"section":"E","question":"Q five?"}
	]`
	backend := &stubBackend{responses: []string{many}}
	svc := newTestService(t, backend)

	qs, err := svc.FollowUpQuestions(context.Background(), "spec", "")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != MaxQuestionsPerRound {
		t.Fatalf("len(qs) = %d, want %d", len(qs), MaxQuestionsPerRound)
	}
}

func TestFollowUpQuestionsGarbageOutput(t *testing.T) {
	backend := &stubBackend{responses: []string{"I think the spec looks mostly complete to me."}}
	svc := newTestService(t, backend)

	qs, err := svc.FollowUpQuestions(context.Background(), "spec", "")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("len(qs) = %d, want 0 for non-question prose", len(qs))
	}
}

func TestFinalizeSpecReturnsInputOnFailure(t *testing.T) {
	authErr := &AuthError{&APIError{StatusCode: http.StatusUnauthorized}}
	backend := &stubBackend{errs: []error{authErr}}
	svc := newTestService(t, backend)

	out, err := svc.FinalizeSpec(context.Background(), "the unpolished document")
	if err != nil {
		t.Fatalf("finalize must not fail the session: %v", err)
	}
	if out != "the unpolished document" {
		t.Fatalf("out = %q, want the input document back", out)
	}
}

func TestGenerateTaskListSkipsFailedSection(t *testing.T) {
	authErr := &AuthError{&APIError{StatusCode: http.StatusUnauthorized}}
	backend := &stubBackend{
		errs: []error{nil, authErr, nil, nil, nil, nil, nil},
		responses: []string{
			"1. First task\nComplexity: Low",
			"",
			"1. Third task", "1. T", "1. T", "1. T", "1. T",
		},
	}
	svc := newTestService(t, backend)

	tasks, err := svc.GenerateTaskList(context.Background(), "spec")
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if backend.calls != len(TaskSections) {
		t.Fatalf("calls = %d, want %d", backend.calls, len(TaskSections))
	}
	for _, task := range tasks {
		if task.Section == TaskSections[1] {
			t.Fatalf("failed section %q should have been skipped", TaskSections[1])
		}
	}
	if len(tasks) == 0 {
		t.Fatal("expected tasks from the surviving sections")
	}
}

func TestStreamingAssemblesDeltas(t *testing.T) {
	backend := &stubBackend{responses: []string{"streamed body"}}
	svc := newTestService(t, backend)

	var sb strings.Builder
	svc.OnDelta = func(d string) { sb.WriteString(d) }

	out, err := svc.ask(context.Background(), "test_op", "prompt")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "streamed body" || sb.String() != "streamed body" {
		t.Fatalf("out = %q, sink = %q", out, sb.String())
	}
}
