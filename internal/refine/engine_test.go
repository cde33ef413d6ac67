package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/specloom-cli/internal/ai"
)

// fakeGateway scripts question rounds and records which operations ran.
type fakeGateway struct {
	rounds      [][]ai.Question
	questionErr error

	round        int
	applyCalls   int
	lastAnswered string
	finalized    bool
}

func (g *fakeGateway) GenerateInitialSpec(context.Context, string) (string, error) {
	return "draft", nil
}

func (g *fakeGateway) FollowUpQuestions(_ context.Context, _, answered string) ([]ai.Question, error) {
	if g.questionErr != nil {
		return nil, g.questionErr
	}
	if g.round >= len(g.rounds) {
		return nil, nil
	}
	qs := g.rounds[g.round]
	g.round++
	return qs, nil
}

func (g *fakeGateway) ApplyAnswers(_ context.Context, spec, answered string) (string, error) {
	g.applyCalls++
	g.lastAnswered = answered
	return spec + " (updated)", nil
}

func (g *fakeGateway) FinalizeSpec(_ context.Context, spec string) (string, error) {
	g.finalized = true
	return spec + " (polished)", nil
}

// fakeUI replays scripted answers.
type fakeUI struct {
	answers []string
	asked   int
	err     error
}

func (u *fakeUI) Prompt(string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if u.asked >= len(u.answers) {
		return "", errors.New("no scripted answer left")
	}
	a := u.answers[u.asked]
	u.asked++
	return a, nil
}

func (u *fakeUI) Info(string) {}

func question(prompt string) ai.Question {
	return ai.Question{Section: "General", Prompt: prompt}
}

func TestRunNoQuestionsFinishesImmediately(t *testing.T) {
	gw := &fakeGateway{}
	eng := New(gw, &fakeUI{}, nil)

	res, err := eng.Run(context.Background(), "a todo app")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Spec != "draft (polished)" {
		t.Fatalf("spec = %q", res.Spec)
	}
	if gw.applyCalls != 0 {
		t.Fatalf("applyCalls = %d, want 0", gw.applyCalls)
	}
	if res.Rounds != 0 {
		t.Fatalf("rounds = %d, want 0", res.Rounds)
	}
	if res.SessionID == "" {
		t.Fatal("missing session id")
	}
}

func TestRunOneRoundAppliesAnswers(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{{question("How many users?")}}}
	ui := &fakeUI{answers: []string{"about a thousand"}}
	eng := New(gw, ui, nil)

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gw.applyCalls != 1 {
		t.Fatalf("applyCalls = %d, want 1", gw.applyCalls)
	}
	if !strings.Contains(gw.lastAnswered, "Q: How many users?") ||
		!strings.Contains(gw.lastAnswered, "A: about a thousand") {
		t.Fatalf("answered history = %q", gw.lastAnswered)
	}
	if res.Spec != "draft (updated) (polished)" {
		t.Fatalf("spec = %q", res.Spec)
	}
	if len(res.History) != 1 {
		t.Fatalf("history = %d, want 1", len(res.History))
	}
}

func TestDoneMidRoundSkipsModelUpdate(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{{
		question("First question?"),
		question("Second question?"),
		question("Third question?"),
	}}}
	ui := &fakeUI{answers: []string{"my answer", "done"}}
	eng := New(gw, ui, nil)

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gw.applyCalls != 0 {
		t.Fatalf("applyCalls = %d, want 0 when user types done", gw.applyCalls)
	}
	if !strings.Contains(res.Spec, "## Refinement Notes") {
		t.Fatalf("spec should carry the raw answers, got %q", res.Spec)
	}
	if !strings.Contains(res.Spec, "A: my answer") {
		t.Fatalf("spec missing the verbatim answer: %q", res.Spec)
	}
	if !gw.finalized {
		t.Fatal("final polish should still run after done")
	}
	if ui.asked != 2 {
		t.Fatalf("asked = %d, want 2 (third question never shown)", ui.asked)
	}
}

func TestSkipAllStillUpdates(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{{
		question("First?"),
		question("Second?"),
	}}}
	ui := &fakeUI{answers: []string{"skip", "skip"}}
	eng := New(gw, ui, nil)

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gw.applyCalls != 1 {
		t.Fatalf("applyCalls = %d, want 1", gw.applyCalls)
	}
	if len(res.History) != 0 {
		t.Fatalf("history = %d, want 0 for skipped questions", len(res.History))
	}
}

func TestBlankAnswerReprompts(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{{question("Only question?")}}}
	ui := &fakeUI{answers: []string{"   ", "a real answer"}}
	eng := New(gw, ui, nil)

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ui.asked != 2 {
		t.Fatalf("asked = %d, want 2 (blank answer re-prompted)", ui.asked)
	}
	if len(res.History) != 1 || res.History[0].Answer != "a real answer" {
		t.Fatalf("history = %+v", res.History)
	}
}

func TestQuestionRoundFailureKeepsDraft(t *testing.T) {
	gw := &fakeGateway{questionErr: errors.New("backend unreachable")}
	eng := New(gw, &fakeUI{}, nil)

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run must not fail on a question-round error: %v", err)
	}
	if res.Spec != "draft (polished)" {
		t.Fatalf("spec = %q", res.Spec)
	}
}

func TestAbortReturnsPartialResult(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{{question("Q?")}}}
	ui := &fakeUI{err: errors.New("EOF")}
	eng := New(gw, ui, nil)

	res, err := eng.Run(context.Background(), "desc")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if res.Spec != "draft" {
		t.Fatalf("partial spec = %q", res.Spec)
	}
}

func TestMaxRoundsCapsLoop(t *testing.T) {
	gw := &fakeGateway{rounds: [][]ai.Question{
		{question("Round one?")},
		{question("Round two?")},
		{question("Round three?")},
	}}
	ui := &fakeUI{answers: []string{"a", "b", "c"}}
	eng := New(gw, ui, nil)
	eng.MaxRounds = 2

	res, err := eng.Run(context.Background(), "desc")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Rounds != 2 {
		t.Fatalf("rounds = %d, want 2", res.Rounds)
	}
	if gw.applyCalls != 2 {
		t.Fatalf("applyCalls = %d, want 2", gw.applyCalls)
	}
}
