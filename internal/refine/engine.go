// Package refine runs the interactive question-and-answer loop that turns a
// first-draft document into a refined one.
package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/ai"
	"github.com/KaramelBytes/specloom-cli/internal/validation"
)

// Sentinel answers the user can type instead of answering a question.
const (
	// AnswerSkip drops the current question without recording an answer.
	AnswerSkip = "skip"
	// AnswerDone ends refinement immediately. Answers given so far in the
	// current round are attached to the document verbatim rather than
	// being folded in by the model.
	AnswerDone = "done"
)

// ErrAborted is returned when the user interrupts the session (EOF,
// Ctrl-C). The partial result is still returned so the caller can offer to
// save it.
var ErrAborted = errors.New("refinement aborted")

// Gateway is the slice of the AI service the engine needs.
type Gateway interface {
	GenerateInitialSpec(ctx context.Context, description string) (string, error)
	FollowUpQuestions(ctx context.Context, spec, answered string) ([]ai.Question, error)
	ApplyAnswers(ctx context.Context, spec, answered string) (string, error)
	FinalizeSpec(ctx context.Context, spec string) (string, error)
}

// Interactor is the terminal surface the engine talks through.
type Interactor interface {
	// Prompt shows a question and reads one line. An error means the
	// input stream is gone and the session cannot continue.
	Prompt(question string) (string, error)
	// Info shows a status line to the user.
	Info(msg string)
}

// QA records one answered question.
type QA struct {
	Question ai.Question
	Answer   string
}

// Result is the outcome of a refinement session.
type Result struct {
	SessionID string
	Spec      string
	Rounds    int
	History   []QA
}

// Engine drives the refinement loop: draft, ask, answer, fold in, repeat
// until the model has no questions left or the user calls it done.
type Engine struct {
	gw  Gateway
	ui  Interactor
	log *zap.Logger

	// MaxRounds caps question rounds. Zero means no cap: the session runs
	// until the model stops asking or the user types "done".
	MaxRounds int
}

// New creates an engine. A nil logger is replaced with a no-op logger.
func New(gw Gateway, ui Interactor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{gw: gw, ui: ui, log: log}
}

// Run generates a first draft from description and refines it
// interactively. On ErrAborted the partial result is still valid.
func (e *Engine) Run(ctx context.Context, description string) (*Result, error) {
	res := &Result{SessionID: uuid.NewString()}
	e.log.Info("refinement session started", zap.String("session", res.SessionID))

	spec, err := e.gw.GenerateInitialSpec(ctx, description)
	if err != nil {
		return res, fmt.Errorf("generate initial draft: %w", err)
	}
	res.Spec = spec

	if err := e.Refine(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// Refine runs the question loop against res.Spec, which must already hold a
// draft. It is separate from Run so an existing document can be re-refined.
func (e *Engine) Refine(ctx context.Context, res *Result) error {
	if res.SessionID == "" {
		res.SessionID = uuid.NewString()
	}
	for {
		if e.MaxRounds > 0 && res.Rounds >= e.MaxRounds {
			e.ui.Info("Reached the round limit, finishing up.")
			break
		}
		qs, err := e.gw.FollowUpQuestions(ctx, res.Spec, historyText(res.History))
		if err != nil {
			// A failed question round ends refinement with the document
			// intact rather than losing the session.
			e.log.Warn("question round failed, ending refinement",
				zap.String("session", res.SessionID), zap.Error(err))
			e.ui.Info("Could not get more questions, keeping the current draft.")
			break
		}
		if len(qs) == 0 {
			e.ui.Info("No further questions. The document looks complete.")
			break
		}
		res.Rounds++
		e.log.Info("question round",
			zap.String("session", res.SessionID),
			zap.Int("round", res.Rounds),
			zap.Int("questions", len(qs)))

		pending, done, err := e.collectAnswers(qs, res)
		if err != nil {
			return err
		}
		if done {
			res.Spec = appendRawAnswers(res.Spec, pending)
			res.History = append(res.History, pending...)
			return e.finalize(ctx, res)
		}
		res.History = append(res.History, pending...)

		e.ui.Info("Updating the document with your answers...")
		updated, err := e.gw.ApplyAnswers(ctx, res.Spec, historyText(res.History))
		if err != nil {
			e.log.Warn("update failed, keeping previous draft",
				zap.String("session", res.SessionID), zap.Error(err))
			e.ui.Info("Could not apply the answers, keeping the previous draft.")
			break
		}
		res.Spec = updated
	}
	return e.finalize(ctx, res)
}

// collectAnswers asks each question and gathers non-skipped answers.
// done=true means the user typed the done sentinel mid-round.
func (e *Engine) collectAnswers(qs []ai.Question, res *Result) ([]QA, bool, error) {
	var answered []QA
	for _, q := range qs {
		label := q.Prompt
		if q.Section != "" && q.Section != "General" {
			label = fmt.Sprintf("[%s] %s", q.Section, q.Prompt)
		}
		for {
			raw, err := e.ui.Prompt(label)
			if err != nil {
				e.log.Info("session aborted by user", zap.String("session", res.SessionID))
				return answered, false, ErrAborted
			}
			answer := strings.TrimSpace(raw)
			switch strings.ToLower(answer) {
			case AnswerSkip:
				// drop the question, move on
			case AnswerDone:
				return answered, true, nil
			default:
				trimmed, err := validation.NotEmpty(answer)
				if err != nil {
					e.ui.Info(fmt.Sprintf("Please answer, or type %q / %q.", AnswerSkip, AnswerDone))
					continue
				}
				answered = append(answered, QA{Question: q, Answer: trimmed})
			}
			break
		}
	}
	return answered, false, nil
}

func (e *Engine) finalize(ctx context.Context, res *Result) error {
	e.ui.Info("Running a final polish pass...")
	polished, err := e.gw.FinalizeSpec(ctx, res.Spec)
	if err != nil {
		e.log.Warn("final polish failed", zap.String("session", res.SessionID), zap.Error(err))
		return nil
	}
	res.Spec = polished
	e.log.Info("refinement session finished",
		zap.String("session", res.SessionID),
		zap.Int("rounds", res.Rounds),
		zap.Int("answers", len(res.History)))
	return nil
}

// historyText serializes answered questions for the prompts.
func historyText(history []QA) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, qa := range history {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", qa.Question.Prompt, qa.Answer)
	}
	return sb.String()
}

// appendRawAnswers attaches unapplied answers to the document verbatim.
// Used when the user ends the session with "done": their words are kept
// as-is instead of being rephrased by the model.
func appendRawAnswers(spec string, pending []QA) string {
	if len(pending) == 0 {
		return spec
	}
	return strings.TrimRight(spec, "\n") + "\n\n## Refinement Notes\n\n" + historyText(pending)
}
