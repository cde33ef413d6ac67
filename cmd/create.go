package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/specloom-cli/internal/ai"
	"github.com/KaramelBytes/specloom-cli/internal/refine"
	"github.com/KaramelBytes/specloom-cli/internal/ui"
	"github.com/KaramelBytes/specloom-cli/internal/validation"
)

var (
	createName      string
	createMaxRounds int
)

var createCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Draft a new specification and refine it interactively",
	Example: `  specloom create "a habit tracker for remote teams"
  specloom create --name "Habit Tracker" --max-rounds 3
  specloom create --model claude-sonnet-4-20250514`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(); err != nil {
			return err
		}
		console.Banner("Specloom")

		description := strings.TrimSpace(strings.Join(args, " "))
		for description == "" {
			raw, err := console.Prompt("What do you want to build? Describe the product in a sentence or two.")
			if err != nil {
				return err
			}
			d, verr := validation.MinLength(raw, 10)
			if verr != nil {
				console.Warn("A little more detail helps the first draft. " + verr.Error())
				continue
			}
			description = d
		}

		engine := refine.New(gateway(), console, log)
		engine.MaxRounds = createMaxRounds

		for {
			res, err := engine.Run(cmd.Context(), description)
			if errors.Is(err, refine.ErrAborted) {
				return savePartial(cmd.Context(), res)
			}
			if err == nil {
				return saveResult(cmd.Context(), res.Spec, createName)
			}
			// The first draft is the only call with no fallback; offer a
			// different model before giving up.
			console.Error(err.Error())
			if !retryWithOtherModel() {
				return err
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createName, "name", "", "project name (skips the name suggestion step)")
	createCmd.Flags().IntVar(&createMaxRounds, "max-rounds", 0, "cap on question rounds (0 = until the model runs out of questions)")
}

// retryWithOtherModel asks whether to retry the draft on a different model
// and switches the service over when the user names one.
func retryWithOtherModel() bool {
	for {
		raw, err := console.Ask("Try again with a different model? (y/n)")
		if err != nil {
			return false
		}
		again, verr := validation.YesNo(raw)
		if verr != nil {
			console.Warn(verr.Error())
			continue
		}
		if !again {
			return false
		}
		model, err := console.Ask(fmt.Sprintf("Model to use [%s]:", svc.Model()))
		if err != nil {
			return false
		}
		if m := strings.TrimSpace(model); m != "" {
			svc.SetModel(m)
		}
		return true
	}
}

// savePartial offers to keep the work from an interrupted session.
func savePartial(ctx context.Context, res *refine.Result) error {
	if res == nil || strings.TrimSpace(res.Spec) == "" {
		console.Warn("Session ended with nothing to save.")
		return nil
	}
	console.Warn("Session interrupted.")
	for {
		raw, err := console.Ask("Save the document as it stands? (y/n)")
		if err != nil {
			return nil
		}
		keep, verr := validation.YesNo(raw)
		if verr != nil {
			console.Warn(verr.Error())
			continue
		}
		if !keep {
			console.Info("Discarded.")
			return nil
		}
		return saveResult(ctx, res.Spec, createName)
	}
}

// saveResult names and stores a finished document.
func saveResult(ctx context.Context, spec, name string) error {
	if name == "" {
		suggested := suggestName(ctx, spec)
		name = confirmName(suggested)
	}
	path, err := specs.Save(name, spec, cfg.DocType)
	if err != nil {
		return err
	}
	console.Success(fmt.Sprintf("Saved %q to %s", name, path))
	return nil
}

func suggestName(ctx context.Context, spec string) string {
	sp := ui.StartSpinner(os.Stdout, "Thinking of a project name...")
	name, err := svc.SuggestProjectName(ctx, spec)
	sp.Stop()
	if err != nil {
		log.Warn("project name suggestion failed: " + err.Error())
		return ""
	}
	return name
}

// confirmName lets the user accept the suggestion with Enter or type a
// replacement. Names must survive as directory names.
func confirmName(suggested string) string {
	for {
		label := "Project name:"
		if suggested != "" {
			label = fmt.Sprintf("Project name [%s]:", suggested)
		}
		raw, err := console.Ask(label)
		if err != nil {
			if suggested != "" {
				return suggested
			}
			return "untitled project"
		}
		if strings.TrimSpace(raw) == "" && suggested != "" {
			return suggested
		}
		name, verr := validation.ValidFilename(raw)
		if verr != nil {
			console.Warn(verr.Error())
			continue
		}
		return name
	}
}

// gateway returns the AI service, wrapped with a progress spinner unless
// the user asked for raw streaming output.
func gateway() refine.Gateway {
	if flagStream {
		return svc
	}
	return spinnerGateway{svc: svc}
}

// spinnerGateway shows a spinner while each blocking model call runs.
type spinnerGateway struct {
	svc *ai.Service
}

func (g spinnerGateway) spin(msg string) *ui.Spinner {
	return ui.StartSpinner(os.Stdout, msg)
}

func (g spinnerGateway) GenerateInitialSpec(ctx context.Context, description string) (string, error) {
	sp := g.spin("Drafting the document...")
	defer sp.Stop()
	return g.svc.GenerateInitialSpec(ctx, description)
}

func (g spinnerGateway) FollowUpQuestions(ctx context.Context, spec, answered string) ([]ai.Question, error) {
	sp := g.spin("Looking for gaps...")
	defer sp.Stop()
	return g.svc.FollowUpQuestions(ctx, spec, answered)
}

func (g spinnerGateway) ApplyAnswers(ctx context.Context, spec, answered string) (string, error) {
	sp := g.spin("Working your answers in...")
	defer sp.Stop()
	return g.svc.ApplyAnswers(ctx, spec, answered)
}

func (g spinnerGateway) FinalizeSpec(ctx context.Context, spec string) (string, error) {
	sp := g.spin("Polishing...")
	defer sp.Stop()
	return g.svc.FinalizeSpec(ctx, spec)
}
