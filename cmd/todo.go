package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/specloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/specloom-cli/internal/config"
	"github.com/KaramelBytes/specloom-cli/internal/store"
	"github.com/KaramelBytes/specloom-cli/internal/ui"
)

var todoPrintOnly bool

var todoCmd = &cobra.Command{
	Use:   "todo [path]",
	Short: "Generate an engineering to-do list from a specification",
	Long: `Todo reads a stored specification and asks the model for actionable
tasks, one section at a time (architecture, core features, infrastructure,
testing, documentation, security, performance). Sections are cached
individually, so re-running after an interruption only pays for the
sections that are still missing. The result is saved as an
engineering_todo document under the same project. With no path, a numbered
picker lists the stored documents.`,
	Example: `  specloom todo
  specloom todo product_requirements/habit_tracker/habit_tracker_v3.json
  specloom todo --print product_requirements/habit_tracker/habit_tracker_v3.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initApp(); err != nil {
			return err
		}
		path, err := resolveEditPath(args)
		if err != nil {
			return err
		}
		if path == "" {
			return nil // picker cancelled
		}
		rec, err := specs.Load(path)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no specification at %q (try 'specloom list')", path)
		}
		if err != nil {
			return err
		}
		console.Banner("Specloom")
		console.Info(fmt.Sprintf("Generating tasks for %q (v%d)", rec.ProductName, rec.Version))

		var sp *ui.Spinner
		if !flagStream {
			sp = ui.StartSpinner(os.Stdout, "Breaking the specification into tasks...")
		}
		tasks, err := svc.GenerateTaskList(cmd.Context(), rec.Specification)
		if sp != nil {
			sp.Stop()
		}
		if err != nil {
			return err
		}

		rendered := renderTasks(rec.ProductName, tasks)
		if todoPrintOnly {
			console.Print(rendered)
			return nil
		}
		path, err = specs.Save(rec.ProductName, rendered, cfgpkg.DocTypeEngineeringTodo)
		if err != nil {
			return err
		}
		console.Success(fmt.Sprintf("Saved %d task(s) to %s", len(tasks), path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(todoCmd)
	todoCmd.Flags().BoolVar(&todoPrintOnly, "print", false, "print the task list instead of saving it")
}

// renderTasks formats tasks as a markdown checklist grouped by section,
// preserving the canonical section order.
func renderTasks(projectName string, tasks []ai.Task) string {
	bySection := map[string][]ai.Task{}
	for _, t := range tasks {
		bySection[t.Section] = append(bySection[t.Section], t)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Engineering To-Do: %s\n", projectName)
	for _, section := range ai.TaskSections {
		items := bySection[section]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", section)
		for _, t := range items {
			fmt.Fprintf(&sb, "- [ ] **%s** (%s)\n", t.Title, t.Complexity)
			if t.Dependencies != "" && !strings.EqualFold(t.Dependencies, "none") {
				fmt.Fprintf(&sb, "  - Depends on: %s\n", t.Dependencies)
			}
			fmt.Fprintf(&sb, "  - %s\n", t.Description)
			if t.TechnicalNotes != "" {
				fmt.Fprintf(&sb, "  - Technical: %s\n", t.TechnicalNotes)
			}
			if t.TestingNotes != "" {
				fmt.Fprintf(&sb, "  - Testing: %s\n", t.TestingNotes)
			}
		}
	}
	return sb.String()
}
