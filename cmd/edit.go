package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/specloom-cli/internal/refine"
	"github.com/KaramelBytes/specloom-cli/internal/store"
	"github.com/KaramelBytes/specloom-cli/internal/validation"
)

var editMaxRounds int

var editCmd = &cobra.Command{
	Use:   "edit [path]",
	Short: "Refine an existing specification into a new version",
	Long: `Edit loads a stored specification and runs another round of follow-up
questions against it. The result is saved as a new version; the original
file is never modified. With no path, a numbered picker lists the stored
documents. Paths from 'specloom list' are relative to the specs directory
and work as-is.`,
	Example: `  specloom edit
  specloom edit product_requirements/habit_tracker/habit_tracker_v2.json
  specloom edit --max-rounds 1 product_requirements/habit_tracker/habit_tracker_v1.json`,
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
		console.Info(fmt.Sprintf("Editing %q (v%d, %s)", rec.ProductName, rec.Version, rec.FormattedTimestamp))
		console.Print(preview(rec.Specification, 12))

		engine := refine.New(gateway(), console, log)
		engine.MaxRounds = editMaxRounds

		res := &refine.Result{Spec: rec.Specification}
		rerr := engine.Refine(cmd.Context(), res)
		if errors.Is(rerr, refine.ErrAborted) {
			console.Warn("Session interrupted; the stored versions are untouched.")
			return nil
		}
		if rerr != nil {
			return rerr
		}

		if !confirmSave() {
			console.Info("Discarded. The stored versions are untouched.")
			return nil
		}
		newPath, err := specs.Save(rec.ProductName, res.Spec, rec.DocType)
		if err != nil {
			return err
		}
		console.Success(fmt.Sprintf("Saved new version to %s", newPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().IntVar(&editMaxRounds, "max-rounds", 0, "cap on question rounds (0 = until the model runs out of questions)")
}

// resolveEditPath returns the explicit argument, or runs a numbered picker
// over everything in the store. Empty string with nil error means the user
// cancelled.
func resolveEditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	listing, err := specs.List("", "")
	if err != nil {
		return "", err
	}
	var choices []store.VersionInfo
	docTypes := make([]string, 0, len(listing))
	for dt := range listing {
		docTypes = append(docTypes, dt)
	}
	sort.Strings(docTypes)
	for _, dt := range docTypes {
		projects := make([]string, 0, len(listing[dt]))
		for slug := range listing[dt] {
			projects = append(projects, slug)
		}
		sort.Strings(projects)
		for _, slug := range projects {
			choices = append(choices, listing[dt][slug]...)
		}
	}
	if len(choices) == 0 {
		console.Info("No stored documents yet. Start with 'specloom create'.")
		return "", nil
	}

	console.Section("Stored documents")
	for i, v := range choices {
		console.Print(fmt.Sprintf("  %2d. %s v%d  %s  (%s)", i+1, v.ProductName, v.Version, v.FormattedTimestamp, v.DocType))
	}
	for {
		raw, err := console.Ask(fmt.Sprintf("Which one? (1-%d, or q to quit)", len(choices)))
		if err != nil {
			return "", nil
		}
		raw = strings.TrimSpace(raw)
		if strings.EqualFold(raw, "q") || strings.EqualFold(raw, "quit") {
			return "", nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > len(choices) {
			console.Warn(fmt.Sprintf("Please enter a number between 1 and %d.", len(choices)))
			continue
		}
		return choices[n-1].Path, nil
	}
}

// preview returns the first maxLines lines of a document.
func preview(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[:maxLines], "\n") + "\n..."
}

func confirmSave() bool {
	for {
		raw, err := console.Ask("Save this as a new version? (y/n)")
		if err != nil {
			return false
		}
		keep, verr := validation.YesNo(raw)
		if verr != nil {
			console.Warn(verr.Error())
			continue
		}
		return keep
	}
}
