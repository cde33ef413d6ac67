package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/specloom-cli/internal/store"
	"github.com/KaramelBytes/specloom-cli/internal/ui"
)

// pickerFixture points the shared store and console at test doubles.
func pickerFixture(t *testing.T, input string) *bytes.Buffer {
	t.Helper()
	s, err := store.New(t.TempDir(), "product_requirements", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	var out bytes.Buffer
	prevSpecs, prevConsole := specs, console
	specs, console = s, ui.NewConsole(strings.NewReader(input), &out)
	t.Cleanup(func() { specs, console = prevSpecs, prevConsole })
	return &out
}

func TestResolveEditPathExplicitArg(t *testing.T) {
	got, err := resolveEditPath([]string{"some/relative/path_v1.json"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "some/relative/path_v1.json" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveEditPathPickerSelectsByNumber(t *testing.T) {
	pickerFixture(t, "1\n")
	if _, err := specs.Save("Habit Tracker", "spec body", "product_requirements"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := resolveEditPath(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := filepath.Join("product_requirements", "habit_tracker", "habit_tracker_v1.json")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveEditPathPickerQuit(t *testing.T) {
	pickerFixture(t, "q\n")
	if _, err := specs.Save("Habit Tracker", "spec body", "product_requirements"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := resolveEditPath(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty on quit", got)
	}
}

func TestResolveEditPathPickerRejectsOutOfRange(t *testing.T) {
	pickerFixture(t, "9\n1\n")
	if _, err := specs.Save("Habit Tracker", "spec body", "product_requirements"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := resolveEditPath(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got == "" {
		t.Fatal("expected a selection after re-prompt")
	}
}

func TestResolveEditPathEmptyStore(t *testing.T) {
	out := pickerFixture(t, "")
	got, err := resolveEditPath(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty for an empty store", got)
	}
	if !strings.Contains(out.String(), "specloom create") {
		t.Fatal("missing hint for the empty store")
	}
}

func TestTodoPathIsOptional(t *testing.T) {
	if err := todoCmd.Args(todoCmd, nil); err != nil {
		t.Fatalf("todo should accept zero args: %v", err)
	}
	if err := todoCmd.Args(todoCmd, []string{"a", "b"}); err == nil {
		t.Fatal("todo should reject two args")
	}
}

func TestPreviewShortTextUnchanged(t *testing.T) {
	text := "one\ntwo\nthree"
	if got := preview(text, 12); got != text {
		t.Fatalf("got %q", got)
	}
}

func TestPreviewTruncatesLongText(t *testing.T) {
	text := strings.Repeat("line\n", 30)
	got := preview(text, 5)
	if !strings.HasSuffix(got, "\n...") {
		t.Fatalf("missing ellipsis: %q", got)
	}
	if n := strings.Count(got, "\n"); n != 5 {
		t.Fatalf("newlines = %d, want 5", n)
	}
}
