package ai

import (
	"strings"
	"unicode"
)

// Task is one actionable item in a generated engineering to-do list.
type Task struct {
	Section        string `json:"section"`
	Title          string `json:"title"`
	Complexity     string `json:"complexity"`
	Dependencies   string `json:"dependencies"`
	Description    string `json:"description"`
	TechnicalNotes string `json:"technical_notes"`
	TestingNotes   string `json:"testing_notes"`
}

// TaskSections is the fixed order of sections in a generated to-do list.
var TaskSections = []string{
	"Architecture",
	"Core Features",
	"Infrastructure",
	"Testing",
	"Documentation",
	"Security",
	"Performance",
}

// ParseTasks splits free-form model output for one section into tasks.
// A new task starts at a line beginning with a digit ("1. Add X") or whose
// first word is "Task". Within a block, labeled lines fill the matching
// field; everything else accumulates into the description. Missing fields
// get neutral defaults so the rendered list never has holes.
func ParseTasks(section, raw string) []Task {
	var tasks []Task
	var cur *Task
	var desc []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Description = strings.TrimSpace(strings.Join(desc, "\n"))
		tasks = append(tasks, finishTask(*cur))
		cur = nil
		desc = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if startsTask(line) {
			flush()
			cur = &Task{Section: section, Title: taskTitle(line)}
			continue
		}
		if cur == nil {
			continue
		}
		label, value := splitLabel(line)
		switch label {
		case "complexity":
			cur.Complexity = value
		case "dependencies", "depends on":
			cur.Dependencies = value
		case "description":
			if value != "" {
				desc = append(desc, value)
			}
		case "technical notes", "technical":
			cur.TechnicalNotes = value
		case "testing notes", "testing":
			cur.TestingNotes = value
		default:
			desc = append(desc, line)
		}
	}
	flush()
	return tasks
}

func finishTask(t Task) Task {
	if t.Title == "" {
		t.Title = "Untitled Task"
	}
	if t.Complexity == "" {
		t.Complexity = "Medium"
	}
	if t.Description == "" {
		t.Description = "No description provided."
	}
	return t
}

func startsTask(line string) bool {
	if line == "" {
		return false
	}
	r := rune(line[0])
	if unicode.IsDigit(r) {
		return true
	}
	first := strings.Fields(line)[0]
	return strings.EqualFold(strings.Trim(first, ":#*"), "task")
}

// taskTitle strips list numbering and a leading "Task N:" marker. A title
// that merely begins with the word "task" ("Task queue worker") is left
// alone; only the numbered-marker form is stripped.
func taskTitle(line string) string {
	s := strings.TrimLeft(line, "0123456789.)- *#")
	s = strings.TrimSpace(s)
	if rest, ok := cutFold(s, "task"); ok {
		rest = strings.TrimLeft(rest, " \t0123456789")
		if after, marked := cutAnyPrefix(rest, ":", ".", "-"); marked {
			if after = strings.TrimSpace(after); after != "" {
				s = after
			}
		}
	}
	return strings.TrimSpace(strings.Trim(s, "*"))
}

func cutAnyPrefix(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return rest, true
		}
	}
	return "", false
}

// splitLabel recognizes "**Label:** value" and "Label: value" field lines.
func splitLabel(line string) (string, string) {
	stripped := strings.ReplaceAll(line, "*", "")
	idx := strings.Index(stripped, ":")
	if idx <= 0 {
		return "", ""
	}
	label := strings.ToLower(strings.TrimSpace(strings.Trim(stripped[:idx], "-• ")))
	value := strings.TrimSpace(stripped[idx+1:])
	switch label {
	case "complexity", "dependencies", "depends on", "description",
		"technical notes", "technical", "testing notes", "testing":
		return label, value
	}
	return "", ""
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
