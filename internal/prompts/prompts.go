// Package prompts loads the prompt templates that drive every model call.
//
// Templates live as plain text files in the prompt directory so users can
// tune them without rebuilding. Missing files are seeded from embedded
// defaults on first run; a file that exists but cannot be read or parsed is
// a fatal configuration error.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed defaults/*.txt
var defaults embed.FS

// Required template files, one per model operation.
const (
	FileInitial         = "initial.txt"
	FileRefinement      = "refinement.txt"
	FileFinalRefinement = "final_refinement.txt"
	FileApplyAnswers    = "apply_answers.txt"
	FileTodo            = "todo.txt"
)

var requiredFiles = []string{
	FileInitial,
	FileRefinement,
	FileFinalRefinement,
	FileApplyAnswers,
	FileTodo,
}

// ConfigError indicates the prompt library cannot be assembled. It is fatal
// at startup; there is no runtime recovery from a missing template.
type ConfigError struct {
	File string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("prompt template %s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Library holds the parsed templates.
type Library struct {
	initial         *template.Template
	refinement      *template.Template
	finalRefinement *template.Template
	applyAnswers    *template.Template
	todo            *template.Template
}

// Load reads all required templates from dir, seeding missing files from the
// embedded defaults first. Any unreadable or unparsable template returns a
// *ConfigError.
func Load(dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &ConfigError{File: dir, Err: err}
	}
	lib := &Library{}
	targets := map[string]**template.Template{
		FileInitial:         &lib.initial,
		FileRefinement:      &lib.refinement,
		FileFinalRefinement: &lib.finalRefinement,
		FileApplyAnswers:    &lib.applyAnswers,
		FileTodo:            &lib.todo,
	}
	for _, name := range requiredFiles {
		tmpl, err := loadOne(dir, name)
		if err != nil {
			return nil, err
		}
		*targets[name] = tmpl
	}
	return lib, nil
}

func loadOne(dir, name string) (*template.Template, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		def, rerr := defaults.ReadFile("defaults/" + name)
		if rerr != nil {
			return nil, &ConfigError{File: name, Err: rerr}
		}
		if werr := os.WriteFile(path, def, 0o644); werr != nil {
			return nil, &ConfigError{File: name, Err: werr}
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{File: name, Err: err}
	}
	tmpl, err := template.New(name).Parse(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, &ConfigError{File: name, Err: err}
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

// Initial renders the first-draft prompt for a product description.
func (l *Library) Initial(description string) (string, error) {
	return render(l.initial, struct{ Description string }{description})
}

// Refinement renders the follow-up-questions prompt.
func (l *Library) Refinement(spec, answered string) (string, error) {
	return render(l.refinement, struct{ Spec, Answered string }{spec, answered})
}

// FinalRefinement renders the polish-the-document prompt.
func (l *Library) FinalRefinement(spec string) (string, error) {
	return render(l.finalRefinement, struct{ Spec string }{spec})
}

// ApplyAnswers renders the rewrite-with-answers prompt.
func (l *Library) ApplyAnswers(spec, answered string) (string, error) {
	return render(l.applyAnswers, struct{ Spec, Answered string }{spec, answered})
}

// Todo renders the per-section task-generation prompt.
func (l *Library) Todo(spec, section string) (string, error) {
	return render(l.todo, struct{ Spec, Section string }{spec, section})
}
