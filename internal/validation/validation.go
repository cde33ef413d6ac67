// Package validation checks interactive user input before it is accepted.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Error is returned for input that fails validation. Callers re-prompt
// rather than abort when they receive one.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(msg string) *Error { return &Error{Message: msg} }

// NotEmpty validates that input is not blank and returns it trimmed.
func NotEmpty(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newError("input cannot be empty")
	}
	return trimmed, nil
}

// MinLength validates that input has at least min characters after trimming.
func MinLength(value string, min int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < min {
		return "", newError(fmt.Sprintf("input must be at least %d characters", min))
	}
	return trimmed, nil
}

// YesNo interprets a yes/no answer.
func YesNo(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, newError("please enter 'yes' or 'no'")
}

// InChoices validates that input is one of choices (case-insensitive) and
// returns the canonical spelling.
func InChoices(value string, choices []string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, c := range choices {
		if strings.ToLower(c) == trimmed {
			return c, nil
		}
	}
	return "", newError("input must be one of: " + strings.Join(choices, ", "))
}

var invalidFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// ValidFilename rejects names containing filesystem-hostile characters.
func ValidFilename(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || invalidFilenameChars.MatchString(trimmed) {
		return "", newError("invalid filename")
	}
	return trimmed, nil
}
