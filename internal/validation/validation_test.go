package validation

import (
	"errors"
	"testing"
)

func TestNotEmpty(t *testing.T) {
	if _, err := NotEmpty("   "); err == nil {
		t.Fatal("expected error for whitespace-only input")
	}
	got, err := NotEmpty("  hello ")
	if err != nil {
		t.Fatalf("NotEmpty: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	var verr *Error
	_, err = NotEmpty("")
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %T", err)
	}
}

func TestYesNo(t *testing.T) {
	for _, v := range []string{"y", "YES", " true ", "1"} {
		ok, err := YesNo(v)
		if err != nil || !ok {
			t.Fatalf("YesNo(%q) = %v, %v", v, ok, err)
		}
	}
	for _, v := range []string{"n", "No", "false", "0"} {
		ok, err := YesNo(v)
		if err != nil || ok {
			t.Fatalf("YesNo(%q) = %v, %v", v, ok, err)
		}
	}
	if _, err := YesNo("maybe"); err == nil {
		t.Fatal("expected error for ambiguous answer")
	}
}

func TestInChoices(t *testing.T) {
	got, err := InChoices("SKIP", []string{"skip", "done"})
	if err != nil {
		t.Fatalf("InChoices: %v", err)
	}
	if got != "skip" {
		t.Fatalf("expected canonical spelling, got %q", got)
	}
	if _, err := InChoices("quit", []string{"skip", "done"}); err == nil {
		t.Fatal("expected error for unknown choice")
	}
}

func TestValidFilename(t *testing.T) {
	if _, err := ValidFilename("a/b"); err == nil {
		t.Fatal("expected error for path separator")
	}
	if _, err := ValidFilename("notes_v1.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
