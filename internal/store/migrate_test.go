package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateFlatFiles(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.Root(), "acme_v1.json"),
		`{"version":1,"product_name":"Acme","specification":"spec body"}`)
	writeFile(t, filepath.Join(s.Root(), "acme_v1_todo.json"),
		`{"version":1,"product_name":"Acme","specification":"tasks"}`)

	s.MigrateLegacy()

	rec, err := s.Load(filepath.Join("product_requirements", "acme", "acme_v1.json"))
	if err != nil {
		t.Fatalf("migrated spec not found: %v", err)
	}
	if rec.Specification != "spec body" {
		t.Fatalf("content lost in migration: %q", rec.Specification)
	}
	// The _todo marker routes the file to engineering_todo.
	if _, err := s.Load(filepath.Join("engineering_todo", "acme", "acme_v1_todo.json")); err != nil {
		t.Fatalf("todo file not routed by filename marker: %v", err)
	}
	// Originals stay in place.
	if _, err := os.Stat(filepath.Join(s.Root(), "acme_v1.json")); err != nil {
		t.Fatal("original flat file must not be deleted")
	}
}

func TestMigrateProjectFirstLayout(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.Root(), "acme", "product_requirements", "acme_v1.json"),
		`{"version":1,"product_name":"Acme","specification":"body"}`)

	s.MigrateLegacy()

	rec, err := s.Load(filepath.Join("product_requirements", "acme", "acme_v1.json"))
	if err != nil {
		t.Fatalf("migrated record not found: %v", err)
	}
	if rec.DocType != "product_requirements" {
		t.Fatalf("doc type not set during migration: %q", rec.DocType)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	src := filepath.Join(s.Root(), "acme", "product_requirements", "acme_v1.json")
	writeFile(t, src, `{"version":1,"product_name":"Acme","specification":"original"}`)

	s.MigrateLegacy()

	// Edit the migrated copy, rerun, and confirm it is not overwritten.
	dst := filepath.Join(s.Root(), "product_requirements", "acme", "acme_v1.json")
	writeFile(t, dst, `{"version":1,"product_name":"Acme","specification":"edited"}`)
	s.MigrateLegacy()

	rec, err := s.Load(dst)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Specification != "edited" {
		t.Fatal("rerunning migration overwrote an existing destination")
	}
}

func TestMigrateSkipsCorruptLegacyFiles(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.Root(), "broken.json"), "{oops")
	s.MigrateLegacy() // must not panic

	listing, err := s.List("", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 0 {
		t.Fatalf("corrupt legacy file should not migrate: %v", listing)
	}
}
