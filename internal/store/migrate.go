package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/utils"
)

// knownDocTypes distinguishes canonical type-first directories from legacy
// project-first ones during migration. Custom doc types created after the
// layout change are already canonical and never need migrating.
var knownDocTypes = map[string]bool{
	"product_requirements": true,
	"engineering_todo":     true,
}

// MigrateLegacy copies documents stored under historical layouts into the
// canonical tree. It handles two shapes:
//
//  1. flat JSON files directly under the root (the original layout), and
//  2. project-first trees, root/{projectSlug}/{docType}/file.json.
//
// Originals are never deleted and existing destinations are never
// overwritten, so the operation is idempotent and safe to run at every
// startup. Failures on individual files are logged and skipped.
func (s *Store) MigrateLegacy() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.log.Warn("legacy migration skipped", zap.Error(err))
		return
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case !e.IsDir() && strings.HasSuffix(name, ".json"):
			s.migrateFlatFile(filepath.Join(s.root, name))
		case e.IsDir() && !knownDocTypes[name]:
			s.migrateProjectFirstDir(name)
		}
	}
}

// migrateFlatFile places a root-level record into docType/projectSlug/.
func (s *Store) migrateFlatFile(path string) {
	rec, ok := s.readLegacyRecord(path)
	if !ok {
		return
	}
	docType := rec.DocType
	if docType == "" {
		if strings.Contains(filepath.Base(path), "_todo") {
			docType = "engineering_todo"
		} else {
			docType = s.defaultDocType
		}
	}
	slug := utils.Slug(rec.ProductName)
	if slug == "" {
		slug = "unknown"
	}
	rec.DocType = docType
	s.copyMigrated(rec, filepath.Join(s.root, docType, slug, filepath.Base(path)), path)
}

// migrateProjectFirstDir walks root/{project}/{docType}/*.json and mirrors
// each file into the canonical type-first location.
func (s *Store) migrateProjectFirstDir(projectDir string) {
	projPath := filepath.Join(s.root, projectDir)
	typeDirs, err := os.ReadDir(projPath)
	if err != nil {
		s.log.Warn("legacy project dir unreadable", zap.String("dir", projPath), zap.Error(err))
		return
	}
	for _, td := range typeDirs {
		if !td.IsDir() || strings.HasPrefix(td.Name(), ".") {
			continue
		}
		docType := td.Name()
		files, err := os.ReadDir(filepath.Join(projPath, docType))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			src := filepath.Join(projPath, docType, f.Name())
			rec, ok := s.readLegacyRecord(src)
			if !ok {
				continue
			}
			rec.DocType = docType
			if rec.ProductName == "" {
				rec.ProductName = strings.ReplaceAll(projectDir, "_", " ")
			}
			s.copyMigrated(rec, filepath.Join(s.root, docType, projectDir, f.Name()), src)
		}
	}
}

func (s *Store) readLegacyRecord(path string) (*Record, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("legacy file unreadable", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		s.log.Warn("legacy file corrupt, leaving in place", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

func (s *Store) copyMigrated(rec *Record, dst, src string) {
	if _, err := os.Stat(dst); err == nil {
		return // already migrated
	}
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		s.log.Warn("migration mkdir failed", zap.String("dst", dst), zap.Error(err))
		return
	}
	data, err := utils.PrettyJSON(rec)
	if err != nil {
		s.log.Warn("migration encode failed", zap.String("src", src), zap.Error(err))
		return
	}
	if err := utils.SafeWriteFile(dst, data); err != nil {
		s.log.Warn("migration write failed", zap.String("dst", dst), zap.Error(err))
		return
	}
	s.log.Info("migrated legacy specification",
		zap.String("from", src),
		zap.String("to", dst))
}
