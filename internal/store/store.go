// Package store persists versioned specification documents on disk.
//
// Canonical layout:
//
//	{root}/{docType}/{projectSlug}/{projectSlug}_v{N}.json
//
// Version numbers are derived from existing filenames (max+1), so deleting
// a version leaves a gap but never causes a collision. Two specloom
// processes racing on the same partition could compute the same next
// version; the CLI is single-process so no locking is attempted.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/utils"
)

// ErrNotFound is returned by Load when no file exists at the given path.
var ErrNotFound = errors.New("specification not found")

// PersistenceError wraps filesystem failures during save or load.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Record is the on-disk JSON document. Field names are part of the storage
// format and must not change.
type Record struct {
	Version            int     `json:"version"`
	Timestamp          float64 `json:"timestamp"`
	FormattedTimestamp string  `json:"formatted_timestamp"`
	ProductName        string  `json:"product_name"`
	Specification      string  `json:"specification"`
	DocType            string  `json:"doc_type"`
}

// VersionInfo describes one stored version in a listing.
type VersionInfo struct {
	Filename           string
	Path               string // relative to the store root
	Version            int
	Timestamp          float64
	FormattedTimestamp string
	ProductName        string
	DocType            string
}

// Listing maps docType -> projectSlug -> versions ascending.
type Listing map[string]map[string][]VersionInfo

// Store manages the specification tree under root.
type Store struct {
	root           string
	defaultDocType string
	log            *zap.Logger

	now func() time.Time // test hook
}

// New creates a store rooted at dir. defaultDocType is used when a record
// carries no document type and none can be inferred.
func New(dir, defaultDocType string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, &PersistenceError{Op: "create store root", Path: dir, Err: err}
	}
	return &Store{root: dir, defaultDocType: defaultDocType, log: log, now: time.Now}, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

var versionSuffix = regexp.MustCompile(`_v(\d+)\.json$`)

// nextVersion scans dir for versioned filenames and returns max+1 (1 when
// the partition is empty).
func nextVersion(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}
	max := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := versionSuffix.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// Save writes content as the next version for (projectName, docType) and
// returns the path of the new file. The write is atomic; earlier versions
// are never touched.
func (s *Store) Save(projectName, content, docType string) (string, error) {
	if docType == "" {
		docType = s.defaultDocType
	}
	slug := utils.Slug(projectName)
	if slug == "" {
		slug = "untitled_project"
	}
	dir := filepath.Join(s.root, docType, slug)
	if err := utils.EnsureDir(dir); err != nil {
		return "", &PersistenceError{Op: "create partition", Path: dir, Err: err}
	}

	version := nextVersion(dir)
	now := s.now()
	rec := Record{
		Version:            version,
		Timestamp:          float64(now.UnixNano()) / float64(time.Second),
		FormattedTimestamp: now.Format("2006-01-02 15:04:05"),
		ProductName:        projectName,
		Specification:      content,
		DocType:            docType,
	}
	data, err := utils.PrettyJSON(rec)
	if err != nil {
		return "", &PersistenceError{Op: "encode", Path: dir, Err: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_v%d.json", slug, version))
	if err := utils.SafeWriteFile(path, data); err != nil {
		return "", &PersistenceError{Op: "write", Path: path, Err: err}
	}
	s.log.Info("saved specification",
		zap.String("path", path),
		zap.String("doc_type", docType),
		zap.Int("version", version))
	return path, nil
}

// List walks the canonical tree and groups versions by document type and
// project. Corrupt or unreadable records are skipped with a warning so one
// bad file cannot hide the rest. Filters are optional; empty means all.
func (s *Store) List(projectFilter, docTypeFilter string) (Listing, error) {
	result := Listing{}
	typeDirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Path: s.root, Err: err}
	}
	projectSlugFilter := utils.Slug(projectFilter)
	for _, td := range typeDirs {
		if !td.IsDir() || strings.HasPrefix(td.Name(), ".") {
			continue
		}
		docType := td.Name()
		if docTypeFilter != "" && docType != docTypeFilter {
			continue
		}
		projDirs, err := os.ReadDir(filepath.Join(s.root, docType))
		if err != nil {
			s.log.Warn("skipping unreadable doc type dir", zap.String("dir", docType), zap.Error(err))
			continue
		}
		for _, pd := range projDirs {
			if !pd.IsDir() || strings.HasPrefix(pd.Name(), ".") {
				continue
			}
			slug := pd.Name()
			if projectFilter != "" && slug != projectSlugFilter {
				continue
			}
			versions := s.readVersions(docType, slug)
			if len(versions) == 0 {
				continue
			}
			if result[docType] == nil {
				result[docType] = map[string][]VersionInfo{}
			}
			result[docType][slug] = versions
		}
	}
	return result, nil
}

func (s *Store) readVersions(docType, slug string) []VersionInfo {
	dir := filepath.Join(s.root, docType, slug)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Warn("skipping unreadable project dir", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	var versions []VersionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable specification", zap.String("path", path), zap.Error(err))
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			s.log.Warn("skipping corrupt specification", zap.String("path", path), zap.Error(err))
			continue
		}
		if rec.Version == 0 {
			rec.Version = 1 // legacy records may predate the version field
		}
		name := rec.ProductName
		if name == "" {
			name = strings.ReplaceAll(slug, "_", " ")
		}
		ft := rec.FormattedTimestamp
		if ft == "" {
			ft = "unknown date"
		}
		versions = append(versions, VersionInfo{
			Filename:           e.Name(),
			Path:               filepath.Join(docType, slug, e.Name()),
			Version:            rec.Version,
			Timestamp:          rec.Timestamp,
			FormattedTimestamp: ft,
			ProductName:        name,
			DocType:            docType,
		})
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Version != versions[j].Version {
			return versions[i].Version < versions[j].Version
		}
		return versions[i].Timestamp < versions[j].Timestamp
	})
	return versions
}

// Load reads a record from path, which may be absolute or relative to the
// store root. Records written before the doc_type field existed get their
// type inferred from the directory layout.
func (s *Store) Load(path string) (*Record, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, path)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "read", Path: full, Err: err}
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, &PersistenceError{Op: "parse", Path: full, Err: err}
	}
	if rec.DocType == "" {
		rec.DocType = s.inferDocType(full)
	}
	return &rec, nil
}

// inferDocType derives the document type from the canonical layout, where
// the type directory sits two levels above the file.
func (s *Store) inferDocType(full string) string {
	rel, err := filepath.Rel(s.root, full)
	if err == nil && !strings.HasPrefix(rel, "..") {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) >= 3 {
			return parts[0]
		}
	}
	return s.defaultDocType
}
