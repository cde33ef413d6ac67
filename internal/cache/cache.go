// Package cache memoizes AI responses on disk.
//
// The cache is an optimization, never a correctness dependency: every
// failure path degrades to a miss or a no-op with a logged warning, and
// callers cannot observe cache errors.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/specloom-cli/internal/utils"
)

// DefaultExpiry is one week, matching the uniform TTL policy.
const DefaultExpiry = 7 * 24 * time.Hour

// Expiry converts a configured hour count into a duration. Non-positive
// values select DefaultExpiry.
func Expiry(hours int) time.Duration {
	if hours <= 0 {
		return DefaultExpiry
	}
	return time.Duration(hours) * time.Hour
}

// Store is a file-per-entry response cache. Entry freshness is judged by
// file mtime; stale entries are reclaimed lazily when a lookup notices them.
type Store struct {
	root   string
	expiry time.Duration
	log    *zap.Logger

	now func() time.Time // test hook
}

// New creates a cache rooted at dir. A non-positive expiry selects
// DefaultExpiry. A nil logger is replaced with a no-op logger.
func New(dir string, expiry time.Duration, log *zap.Logger) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{root: dir, expiry: expiry, log: log, now: time.Now}
}

// keySeparator keeps distinct argument lists from colliding: no argument
// produced by serialization may contain it.
const keySeparator = "\x1f"

// Key derives a deterministic cache key from the operation name, the model
// identifier, and the canonical string form of the arguments.
func Key(operation, model string, args ...string) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte(keySeparator))
	h.Write([]byte(model))
	for _, a := range args {
		h.Write([]byte(keySeparator))
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key, or ok=false on any kind of miss:
// no entry, expired entry, or unreadable entry.
func (s *Store) Get(key string) (string, bool) {
	path := s.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if s.now().Sub(info.ModTime()) > s.expiry {
		s.log.Debug("cache entry expired", zap.String("key", key))
		// Lazy reclamation; removal failure just leaves the stale file for
		// the next pass.
		_ = os.Remove(path)
		return "", false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	s.log.Debug("cache hit", zap.String("key", key))
	return string(b), true
}

// Put stores value under key. Best effort: failures are logged, never
// returned.
func (s *Store) Put(key, value string) {
	if err := utils.EnsureDir(s.root); err != nil {
		s.log.Warn("cache mkdir failed", zap.Error(err))
		return
	}
	if err := utils.SafeWriteFile(s.path(key), []byte(value)); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.log.Debug("cache store", zap.String("key", key))
}

func (s *Store) path(key string) string {
	// Keys are hex digests, but guard against anything path-like.
	return filepath.Join(s.root, strings.ReplaceAll(key, string(os.PathSeparator), "_"))
}
