package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// Artifact describes one persisted subtitle file.
type Artifact struct {
	CacheKey   string
	Variant    string
	Provenance string
	Mode       string
	Bytes      int
	CreatedAt  time.Time
}

// FileStore is the durable mapping from (cache key, variant) to a finished
// subtitle payload. Writes are atomic-visible (temp file + rename) and
// artifacts are immutable once present: Put on an existing artifact is a
// no-op. The filesystem is the source of truth for presence; the optional
// sqlite index only records metadata for listing and diagnostics.
type FileStore struct {
	dir   string
	index *Index
}

func NewFileStore(dir string, index *Index) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{dir: dir, index: index}, nil
}

// Dir returns the artifact directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put persists a finished artifact, create-if-absent.
func (s *FileStore) Put(artifact Artifact, payload []byte) error {
	name := sanitizeName(artifactFileName(artifact))
	finalPath := filepath.Join(s.dir, name)

	if s.Exists(name) {
		log.Debug("Artifact %s already present, keeping existing payload", name)
		return nil
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush temp artifact: %w", err)
	}

	// rename makes the artifact visible atomically
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish artifact: %w", err)
	}

	if s.index != nil {
		artifact.Bytes = len(payload)
		artifact.CreatedAt = time.Now()
		if err := s.index.RecordArtifact(name, artifact); err != nil {
			// index is best-effort metadata, the artifact itself is live
			log.Error("Failed to index artifact %s: %v", name, err)
		}
	}
	return nil
}

// Exists reports whether a finished artifact with this filename is present.
func (s *FileStore) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, sanitizeName(name)))
	return err == nil && !info.IsDir()
}

// AnyVariant reports whether any artifact tagged under the cache key exists.
func (s *FileStore) AnyVariant(key Key) bool {
	prefix := key.String() + "."
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue // temp files
		}
		if strings.HasPrefix(name, prefix) || name == key.String()+".srt" {
			return true
		}
	}
	return false
}

// Get returns the artifact payload, or os.ErrNotExist when absent.
func (s *FileStore) Get(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, sanitizeName(name)))
}

func artifactFileName(artifact Artifact) string {
	if artifact.Variant == "" {
		return artifact.CacheKey + ".srt"
	}
	return artifact.CacheKey + "." + artifact.Variant + ".srt"
}

// sanitizeName strips any path components from caller-supplied names.
func sanitizeName(name string) string {
	return filepath.Base(filepath.Clean(name))
}
