package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// SweepTempDir removes workspace entries older than maxAge. Workers clean
// up after themselves; this catches leftovers from crashed runs so no
// temporary state survives across restarts.
func SweepTempDir(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Failed to read temp dir %s: %v", dir, err)
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Error("Failed to remove stale temp entry %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("Swept %d stale temp entries from %s", removed, dir)
	}
}
