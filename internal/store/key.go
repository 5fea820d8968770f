package store

import (
	"fmt"
	"strings"
)

// Key addresses jobs and artifacts. It is derived deterministically from
// media identity plus an optional content fingerprint and never stored on
// its own.
type Key struct {
	MediaID     string
	Season      int
	Episode     int
	Fingerprint string
}

// String renders the canonical cache key, e.g.
// "tt0111161", "tt0111161_S01E05" or "tt0111161_h09a2c4..."
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(sanitizeComponent(k.MediaID))
	if k.Season > 0 && k.Episode > 0 {
		fmt.Fprintf(&sb, "_S%02dE%02d", k.Season, k.Episode)
	}
	if k.Fingerprint != "" {
		fp := sanitizeComponent(k.Fingerprint)
		if len(fp) > 16 {
			fp = fp[:16]
		}
		sb.WriteString("_h")
		sb.WriteString(fp)
	}
	return sb.String()
}

// ArtifactName derives the storage filename for one (key, variant) pair so
// that the presence check and the write path always agree.
func ArtifactName(key Key, variant string) string {
	if variant == "" {
		return key.String() + ".srt"
	}
	return key.String() + "." + sanitizeComponent(variant) + ".srt"
}

// sanitizeComponent keeps key components path- and URL-safe.
func sanitizeComponent(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
