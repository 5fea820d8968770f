package pipeline

import (
	"fmt"
	"time"

	"github.com/MimeLyc/subtitle-autosync/internal/subtitle"
)

// ProcessingMode tags which transformation produced an artifact.
type ProcessingMode string

const (
	ModeAlignment   ProcessingMode = "align"
	ModeTranslation ProcessingMode = "translate"
)

// VariantTag derives the deterministic tag for the i-th variant of a cache
// key. The lookup handler and the worker both rely on this so descriptors
// handed out before acquisition finishes point at the right filenames.
func VariantTag(i int) string {
	return fmt.Sprintf("v%d", i+1)
}

// prefixProvenanceCue prepends one synthetic cue recording the resolution
// tier and processing mode that produced the document. Index 0 and the very
// early time window keep it clear of real cues, which start at index 1.
func prefixProvenanceCue(doc *subtitle.Document, tier string, mode ProcessingMode) *subtitle.Document {
	ret := doc.Clone()
	meta := subtitle.Cue{
		Index:     0,
		StartTime: 100 * time.Millisecond,
		EndTime:   2 * time.Second,
		Text:      fmt.Sprintf("[autosync %s/%s]", tier, mode),
	}
	ret.Cues = append([]subtitle.Cue{meta}, ret.Cues...)
	return ret
}
