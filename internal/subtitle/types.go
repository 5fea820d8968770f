package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Cue is a single timed text block of a subtitle document.
type Cue struct {
	Index     int           // cue index
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // cue text, may span multiple lines
}

// Document is an ordered sequence of cues parsed from a subtitle payload.
// Cue order is significant and is preserved by every transformation.
type Document struct {
	Cues     []Cue
	Language language.Tag
	Format   string // e.g. SRT
}

// Clone returns a deep copy so transformations never mutate their input.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cues := make([]Cue, len(d.Cues))
	copy(cues, d.Cues)
	return &Document{
		Cues:     cues,
		Language: d.Language,
		Format:   d.Format,
	}
}

// Texts returns the cue texts in document order.
func (d *Document) Texts() []string {
	ret := make([]string, 0, len(d.Cues))
	for _, cue := range d.Cues {
		ret = append(ret, cue.Text)
	}
	return ret
}
