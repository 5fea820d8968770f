package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello there.

2
00:00:04,000 --> 00:00:06,000
Two lines
of text.

3
00:01:02,250 --> 00:01:04,000
Goodbye.
`

func TestDecode_ParsesCues(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleSRT))
	require.NoError(t, err)
	require.Len(t, doc.Cues, 3)

	assert.Equal(t, 1, doc.Cues[0].Index)
	assert.Equal(t, time.Second, doc.Cues[0].StartTime)
	assert.Equal(t, 3*time.Second+500*time.Millisecond, doc.Cues[0].EndTime)
	assert.Equal(t, "Hello there.", doc.Cues[0].Text)

	assert.Equal(t, "Two lines\nof text.", doc.Cues[1].Text)
	assert.Equal(t, time.Minute+2*time.Second+250*time.Millisecond, doc.Cues[2].StartTime)
	assert.Equal(t, "SRT", doc.Format)
}

func TestDecode_SkipsMalformedTimingGroup(t *testing.T) {
	payload := `1
not a timestamp
Broken cue.

2
00:00:04,000 --> 00:00:06,000
Survivor.
`
	doc, err := Decode(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, doc.Cues, 1)
	assert.Equal(t, "Survivor.", doc.Cues[0].Text)
}

func TestDecode_HandlesBOMAndDotMilliseconds(t *testing.T) {
	payload := "\uFEFF1\n00:00:01.000 --> 00:00:02.000\nDotted.\n"
	doc, err := Decode(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, doc.Cues, 1)
	assert.Equal(t, "Dotted.", doc.Cues[0].Text)
}

func TestDecode_EmptyPayloadFailsClosed(t *testing.T) {
	_, err := Decode(strings.NewReader("this is not a subtitle"))
	require.Error(t, err)
}

func TestEncode_RoundTripsThroughDecode(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleSRT))
	require.NoError(t, err)

	encoded, err := EncodeBytes(doc)
	require.NoError(t, err)

	decoded, err := DecodeBytes(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Cues, len(doc.Cues))
	for i := range doc.Cues {
		assert.Equal(t, doc.Cues[i].StartTime, decoded.Cues[i].StartTime)
		assert.Equal(t, doc.Cues[i].EndTime, decoded.Cues[i].EndTime)
		assert.Equal(t, doc.Cues[i].Text, decoded.Cues[i].Text)
	}
}

func TestFormatDuration(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	assert.Equal(t, "01:02:03,045", FormatDuration(d))
}

func TestClone_DoesNotShareCues(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleSRT))
	require.NoError(t, err)

	clone := doc.Clone()
	clone.Cues[0].Text = "mutated"
	assert.Equal(t, "Hello there.", doc.Cues[0].Text)
}
