package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

// Encode renders the document as SRT.
func Encode(w io.Writer, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("subtitle document is empty")
	}

	writer := bufio.NewWriter(w)

	for _, cue := range doc.Cues {
		// write index
		fmt.Fprintf(writer, "%d\n", cue.Index)

		// write time
		startTime := FormatDuration(cue.StartTime)
		endTime := FormatDuration(cue.EndTime)
		fmt.Fprintf(writer, "%s --> %s\n", startTime, endTime)

		// write text
		fmt.Fprintf(writer, "%s\n\n", cue.Text)
	}

	return writer.Flush()
}

// EncodeBytes renders the document as an in-memory SRT payload.
func EncodeBytes(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders the document to an SRT file.
func WriteFile(path string, doc *Document) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return Encode(file, doc)
}

// FormatDuration formats a time.Duration as an SRT timestamp.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
