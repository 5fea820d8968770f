package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3}) --> (\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// Decode parses an SRT payload into a Document.
//
// The decoder fails closed: a cue group with an unparseable timing line is
// skipped instead of aborting the whole document, so provider-format drift
// never propagates past this point. An error is returned only when no cue
// at all could be parsed.
func Decode(r io.Reader) (*Document, error) {
	var cues []Cue

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	currentCue := Cue{}
	state := "index" // possible values: "index", "time", "text"
	var textLines []string

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue // skip non-index lines
			}
			currentCue.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			startTime, endTime, err := parseSRTTime(line)
			if err != nil {
				// malformed timing line, drop this group
				currentCue = Cue{}
				state = "index"
				continue
			}
			currentCue.StartTime = startTime
			currentCue.EndTime = endTime
			state = "text"
			textLines = []string{}

		case "text":
			if line == "" {
				// cue text ends
				if len(textLines) > 0 {
					currentCue.Text = strings.Join(textLines, "\n")
					cues = append(cues, currentCue)
					currentCue = Cue{}
				}
				state = "index"
				textLines = []string{}
			} else {
				textLines = append(textLines, line)
			}
		}
	}

	// handle last cue group
	if state == "text" && len(textLines) > 0 {
		currentCue.Text = strings.Join(textLines, "\n")
		cues = append(cues, currentCue)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle payload: %w", err)
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues found in payload")
	}

	return &Document{
		Cues:     cues,
		Language: DetectLanguage(cues),
		Format:   "SRT",
	}, nil
}

// DecodeBytes parses an in-memory SRT payload.
func DecodeBytes(payload []byte) (*Document, error) {
	return Decode(bytes.NewReader(payload))
}

// ReadFile parses an SRT file from disk.
func ReadFile(path string) (*Document, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("subtitle file does not exist: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// parseSRTTime parses an SRT timing line, e.g. 00:02:16,612 --> 00:02:19,376
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := srtTimeRe.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", timeString)
	}

	parseTime := func(hours, minutes, seconds, milliseconds string) time.Duration {
		h, _ := strconv.Atoi(hours)
		m, _ := strconv.Atoi(minutes)
		s, _ := strconv.Atoi(seconds)
		ms, _ := strconv.Atoi(milliseconds)

		return time.Duration(h)*time.Hour +
			time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second +
			time.Duration(ms)*time.Millisecond
	}

	return parseTime(matches[1], matches[2], matches[3], matches[4]),
		parseTime(matches[5], matches[6], matches[7], matches[8]),
		nil
}

// DetectLanguage guesses the dominant language of the cue texts.
func DetectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range cues {
		lang := whatlanggo.DetectLang(cue.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	if topLang == "" {
		return language.Und
	}
	return language.Make(topLang)
}
