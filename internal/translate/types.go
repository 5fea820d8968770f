package translate

import "context"

// Line separators used on the wire with the translation engine. Cue
// boundaries travel as lineSeparator; embedded newlines inside a cue travel
// as inlineBreakPlaceholder so the engine cannot confuse the two.
const (
	lineSeparator          = "\n@@@\n"
	inlineBreakPlaceholder = "<br>"
)

// Engine is the capability contract for the external translation service.
// Its output is untrusted input and is validated structurally before use.
type Engine interface {
	// TranslateDocument translates a whole subtitle payload in one call,
	// asking the engine to preserve the timing structure.
	TranslateDocument(ctx context.Context, payload, sourceLang, targetLang string) (string, error)

	// TranslateBatch translates a batch of cue texts one-for-one. The
	// returned slice must have exactly len(texts) items to be accepted.
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}
