package translate

import (
	"context"
	"time"

	"github.com/MimeLyc/subtitle-autosync/internal/subtitle"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// Options tunes the batched fallback path.
type Options struct {
	// BatchSize is the number of cues per delegated call.
	BatchSize int
	// BatchDelay is the fixed pause between batches, respecting the
	// engine's throughput limits.
	BatchDelay time.Duration
	// RetryBackoff is the pause before the single retry of a bad batch.
	RetryBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 30
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// DocumentTranslator turns a source-language document into a target-language
// one with identical cue count, order and timing; only the text changes.
//
// The whole-document path is tried first. When the engine fails or echoes a
// structure that does not survive decoding, translation degrades to batched
// calls; a batch whose reply does not contain exactly one item per cue is
// retried once and then replaced by the untranslated source text, so one bad
// batch never blocks the rest of the document.
type DocumentTranslator struct {
	engine Engine
	opts   Options
}

func NewDocumentTranslator(engine Engine, opts Options) *DocumentTranslator {
	return &DocumentTranslator{
		engine: engine,
		opts:   opts.withDefaults(),
	}
}

// Translate returns the translated document. The only error it surfaces is
// context cancellation; every structural or transport failure degrades to
// source text instead.
func (t *DocumentTranslator) Translate(ctx context.Context, doc *subtitle.Document, sourceLang, targetLang string) (*subtitle.Document, error) {
	if doc == nil || len(doc.Cues) == 0 {
		return doc, nil
	}

	if translated, ok := t.translateWhole(ctx, doc, sourceLang, targetLang); ok {
		return translated, nil
	}

	return t.translateBatched(ctx, doc, sourceLang, targetLang)
}

// translateWhole is the preferred path: one call carrying the rendered
// document. The echo is accepted only when it decodes back to a subtitle
// document with recognizable timing markers and the original cue count.
func (t *DocumentTranslator) translateWhole(ctx context.Context, doc *subtitle.Document, sourceLang, targetLang string) (*subtitle.Document, bool) {
	payload, err := subtitle.EncodeBytes(doc)
	if err != nil {
		return nil, false
	}

	echoed, err := t.engine.TranslateDocument(ctx, string(payload), sourceLang, targetLang)
	if err != nil {
		log.Warn("Whole-document translation failed, falling back to batches: %v", err)
		return nil, false
	}

	decoded, err := subtitle.DecodeBytes([]byte(echoed))
	if err != nil {
		log.Warn("Whole-document translation echoed no timing structure, falling back to batches: %v", err)
		return nil, false
	}
	if len(decoded.Cues) != len(doc.Cues) {
		log.Warn("Whole-document translation changed cue count (%d -> %d), falling back to batches",
			len(doc.Cues), len(decoded.Cues))
		return nil, false
	}

	// Texts come from the echo, timing stays authoritative from the input.
	ret := doc.Clone()
	for i := range ret.Cues {
		ret.Cues[i].Text = decoded.Cues[i].Text
	}
	return ret, true
}

func (t *DocumentTranslator) translateBatched(ctx context.Context, doc *subtitle.Document, sourceLang, targetLang string) (*subtitle.Document, error) {
	ret := doc.Clone()
	texts := doc.Texts()

	for start := 0; start < len(texts); start += t.opts.BatchSize {
		end := min(start+t.opts.BatchSize, len(texts))
		batch := texts[start:end]

		if start > 0 && t.opts.BatchDelay > 0 {
			if err := sleepCtx(ctx, t.opts.BatchDelay); err != nil {
				return nil, err
			}
		}

		translations, ok := t.translateBatchOnce(ctx, batch, sourceLang, targetLang)
		if !ok {
			if err := sleepCtx(ctx, t.opts.RetryBackoff); err != nil {
				return nil, err
			}
			translations, ok = t.translateBatchOnce(ctx, batch, sourceLang, targetLang)
		}
		if !ok {
			// substitute source text for this batch only
			log.Warn("Discarding translation batch %d-%d, keeping source text", start+1, end)
			continue
		}

		for i, text := range translations {
			ret.Cues[start+i].Text = text
		}
	}

	return ret, nil
}

func (t *DocumentTranslator) translateBatchOnce(ctx context.Context, batch []string, sourceLang, targetLang string) ([]string, bool) {
	translations, err := t.engine.TranslateBatch(ctx, batch, sourceLang, targetLang)
	if err != nil {
		log.Error("Translation batch failed: %v", err)
		return nil, false
	}
	if len(translations) != len(batch) {
		log.Error("Translation batch count mismatch: sent %d, got %d", len(batch), len(translations))
		return nil, false
	}
	return translations, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
