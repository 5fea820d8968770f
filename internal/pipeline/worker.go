package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-autosync/internal/align"
	"github.com/MimeLyc/subtitle-autosync/internal/jobs"
	"github.com/MimeLyc/subtitle-autosync/internal/provider"
	"github.com/MimeLyc/subtitle-autosync/internal/resolver"
	"github.com/MimeLyc/subtitle-autosync/internal/store"
	"github.com/MimeLyc/subtitle-autosync/internal/subtitle"
	"github.com/MimeLyc/subtitle-autosync/internal/translate"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

// Mode selects which processing stage the worker runs.
type Mode string

const (
	// ModeAuto aligns when a target-language subtitle exists upstream and
	// translates the reference document when it does not.
	ModeAuto      Mode = "auto"
	ModeAlign     Mode = "align"
	ModeTranslate Mode = "translate"
)

// Config tunes one worker fleet. Built once at startup and passed in; the
// worker never reads ambient configuration.
type Config struct {
	Mode Mode
	// ReferenceLanguage is the language of the timing-reference track
	// (and the translation source), e.g. "en".
	ReferenceLanguage string
	// TargetLanguage is the language served to users, e.g. "pt-br".
	TargetLanguage string
	// MaxVariants caps how many artifact variants one key may produce.
	MaxVariants int
	// TempDir hosts in-flight downloads; always swept when a run ends.
	TempDir string
	// DownloadTimeout bounds each individual payload download.
	DownloadTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.ReferenceLanguage == "" {
		c.ReferenceLanguage = "en"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "pt-br"
	}
	if c.MaxVariants <= 0 {
		c.MaxVariants = 3
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 30 * time.Second
	}
	return c
}

// Worker executes one acquisition job:
//
//	resolve references -> download target -> for each reference
//	{download -> process -> persist} -> finish
//
// It is idempotent per cache key, persists partial variant success, and
// removes every intermediate payload whether it succeeds or fails.
type Worker struct {
	cfg        Config
	resolver   *resolver.Resolver
	source     provider.SourceProvider
	store      *store.FileStore
	aligner    align.Aligner
	translator *translate.DocumentTranslator
	httpClient *http.Client
}

func NewWorker(
	cfg Config,
	res *resolver.Resolver,
	source provider.SourceProvider,
	artifacts *store.FileStore,
	aligner align.Aligner,
	translator *translate.DocumentTranslator,
) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		cfg:        cfg,
		resolver:   res,
		source:     source,
		store:      artifacts,
		aligner:    aligner,
		translator: translator,
		httpClient: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// Run executes the state machine for one job. Re-running on a key that
// already has any artifact is a no-op with no network side effects.
func (w *Worker) Run(ctx context.Context, job *jobs.SyncJob) error {
	key := store.Key{
		MediaID:     job.Payload.MediaID,
		Season:      job.Payload.Season,
		Episode:     job.Payload.Episode,
		Fingerprint: job.Payload.Fingerprint,
	}

	if w.store.AnyVariant(key) {
		log.Info("Artifacts already present for %s, nothing to do", key)
		return nil
	}

	tempDir, err := os.MkdirTemp(w.cfg.TempDir, key.String()+"-")
	if err != nil {
		return WrapError(err, ErrStore, "failed to create temp workspace")
	}
	defer os.RemoveAll(tempDir)

	log.Info("Starting acquisition for %s", key)

	targetDoc := w.fetchTargetDocument(ctx, job)

	switch {
	case targetDoc != nil && w.cfg.Mode != ModeTranslate:
		return w.runAlignment(ctx, job, key, targetDoc, tempDir)
	case w.cfg.Mode != ModeAlign:
		return w.runTranslation(ctx, job, key)
	default:
		return NewError(ErrNotFound, "no target-language subtitle located").
			WithContext("key", key.String())
	}
}

// fetchTargetDocument locates and downloads the best target-language
// subtitle (trusted text, untrusted timing). A miss returns nil; transient
// provider trouble is logged and treated as a miss for this run.
func (w *Worker) fetchTargetDocument(ctx context.Context, job *jobs.SyncJob) *subtitle.Document {
	refs, err := w.resolver.Resolve(ctx, resolver.Request{
		MediaID:      job.Payload.MediaID,
		Season:       job.Payload.Season,
		Episode:      job.Payload.Episode,
		Language:     w.cfg.TargetLanguage,
		Fingerprint:  job.Payload.Fingerprint,
		FilenameHint: job.Payload.FilenameHint,
	})
	if err != nil {
		log.Error("Target search failed for %s: %v", job.Payload.MediaID, err)
		return nil
	}
	if len(refs) == 0 {
		return nil
	}

	doc, err := w.downloadDocument(ctx, refs[0])
	if err != nil {
		log.Error("Target download failed for %s: %v", job.Payload.MediaID, err)
		return nil
	}

	expected := language.Make(w.cfg.TargetLanguage)
	if base, _ := doc.Language.Base(); !expected.IsRoot() {
		if expectedBase, _ := expected.Base(); base != expectedBase {
			log.Warn("Target subtitle for %s detected as %s, expected %s",
				job.Payload.MediaID, doc.Language, expected)
		}
	}
	return doc
}

// runAlignment produces up to MaxVariants artifacts, one per reference
// variant, each the target text re-timed by a different reference track.
// Variants fail independently; any persisted variant counts as success.
func (w *Worker) runAlignment(ctx context.Context, job *jobs.SyncJob, key store.Key, targetDoc *subtitle.Document, tempDir string) error {
	refs, err := w.resolveReferences(ctx, job)
	if err != nil {
		return WrapError(err, ErrProvider, "reference search failed").
			WithContext("key", key.String())
	}
	if len(refs) == 0 {
		return NewError(ErrNotFound, "no timing references located").
			WithContext("key", key.String())
	}

	targetPath := filepath.Join(tempDir, "target.srt")
	if err := subtitle.WriteFile(targetPath, targetDoc); err != nil {
		return WrapError(err, ErrStore, "failed to stage target document")
	}

	// References are processed in resolver order, one at a time, to bound
	// external API load.
	succeeded := 0
	for i, ref := range refs {
		if err := w.alignVariant(ctx, key, ref, i, targetPath, tempDir); err != nil {
			log.Error("Variant %s of %s failed: %v", VariantTag(i), key, err)
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		return NewError(ErrAlignment, "every reference variant failed").
			WithContext("key", key.String()).
			WithContext("variants", len(refs))
	}
	log.Info("Persisted %d/%d variants for %s", succeeded, len(refs), key)
	return nil
}

func (w *Worker) alignVariant(ctx context.Context, key store.Key, ref provider.Reference, i int, targetPath, tempDir string) error {
	payload, err := w.downloadPayload(ctx, ref)
	if err != nil {
		return WrapError(err, ErrNetwork, "reference download failed")
	}

	refPath := filepath.Join(tempDir, fmt.Sprintf("ref-%d.srt", i))
	if err := os.WriteFile(refPath, payload, 0o644); err != nil {
		return WrapError(err, ErrStore, "failed to stage reference")
	}

	outPath := filepath.Join(tempDir, fmt.Sprintf("aligned-%d.srt", i))
	if err := w.aligner.Align(ctx, refPath, targetPath, outPath); err != nil {
		return WrapError(err, ErrAlignment, "aligner rejected variant")
	}

	alignedDoc, err := subtitle.ReadFile(outPath)
	if err != nil {
		return WrapError(err, ErrStructuralMismatch, "aligned output is not a subtitle document")
	}

	final := prefixProvenanceCue(alignedDoc, string(ref.Provenance), ModeAlignment)
	body, err := subtitle.EncodeBytes(final)
	if err != nil {
		return WrapError(err, ErrStore, "failed to encode artifact")
	}
	if err := w.store.Put(store.Artifact{
		CacheKey:   key.String(),
		Variant:    VariantTag(i),
		Provenance: string(ref.Provenance),
		Mode:       string(ModeAlignment),
	}, body); err != nil {
		return WrapError(err, ErrStore, "failed to persist artifact")
	}
	return nil
}

// runTranslation translates the best reference-language document into the
// target language and persists it as the first variant.
func (w *Worker) runTranslation(ctx context.Context, job *jobs.SyncJob, key store.Key) error {
	if w.translator == nil {
		return NewError(ErrConfig, "translation engine is not configured")
	}

	refs, err := w.resolver.Resolve(ctx, resolver.Request{
		MediaID:      job.Payload.MediaID,
		Season:       job.Payload.Season,
		Episode:      job.Payload.Episode,
		Language:     w.cfg.ReferenceLanguage,
		Fingerprint:  job.Payload.Fingerprint,
		FilenameHint: job.Payload.FilenameHint,
	})
	if err != nil {
		return WrapError(err, ErrProvider, "reference search failed")
	}
	if len(refs) == 0 {
		return NewError(ErrNotFound, "no reference document located").
			WithContext("key", key.String())
	}

	doc, err := w.downloadDocument(ctx, refs[0])
	if err != nil {
		return WrapError(err, ErrNetwork, "reference download failed")
	}

	translated, err := w.translator.Translate(ctx, doc, w.cfg.ReferenceLanguage, w.cfg.TargetLanguage)
	if err != nil {
		return WrapError(err, ErrTranslation, "translation aborted")
	}

	final := prefixProvenanceCue(translated, string(refs[0].Provenance), ModeTranslation)
	body, err := subtitle.EncodeBytes(final)
	if err != nil {
		return WrapError(err, ErrStore, "failed to encode artifact")
	}
	if err := w.store.Put(store.Artifact{
		CacheKey:   key.String(),
		Variant:    VariantTag(0),
		Provenance: string(refs[0].Provenance),
		Mode:       string(ModeTranslation),
	}, body); err != nil {
		return WrapError(err, ErrStore, "failed to persist artifact")
	}
	log.Info("Persisted translated artifact for %s", key)
	return nil
}

// resolveReferences picks timing-reference candidates. A fingerprint or a
// filename hint narrows the cascade to its best single answer; otherwise
// the catalog is split into release-category variants.
func (w *Worker) resolveReferences(ctx context.Context, job *jobs.SyncJob) ([]provider.Reference, error) {
	req := resolver.Request{
		MediaID:      job.Payload.MediaID,
		Season:       job.Payload.Season,
		Episode:      job.Payload.Episode,
		Language:     w.cfg.ReferenceLanguage,
		Fingerprint:  job.Payload.Fingerprint,
		FilenameHint: job.Payload.FilenameHint,
	}
	if job.Payload.Fingerprint != "" || job.Payload.FilenameHint != "" {
		return w.resolver.Resolve(ctx, req)
	}
	return w.resolver.ResolveVariants(ctx, req)
}

func (w *Worker) downloadDocument(ctx context.Context, ref provider.Reference) (*subtitle.Document, error) {
	payload, err := w.downloadPayload(ctx, ref)
	if err != nil {
		return nil, err
	}
	doc, err := subtitle.DecodeBytes(payload)
	if err != nil {
		return nil, WrapError(err, ErrStructuralMismatch, "downloaded payload is not a subtitle document")
	}
	return doc, nil
}

func (w *Worker) downloadPayload(ctx context.Context, ref provider.Reference) ([]byte, error) {
	link, err := w.source.FetchLink(ctx, ref)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
