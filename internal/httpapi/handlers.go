package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/subtitle-autosync/internal/jobs"
	"github.com/MimeLyc/subtitle-autosync/internal/pipeline"
	"github.com/MimeLyc/subtitle-autosync/internal/store"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

var manifest = map[string]any{
	"id":          "community.autosync.subtitles",
	"version":     "1.0.0",
	"name":        "Subtitle AutoSync",
	"description": "Serves re-timed or machine-translated subtitles, acquired in the background.",
	"types":       []string{"movie", "series"},
	"catalogs":    []any{},
	"resources":   []string{"subtitles"},
	"idPrefixes":  []string{"tt"},
}

type subtitleDescriptor struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Lang   string `json:"lang"`
	Format string `json:"format"`
}

type lookupResponse struct {
	Subtitles []subtitleDescriptor `json:"subtitles"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Subtitle AutoSync is running"))
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

// handleLookup is the front door: it always answers promptly with a
// descriptor set pointing at present or future artifact locations, kicking
// off background acquisition on a miss. It never blocks on the pipeline.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, ok := parseLookupPath(r.URL.Path)
	if !ok {
		// fail closed: malformed lookups get an empty result set
		writeJSON(w, http.StatusOK, lookupResponse{Subtitles: []subtitleDescriptor{}})
		return
	}

	key := store.Key{
		MediaID:     payload.MediaID,
		Season:      payload.Season,
		Episode:     payload.Episode,
		Fingerprint: payload.Fingerprint,
	}

	var names []string
	if s.artifacts.AnyVariant(key) {
		names = s.presentArtifactNames(key)
	} else {
		_, created := s.coordinator.EnsureRunning(jobs.EnqueueRequest{
			Source:   "lookup",
			CacheKey: key.String(),
			Payload:  payload,
		})
		if created {
			log.Info("Lookup miss for %s, acquisition enqueued", key)
		}
		for i := 0; i < s.opts.MaxVariants; i++ {
			names = append(names, store.ArtifactName(key, pipeline.VariantTag(i)))
		}
	}

	base := s.baseURL(r)
	descriptors := make([]subtitleDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, subtitleDescriptor{
			ID:     "autosync_" + strings.TrimSuffix(name, ".srt"),
			URL:    base + "/subs/" + name,
			Lang:   s.opts.TargetLangCode,
			Format: "srt",
		})
	}
	writeJSON(w, http.StatusOK, lookupResponse{Subtitles: descriptors})
}

// handleArtifact serves one artifact through the delivery gate, waiting a
// bounded time for the pipeline before answering with the placeholder.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/subs/")
	if name == "" || strings.Contains(name, "/") || !strings.HasSuffix(name, ".srt") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	timeout := s.opts.FetchTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	payload, ready := s.gate.Fetch(r.Context(), name, timeout)
	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	if !ready {
		// the placeholder is transient, keep proxies from caching it
		w.Header().Set("Cache-Control", "no-store")
	}
	_, _ = w.Write(payload)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.coordinator.List())
}

// parseLookupPath decodes /subtitles/{type}/{id}[/{extra}].json where id is
// tt1234[:season:episode] and extra carries Stremio props such as
// videoHash and filename. Unexpected shapes return ok=false, never panic.
func parseLookupPath(path string) (jobs.Payload, bool) {
	trimmed := strings.TrimPrefix(path, "/subtitles/")
	trimmed = strings.TrimSuffix(trimmed, ".json")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return jobs.Payload{}, false
	}

	id, err := url.PathUnescape(parts[1])
	if err != nil {
		return jobs.Payload{}, false
	}
	idParts := strings.Split(id, ":")
	if !strings.HasPrefix(idParts[0], "tt") {
		return jobs.Payload{}, false
	}

	payload := jobs.Payload{MediaID: idParts[0]}
	if len(idParts) >= 3 {
		season, err1 := strconv.Atoi(idParts[1])
		episode, err2 := strconv.Atoi(idParts[2])
		if err1 != nil || err2 != nil {
			return jobs.Payload{}, false
		}
		payload.Season = season
		payload.Episode = episode
	}

	if len(parts) >= 3 {
		if extra, err := url.PathUnescape(parts[2]); err == nil {
			if values, err := url.ParseQuery(extra); err == nil {
				payload.Fingerprint = values.Get("videoHash")
				payload.FilenameHint = values.Get("filename")
			}
		}
	}
	return payload, true
}

// presentArtifactNames lists the variant filenames that already exist for
// the key, probing the deterministic tags the worker writes under.
func (s *Server) presentArtifactNames(key store.Key) []string {
	var names []string
	if name := store.ArtifactName(key, ""); s.artifacts.Exists(name) {
		names = append(names, name)
	}
	for i := 0; i < s.opts.MaxVariants; i++ {
		name := store.ArtifactName(key, pipeline.VariantTag(i))
		if s.artifacts.Exists(name) {
			names = append(names, name)
		}
	}
	return names
}

func (s *Server) baseURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimSuffix(s.opts.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
