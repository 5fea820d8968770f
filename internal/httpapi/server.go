package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/subtitle-autosync/internal/gate"
	"github.com/MimeLyc/subtitle-autosync/internal/jobs"
	"github.com/MimeLyc/subtitle-autosync/internal/store"
)

// Options shapes the outward-facing behavior of the front door.
type Options struct {
	// TargetLangCode is the ISO 639-2 code advertised in descriptors, e.g. "pob".
	TargetLangCode string
	// MaxVariants is how many future artifact locations a lookup promises.
	MaxVariants int
	// FetchTimeout bounds an artifact fetch before the placeholder is served.
	FetchTimeout time.Duration
	// PublicURL overrides the request host when building artifact links.
	PublicURL string
}

func (o Options) withDefaults() Options {
	if o.TargetLangCode == "" {
		o.TargetLangCode = "pob"
	}
	if o.MaxVariants <= 0 {
		o.MaxVariants = 3
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 25 * time.Second
	}
	return o
}

type Server struct {
	coordinator *jobs.Coordinator
	gate        *gate.Gate
	artifacts   *store.FileStore
	opts        Options

	mux    *http.ServeMux
	server *http.Server
}

func NewServer(coordinator *jobs.Coordinator, g *gate.Gate, artifacts *store.FileStore, opts Options) *Server {
	s := &Server{
		coordinator: coordinator,
		gate:        g,
		artifacts:   artifacts,
		opts:        opts.withDefaults(),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/manifest.json", s.handleManifest)
	s.mux.HandleFunc("/subtitles/", s.handleLookup)
	s.mux.HandleFunc("/subs/", s.handleArtifact)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
}
