// Package gate serves artifact fetches: immediately on a store hit,
// otherwise by bounded polling until the acquisition worker delivers or the
// caller's timeout elapses, in which case a synthetic placeholder document
// is returned.
package gate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/subtitle-autosync/internal/store"
	"github.com/MimeLyc/subtitle-autosync/internal/subtitle"
	"github.com/MimeLyc/subtitle-autosync/pkg/log"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultMaxWait      = 2 * time.Minute
)

type Gate struct {
	store        *store.FileStore
	pollInterval time.Duration
	maxWait      time.Duration

	// concurrent waiters on the same artifact share one poll loop
	group singleflight.Group
}

func New(artifacts *store.FileStore, pollInterval, maxWait time.Duration) *Gate {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Gate{
		store:        artifacts,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// Fetch returns the artifact payload and whether it is the real artifact.
// When the artifact does not land within timeout, a placeholder payload is
// generated fresh for this request; placeholders are never persisted, so a
// retrying caller eventually observes the real artifact.
func (g *Gate) Fetch(ctx context.Context, name string, timeout time.Duration) ([]byte, bool) {
	if payload, err := g.store.Get(name); err == nil {
		return payload, true
	}

	ch := g.group.DoChan("wait:"+name, func() (any, error) {
		return g.poll(name)
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]byte), true
		}
		return g.Placeholder(), false
	case <-timer.C:
		log.Debug("Fetch for %s timed out after %s, serving placeholder", name, timeout)
		return g.Placeholder(), false
	case <-ctx.Done():
		return g.Placeholder(), false
	}
}

// poll checks the store at a fixed interval, bounded by maxWait so an
// abandoned wait never keeps a goroutine alive forever.
func (g *Gate) poll(name string) ([]byte, error) {
	deadline := time.Now().Add(g.maxWait)
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if payload, err := g.store.Get(name); err == nil {
			return payload, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("artifact %s did not appear within %s", name, g.maxWait)
		}
	}
	return nil, fmt.Errorf("poll loop ended unexpectedly")
}

// Placeholder builds a structurally valid document a naive subtitle
// consumer can render, carrying a human-readable "still processing" note.
func (g *Gate) Placeholder() []byte {
	doc := &subtitle.Document{
		Format: "SRT",
		Cues: []subtitle.Cue{
			{
				Index:     1,
				StartTime: 1 * time.Second,
				EndTime:   10 * time.Second,
				Text:      "Subtitle is still being prepared...",
			},
			{
				Index:     2,
				StartTime: 11 * time.Second,
				EndTime:   25 * time.Second,
				Text:      "Please reselect this subtitle in a moment.",
			},
		},
	}
	payload, err := subtitle.EncodeBytes(doc)
	if err != nil {
		// Encoding an in-memory two-cue document cannot realistically fail,
		// but never return garbage to the caller.
		return []byte("1\n00:00:01,000 --> 00:00:10,000\nSubtitle is still being prepared...\n\n")
	}
	return payload
}
