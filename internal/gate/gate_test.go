package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-autosync/internal/store"
	"github.com/MimeLyc/subtitle-autosync/internal/subtitle"
)

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	artifacts, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return artifacts
}

func TestFetch_StoreHitReturnsImmediately(t *testing.T) {
	artifacts := newTestStore(t)
	require.NoError(t, artifacts.Put(store.Artifact{CacheKey: "tt0111161", Variant: "v1"}, []byte("payload")))

	g := New(artifacts, 10*time.Millisecond, time.Second)

	start := time.Now()
	payload, real := g.Fetch(context.Background(), "tt0111161.v1.srt", 5*time.Second)
	assert.True(t, real)
	assert.Equal(t, []byte("payload"), payload)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "hit must not wait out the timeout")
}

func TestFetch_TimeoutServesPlaceholder(t *testing.T) {
	g := New(newTestStore(t), 10*time.Millisecond, time.Second)

	payload, real := g.Fetch(context.Background(), "tt0000001.v1.srt", 50*time.Millisecond)
	assert.False(t, real)

	doc, err := subtitle.DecodeBytes(payload)
	require.NoError(t, err, "placeholder must be a decodable subtitle document")
	assert.Len(t, doc.Cues, 2)
	assert.Contains(t, doc.Cues[0].Text, "still being prepared")
}

func TestFetch_ArtifactArrivingDuringPollIsServed(t *testing.T) {
	artifacts := newTestStore(t)
	g := New(artifacts, 10*time.Millisecond, 5*time.Second)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_ = artifacts.Put(store.Artifact{CacheKey: "tt0137523", Variant: "v1"}, []byte("real subtitle"))
	}()

	payload, real := g.Fetch(context.Background(), "tt0137523.v1.srt", 2*time.Second)
	assert.True(t, real)
	assert.Equal(t, []byte("real subtitle"), payload)
}

func TestFetch_ShortTimeoutGetsPlaceholderWhileArtifactStillLands(t *testing.T) {
	artifacts := newTestStore(t)
	g := New(artifacts, 10*time.Millisecond, 5*time.Second)

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = artifacts.Put(store.Artifact{CacheKey: "tt0068646", Variant: "v1"}, []byte("real subtitle"))
	}()

	_, real := g.Fetch(context.Background(), "tt0068646.v1.srt", 30*time.Millisecond)
	assert.False(t, real, "impatient caller gets the placeholder")

	// a later retry observes the real artifact
	require.Eventually(t, func() bool {
		payload, ok := g.Fetch(context.Background(), "tt0068646.v1.srt", 20*time.Millisecond)
		return ok && string(payload) == "real subtitle"
	}, 2*time.Second, 25*time.Millisecond)
}

func TestFetch_ConcurrentWaitersAllGetTheArtifact(t *testing.T) {
	artifacts := newTestStore(t)
	g := New(artifacts, 10*time.Millisecond, 5*time.Second)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = artifacts.Put(store.Artifact{CacheKey: "tt0109830", Variant: "v1"}, []byte("shared"))
	}()

	results := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, real := g.Fetch(context.Background(), "tt0109830.v1.srt", 2*time.Second)
			results <- real
		}()
	}
	for i := 0; i < 5; i++ {
		assert.True(t, <-results)
	}
}

func TestFetch_CancelledContextServesPlaceholder(t *testing.T) {
	g := New(newTestStore(t), 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, real := g.Fetch(ctx, "tt0110912.v1.srt", 5*time.Second)
	assert.False(t, real)
}

func TestPlaceholder_IsNeverPersisted(t *testing.T) {
	artifacts := newTestStore(t)
	g := New(artifacts, 10*time.Millisecond, 200*time.Millisecond)

	_, real := g.Fetch(context.Background(), "tt0120737.v1.srt", 20*time.Millisecond)
	assert.False(t, real)

	_, err := artifacts.Get("tt0120737.v1.srt")
	assert.Error(t, err, "placeholder must not land in the store")
}
