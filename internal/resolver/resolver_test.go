package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-autosync/internal/provider"
)

// fakeProvider replays canned results and records the criteria it saw.
type fakeProvider struct {
	fingerprintHits []provider.Reference
	catalogHits     []provider.Reference
	unavailable     bool
	searches        []provider.SearchCriteria
}

func (f *fakeProvider) Search(_ context.Context, criteria provider.SearchCriteria) ([]provider.Reference, error) {
	f.searches = append(f.searches, criteria)
	if f.unavailable {
		return nil, provider.ErrUnavailable
	}
	if criteria.Fingerprint != "" {
		return f.fingerprintHits, nil
	}
	return f.catalogHits, nil
}

func (f *fakeProvider) FetchLink(_ context.Context, ref provider.Reference) (string, error) {
	return "http://example.test/" + ref.Locator, nil
}

func catalog(names ...string) []provider.Reference {
	ret := make([]provider.Reference, 0, len(names))
	for i, name := range names {
		ret = append(ret, provider.Reference{
			Provenance: provider.ProvenanceGeneric,
			Locator:    name,
			Name:       name,
			Downloads:  1000 - i,
		})
	}
	return ret
}

func TestResolve_FingerprintBeatsCatalogPopularity(t *testing.T) {
	src := &fakeProvider{
		fingerprintHits: []provider.Reference{
			{Provenance: provider.ProvenanceGeneric, Locator: "popular", Downloads: 99999},
			{Provenance: provider.ProvenanceFingerprint, Locator: "exact", Downloads: 3},
		},
		catalogHits: catalog("popular.WEB-DL.srt"),
	}
	r := New(src, 3)

	refs, err := r.Resolve(context.Background(), Request{
		MediaID:     "tt0111161",
		Language:    "en",
		Fingerprint: "8e245d9679d31e12",
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, provider.ProvenanceFingerprint, refs[0].Provenance)
	assert.Equal(t, "exact", refs[0].Locator)
}

func TestResolve_FallsBackToCatalogWhenFingerprintMisses(t *testing.T) {
	src := &fakeProvider{
		catalogHits: catalog("a.WEB-DL.srt", "b.BluRay.srt"),
	}
	r := New(src, 3)

	refs, err := r.Resolve(context.Background(), Request{
		MediaID:     "tt0111161",
		Language:    "en",
		Fingerprint: "deadbeef",
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "a.WEB-DL.srt", refs[0].Locator, "provider popularity order is preserved")
	require.Len(t, src.searches, 2)
	assert.Equal(t, "deadbeef", src.searches[0].Fingerprint)
	assert.Empty(t, src.searches[1].Fingerprint)
}

func TestResolve_ReleaseHintPromotesMatchingCandidate(t *testing.T) {
	src := &fakeProvider{
		catalogHits: catalog("Movie.2020.HDTV.srt", "Movie.2020.WEB-DL.srt", "Movie.2020.BluRay.srt"),
	}
	r := New(src, 3)

	refs, err := r.Resolve(context.Background(), Request{
		MediaID:      "tt0111161",
		Language:     "en",
		FilenameHint: "Movie.2020.1080p.WEB-DL.x264.mkv",
	})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "Movie.2020.WEB-DL.srt", refs[0].Locator)
	assert.Equal(t, provider.ProvenanceRelease, refs[0].Provenance)
	assert.Equal(t, "Movie.2020.HDTV.srt", refs[1].Locator)
}

func TestResolve_EmptyIsNotAnError(t *testing.T) {
	r := New(&fakeProvider{}, 3)

	refs, err := r.Resolve(context.Background(), Request{MediaID: "tt0111161", Language: "en"})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestResolve_ProviderUnavailablePassesThrough(t *testing.T) {
	r := New(&fakeProvider{unavailable: true}, 3)

	_, err := r.Resolve(context.Background(), Request{MediaID: "tt0111161", Language: "en"})
	require.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestResolve_CapsReferences(t *testing.T) {
	src := &fakeProvider{
		catalogHits: catalog("a", "b", "c", "d", "e"),
	}
	r := New(src, 2)

	refs, err := r.Resolve(context.Background(), Request{MediaID: "tt0111161", Language: "en"})
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestResolveVariants_OneRepresentativePerCategory(t *testing.T) {
	src := &fakeProvider{
		catalogHits: catalog(
			"Movie.HDTV.x264.srt",
			"Movie.720p.HDTV.srt", // second hdtv, dropped
			"Movie.WEB-DL.srt",
			"Movie.BluRay.srt",
			"Movie.NoKeywords.srt",
		),
	}
	r := New(src, 3)

	refs, err := r.ResolveVariants(context.Background(), Request{MediaID: "tt0111161", Language: "en"})
	require.NoError(t, err)
	require.Len(t, refs, 3)

	// fixed category priority: web, bluray, hdtv
	assert.Equal(t, "Movie.WEB-DL.srt", refs[0].Locator)
	assert.Equal(t, "Movie.BluRay.srt", refs[1].Locator)
	assert.Equal(t, "Movie.HDTV.x264.srt", refs[2].Locator)
}

func TestResolveVariants_LeftoversFillRemainingSlots(t *testing.T) {
	src := &fakeProvider{
		catalogHits: catalog("Movie.WEB-DL.srt", "Movie.raw1.srt", "Movie.raw2.srt", "Movie.raw3.srt"),
	}
	r := New(src, 3)

	refs, err := r.ResolveVariants(context.Background(), Request{MediaID: "tt0111161", Language: "en"})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "Movie.WEB-DL.srt", refs[0].Locator)
	assert.Equal(t, "Movie.raw1.srt", refs[1].Locator)
	assert.Equal(t, "Movie.raw2.srt", refs[2].Locator)
}

func TestClassifyRelease(t *testing.T) {
	tests := []struct {
		name string
		want ReleaseType
	}{
		{"Show.S01E05.1080p.WEB-DL.DDP5.1.mkv", ReleaseWeb},
		{"Show S01E05 AMZN WEBRip x264", ReleaseWeb},
		{"Movie.2019.BluRay.x264-GROUP", ReleaseBluRay},
		{"Movie_2019_BDRip_720p", ReleaseBluRay},
		{"Show.S01E05.HDTV.x264-KILLERS", ReleaseHDTV},
		{"Movie.2019.x264-GROUP", ReleaseUnknown},
		{"", ReleaseUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRelease(tt.name))
		})
	}
}
