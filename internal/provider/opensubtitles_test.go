package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenSubtitles {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenSubtitles(OpenSubtitlesConfig{
		APIKey: "test-key",
		APIURL: server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestNewOpenSubtitles_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenSubtitles(OpenSubtitlesConfig{})
	require.Error(t, err)
}

func TestSearch_BuildsQueryAndDecodesCatalog(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total_count": 2,
			"data": []map[string]any{
				{
					"attributes": map[string]any{
						"release":        "Movie.2020.WEB-DL",
						"download_count": 900,
						"files": []map[string]any{
							{"file_id": 101, "file_name": "Movie.2020.WEB-DL.srt"},
						},
					},
				},
				{
					"attributes": map[string]any{
						"release":        "Movie.2020.BluRay",
						"download_count": 500,
						"files": []map[string]any{
							{"file_id": 102, "file_name": ""},
						},
					},
				},
			},
		})
	})

	refs, err := client.Search(context.Background(), SearchCriteria{
		MediaID:  "tt0137523",
		Season:   1,
		Episode:  5,
		Language: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "0137523", gotQuery["imdb_id"])
	assert.Equal(t, "en", gotQuery["languages"])
	assert.Equal(t, "download_count", gotQuery["order_by"])
	assert.Equal(t, "1", gotQuery["season_number"])
	assert.Equal(t, "5", gotQuery["episode_number"])

	require.Len(t, refs, 2)
	assert.Equal(t, "101", refs[0].Locator)
	assert.Equal(t, "Movie.2020.WEB-DL.srt", refs[0].Name)
	assert.Equal(t, 900, refs[0].Downloads)
	assert.Equal(t, ProvenanceGeneric, refs[0].Provenance)
	assert.Equal(t, "Movie.2020.BluRay", refs[1].Name, "release fills in for a blank file name")
}

func TestSearch_FingerprintMatchIsTagged(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8e245d9679d31e12", r.URL.Query().Get("moviehash"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"attributes": map[string]any{
						"moviehash_match": true,
						"files":           []map[string]any{{"file_id": 7}},
					},
				},
			},
		})
	})

	refs, err := client.Search(context.Background(), SearchCriteria{
		MediaID:     "tt0137523",
		Language:    "en",
		Fingerprint: "8e245d9679d31e12",
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, ProvenanceFingerprint, refs[0].Provenance)
}

func TestSearch_EntriesWithoutFilesAreDropped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"attributes": map[string]any{"release": "no files"}},
				{"attributes": map[string]any{"files": []map[string]any{{"file_id": 0}}}},
				{"attributes": map[string]any{"files": []map[string]any{{"file_id": 33}}}},
			},
		})
	})

	refs, err := client.Search(context.Background(), SearchCriteria{MediaID: "tt1", Language: "en"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "33", refs[0].Locator)
}

func TestSearch_GarbageBodyIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	})

	_, err := client.Search(context.Background(), SearchCriteria{MediaID: "tt1", Language: "en"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch_ServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), SearchCriteria{MediaID: "tt1", Language: "en"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/download", r.URL.Path)
		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(42), body["file_id"])
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "https://dl.example.com/42.srt"})
	})

	link, err := client.FetchLink(context.Background(), Reference{Locator: "42"})
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example.com/42.srt", link)
}

func TestFetchLink_BadLocator(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	_, err := client.FetchLink(context.Background(), Reference{Locator: "not-a-number"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestFetchLink_EmptyLinkIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := client.FetchLink(context.Background(), Reference{Locator: "42"})
	require.ErrorIs(t, err, ErrUnavailable)
}
