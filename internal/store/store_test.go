package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{"movie", Key{MediaID: "tt0111161"}, "tt0111161"},
		{"episode", Key{MediaID: "tt0903747", Season: 1, Episode: 5}, "tt0903747_S01E05"},
		{"fingerprint", Key{MediaID: "tt0111161", Fingerprint: "8e245d9679d31e12"}, "tt0111161_h8e245d9679d31e12"},
		{"long fingerprint truncated", Key{MediaID: "tt1", Fingerprint: "0123456789abcdef0123"}, "tt1_h0123456789abcdef"},
		{"unsafe characters", Key{MediaID: "tt1/../x"}, "tt1____x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
		})
	}
}

func TestArtifactName_AgreesWithWritePath(t *testing.T) {
	key := Key{MediaID: "tt0111161"}
	assert.Equal(t, "tt0111161.srt", ArtifactName(key, ""))
	assert.Equal(t, "tt0111161.v1.srt", ArtifactName(key, "v1"))
}

func TestFileStore_PutIsWriteOnce(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	artifact := Artifact{CacheKey: "tt0111161", Variant: "v1"}
	require.NoError(t, fs.Put(artifact, []byte("first")))
	require.NoError(t, fs.Put(artifact, []byte("second")))

	payload, err := fs.Get("tt0111161.v1.srt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(payload))
}

func TestFileStore_AnyVariant(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	key := Key{MediaID: "tt0111161"}
	assert.False(t, fs.AnyVariant(key))

	require.NoError(t, fs.Put(Artifact{CacheKey: key.String(), Variant: "v2"}, []byte("x")))
	assert.True(t, fs.AnyVariant(key))

	// a different key stays unaffected
	assert.False(t, fs.AnyVariant(Key{MediaID: "tt0903747"}))
}

func TestFileStore_GetMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = fs.Get("tt0000001.srt")
	require.Error(t, err)
}

func TestFileStore_RecordsIndexMetadata(t *testing.T) {
	dir := t.TempDir()
	index, err := NewIndex(filepath.Join(dir, "autosync.db"))
	require.NoError(t, err)
	defer index.Close()

	fs, err := NewFileStore(dir, index)
	require.NoError(t, err)

	require.NoError(t, fs.Put(Artifact{
		CacheKey:   "tt0111161",
		Variant:    "v1",
		Provenance: "generic",
		Mode:       "align",
	}, []byte("payload")))

	listed, err := index.ListByKey("tt0111161")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "v1", listed[0].Variant)
	assert.Equal(t, "generic", listed[0].Provenance)
	assert.Equal(t, "align", listed[0].Mode)
	assert.Equal(t, len("payload"), listed[0].Bytes)
}
