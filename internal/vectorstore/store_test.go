package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func testManifest() Manifest {
	return Manifest{
		EmbeddingModel: "test-model",
		Chunks: []ChunkRecord{
			{ID: "c0", Text: "name: Weather", Source: "Data/plugins.csv"},
			{ID: "c1", Text: "name: Stocks", Source: "Data/plugins.csv", Metadata: map[string]string{"row": "2"}},
			{ID: "c2", Text: "name: Travel", Source: "Data/travel.csv"},
			{ID: "c3", Text: "name: Weather copy", Source: "Data/dupes.csv"},
		},
	}
}

func testVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1, 0, 0},
	}
}

func writeTestStore(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "docs.index")
	storePath := filepath.Join(dir, "store.json")
	require.NoError(t, Write(indexPath, storePath, testManifest(), testVectors()))
	return indexPath, storePath
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	indexPath, storePath := writeTestStore(t)

	s, err := Load(indexPath, storePath)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 3, s.Dim())
	assert.Equal(t, "test-model", s.EmbeddingModel())
	assert.Equal(t, []float32{0, 1, 0}, s.index.Row(1))
	assert.Equal(t, "2", s.manifest.Chunks[1].Metadata["row"])

	entries, err := os.ReadDir(filepath.Dir(indexPath))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestWrite_Validation(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "docs.index")
	storePath := filepath.Join(dir, "store.json")

	tests := []struct {
		name     string
		manifest Manifest
		vectors  [][]float32
	}{
		{"no chunks", Manifest{}, nil},
		{"count mismatch", testManifest(), testVectors()[:2]},
		{"ragged rows", testManifest(), [][]float32{{1, 0, 0}, {0, 1}, {0, 0, 1}, {1, 0, 0}}},
		{"dim mismatch", Manifest{Dim: 5, Chunks: testManifest().Chunks}, testVectors()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Write(indexPath, storePath, tt.manifest, tt.vectors))
		})
	}
}

func TestWrite_Normalized(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "docs.index")
	storePath := filepath.Join(dir, "store.json")

	m := Manifest{Normalized: true, Chunks: []ChunkRecord{{ID: "a", Text: "a"}}}
	require.NoError(t, Write(indexPath, storePath, m, [][]float32{{3, 4}}))

	ix, err := ReadIndex(indexPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, ix.Vectors[0], 1e-6)
	assert.InDelta(t, 0.8, ix.Vectors[1], 1e-6)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name      string
		corrupt   func(t *testing.T, indexPath, storePath string)
		wantStage string
	}{
		{
			name: "missing index",
			corrupt: func(t *testing.T, indexPath, _ string) {
				require.NoError(t, os.Remove(indexPath))
			},
			wantStage: StageIndex,
		},
		{
			name: "bad magic",
			corrupt: func(t *testing.T, indexPath, _ string) {
				b, err := os.ReadFile(indexPath)
				require.NoError(t, err)
				copy(b, "XXXX")
				require.NoError(t, os.WriteFile(indexPath, b, 0o644))
			},
			wantStage: StageIndex,
		},
		{
			name: "truncated index",
			corrupt: func(t *testing.T, indexPath, _ string) {
				b, err := os.ReadFile(indexPath)
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(indexPath, b[:len(b)-4], 0o644))
			},
			wantStage: StageIndex,
		},
		{
			name: "missing store",
			corrupt: func(t *testing.T, _, storePath string) {
				require.NoError(t, os.Remove(storePath))
			},
			wantStage: StageStore,
		},
		{
			name: "corrupt store",
			corrupt: func(t *testing.T, _, storePath string) {
				require.NoError(t, os.WriteFile(storePath, []byte("{not json"), 0o644))
			},
			wantStage: StageStore,
		},
		{
			name: "store from another index",
			corrupt: func(t *testing.T, _, storePath string) {
				other := filepath.Join(t.TempDir(), "other.index")
				m := Manifest{Chunks: []ChunkRecord{{ID: "x", Text: "x"}}}
				require.NoError(t, Write(other, storePath, m, [][]float32{{1, 0, 0}}))
			},
			wantStage: StageAttach,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indexPath, storePath := writeTestStore(t)
			tt.corrupt(t, indexPath, storePath)

			_, err := Load(indexPath, storePath)
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.wantStage, loadErr.Stage)
		})
	}
}

func TestStore_Search(t *testing.T) {
	indexPath, storePath := writeTestStore(t)
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"weather?": {0.9, 0.1, 0},
		"stocks?":  {0, 1, 0},
	}}

	s, err := Load(indexPath, storePath, WithEmbedder(emb), WithTopK(3))
	require.NoError(t, err)

	ranked, err := s.SearchScored(context.Background(), "weather?")
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// Rows 0 and 3 tie; row order breaks the tie.
	assert.Equal(t, "name: Weather", ranked[0].Text)
	assert.Equal(t, "name: Weather copy", ranked[1].Text)
	assert.Equal(t, "name: Stocks", ranked[2].Text)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
	assert.Greater(t, ranked[1].Score, ranked[2].Score)

	chunks, err := s.Search(context.Background(), "stocks?")
	require.NoError(t, err)
	assert.Equal(t, "Data/plugins.csv", chunks[0].Source)
	assert.Equal(t, "2", chunks[0].Metadata["row"])
}

func TestStore_SearchDefaultsTopK(t *testing.T) {
	indexPath, storePath := writeTestStore(t)
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 1, 1}}}

	s, err := Load(indexPath, storePath, WithEmbedder(emb), WithTopK(0))
	require.NoError(t, err)

	chunks, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, chunks, DefaultTopK)
}

func TestStore_SearchErrors(t *testing.T) {
	indexPath, storePath := writeTestStore(t)

	s, err := Load(indexPath, storePath)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoEmbedder)

	s, err = Load(indexPath, storePath, WithEmbedder(&fakeEmbedder{err: errors.New("api down")}))
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "q")
	assert.ErrorContains(t, err, "api down")

	s, err = Load(indexPath, storePath, WithEmbedder(&fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}))
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrVectorLengthMismatch)
}

func TestHandle(t *testing.T) {
	h := NewHandle(nil)
	assert.False(t, h.Loaded())

	_, err := h.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNotLoaded)

	indexPath, storePath := writeTestStore(t)
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {0, 0, 1}}}

	s, err := h.Reload(indexPath, storePath, WithEmbedder(emb))
	require.NoError(t, err)
	assert.True(t, h.Loaded())
	assert.Same(t, s, h.Store())

	chunks, err := h.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "name: Travel", chunks[0].Text)

	_, err = h.Reload(filepath.Join(t.TempDir(), "missing.index"), storePath)
	require.Error(t, err)
	assert.Same(t, s, h.Store(), "failed reload keeps the current store")

	prev := h.Swap(nil)
	assert.Same(t, s, prev)
	assert.False(t, h.Loaded())
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrVectorLengthMismatch)
}
