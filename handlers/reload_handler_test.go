package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/vectorstore"
	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/utils"
)

type fakeReloader struct {
	store *vectorstore.Store
	err   error
}

func (f *fakeReloader) ReloadStore(context.Context) (*vectorstore.Store, error) {
	return f.store, f.err
}

func loadTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "docs.index")
	storePath := filepath.Join(dir, "store.json")
	manifest := vectorstore.Manifest{
		EmbeddingModel: "text-embedding-ada-002",
		Chunks: []vectorstore.ChunkRecord{
			{ID: "c0", Text: "Plugin Name: Weather", Source: "Data/plugins.csv"},
			{ID: "c1", Text: "Plugin Name: Travel", Source: "Data/travel.csv"},
		},
	}
	require.NoError(t, vectorstore.Write(indexPath, storePath, manifest, [][]float32{{1, 0}, {0, 1}}))
	store, err := vectorstore.Load(indexPath, storePath)
	require.NoError(t, err)
	return store
}

func TestHandleReload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := NewReloadHandler(&fakeReloader{store: loadTestStore(t)}, zap.NewNop())
		w := httptest.NewRecorder()

		h.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response ReloadResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, ReloadResponse{
			Status:         "reloaded",
			Chunks:         2,
			Dim:            2,
			EmbeddingModel: "text-embedding-ada-002",
		}, response)
	})

	t.Run("load failure", func(t *testing.T) {
		h := NewReloadHandler(&fakeReloader{err: services.NewStoreLoadError(errors.New("bad magic"))}, zap.NewNop())
		w := httptest.NewRecorder()

		h.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "store_unavailable", response.Error)
	})
}
