package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/observability"
	"github.com/upb/ragqa/internal/vectorstore"
	"github.com/upb/ragqa/utils"
)

// StoreReloader swaps in freshly loaded store artifacts
type StoreReloader interface {
	ReloadStore(ctx context.Context) (*vectorstore.Store, error)
}

// ReloadResponse is the success body of POST /admin/reload
type ReloadResponse struct {
	Status         string `json:"status"`
	Chunks         int    `json:"chunks"`
	Dim            int    `json:"dim"`
	EmbeddingModel string `json:"embedding_model"`
}

// ReloadHandler handles store reloads
type ReloadHandler struct {
	reloader StoreReloader
	logger   *zap.Logger
}

// NewReloadHandler creates a new ReloadHandler
func NewReloadHandler(reloader StoreReloader, logger *zap.Logger) *ReloadHandler {
	return &ReloadHandler{reloader: reloader, logger: logger}
}

// HandleReload handles POST /admin/reload
func (h *ReloadHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	logger := observability.WithRequestID(r.Context(), h.logger)

	store, err := h.reloader.ReloadStore(r.Context())
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, ReloadResponse{
		Status:         "reloaded",
		Chunks:         store.Len(),
		Dim:            store.Dim(),
		EmbeddingModel: store.EmbeddingModel(),
	}); err != nil {
		logger.Error("failed to write reload response", zap.Error(err))
	}
}
