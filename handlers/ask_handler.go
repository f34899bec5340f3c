package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/observability"
	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/services/qa"
	"github.com/upb/ragqa/utils"
)

// AskRequest is the body of POST /ask. History is optional and capped at
// six earlier turns.
type AskRequest struct {
	Query   string        `json:"query" validate:"notblank"`
	History []ChatMessage `json:"history,omitempty" validate:"omitempty,max=6,dive"`
}

// ChatMessage is one earlier turn of the conversation
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// AskResponse is the success body of POST /ask
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AskService answers questions
type AskService interface {
	Ask(ctx context.Context, req qa.AskRequest) (*qa.AskResponse, error)
}

// AskHandler handles question answering requests
type AskHandler struct {
	service AskService
	logger  *zap.Logger
}

// NewAskHandler creates a new AskHandler
func NewAskHandler(service AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /ask
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.WithRequestID(ctx, h.logger)

	var req AskRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		logger.Debug("rejected ask request", zap.Error(err))
		HandleValidationError(w, err, logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		logger.Debug("rejected ask request", zap.Error(err))
		HandleValidationError(w, err, logger)
		return
	}

	resp, err := h.service.Ask(ctx, qa.AskRequest{
		Question:  req.Query,
		History:   toHistory(req.History),
		RequestID: middleware.GetReqID(ctx),
	})
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []string{}
	}
	w.Header().Set("X-Interaction-ID", resp.InteractionID.String())
	if err := utils.WriteOK(w, AskResponse{Answer: resp.Answer, Sources: sources}); err != nil {
		logger.Error("failed to write ask response", zap.Error(err))
	}
}

func toHistory(msgs []ChatMessage) []rag.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]rag.Message, len(msgs))
	for i, m := range msgs {
		out[i] = rag.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
