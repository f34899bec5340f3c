package qa

import (
	"time"

	"github.com/google/uuid"

	"github.com/upb/ragqa/internal/rag"
)

// AskRequest is one question from a front door
type AskRequest struct {
	Question string
	// History holds earlier turns, oldest first. Retrieval ignores it.
	History []rag.Message

	// Request metadata
	RequestID string
}

// AskResponse is the outcome of a successful Ask
type AskResponse struct {
	Answer  string
	Sources []string

	InteractionID uuid.UUID
	ContextChunks int
	LatencyMs     int
}

// pipelineContext carries state between the steps of one Ask
type pipelineContext struct {
	Request       AskRequest
	InteractionID uuid.UUID
	StartTime     time.Time
	Retrieved     rag.RetrievalResult
	Answer        *rag.AnswerResult
}
