package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InteractionStatus is the outcome of one question/answer cycle.
type InteractionStatus string

const (
	InteractionStatusAnswered InteractionStatus = "answered"
	InteractionStatusFailed   InteractionStatus = "failed"
)

// Interaction is one persisted question/answer cycle.
type Interaction struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	RequestID        string            `json:"request_id" db:"request_id"`
	Question         string            `json:"question" db:"question"`
	Answer           *string           `json:"answer,omitempty" db:"answer"`
	Sources          json.RawMessage   `json:"sources" db:"sources"` // JSONB array of source identifiers
	ContextChunks    int               `json:"context_chunks" db:"context_chunks"`
	Model            string            `json:"model" db:"model"`
	PromptTokens     int               `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens" db:"completion_tokens"`
	LatencyMs        int               `json:"latency_ms" db:"latency_ms"`
	Status           InteractionStatus `json:"status" db:"status"`
	ErrorType        *string           `json:"error_type,omitempty" db:"error_type"`
	ErrorMessage     *string           `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Interaction model
func (Interaction) TableName() string {
	return "interactions"
}

// NewInteraction creates an interaction for question. It starts out
// answered with no sources.
func NewInteraction(id uuid.UUID, question string) *Interaction {
	return &Interaction{
		ID:        id,
		Question:  question,
		Sources:   json.RawMessage("[]"),
		Status:    InteractionStatusAnswered,
		CreatedAt: time.Now(),
	}
}

// WithRequest sets the correlating request ID
func (i *Interaction) WithRequest(requestID string) *Interaction {
	i.RequestID = requestID
	return i
}

// WithAnswer sets the answer text and its sources
func (i *Interaction) WithAnswer(answer string, sources []string) *Interaction {
	i.Answer = &answer
	if sources == nil {
		sources = []string{}
	}
	if data, err := json.Marshal(sources); err == nil {
		i.Sources = data
	}
	return i
}

// WithContext sets how many chunks were handed to the model
func (i *Interaction) WithContext(chunks int) *Interaction {
	i.ContextChunks = chunks
	return i
}

// WithUsage sets generation model usage and end-to-end latency
func (i *Interaction) WithUsage(model string, promptTokens, completionTokens, latencyMs int) *Interaction {
	i.Model = model
	i.PromptTokens = promptTokens
	i.CompletionTokens = completionTokens
	i.LatencyMs = latencyMs
	return i
}

// WithError marks the interaction as failed
func (i *Interaction) WithError(errorType, message string) *Interaction {
	i.Status = InteractionStatusFailed
	i.ErrorType = &errorType
	i.ErrorMessage = &message
	return i
}

// SourceList decodes Sources. Malformed data yields an empty list.
func (i *Interaction) SourceList() []string {
	out := []string{}
	if len(i.Sources) == 0 {
		return out
	}
	if err := json.Unmarshal(i.Sources, &out); err != nil {
		return []string{}
	}
	return out
}
