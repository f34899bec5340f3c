package providers

import (
	"context"
	"errors"
	"time"
)

// Generator is the generation-model capability used by the answer
// synthesizer.
type Generator interface {
	// Name returns the provider name (e.g., "openai")
	Name() string

	// Generate sends a system prompt, optional prior turns and the user
	// prompt to the model and returns its completion.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single generation call.
type GenerateRequest struct {
	// System is the fully rendered system instruction
	System string `json:"system"`

	// History holds earlier conversation turns, oldest first
	History []Message `json:"history,omitempty"`

	// User is the latest user prompt
	User string `json:"user"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// GenerateResponse is the model's answer to a GenerateRequest.
type GenerateResponse struct {
	// Text is the completion content of the first choice
	Text string `json:"text"`

	// FinishReason indicates why the completion finished
	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`

	// Model that produced the completion
	Model string `json:"model"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Latency of the request
	Latency time.Duration `json:"latency"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout for requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// Model used for chat completions
	Model string

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int
}

// DefaultProviderConfig returns the generation settings of the plugin QA bot
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		Model:       "gpt-3.5-turbo",
		Temperature: 0,
		MaxTokens:   256,
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
