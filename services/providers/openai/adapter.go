package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/upb/ragqa/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// OpenAIAdapter implements providers.Generator on top of the official
// openai-go client.
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	defaults := providers.DefaultProviderConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(config.MaxRetries),
		option.WithRequestTimeout(config.Timeout),
	)

	return &OpenAIAdapter{
		config: config,
		client: client,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// Model returns the chat model requests are sent to
func (a *OpenAIAdapter) Model() string {
	return a.config.Model
}

// Generate performs a chat completion with the system prompt first, then the
// history, then the user prompt.
func (a *OpenAIAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if req == nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_REQUEST", "generate request is nil", 0, false, nil)
	}
	startTime := time.Now()

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.config.Model),
		Messages:    buildMessages(req),
		Temperature: openai.Float(a.config.Temperature),
		MaxTokens:   openai.Int(int64(a.config.MaxTokens)),
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.handleError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "completion returned no choices", 0, false, nil)
	}

	choice := completion.Choices[0]
	return &providers.GenerateResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        completion.Model,
		Usage: providers.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Latency: time.Since(startTime),
	}, nil
}

func buildMessages(req *providers.GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(req.System))
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.User))
	return messages
}

// handleError converts SDK errors into provider errors
func (a *OpenAIAdapter) handleError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
		return providers.NewProviderError(
			a.Name(),
			apiErr.Type,
			fmt.Sprintf("openai returned status %d", apiErr.StatusCode),
			apiErr.StatusCode,
			retryable,
			err,
		)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return providers.NewProviderError(a.Name(), "TIMEOUT", "request cancelled or timed out", 0, true, err)
	}
	return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
}
