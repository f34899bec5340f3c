// Package tokenizer counts tokens the way the generation model does, so
// the retrieval context can be bounded before a completion is requested.
package tokenizer

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Encodings come from the BPE files embedded in tiktoken-go-loader, so
// constructing a Counter never reaches the network.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// DefaultEncoding is used when neither an encoding nor a model name resolves.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens using a tiktoken encoding.
type Counter struct {
	encodingName string
	tke          *tiktoken.Tiktoken
}

// New resolves modelOrEncoding first as an encoding name, then as a model
// name, and falls back to DefaultEncoding.
func New(modelOrEncoding string) (*Counter, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = DefaultEncoding
	}

	if tke, err := tiktoken.GetEncoding(modelOrEncoding); err == nil {
		return &Counter{encodingName: modelOrEncoding, tke: tke}, nil
	}

	if tke, err := tiktoken.EncodingForModel(modelOrEncoding); err == nil {
		return &Counter{encodingName: encodingNameForModel(modelOrEncoding), tke: tke}, nil
	}

	tke, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get default encoding %q: %w", DefaultEncoding, err)
	}
	return &Counter{encodingName: DefaultEncoding, tke: tke}, nil
}

// CountTokens returns the number of tokens in text.
func (c *Counter) CountTokens(_ context.Context, text string) (int, error) {
	if c.tke == nil {
		return 0, fmt.Errorf("tiktoken encoder is not initialized for encoding %s", c.encodingName)
	}
	return len(c.tke.Encode(text, nil, nil)), nil
}

// Encoding returns the name of the encoding in use.
func (c *Counter) Encoding() string {
	return c.encodingName
}

// tiktoken-go does not expose the resolved encoding name.
var modelEncodings = map[string]string{
	"gpt-4":             "cl100k_base",
	"gpt-4-turbo":       "cl100k_base",
	"gpt-4o":            "o200k_base",
	"gpt-4o-mini":       "o200k_base",
	"gpt-3.5-turbo":     "cl100k_base",
	"gpt-3.5-turbo-16k": "cl100k_base",
	"text-davinci-003":  "p50k_base",
	"text-davinci-002":  "p50k_base",

	"text-embedding-ada-002": "cl100k_base",
}

func encodingNameForModel(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}
	return DefaultEncoding
}
