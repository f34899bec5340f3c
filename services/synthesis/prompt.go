package synthesis

import (
	"fmt"
	"os"
	"strings"

	"github.com/upb/ragqa/internal/rag"
)

// SummariesPlaceholder marks where retrieved context goes in the system prompt.
const SummariesPlaceholder = "{summaries}"

// DefaultSystemPrompt instructs the model to answer questions about the
// ChatGPT Plugin Store from the supplied rows only.
const DefaultSystemPrompt = `You are an AI assitant that provides information about ChatGPT Plugins available in the Plugin Store.
You have access to data for each Plugin that includes 'Plugin Name', 'Plugin Description', 'End User Instructions', as well as 16 plugins that are ranked as Popular.
When asked questions, search for match in the 'Plugin Name' and 'Plugin Description' of all plugins.
If there are multiple plugins that may be related to the question, please include all of them in your answer
If you don't know the answer, just say that "I don't know", don't try to make up an answer.
----------------
{summaries}`

// LoadSystemPrompt reads a prompt template from path. An empty path returns
// DefaultSystemPrompt.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt %s: %w", path, err)
	}
	tmpl := string(b)
	if !strings.Contains(tmpl, SummariesPlaceholder) {
		return "", fmt.Errorf("system prompt %s has no %s placeholder", path, SummariesPlaceholder)
	}
	return tmpl, nil
}

// FormatContext renders retrieved chunks the way the prompt expects them.
func FormatContext(result rag.RetrievalResult) string {
	parts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		parts[i] = "Content: " + c.Text + "\nSource: " + c.Source
	}
	return strings.Join(parts, "\n\n")
}

// RenderSystemPrompt substitutes the formatted context into tmpl.
func RenderSystemPrompt(tmpl string, result rag.RetrievalResult) string {
	return strings.Replace(tmpl, SummariesPlaceholder, FormatContext(result), 1)
}
