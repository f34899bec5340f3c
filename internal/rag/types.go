package rag

import "strings"

// Chunk is a bounded piece of an ingested record tagged with its source.
type Chunk struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RankedChunk is a Chunk as returned by the similarity index. Only the rank
// order is meaningful downstream; Score is kept for debug output.
type RankedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// AnnotatedChunk is a Chunk whose text carries the delimiter appended by the
// retrieval orchestrator. It exists for one retrieval call only.
type AnnotatedChunk struct {
	Chunk
	delimiter string
}

// Annotate returns a new AnnotatedChunk with delimiter appended to the
// original chunk text. The metadata map is copied so the source chunk is
// never shared with downstream consumers.
func Annotate(c Chunk, delimiter string) AnnotatedChunk {
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return AnnotatedChunk{
		Chunk: Chunk{
			Text:     c.Text + delimiter,
			Source:   c.Source,
			Metadata: meta,
		},
		delimiter: delimiter,
	}
}

// Original returns the chunk text without the delimiter.
func (a AnnotatedChunk) Original() string {
	return strings.TrimSuffix(a.Text, a.delimiter)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Query is a single user turn. History is optional and only forwarded to
// the generation model; retrieval always runs on Question.
type Query struct {
	Question string
	History  []Message
}

// RetrievalResult is the ordered, token-bounded context for one question.
type RetrievalResult struct {
	Chunks []AnnotatedChunk
}

// Empty reports whether no context was retrieved.
func (r RetrievalResult) Empty() bool {
	return len(r.Chunks) == 0
}

// Sources returns the distinct chunk sources in first-seen order.
func (r RetrievalResult) Sources() []string {
	return DedupeSources(func(yield func(string)) {
		for _, c := range r.Chunks {
			yield(c.Source)
		}
	})
}

// AnswerResult is the output of one question/answer cycle.
type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`

	PromptTokens     int `json:"-"`
	CompletionTokens int `json:"-"`
}

// DedupeSources collects non-empty identifiers emitted by each, dropping
// duplicates while keeping first-seen order.
func DedupeSources(each func(yield func(string))) []string {
	seen := make(map[string]struct{})
	out := []string{}
	each(func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	return out
}
