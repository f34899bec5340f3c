package synthesis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/services/providers"
)

type fakeGenerator struct {
	text string
	err  error
	last *providers.GenerateRequest
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &providers.GenerateResponse{Text: f.text, FinishReason: "stop"}, nil
}

func testContext() rag.RetrievalResult {
	return rag.RetrievalResult{Chunks: []rag.AnnotatedChunk{
		rag.Annotate(rag.Chunk{Text: "Plugin Name: Weather", Source: "Data/plugins.csv"}, "\n=== End of Row ===\n"),
		rag.Annotate(rag.Chunk{Text: "Plugin Name: Travel", Source: "Data/travel.csv"}, "\n=== End of Row ===\n"),
	}}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantAnswer  string
		wantSources []string
	}{
		{
			name:        "no sources section",
			text:        "There are 16 popular plugins.",
			wantAnswer:  "There are 16 popular plugins.",
			wantSources: []string{},
		},
		{
			name:        "comma separated sources",
			text:        "Use Weather.\nSOURCES: Data/plugins.csv, Data/travel.csv",
			wantAnswer:  "Use Weather.",
			wantSources: []string{"Data/plugins.csv", "Data/travel.csv"},
		},
		{
			name:        "duplicates dropped",
			text:        "Answer. Sources: a.csv, b.csv,a.csv",
			wantAnswer:  "Answer.",
			wantSources: []string{"a.csv", "b.csv"},
		},
		{
			name:        "singular marker",
			text:        "Use Weather.\nSOURCE: Data/plugins.csv",
			wantAnswer:  "Use Weather.",
			wantSources: []string{"Data/plugins.csv"},
		},
		{
			name:        "text after the sources line is not a source",
			text:        "Use Weather.\nSOURCES: Data/plugins.csv\n\nLet me know if you need anything else.",
			wantAnswer:  "Use Weather.",
			wantSources: []string{"Data/plugins.csv"},
		},
		{
			name:        "path with spaces stays whole",
			text:        "Use Weather.\nSOURCES: Data/My Plugins.csv, Data/travel.csv",
			wantAnswer:  "Use Weather.",
			wantSources: []string{"Data/My Plugins.csv", "Data/travel.csv"},
		},
		{
			name:        "word ending in sources is not a marker",
			text:        "Resources: the plugin store lists 16 popular plugins.",
			wantAnswer:  "Resources: the plugin store lists 16 popular plugins.",
			wantSources: []string{},
		},
		{
			name:        "carriage return line ending",
			text:        "Use Weather.\r\nSOURCES: Data/plugins.csv\r\nThanks",
			wantAnswer:  "Use Weather.",
			wantSources: []string{"Data/plugins.csv"},
		},
		{
			name:        "empty sources section",
			text:        "I don't know.\nSOURCES:",
			wantAnswer:  "I don't know.",
			wantSources: []string{},
		},
		{
			name:        "last marker wins",
			text:        "The sources: field lists files.\nSOURCES: x.csv",
			wantAnswer:  "The sources: field lists files.",
			wantSources: []string{"x.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, sources := ParseAnswer(tt.text)
			assert.Equal(t, tt.wantAnswer, answer)
			assert.Equal(t, tt.wantSources, sources)
		})
	}
}

func TestFormatContext(t *testing.T) {
	got := FormatContext(testContext())

	want := "Content: Plugin Name: Weather\n=== End of Row ===\n\nSource: Data/plugins.csv" +
		"\n\n" +
		"Content: Plugin Name: Travel\n=== End of Row ===\n\nSource: Data/travel.csv"
	assert.Equal(t, want, got)
	assert.Equal(t, "", FormatContext(rag.RetrievalResult{}))
}

func TestSynthesizer_Synthesize(t *testing.T) {
	gen := &fakeGenerator{text: "Weather gives forecasts.\nSOURCES: Data/plugins.csv"}
	s := NewSynthesizer(gen, zap.NewNop(), Options{})

	history := []rag.Message{
		{Role: rag.RoleUser, Content: "hi"},
		{Role: rag.RoleAssistant, Content: "hello"},
	}
	result, err := s.Synthesize(context.Background(), "Which plugin gives forecasts?", testContext(), history)
	require.NoError(t, err)

	assert.Equal(t, "Weather gives forecasts.", result.Answer)
	assert.Equal(t, []string{"Data/plugins.csv"}, result.Sources)

	require.NotNil(t, gen.last)
	assert.Equal(t, "Which plugin gives forecasts?", gen.last.User)
	assert.True(t, strings.HasPrefix(gen.last.System, "You are an AI assitant"))
	assert.Contains(t, gen.last.System, "Content: Plugin Name: Weather")
	assert.NotContains(t, gen.last.System, SummariesPlaceholder)
	assert.False(t, strings.HasSuffix(gen.last.System, `""`))
	assert.Equal(t, []providers.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, gen.last.History)
}

func TestSynthesizer_EmptyContext(t *testing.T) {
	gen := &fakeGenerator{text: "I don't know"}
	s := NewSynthesizer(gen, zap.NewNop(), Options{})

	result, err := s.Synthesize(context.Background(), "What is the capital of Mars?", rag.RetrievalResult{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "I don't know", result.Answer)
	assert.Empty(t, result.Sources)
	assert.True(t, strings.HasSuffix(gen.last.System, "----------------\n"))
	assert.Nil(t, gen.last.History)
}

func TestSynthesizer_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generator error", &fakeGenerator{err: providers.NewProviderError("fake", "HTTP_ERROR", "boom", 502, true, nil)}},
		{"empty completion", &fakeGenerator{text: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(tt.gen, zap.NewNop(), Options{})

			result, err := s.Synthesize(context.Background(), "q", testContext(), nil)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, services.IsGenerationError(err))
		})
	}
}

func TestSynthesizer_GeneratorErrorIsWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	s := NewSynthesizer(&fakeGenerator{err: cause}, zap.NewNop(), Options{})

	_, err := s.Synthesize(context.Background(), "q", testContext(), nil)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fake", services.GetErrorDetails(err)["provider"])
}

func TestSynthesizer_CustomPrompt(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	s := NewSynthesizer(gen, zap.NewNop(), Options{SystemPrompt: "Answer briefly.\n{summaries}"})

	_, err := s.Synthesize(context.Background(), "q", testContext(), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gen.last.System, "Answer briefly.\nContent: "))
}

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("Be terse.\n{summaries}"), 0o644))
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("no placeholder"), 0o644))

	tmpl, err := LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, tmpl)

	tmpl, err = LoadSystemPrompt(good)
	require.NoError(t, err)
	assert.Equal(t, "Be terse.\n{summaries}", tmpl)

	_, err = LoadSystemPrompt(bad)
	assert.ErrorContains(t, err, "placeholder")

	_, err = LoadSystemPrompt(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
