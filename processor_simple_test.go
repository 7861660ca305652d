package ragprep

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestSimpleProcessor(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		file     string
		content  string
		want     string
		parser   string
		language string
	}{
		{"plain text", "notes.txt", "hello\nworld", "hello\nworld", "txt_simple", ""},
		{"bom stripped", "bom.txt", "\xef\xbb\xbfhello", "hello", "txt_simple", ""},
		{"json pretty printed", "data.json", `{"a":[1,2]}`, "```json\n{\n  \"a\": [\n    1,\n    2\n  ]\n}\n```", "json_simple", ""},
		{"code fenced", "main.go", "package main", "```go\npackage main\n```", "code_simple", "go"},
		{"unknown extension", "readme.nfo", "plain", "plain", "txt_simple", ""},
	}
	p := NewSimpleProcessor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeFile(t, filepath.Join(dir, tt.file), tt.content)
			res := p.Process(context.Background(), newRequest(t, src))
			require.False(t, res.Failed(), "unexpected error: %v", res.Err)
			assert.Equal(t, tt.want, res.Markdown)
			assert.Equal(t, tt.parser, res.Metadata["parser"])
			assert.Equal(t, tt.file, res.Metadata["source_filename"])
			if tt.language != "" {
				assert.Equal(t, tt.language, res.Metadata["language"])
			}
		})
	}
}

func TestSimpleProcessorInvalidJSON(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "broken.json"), `{"a": }`)
	res := NewSimpleProcessor().Process(context.Background(), newRequest(t, src))

	require.NoError(t, res.Err)
	assert.Equal(t, "```\n{\"a\": }\n```", res.Markdown)
	assert.NotEmpty(t, res.Metadata["error"])
	assert.Equal(t, "json_simple", res.Metadata["parser"])
}

func TestSimpleProcessorLegacyEncoding(t *testing.T) {
	data, err := charmap.Windows1252.NewEncoder().String("Café au lait, déjà vu, naïve façade")
	require.NoError(t, err)
	src := writeFile(t, filepath.Join(t.TempDir(), "latin.txt"), data)

	res := NewSimpleProcessor().Process(context.Background(), newRequest(t, src))
	require.False(t, res.Failed())
	assert.NotContains(t, res.Markdown, "�")
	assert.Contains(t, res.Markdown, "Caf")
}

func TestSimpleProcessorMissingFile(t *testing.T) {
	res := NewSimpleProcessor().Process(context.Background(), newRequest(t, filepath.Join(t.TempDir(), "gone.txt")))
	require.True(t, res.Failed())
	assert.Empty(t, res.Markdown)
	assert.Equal(t, "txt_simple", ParserOf(res.Err))
	assert.NotEmpty(t, res.Metadata["error"])
}
