package ragprep

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownProcessorCopiesLocalImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "assets", "logo.png"), "png-bytes")
	writeFile(t, filepath.Join(root, "docs", "img", "chart.png"), "chart-bytes")
	src := writeFile(t, filepath.Join(root, "docs", "guide.md"), `# Guide

![Logo](../assets/logo.png)
![Chart](./img/chart.png "Sales")
![Remote](https://example.com/x.png)
![Missing](nothing.png)
<img src="img/chart.png" width="10">
`)

	req := newRequest(t, src)
	res := NewMarkdownProcessor().Process(context.Background(), req)
	require.False(t, res.Failed(), "unexpected error: %v", res.Err)

	assert.Contains(t, res.Markdown, "![Logo](media/assets_logo.png)")
	assert.Contains(t, res.Markdown, `![Chart](media/img_chart.png "Sales")`)
	assert.Contains(t, res.Markdown, "![Remote](https://example.com/x.png)")
	assert.Contains(t, res.Markdown, "![Missing](nothing.png)")
	assert.Contains(t, res.Markdown, `<img src="media/img_chart.png" width="10">`)
	assert.Equal(t, "md_custom", res.Metadata["parser"])

	data, err := os.ReadFile(filepath.Join(req.MediaDir, "assets_logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.FileExists(t, filepath.Join(req.MediaDir, "img_chart.png"))
}

func TestFlattenImagePath(t *testing.T) {
	tests := map[string]string{
		"../assets/logo.png": "assets_logo.png",
		"./a/b/c.jpg":        "a_b_c.jpg",
		`img\win.gif`:        "img_win.gif",
		"figure":             "figure.png",
	}
	for in, want := range tests {
		assert.Equal(t, want, flattenImagePath(in), in)
	}
}

func TestIsExternalRef(t *testing.T) {
	assert.True(t, isExternalRef("HTTPS://example.com/a.png"))
	assert.True(t, isExternalRef("data:image/png;base64,AAAA"))
	assert.True(t, isExternalRef("/abs/a.png"))
	assert.False(t, isExternalRef("rel/a.png"))
}
