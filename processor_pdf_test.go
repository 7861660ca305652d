package ragprep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPDF(t *testing.T, pages []string, images map[string][]byte, extractErr error) *PDFProcessor {
	t.Helper()
	return &PDFProcessor{
		read: func(string) (*pdfDocument, error) {
			return &pdfDocument{Pages: pages, Info: map[string]string{"title": "Stub"}}, nil
		},
		extractImages: func(_, dir string) error {
			if extractErr != nil {
				return extractErr
			}
			for name, data := range images {
				if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func TestPDFProcessorPlacesImages(t *testing.T) {
	images := map[string][]byte{
		"doc_1_Im0.png": pngBytes(t, 100, 100),
		"doc_2_Im1.png": pngBytes(t, 8, 8),
		"orphan.png":    pngBytes(t, 60, 60),
	}
	p := stubPDF(t, []string{"# Title\n\nFirst page", "Second page"}, images, nil)
	src := writeFile(t, filepath.Join(t.TempDir(), "doc.pdf"), "%PDF")
	req := newRequest(t, src)
	req.Config.ExcludeDecorative = true

	res := p.Process(context.Background(), req)
	require.False(t, res.Failed(), "unexpected error: %v", res.Err)

	md := res.Markdown
	assert.Contains(t, md, "First page\n\n![](media/doc_1_Im0.png)")
	assert.Contains(t, md, "Second page")
	assert.NotContains(t, md, "doc_2_Im1")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(md), "![](media/orphan.png)"))
	assert.Less(t, strings.Index(md, "doc_1_Im0"), strings.Index(md, "Second page"))

	assert.Equal(t, 2, res.Metadata["page_count"])
	assert.Equal(t, 3, res.Metadata["image_count"])
	assert.Equal(t, "Stub", res.Metadata["title"])
	assert.Equal(t, "pdf_pymupdf4llm", res.Metadata["parser"])

	assert.FileExists(t, filepath.Join(req.MediaDir, "doc_1_Im0.png"))
	assert.FileExists(t, filepath.Join(req.MediaDir, "orphan.png"))
	assert.NoFileExists(t, filepath.Join(req.MediaDir, "doc_2_Im1.png"))
	assert.NoDirExists(t, filepath.Join(req.OutputDir, pdfScratchDirName))
}

func TestPDFProcessorImageExtractionFailure(t *testing.T) {
	p := stubPDF(t, []string{"Only text"}, nil, errors.New("unsupported filter"))
	src := writeFile(t, filepath.Join(t.TempDir(), "doc.pdf"), "%PDF")
	res := p.Process(context.Background(), newRequest(t, src))
	require.False(t, res.Failed())
	assert.Equal(t, "Only text\n\n", res.Markdown)
	assert.Equal(t, 0, res.Metadata["image_count"])
}

func TestPDFProcessorEmpty(t *testing.T) {
	p := stubPDF(t, []string{"  ", ""}, nil, nil)
	src := writeFile(t, filepath.Join(t.TempDir(), "blank.pdf"), "%PDF")
	res := p.Process(context.Background(), newRequest(t, src))
	require.True(t, res.Failed())
	assert.Equal(t, "Failed to extract PDF content", res.Metadata["error"])
	assert.Equal(t, "pdf_pymupdf4llm", ParserOf(res.Err))
}

func TestPDFProcessorReadError(t *testing.T) {
	p := &PDFProcessor{
		read:          func(string) (*pdfDocument, error) { return nil, errors.New("not a PDF") },
		extractImages: func(_, _ string) error { return nil },
	}
	res := p.Process(context.Background(), newRequest(t, filepath.Join(t.TempDir(), "x.pdf")))
	require.True(t, res.Failed())
	assert.Equal(t, "not a PDF", res.Metadata["error"])
}

func TestImagePage(t *testing.T) {
	tests := map[string]int{
		"report_3_Im0.png":      3,
		"report_page_12_Im4.jpg": 12,
		"img_007_a.png":         7,
		"cover.png":             0,
	}
	for name, want := range tests {
		assert.Equal(t, want, imagePage(name), name)
	}
}

func TestAssemblePDFMarkdown(t *testing.T) {
	raws := []RawImage{
		{Placeholder: "p/b_1_Im1.png", Filename: "b_1_Im1.png"},
		{Placeholder: "p/a_1_Im0.png", Filename: "a_1_Im0.png"},
		{Placeholder: "p/x_9_Im0.png", Filename: "x_9_Im0.png"},
	}
	got := assemblePDFMarkdown([]string{"one", "", "three"}, raws)
	want := "one\n\n![](p/a_1_Im0.png)\n\n![](p/b_1_Im1.png)\n\nthree\n\n![](p/x_9_Im0.png)\n\n"
	assert.Equal(t, want, got)
}

func TestLinesToMarkdown(t *testing.T) {
	runs := []textRun{
		{text: "next line", left: 10, top: 636, bottom: 624, size: 12, font: "Helvetica"},
		{text: "Big Title", left: 10, top: 700, bottom: 676, size: 24, font: "Helvetica"},
		{text: "world", left: 50, top: 651, bottom: 639, size: 12, font: "Helvetica-Bold"},
		{text: "Hello ", left: 10, top: 650, bottom: 638, size: 12, font: "Helvetica"},
		{text: "Far paragraph", left: 10, top: 560, bottom: 548, size: 12, font: "Helvetica"},
	}
	lines := groupLines(runs)
	require.Len(t, lines, 4)
	body := bodyFontSize(lines)
	assert.Equal(t, 12.0, body)

	got := linesToMarkdown(lines, body)
	assert.Equal(t, "# Big Title\n\nHello **world**\nnext line\n\nFar paragraph\n", got)
}

func TestFontStyle(t *testing.T) {
	b, i, m := fontStyle("ABCDEE+Arial-BoldItalicMT")
	assert.True(t, b)
	assert.True(t, i)
	assert.False(t, m)

	_, _, m = fontStyle("CourierNewPSMT")
	assert.True(t, m)
	assert.Equal(t, "`x`", inlineMarkdown([]textRun{{text: "x ", font: "Courier"}}, 12)[:3])
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel(24, 12, false))
	assert.Equal(t, 2, headingLevel(18, 12, false))
	assert.Equal(t, 3, headingLevel(14, 12, true))
	assert.Equal(t, 4, headingLevel(14, 12, false))
	assert.Equal(t, 0, headingLevel(12, 12, true))
	assert.Equal(t, 0, headingLevel(12, 0, false))
}
