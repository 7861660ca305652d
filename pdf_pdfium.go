//go:build !nopdfium

package ragprep

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

var (
	pdfiumPool     pdfium.Pool
	pdfiumPoolOnce sync.Once
	pdfiumPoolErr  error
)

func initPdfiumPool() {
	pdfiumPool, pdfiumPoolErr = webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
}

// pdfInfoTags maps PDF Info dictionary keys to metadata keys.
var pdfInfoTags = []struct{ tag, key string }{
	{"Title", "title"},
	{"Author", "author"},
	{"Subject", "subject"},
	{"Keywords", "keywords"},
	{"Creator", "creator"},
	{"Producer", "producer"},
	{"CreationDate", "creationDate"},
	{"ModDate", "modDate"},
}

// readPDF extracts per-page Markdown and document properties with PDFium.
// The document and the instance are released before it returns.
func readPDF(path string) (*pdfDocument, error) {
	pdfiumPoolOnce.Do(initPdfiumPool)
	if pdfiumPoolErr != nil {
		return nil, fmt.Errorf("init pdfium: %w", pdfiumPoolErr)
	}

	instance, err := pdfiumPool.GetInstance(30 * time.Second)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return nil, fmt.Errorf("get page count: %w", err)
	}

	out := &pdfDocument{Info: map[string]string{}}
	for _, t := range pdfInfoTags {
		resp, err := instance.FPDF_GetMetaText(&requests.FPDF_GetMetaText{Document: doc.Document, Tag: t.tag})
		if err == nil {
			out.Info[t.key] = resp.Value
		} else {
			out.Info[t.key] = ""
		}
	}
	for i := 0; i < count.PageCount; i++ {
		out.Pages = append(out.Pages, pdfiumPageMarkdown(instance, doc.Document, i))
	}
	return out, nil
}

func pdfiumPageMarkdown(instance pdfium.Pdfium, doc references.FPDF_DOCUMENT, index int) string {
	page := requests.Page{ByIndex: &requests.PageByIndex{Document: doc, Index: index}}
	structured, err := instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page:                   page,
		Mode:                   requests.GetPageTextStructuredModeRects,
		CollectFontInformation: true,
	})
	if err != nil || len(structured.Rects) == 0 {
		plain, err := instance.GetPageText(&requests.GetPageText{Page: page})
		if err != nil {
			return ""
		}
		return strings.TrimSpace(plain.Text)
	}

	var runs []textRun
	for _, r := range structured.Rects {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		run := textRun{
			text:   r.Text,
			left:   r.PointPosition.Left,
			top:    r.PointPosition.Top,
			bottom: r.PointPosition.Bottom,
		}
		if r.FontInformation != nil {
			run.size = r.FontInformation.Size
			run.font = r.FontInformation.Name
		}
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return ""
	}
	lines := groupLines(runs)
	return linesToMarkdown(lines, bodyFontSize(lines))
}
