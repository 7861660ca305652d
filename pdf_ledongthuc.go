//go:build nopdfium

package ragprep

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfInfoKeys = []struct{ tag, key string }{
	{"Title", "title"},
	{"Author", "author"},
	{"Subject", "subject"},
	{"Keywords", "keywords"},
	{"Creator", "creator"},
	{"Producer", "producer"},
	{"CreationDate", "creationDate"},
	{"ModDate", "modDate"},
}

// readPDF extracts page text row by row with the pure-Go reader.
func readPDF(path string) (*pdfDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	out := &pdfDocument{Info: map[string]string{}}
	info := r.Trailer().Key("Info")
	for _, k := range pdfInfoKeys {
		out.Info[k.key] = info.Key(k.tag).Text()
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			out.Pages = append(out.Pages, "")
			continue
		}
		out.Pages = append(out.Pages, pageRows(page))
	}
	return out, nil
}

// pageRows joins the words of each text row, treating empty words as gaps.
func pageRows(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, row := range rows {
		var line strings.Builder
		gap := false
		for _, w := range row.Content {
			if w.S == "" {
				gap = true
				continue
			}
			if gap && line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
				line.WriteString(" ")
			}
			line.WriteString(w.S)
			gap = false
		}
		if text := strings.TrimSpace(line.String()); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	return b.String()
}
