// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package ragprep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

const (
	pdfParser = "pdf_pymupdf4llm"
	// pdfScratchDirName is created inside the request's output directory.
	pdfScratchDirName = "pdf_pymupdf_temp_raw_images"
)

var errEmptyPDF = errors.New("Failed to extract PDF content")

func init() {
	api.DisableConfigDir()
}

// pdfDocument is what a text backend returns for one file.
type pdfDocument struct {
	// Pages holds the Markdown of each page, in order.
	Pages []string
	Info  map[string]string
}

// pdfImageFile matches the page number in names written by pdfcpu,
// e.g. report_3_Im0.png or report_page_3_Im0.png.
var pdfImageFile = regexp.MustCompile(`_(?:page_)?0*(\d+)_[^_]+$`)

// PDFProcessor extracts PDF text as Markdown and relocates embedded images.
type PDFProcessor struct {
	read          func(path string) (*pdfDocument, error)
	extractImages func(path, dir string) error
}

// NewPDFProcessor creates a new PDFProcessor.
func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{read: readPDF, extractImages: pdfcpuExtractImages}
}

func (p *PDFProcessor) Name() string { return "pdf" }

func (p *PDFProcessor) SupportedExtensions() []string { return []string{".pdf"} }

func (p *PDFProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func (p *PDFProcessor) Process(_ context.Context, req *Request) *Result {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": pdfParser})
	scratch := filepath.Join(req.OutputDir, pdfScratchDirName)
	defer removeAllRetry(scratch, log)

	doc, err := p.read(req.SourcePath)
	if err != nil {
		log.WithError(err).Error("PDF text extraction failed")
		return failWith(req.SourcePath, pdfParser, err)
	}

	var raws []RawImage
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return failWith(req.SourcePath, pdfParser, err)
	}
	if err := p.extractImages(req.SourcePath, scratch); err != nil {
		log.WithError(err).Warn("image extraction failed, continuing without images")
	} else if raws, err = collectPDFImages(scratch); err != nil {
		log.WithError(err).Warn("reading extracted images failed")
	}

	md := assemblePDFMarkdown(doc.Pages, raws)
	md = strings.ReplaceAll(md, ` " **;**`, `"**;**`)
	if strings.TrimSpace(md) == "" {
		return failWith(req.SourcePath, pdfParser, errEmptyPDF)
	}

	decisions, err := normalizeImages(raws, req.MediaDir, req.config().ImagePolicy(), log)
	if err != nil {
		return failWith(req.SourcePath, pdfParser, err)
	}
	md = RewriteImageRefs(md, decisions)

	meta := baseMetadata(req.SourcePath, pdfParser)
	for k, v := range doc.Info {
		meta[k] = v
	}
	meta["page_count"] = len(doc.Pages)
	meta["image_count"] = len(raws)
	return succeed(md, meta)
}

func pdfcpuExtractImages(path, dir string) error {
	return api.ExtractImagesFile(path, dir, nil, model.NewDefaultConfiguration())
}

// collectPDFImages reads every file in dir as a RawImage keyed by its
// slash-separated path.
func collectPDFImages(dir string) ([]RawImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var raws []RawImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		raws = append(raws, RawImage{
			Placeholder: filepath.ToSlash(full),
			Data:        data,
			Filename:    e.Name(),
		})
	}
	return raws, nil
}

// imagePage returns the 1-based page an extracted image came from, or 0.
func imagePage(filename string) int {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	m := pdfImageFile.FindStringSubmatch(stem)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// assemblePDFMarkdown joins pages and places an image reference after the
// text of the page each image belongs to. Images of unknown pages go last.
func assemblePDFMarkdown(pages []string, raws []RawImage) string {
	byPage := map[int][]RawImage{}
	for _, r := range raws {
		n := imagePage(r.Filename)
		if n < 1 || n > len(pages) {
			n = 0
		}
		byPage[n] = append(byPage[n], r)
	}
	for _, imgs := range byPage {
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].Filename < imgs[j].Filename })
	}

	var b strings.Builder
	writeImages := func(imgs []RawImage) {
		for _, img := range imgs {
			fmt.Fprintf(&b, "![](%s)\n\n", img.Placeholder)
		}
	}
	for i, text := range pages {
		if text = strings.TrimSpace(text); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		writeImages(byPage[i+1])
	}
	writeImages(byPage[0])
	return b.String()
}
