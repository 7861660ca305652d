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
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholasgasior/ragprep-go/internal/pandoc"
)

const (
	pandocParser = "pandoc"
	htmlParser   = "html_to_markdown"
)

var errPandocNoMarkdown = errors.New("Pandoc conversion failed (MD not generated)")

// pandocFormats are the inputs handed to pandoc when no processor claims them.
var pandocFormats = []string{
	".docx", ".odt", ".epub", ".html", ".htm", ".rtf",
	".tex", ".xml", ".csv", ".tsv", ".opml", ".org",
}

// DocumentTool is an external document converter.
type DocumentTool interface {
	Available() bool
	Convert(ctx context.Context, opts pandoc.Options) error
}

// PandocProcessor converts office, markup and e-book formats with pandoc.
// HTML still converts in-process when pandoc is missing.
type PandocProcessor struct {
	tool DocumentTool
	// Client fetches remote images referenced by HTML inputs.
	Client *http.Client
}

// NewPandocProcessor creates a PandocProcessor around tool.
func NewPandocProcessor(tool DocumentTool) *PandocProcessor {
	return &PandocProcessor{tool: tool, Client: http.DefaultClient}
}

func (p *PandocProcessor) Name() string { return "pandoc" }

func (p *PandocProcessor) SupportedExtensions() []string {
	return []string{".docx", ".doc", ".rtf", ".odt", ".epub", ".html", ".htm", ".org", ".tex", ".wiki"}
}

func (p *PandocProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

// Supports reports whether pandoc is installed and handles the format.
func (p *PandocProcessor) Supports(path string) bool {
	if isCommonTempFile(path) || !slices.Contains(pandocFormats, extensionOf(path)) {
		return false
	}
	return p.tool != nil && p.tool.Available()
}

func isHTMLExt(ext string) bool { return ext == ".html" || ext == ".htm" }

func (p *PandocProcessor) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *PandocProcessor) Process(ctx context.Context, req *Request) *Result {
	ext := extensionOf(req.SourcePath)
	if p.tool == nil || !p.tool.Available() {
		if isHTMLExt(ext) {
			return p.convertHTML(ctx, req)
		}
		req.log().WithField("file", req.SourcePath).Error("pandoc is not available")
		return failWith(req.SourcePath, pandocParser, ErrToolUnavailable)
	}

	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": pandocParser})
	log.Info("processing with pandoc")

	input := req.SourcePath
	if isHTMLExt(ext) {
		input = prefetchHTMLImages(ctx, req, p.client(), log)
		if input != req.SourcePath {
			defer func() {
				if err := os.Remove(input); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.WithError(err).Warn("failed to clean up modified HTML")
				}
			}()
		}
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return failWith(req.SourcePath, pandocParser, err)
	}

	stem := strings.TrimSuffix(filepath.Base(req.SourcePath), filepath.Ext(req.SourcePath))
	opts := pandoc.Options{
		Input:      abs,
		Output:     stem + ".pandoc.md",
		Dir:        req.OutputDir,
		TOC:        req.config().PandocTOC,
		Standalone: true,
	}
	if err := p.tool.Convert(ctx, opts); err != nil {
		log.WithError(err).Error("pandoc conversion failed")
		return failWith(req.SourcePath, pandocParser, errPandocNoMarkdown)
	}
	outPath := filepath.Join(req.OutputDir, opts.Output)
	data, err := os.ReadFile(outPath)
	if err != nil {
		log.WithError(err).Error("read pandoc output failed")
		return failWith(req.SourcePath, pandocParser, errPandocNoMarkdown)
	}
	// The orchestrator writes its own Markdown file; keep the scratch dir to it.
	os.Remove(outPath)
	os.Remove(filepath.Join(req.OutputDir, pandoc.LogFileName))

	content := strings.ToValidUTF8(string(data), "")
	if fixed, changed := pandoc.FixMediaPaths(content); changed {
		log.Info("fixed double media references")
		content = fixed
	}
	content = pandoc.FixTableCaptions(content)

	meta := baseMetadata(req.SourcePath, pandocParser)
	if title, ok := pandoc.FrontMatterTitle(content); ok {
		meta["title"] = title
	}
	log.Info("pandoc conversion successful")
	return succeed(content, meta)
}

// convertHTML renders HTML without pandoc.
func (p *PandocProcessor) convertHTML(ctx context.Context, req *Request) *Result {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": htmlParser})
	log.Info("pandoc unavailable, converting HTML in-process")
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return failWith(req.SourcePath, htmlParser, err)
	}
	src := decodeText(data)
	if local, ok := localizeRemoteImages(ctx, req, p.client(), src, log); ok {
		src = local
	}
	md, err := htmlToMarkdown(src)
	if err != nil {
		log.WithError(err).Error("HTML conversion failed")
		return failWith(req.SourcePath, htmlParser, err)
	}
	meta := baseMetadata(req.SourcePath, htmlParser)
	if title := htmlTitle(src); title != "" {
		meta["title"] = title
	}
	return succeed(tidyMarkdown(md), meta)
}
