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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const markdownParser = "md_custom"

// htmlImgSrc finds the src of inline <img> tags in Markdown sources.
var htmlImgSrc = regexp.MustCompile(`(?i)<img\s[^>]*?src\s*=\s*["']([^"']+)["']`)

// MarkdownProcessor passes Markdown through and relocates local images into
// the media directory.
type MarkdownProcessor struct{}

// NewMarkdownProcessor creates a new MarkdownProcessor.
func NewMarkdownProcessor() *MarkdownProcessor {
	return &MarkdownProcessor{}
}

func (p *MarkdownProcessor) Name() string { return "markdown" }

func (p *MarkdownProcessor) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

func (p *MarkdownProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func (p *MarkdownProcessor) Process(_ context.Context, req *Request) *Result {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": markdownParser})
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		log.WithError(err).Error("read failed")
		return failWith(req.SourcePath, markdownParser, err)
	}
	content := strings.ToValidUTF8(string(data), "")

	if err := os.MkdirAll(req.MediaDir, 0o755); err != nil {
		return failWith(req.SourcePath, markdownParser, err)
	}
	links := collectLocalImages(req.SourcePath, content, req.MediaDir, log)
	return succeed(RewriteImageRefs(content, links), baseMetadata(req.SourcePath, markdownParser))
}

// collectLocalImages copies every existing local image referenced by content
// into mediaDir and returns a save decision per original reference.
func collectLocalImages(mdPath, content, mediaDir string, log logrus.FieldLogger) map[string]ImageDecision {
	var refs []string
	for _, m := range mdImageRef.FindAllStringSubmatch(content, -1) {
		refs = append(refs, m[2])
	}
	for _, m := range htmlImgSrc.FindAllStringSubmatch(content, -1) {
		refs = append(refs, m[1])
	}

	links := make(map[string]ImageDecision)
	baseDir := filepath.Dir(mdPath)
	for _, ref := range refs {
		if _, done := links[ref]; done || isExternalRef(ref) {
			continue
		}
		src := filepath.Clean(filepath.Join(baseDir, filepath.FromSlash(ref)))
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			log.WithField("image", src).Warn("local image not found")
			continue
		}
		flat := flattenImagePath(ref)
		if err := copyFile(src, filepath.Join(mediaDir, flat)); err != nil {
			log.WithError(err).WithField("image", src).Error("copy image failed")
			continue
		}
		log.WithFields(logrus.Fields{"image": ref, "link": "media/" + flat}).Info("copied local image")
		links[ref] = ImageDecision{Action: ActionSave, Filename: flat}
	}
	return links
}

func isExternalRef(ref string) bool {
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return path.IsAbs(ref) || filepath.IsAbs(ref)
}

// flattenImagePath turns a relative reference into a single file name:
// "../assets/logo.png" becomes "assets_logo.png".
func flattenImagePath(ref string) string {
	flat := strings.ReplaceAll(ref, `\`, "/")
	flat = strings.ReplaceAll(flat, "../", "")
	flat = strings.ReplaceAll(flat, "./", "")
	flat = strings.Trim(flat, "/")
	flat = strings.ReplaceAll(flat, "/", "_")
	if path.Ext(flat) == "" {
		flat += ".png"
	}
	return flat
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
