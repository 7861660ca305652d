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
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/nicholasgasior/ragprep-go/internal/ooxml"
)

const (
	pptxParser = "pptx_parser"
	pptParser  = "ppt_legacy_parser"
)

const pptNotice = "# PPT Format Notice\n\n" +
	"This file is in the older PPT format, which has limited support in this tool. " +
	"For best results, please consider converting it to PPTX format using Microsoft PowerPoint " +
	"or another compatible application.\n\n" +
	"Some content or formatting may not be properly extracted from this file.\n\n" +
	"---\n\n"

var zipMagic = []byte("PK\x03\x04")

// PresentationProcessor renders slide decks: .pptx through its OOXML parts
// and legacy .ppt through the OLE2 record streams.
type PresentationProcessor struct{}

// NewPresentationProcessor creates a new PresentationProcessor.
func NewPresentationProcessor() *PresentationProcessor {
	return &PresentationProcessor{}
}

func (p *PresentationProcessor) Name() string { return "presentation" }

func (p *PresentationProcessor) SupportedExtensions() []string {
	return []string{".pptx", ".ppt"}
}

func (p *PresentationProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func (p *PresentationProcessor) Process(_ context.Context, req *Request) *Result {
	if err := os.MkdirAll(req.MediaDir, 0o755); err != nil {
		return failWith(req.SourcePath, pptxParser, err)
	}
	if extensionOf(req.SourcePath) != ".ppt" {
		return processPPTX(req)
	}

	log := req.log().WithField("file", req.SourcePath)
	log.Info("processing older PPT format file")
	var res *Result
	if isZipFile(req.SourcePath) {
		// A renamed .pptx still opens as OOXML.
		res = processPPTX(req)
	} else {
		res = processLegacyPPT(req)
	}
	if !res.Failed() {
		res.Markdown = pptNotice + res.Markdown
	}
	return res
}

func isZipFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(zipMagic))
	if _, err := f.Read(head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// paragraph is one a:p of a text body.
type paragraph struct {
	level int
	text  string
}

// slideShape is the subset of a p:spTree child the renderer needs.
type slideShape struct {
	name   string
	descr  string
	ph     *ooxml.Node
	text   []paragraph
	hasTx  bool
	table  [][]string
	picRID string
}

func (s *slideShape) plainText() string {
	lines := make([]string, len(s.text))
	for i, p := range s.text {
		lines[i] = p.text
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (s *slideShape) isTitle() bool {
	if s.ph == nil {
		return false
	}
	switch s.ph.AttrOr("type", "") {
	case "title", "ctrTitle":
		return true
	}
	return false
}

// holdsTitleRole reports whether the shape sits in the layout's title slot.
// A placeholder with an unreadable idx is not a candidate.
func (s *slideShape) holdsTitleRole() bool {
	if s.ph == nil {
		return false
	}
	if _, typed := s.ph.Attr("type"); typed {
		return false
	}
	raw, ok := s.ph.Attr("idx")
	if !ok {
		return false
	}
	idx, err := strconv.Atoi(raw)
	return err == nil && idx == 0
}

func processPPTX(req *Request) *Result {
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": pptxParser})
	log.Info("processing PowerPoint file")

	pkg, err := ooxml.Open(req.SourcePath)
	if err != nil {
		log.WithError(err).Error("open presentation failed")
		return failWith(req.SourcePath, pptxParser, err)
	}
	defer pkg.Close()

	order, err := slideOrder(pkg)
	if err != nil {
		log.WithError(err).Error("read slide list failed")
		return failWith(req.SourcePath, pptxParser, err)
	}

	deck := &deckWriter{pkg: pkg, mediaDir: req.MediaDir, log: log}
	slides := make([]slide, len(order))
	for i, part := range order {
		slides[i] = readSlide(pkg, part)
	}

	title := pkg.CoreTitle()
	if title == "" && len(slides) > 0 {
		title, _ = slideTitle(slides[0].shapes)
	}

	meta := baseMetadata(req.SourcePath, pptxParser)
	meta["slide_count"] = len(order)
	meta["title"] = nil
	var parts []string
	if title != "" {
		meta["title"] = title
		parts = append(parts, "# "+title+"\n")
	}
	for i, sl := range slides {
		parts = append(parts, deck.renderSlide(i+1, sl)...)
	}
	meta["image_count"] = deck.imageCount
	return succeed(strings.Join(parts, "\n"), meta)
}

// slideOrder returns slide part names in presentation order.
func slideOrder(pkg *ooxml.Package) ([]string, error) {
	const presPart = "ppt/presentation.xml"
	pres, err := pkg.ReadNode(presPart)
	if err != nil {
		return nil, err
	}
	rels, err := pkg.Rels(presPart)
	if err != nil {
		return nil, err
	}

	var order []string
	if lst := pres.Child("sldIdLst"); lst != nil {
		for _, id := range lst.ChildrenNamed("sldId") {
			rid, _ := id.RelAttr("id")
			if rel, ok := rels[rid]; ok && !rel.External() && isSlideRel(rel.Type) {
				order = append(order, ooxml.ResolveTarget(presPart, rel.Target))
			}
		}
	}
	if len(order) > 0 {
		return order, nil
	}
	for _, name := range pkg.Names() {
		if slideNumber(name) > 0 {
			order = append(order, name)
		}
	}
	slices.SortFunc(order, func(a, b string) int { return slideNumber(a) - slideNumber(b) })
	return order, nil
}

func isSlideRel(typ string) bool {
	return typ == ooxml.RelSlide || strings.HasSuffix(typ, "/slide")
}

var slidePartName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func slideNumber(name string) int {
	m := slidePartName.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// slideTitle resolves the heading of a slide. The first matching shape wins
// even when its text is empty.
func slideTitle(shapes []*slideShape) (string, bool) {
	for _, s := range shapes {
		if !s.hasTx {
			continue
		}
		if s.isTitle() || strings.Contains(strings.ToLower(s.name), "title") || s.holdsTitleRole() {
			return s.plainText(), true
		}
	}
	return "", false
}

// deckWriter renders slides and saves their pictures. imageCount runs across
// the whole deck.
type deckWriter struct {
	pkg        *ooxml.Package
	mediaDir   string
	log        logrus.FieldLogger
	imageCount int
}

type slide struct {
	part   string
	shapes []*slideShape
	err    error
}

func readSlide(pkg *ooxml.Package, part string) slide {
	sl := slide{part: part}
	root, err := pkg.ReadNode(part)
	if err != nil {
		sl.err = err
		return sl
	}
	if tree := root.Path("cSld", "spTree"); tree != nil {
		collectShapes(tree, &sl.shapes)
	}
	return sl
}

func collectShapes(n *ooxml.Node, out *[]*slideShape) {
	for i := range n.Children {
		c := &n.Children[i]
		switch c.Local() {
		case "sp":
			s := &slideShape{}
			if nv := c.Child("nvSpPr"); nv != nil {
				s.name, s.descr = cNvPr(nv)
				s.ph = nv.Path("nvPr", "ph")
			}
			if tx := c.Child("txBody"); tx != nil {
				s.hasTx = true
				s.text = paragraphs(tx)
			}
			*out = append(*out, s)
		case "pic":
			s := &slideShape{}
			if nv := c.Child("nvPicPr"); nv != nil {
				s.name, s.descr = cNvPr(nv)
			}
			if blip := c.Find("blip"); blip != nil {
				s.picRID, _ = blip.RelAttr("embed")
			}
			*out = append(*out, s)
		case "graphicFrame":
			s := &slideShape{}
			if nv := c.Child("nvGraphicFramePr"); nv != nil {
				s.name, s.descr = cNvPr(nv)
			}
			if tbl := c.Find("tbl"); tbl != nil {
				s.table = tableRows(tbl)
			}
			*out = append(*out, s)
		case "grpSp":
			collectShapes(c, out)
		}
	}
}

func cNvPr(nv *ooxml.Node) (name, descr string) {
	if c := nv.Child("cNvPr"); c != nil {
		return c.AttrOr("name", ""), c.AttrOr("descr", "")
	}
	return "", ""
}

func paragraphs(txBody *ooxml.Node) []paragraph {
	var out []paragraph
	for _, p := range txBody.ChildrenNamed("p") {
		para := paragraph{}
		if ppr := p.Child("pPr"); ppr != nil {
			para.level, _ = strconv.Atoi(ppr.AttrOr("lvl", "0"))
		}
		var b strings.Builder
		for i := range p.Children {
			c := &p.Children[i]
			switch c.Local() {
			case "r", "fld":
				if t := c.Child("t"); t != nil {
					b.WriteString(t.Text())
				}
			case "br":
				b.WriteString(" ")
			}
		}
		para.text = b.String()
		out = append(out, para)
	}
	return out
}

func tableRows(tbl *ooxml.Node) [][]string {
	var rows [][]string
	for _, tr := range tbl.ChildrenNamed("tr") {
		var row []string
		for _, tc := range tr.ChildrenNamed("tc") {
			cell := ""
			if tx := tc.Child("txBody"); tx != nil {
				s := slideShape{text: paragraphs(tx)}
				cell = s.plainText()
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// renderSlide returns the Markdown blocks of one slide. A slide that cannot
// be read renders an inline error instead.
func (d *deckWriter) renderSlide(num int, sl slide) []string {
	if sl.err != nil {
		d.log.WithError(sl.err).WithField("slide", num).Warn("slide skipped")
		return []string{
			fmt.Sprintf("## Slide %d\n", num),
			fmt.Sprintf("*Error processing slide %d: %v*", num, sl.err),
			"\n---\n",
		}
	}
	shapes, part := sl.shapes, sl.part

	title, _ := slideTitle(shapes)
	if title == "" {
		title = fmt.Sprintf("Slide %d", num)
	}
	blocks := []string{"## " + title + "\n"}
	if text := slideBody(shapes); text != "" {
		blocks = append(blocks, text)
	}

	rels, err := d.pkg.Rels(part)
	if err != nil {
		d.log.WithError(err).WithField("slide", num).Warn("slide relationships unreadable")
		rels = map[string]ooxml.Relationship{}
	}
	for _, s := range shapes {
		if s.picRID == "" {
			continue
		}
		ref, err := d.savePicture(num, part, s, rels)
		if err != nil {
			d.log.WithError(err).WithField("slide", num).Warn("failed to process image")
			continue
		}
		blocks = append(blocks, ref)
	}

	if notes := d.notes(part, rels); notes != "" {
		blocks = append(blocks, fmt.Sprintf("\n> **Slide Notes:** %s\n", notes))
	}
	return append(blocks, "\n---\n")
}

// slideBody renders non-title shapes: text bodies as bullets, tables as pipe
// tables.
func slideBody(shapes []*slideShape) string {
	var lines []string
	for _, s := range shapes {
		switch {
		case s.hasTx && !s.isTitle() && s.plainText() != "":
			for _, p := range s.text {
				text := strings.TrimSpace(p.text)
				if text == "" {
					continue
				}
				bullet := "* "
				if p.level > 0 {
					bullet = "- "
				}
				lines = append(lines, strings.Repeat("  ", p.level)+bullet+text)
			}
		case len(s.table) > 0:
			f := newFrame(s.table).cleaned()
			lines = append(lines, renderMarkdownTable(f.header, f.rows))
		}
	}
	return strings.Join(lines, "\n")
}

func (d *deckWriter) savePicture(num int, part string, s *slideShape, rels map[string]ooxml.Relationship) (string, error) {
	rel, ok := rels[s.picRID]
	if !ok {
		return "", fmt.Errorf("relationship %s not found", s.picRID)
	}
	if rel.External() {
		return "", errors.New("linked picture is not embedded")
	}
	data, err := d.pkg.Read(ooxml.ResolveTarget(part, rel.Target))
	if err != nil {
		return "", err
	}
	name := pptImageName(d.imageCount, data)
	if err := os.WriteFile(filepath.Join(d.mediaDir, name), data, 0o644); err != nil {
		return "", err
	}
	alt := s.descr
	if alt == "" {
		alt = s.name
	}
	if alt == "" {
		alt = fmt.Sprintf("Slide %d Image %d", num, d.imageCount)
	}
	d.imageCount++
	return fmt.Sprintf("\n![%s](media/%s)\n", cleanAlt(alt), name), nil
}

func (d *deckWriter) notes(part string, rels map[string]ooxml.Relationship) string {
	for _, rel := range rels {
		if rel.Type != ooxml.RelNotesSlide && !strings.HasSuffix(rel.Type, "/notesSlide") {
			continue
		}
		root, err := d.pkg.ReadNode(ooxml.ResolveTarget(part, rel.Target))
		if err != nil {
			return ""
		}
		tree := root.Path("cSld", "spTree")
		if tree == nil {
			return ""
		}
		var shapes []*slideShape
		collectShapes(tree, &shapes)
		for _, s := range shapes {
			if s.ph != nil && s.ph.AttrOr("type", "") == "body" {
				return s.plainText()
			}
		}
		return ""
	}
	return ""
}

func pptImageName(index int, data []byte) string {
	sum := md5.Sum(data)
	return fmt.Sprintf("ppt_img_%d_%s%s", index, hex.EncodeToString(sum[:])[:12], imageExtension(data))
}

// imageExtension sniffs the picture container, falling back to signatures
// and finally ".png".
func imageExtension(data []byte) string {
	if mt := mimetype.Detect(data); strings.HasPrefix(mt.String(), "image/") && mt.Extension() != "" {
		return mt.Extension()
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ".png"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return ".gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return ".bmp"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return ".tif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return ".webp"
	}
	return ".png"
}

// cleanAlt keeps alt text on one line and out of link syntax.
func cleanAlt(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "[", " ", "]", " ").Replace(s)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
