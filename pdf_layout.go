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
	"math"
	"sort"
	"strings"
)

// textRun is a positioned piece of page text with its font. Coordinates are
// PDF points with the origin at the bottom of the page.
type textRun struct {
	text   string
	left   float64
	top    float64
	bottom float64
	size   float64
	font   string
}

type textLine struct {
	runs   []textRun
	top    float64
	bottom float64
	size   float64
	font   string
}

func (l textLine) text() string {
	var b strings.Builder
	for _, r := range l.runs {
		b.WriteString(r.text)
	}
	return strings.TrimSpace(b.String())
}

// fontStyle guesses emphasis from a PostScript font name.
func fontStyle(name string) (bold, italic, mono bool) {
	n := strings.ToLower(name)
	bold = strings.Contains(n, "bold") || strings.Contains(n, "medi") || strings.HasSuffix(n, "bd")
	italic = strings.Contains(n, "ital") || strings.Contains(n, "obli") || strings.HasSuffix(n, "-it")
	mono = strings.Contains(n, "mono") || strings.Contains(n, "courier") || strings.Contains(n, "consola") ||
		strings.HasPrefix(n, "cmtt") || strings.Contains(n, "typewriter")
	return bold, italic, mono
}

func roundSize(s float64) float64 { return math.Round(s*10) / 10 }

// groupLines merges runs whose tops are within 3pt, top of page first.
func groupLines(runs []textRun) []textLine {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].top > runs[j].top })

	var lines []textLine
	for _, r := range runs {
		idx := -1
		for i := range lines {
			if math.Abs(lines[i].top-r.top) < 3 {
				idx = i
				break
			}
		}
		if idx < 0 {
			lines = append(lines, textLine{top: r.top, bottom: r.bottom})
			idx = len(lines) - 1
		}
		lines[idx].runs = append(lines[idx].runs, r)
	}

	for i := range lines {
		l := &lines[i]
		sort.SliceStable(l.runs, func(a, b int) bool { return l.runs[a].left < l.runs[b].left })
		weights := map[textRun]int{}
		var best textRun
		for _, r := range l.runs {
			key := textRun{size: roundSize(r.size), font: r.font}
			weights[key] += len(r.text)
			if weights[key] > weights[best] {
				best = key
			}
		}
		l.size, l.font = best.size, best.font
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].top > lines[j].top })
	return lines
}

// bodyFontSize is the size carrying the most characters.
func bodyFontSize(lines []textLine) float64 {
	counts := map[float64]int{}
	var body float64
	for _, l := range lines {
		for _, r := range l.runs {
			s := roundSize(r.size)
			counts[s] += len(strings.TrimSpace(r.text))
			if counts[s] > counts[body] {
				body = s
			}
		}
	}
	return body
}

// headingLevel maps a font size relative to the body size to 1-4, or 0 for body text.
func headingLevel(size, body float64, bold bool) int {
	if body <= 0 {
		return 0
	}
	switch ratio := size / body; {
	case ratio >= 2.0:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.1:
		if bold {
			return 3
		}
		return 4
	}
	return 0
}

func isFootnoteMark(r textRun, body float64) bool {
	return r.size > 0 && body > 0 && r.size < body*0.6 && len(strings.TrimSpace(r.text)) <= 3
}

// linesToMarkdown renders grouped lines with headings, paragraphs and
// inline emphasis.
func linesToMarkdown(lines []textLine, body float64) string {
	var md strings.Builder
	afterHeading := false
	for i, line := range lines {
		raw := line.text()
		if raw == "" {
			continue
		}
		if line.size > 0 && body > 0 && line.size < body*0.6 && len(raw) <= 3 {
			continue
		}

		bold, _, _ := fontStyle(line.font)
		level := headingLevel(line.size, body, bold)
		if level == 0 && bold && line.size >= body && len(raw) < 80 && allBold(line.runs) {
			level = 4
		}

		text := strings.TrimSpace(inlineMarkdown(line.runs, body))
		if text == "" {
			continue
		}
		if level > 0 {
			if md.Len() > 0 {
				md.WriteString("\n")
			}
			md.WriteString(strings.Repeat("#", level) + " " + stripEmphasis(text) + "\n\n")
			afterHeading = true
			continue
		}
		if i > 0 && !afterHeading {
			height := line.top - line.bottom
			if height <= 0 {
				height = body
			}
			if lines[i-1].bottom-line.top > height*1.5 {
				md.WriteString("\n")
			}
		}
		md.WriteString(text + "\n")
		afterHeading = false
	}
	return md.String()
}

func allBold(runs []textRun) bool {
	for _, r := range runs {
		if strings.TrimSpace(r.text) == "" {
			continue
		}
		if b, _, _ := fontStyle(r.font); !b {
			return false
		}
	}
	return true
}

// inlineMarkdown joins runs, wrapping same-style stretches in emphasis or code markers.
func inlineMarkdown(runs []textRun, body float64) string {
	type span struct {
		text               string
		bold, italic, mono bool
	}
	var spans []span
	for _, r := range runs {
		if strings.TrimSpace(r.text) == "" || isFootnoteMark(r, body) {
			continue
		}
		b, it, m := fontStyle(r.font)
		if n := len(spans); n > 0 && spans[n-1].bold == b && spans[n-1].italic == it && spans[n-1].mono == m {
			spans[n-1].text += r.text
			continue
		}
		spans = append(spans, span{text: r.text, bold: b, italic: it, mono: m})
	}

	var out strings.Builder
	for _, s := range spans {
		marker := ""
		switch {
		case s.mono:
			marker = "`"
		case s.bold && s.italic:
			marker = "***"
		case s.bold:
			marker = "**"
		case s.italic:
			marker = "*"
		}
		if marker == "" {
			out.WriteString(s.text)
			continue
		}
		trimmed := strings.TrimRight(s.text, " ")
		if s.mono {
			trimmed = strings.TrimSpace(trimmed)
		}
		out.WriteString(marker + trimmed + marker)
		if strings.HasSuffix(s.text, " ") {
			out.WriteString(" ")
		}
	}
	return out.String()
}

func stripEmphasis(s string) string {
	return strings.NewReplacer("***", "", "**", "", "*", "", "`", "").Replace(s)
}
