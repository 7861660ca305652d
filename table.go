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
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxCellChars   = 500
	maxHeaderChars = 50
)

var reWhitespace = regexp.MustCompile(`\s+`)

// frame is a parsed table: one header row and zero or more records, every
// record padded or cut to the header width.
type frame struct {
	header []string
	rows   [][]string
}

func newFrame(records [][]string) *frame {
	if len(records) == 0 {
		return &frame{}
	}
	f := &frame{header: records[0]}
	for _, rec := range records[1:] {
		f.rows = append(f.rows, fitWidth(rec, len(f.header)))
	}
	return f
}

func fitWidth(rec []string, n int) []string {
	if len(rec) == n {
		return rec
	}
	out := make([]string, n)
	copy(out, rec)
	return out
}

func (f *frame) empty() bool { return len(f.rows) == 0 }

// truncate keeps the first maxRows records and maxCols columns.
func (f *frame) truncate(maxRows, maxCols int) *frame {
	out := &frame{header: f.header, rows: f.rows}
	if maxRows >= 0 && len(out.rows) > maxRows {
		out.rows = out.rows[:maxRows]
	}
	if maxCols >= 0 && len(out.header) > maxCols {
		out.header = out.header[:maxCols]
		cut := make([][]string, len(out.rows))
		for i, r := range out.rows {
			cut[i] = r[:maxCols]
		}
		out.rows = cut
	}
	return out
}

// column returns the values of column i.
func (f *frame) column(i int) []string {
	vals := make([]string, len(f.rows))
	for r, row := range f.rows {
		vals[r] = row[i]
	}
	return vals
}

func isNullCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

// cleanCell makes a value safe inside a pipe table.
func cleanCell(s string) string {
	return cleanCellLimit(s, maxCellChars)
}

func cleanCellLimit(s string, limit int) string {
	if isNullCell(s) {
		return ""
	}
	s = reWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.NewReplacer("|", `\|`, "[", `\[`, "]", `\]`).Replace(s)
	return strings.TrimSpace(ellipsize(s, limit))
}

// cleanColumnName normalizes a header cell.
func cleanColumnName(s string) string {
	switch strings.TrimSpace(s) {
	case "", "nan", "NaN", "None":
		return "Unnamed_Column"
	}
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("|", "_", "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return ellipsize(s, maxHeaderChars)
}

// ellipsize cuts s to limit runes, the last three replaced by "...".
func ellipsize(s string, limit int) string {
	if limit <= 3 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

// cleaned returns a copy of f with sanitized headers and cells.
func (f *frame) cleaned() *frame {
	out := &frame{header: make([]string, len(f.header)), rows: make([][]string, len(f.rows))}
	for i, h := range f.header {
		out.header[i] = cleanColumnName(h)
	}
	for i, row := range f.rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = cleanCell(c)
		}
		out.rows[i] = cells
	}
	return out
}

// renderMarkdownTable renders a header and rows as a pipe table.
func renderMarkdownTable(header []string, rows [][]string) string {
	if len(header) == 0 {
		return "*No data to display*"
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	writeRow(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(fitWidth(row, len(header)))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
