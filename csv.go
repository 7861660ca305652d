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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var errNoColumns = errors.New("No columns to parse from file")

// csvSeparators are the delimiter candidates, in tie-break order.
var csvSeparators = []rune{';', ',', '\t'}

// parseStage names one rung of the full-file fallback ladder.
type parseStage string

const (
	stageStrict  parseStage = "strict"
	stageSkipBad parseStage = "skip_bad_lines"
	stagePython  parseStage = "python_engine"
	stageLenient parseStage = "lenient"
)

var parseLadder = []parseStage{stageStrict, stageSkipBad, stagePython, stageLenient}

// options maps a stage to reader settings. Bare quotes inside unquoted fields
// are kept literally at every stage; stages differ in how ragged records and
// padding are handled.
func (s parseStage) options(sep rune) csvOptions {
	switch s {
	case stageSkipBad, stagePython:
		return csvOptions{sep: sep, skipBad: true, lazyQuotes: true}
	case stageLenient:
		return csvOptions{sep: sep, skipBad: true, lazyQuotes: true, trimLeading: true}
	default:
		return csvOptions{sep: sep, lazyQuotes: true}
	}
}

type csvOptions struct {
	sep         rune
	skipBad     bool
	lazyQuotes  bool
	trimLeading bool
	// limit caps the number of data rows read; zero reads everything.
	limit int
}

// parseDelimited reads text into a frame. The first record is the header.
// Records wider than the header, and malformed records, are errors unless
// skipBad is set, in which case they are dropped.
func parseDelimited(text string, opt csvOptions) (*frame, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = opt.sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = opt.lazyQuotes
	r.TrimLeadingSpace = opt.trimLeading

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, err
	}
	f := &frame{header: header}
	for opt.limit <= 0 || len(f.rows) < opt.limit {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if opt.skipBad {
				continue
			}
			return nil, err
		}
		if len(rec) > len(header) {
			if opt.skipBad {
				continue
			}
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("Error tokenizing data. Expected %d fields in line %d, saw %d", len(header), line, len(rec))
		}
		f.rows = append(f.rows, fitWidth(rec, len(header)))
	}
	return f, nil
}

// csvGuess is the winning encoding and separator of sniffCSV.
type csvGuess struct {
	encoding string
	sep      rune
	score    float64
}

// sniffCSV scores every encoding and separator pair on a 100-row sample and
// returns the best one. Ties keep the first pair seen.
func sniffCSV(data []byte, semicolonBias float64) (csvGuess, bool) {
	var best csvGuess
	found := false
	for _, enc := range csvEncodings {
		text, err := decodeAs(data, enc)
		if err != nil {
			continue
		}
		for _, sep := range csvSeparators {
			f, err := parseDelimited(text, csvOptions{sep: sep, skipBad: true, lazyQuotes: true, limit: 100})
			if err != nil {
				continue
			}
			score := scoreParse(f, sep, text, semicolonBias)
			if !found || score > best.score {
				best = csvGuess{encoding: enc, sep: sep, score: score}
				found = true
			}
		}
	}
	return best, found
}

// scoreParse rates how plausible a sample parse is for separator sep.
func scoreParse(f *frame, sep rune, text string, semicolonBias float64) float64 {
	if f.empty() {
		return 0
	}
	n := len(f.header)
	score := float64(n * 10)
	if sep == ';' {
		score += semicolonBias
	}

	if n == 1 {
		score -= 50
		first := f.rows[0][0]
		if (sep == ';' && strings.Contains(first, ",")) || (sep == ',' && strings.Contains(first, ";")) {
			score -= 100
		}
	}

	if n > 1 {
		score += consistencyBonus(text, sep, min(10, len(f.rows)+1))

		numeric, textual := 0, 0
		for i := range f.header {
			switch columnKind(f.column(i)) {
			case kindNumeric:
				numeric++
			case kindText:
				textual++
			}
		}
		if numeric > 0 && textual > 0 {
			score += 15
		}
	}

	if n > 100 {
		score -= 30
	}

	if n > 1 {
		quality := 0
		for _, h := range f.header {
			switch {
			case sep != ',' && !strings.Contains(h, ","):
				quality++
			case sep != ';' && !strings.Contains(h, ";"):
				quality++
			case sep != '\t' && !strings.Contains(h, "\t"):
				quality++
			}
		}
		score += float64(quality * 2)
	}

	return max(0, score)
}

// consistencyBonus compares separator counts over the first lines of text.
func consistencyBonus(text string, sep rune, lines int) float64 {
	var counts []int
	for i, line := range strings.SplitN(text, "\n", lines+1) {
		if i >= lines {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		counts = append(counts, strings.Count(line, string(sep)))
	}
	if len(counts) == 0 {
		return 0
	}
	lo, hi := counts[0], counts[0]
	for _, c := range counts[1:] {
		lo = min(lo, c)
		hi = max(hi, c)
	}
	switch {
	case lo == hi:
		return 20
	case hi-lo <= 1:
		return 10
	default:
		return -10
	}
}

type valueKind int

const (
	kindEmpty valueKind = iota
	kindNumeric
	kindText
)

// columnKind is numeric when every non-empty value parses as a float.
func columnKind(values []string) valueKind {
	kind := kindEmpty
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return kindText
		}
		kind = kindNumeric
	}
	return kind
}
