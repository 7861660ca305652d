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
	"strings"

	"github.com/sirupsen/logrus"
)

const tabularParser = "excel_csv_parser"

// TabularProcessor converts CSV, TSV and Excel workbooks into Markdown tables.
type TabularProcessor struct{}

// NewTabularProcessor creates a new TabularProcessor.
func NewTabularProcessor() *TabularProcessor {
	return &TabularProcessor{}
}

func (p *TabularProcessor) Name() string { return "tabular" }

func (p *TabularProcessor) SupportedExtensions() []string {
	return []string{".csv", ".xlsx", ".xlsm", ".xls", ".tsv"}
}

func (p *TabularProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func (p *TabularProcessor) Process(_ context.Context, req *Request) *Result {
	cfg := req.config()
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": tabularParser})
	log.Info("processing spreadsheet")

	var (
		md   string
		meta Metadata
		err  error
	)
	switch ext := extensionOf(req.SourcePath); ext {
	case ".csv":
		md, meta, err = processCSV(req.SourcePath, cfg, log)
	case ".tsv":
		md, meta, err = processTSV(req.SourcePath, cfg, log)
	case ".xlsx", ".xlsm", ".xls":
		md, meta, err = processExcel(req.SourcePath, cfg, log)
	default:
		err = fmt.Errorf("Unsupported format: %s", ext)
	}
	if err != nil {
		log.WithError(err).Error("spreadsheet conversion failed")
		var ee *ExtractionError
		if errors.As(err, &ee) {
			return fail(baseMetadata(req.SourcePath, ee.Parser), err)
		}
		return failWith(req.SourcePath, tabularParser, err)
	}
	return succeed(md, meta)
}

func processCSV(path string, cfg *Config, log logrus.FieldLogger) (string, Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	if isBundleFile(data) {
		log.Info("detected translation bundle")
		return processBundle(path, data, cfg, log)
	}

	guess, ok := sniffCSV(data, cfg.CSVSemicolonBias)
	if !ok {
		return "", nil, ErrNoParse
	}
	text, err := decodeAs(data, guess.encoding)
	if err != nil {
		return "", nil, err
	}

	var (
		f        *frame
		stage    parseStage
		stageErr error
	)
	for _, s := range parseLadder {
		f, stageErr = parseDelimited(text, s.options(guess.sep))
		if stageErr == nil {
			stage = s
			break
		}
		log.WithError(stageErr).Warnf("%s parsing failed", s)
	}
	if f == nil {
		return "", nil, &ExtractionError{Parser: "pandas_csv", Err: stageErr}
	}
	if f.empty() {
		return "", nil, &ExtractionError{Parser: "pandas_csv", Err: errors.New("Empty or unreadable file")}
	}

	log.WithFields(logrus.Fields{
		"strategy":  stage,
		"separator": string(guess.sep),
		"encoding":  guess.encoding,
		"rows":      len(f.rows),
		"columns":   len(f.header),
	}).Info("CSV parsed")

	origRows, origCols := len(f.rows), len(f.header)
	shown := f.truncate(cfg.MaxRowsDisplay, cfg.MaxColumnsDisplay)

	md := []string{
		fmt.Sprintf("# %s\n", filepath.Base(path)),
		"**File Type:** CSV",
		fmt.Sprintf("**Encoding:** %s", guess.encoding),
		fmt.Sprintf("**Separator:** '%s'", string(guess.sep)),
		fmt.Sprintf("**Parsing Strategy:** %s", stage),
		fmt.Sprintf("**Detection Score:** %.2f", guess.score),
		fmt.Sprintf("**Dimensions:** %d rows × %d columns", origRows, origCols),
	}
	if stage != stageStrict {
		md = append(md, "**Note:** Some malformed lines were skipped during parsing for data quality.")
	}
	if origRows > cfg.MaxRowsDisplay || origCols > cfg.MaxColumnsDisplay {
		md = append(md, fmt.Sprintf("**Display Note:** Data truncated for display (showing %d rows × %d columns)",
			len(shown.rows), len(shown.header)))
	}
	md = append(md, "\n## Data\n")
	clean := shown.cleaned()
	md = append(md, renderMarkdownTable(clean.header, clean.rows))

	meta := baseMetadata(path, "pandas_csv")
	meta["file_type"] = "CSV"
	meta["encoding"] = guess.encoding
	meta["separator"] = string(guess.sep)
	meta["parsing_strategy"] = string(stage)
	meta["detection_score"] = guess.score
	meta["total_rows"] = origRows
	meta["total_columns"] = origCols
	meta["displayed_rows"] = len(shown.rows)
	meta["displayed_columns"] = len(shown.header)
	meta["column_names"] = shown.header
	meta["had_parsing_issues"] = stage != stageStrict
	return strings.Join(md, "\n"), meta, nil
}

func processTSV(path string, cfg *Config, log logrus.FieldLogger) (string, Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var f *frame
	for _, enc := range csvEncodings {
		text, err := decodeAs(data, enc)
		if err != nil {
			log.Debugf("TSV decode with %s failed", enc)
			continue
		}
		if f, err = parseDelimited(text, csvOptions{sep: '\t'}); err != nil {
			return "", nil, &ExtractionError{Parser: "pandas_tsv", Err: err}
		}
		log.Infof("parsed TSV with %s encoding", enc)
		break
	}
	if f == nil {
		return "", nil, errors.New("Unable to decode TSV file with any common encoding")
	}

	origRows, origCols := len(f.rows), len(f.header)
	shown := f.truncate(cfg.MaxRowsDisplay, cfg.MaxColumnsDisplay)
	md := []string{
		fmt.Sprintf("# %s\n", filepath.Base(path)),
		"**File Type:** TSV",
		fmt.Sprintf("**Dimensions:** %d rows × %d columns", origRows, origCols),
	}
	if origRows > cfg.MaxRowsDisplay || origCols > cfg.MaxColumnsDisplay {
		md = append(md, fmt.Sprintf("**Note:** Data truncated for display (showing %d rows × %d columns)",
			len(shown.rows), len(shown.header)))
	}
	md = append(md, "\n## Data\n")
	columns := []string{}
	if shown.empty() {
		md = append(md, "*No data found in file*")
	} else {
		clean := shown.cleaned()
		columns = clean.header
		md = append(md, renderMarkdownTable(clean.header, clean.rows))
	}

	meta := baseMetadata(path, "pandas_tsv")
	meta["file_type"] = "TSV"
	meta["total_rows"] = origRows
	meta["total_columns"] = origCols
	meta["displayed_rows"] = len(shown.rows)
	meta["displayed_columns"] = len(shown.header)
	meta["column_names"] = columns
	return strings.Join(md, "\n"), meta, nil
}
