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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// workbook is the sheet-level view shared by the xlsx and xls readers.
type workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

type xlsxWorkbook struct {
	f *excelize.File
}

func (w *xlsxWorkbook) SheetNames() []string { return w.f.GetSheetList() }

func (w *xlsxWorkbook) Rows(sheet string) ([][]string, error) {
	return w.f.GetRows(sheet)
}

func (w *xlsxWorkbook) Close() error { return w.f.Close() }

type xlsWorkbook struct {
	wb     *xls.WorkBook
	sheets map[string]*xls.WorkSheet
	names  []string
}

func openXLS(path string) (*xlsWorkbook, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, err
	}
	w := &xlsWorkbook{wb: wb, sheets: make(map[string]*xls.WorkSheet)}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		w.sheets[name] = sheet
		w.names = append(w.names, name)
	}
	return w, nil
}

func (w *xlsWorkbook) SheetNames() []string { return w.names }

func (w *xlsWorkbook) Rows(name string) ([][]string, error) {
	sheet, ok := w.sheets[name]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", name)
	}
	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (w *xlsWorkbook) Close() error { return nil }

func openWorkbook(path string) (workbook, error) {
	if extensionOf(path) == ".xls" {
		w, err := openXLS(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &xlsxWorkbook{f: f}, nil
}

// trimTrailingEmpty drops blank trailing rows, which spreadsheet readers
// report for formatted but empty cells.
func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		if strings.TrimSpace(strings.Join(last, "")) != "" {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}

// padHeader widens the header row to the widest row so every value gets a column.
func padHeader(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if len(rows) > 0 && len(rows[0]) < width {
		rows[0] = fitWidth(rows[0], width)
	}
	return rows
}

// processExcel renders every sheet of a workbook. A sheet that fails to read
// is reported inline and does not abort the others.
func processExcel(path string, cfg *Config, log logrus.FieldLogger) (string, Metadata, error) {
	wb, err := openWorkbook(path)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	names := wb.SheetNames()
	md := []string{
		fmt.Sprintf("# %s\n", filepath.Base(path)),
		"**File Type:** Excel",
		fmt.Sprintf("**Number of Sheets:** %d", len(names)),
		fmt.Sprintf("**Sheet Names:** %s\n", strings.Join(names, ", ")),
	}

	totalRows, maxCols := 0, 0
	sheets := make(map[string]any)
	for _, name := range names {
		rows, err := wb.Rows(name)
		if err != nil {
			log.WithError(err).WithField("sheet", name).Warn("sheet failed")
			md = append(md, fmt.Sprintf("## Sheet: %s\n", name), fmt.Sprintf("*Error processing this sheet: %v*\n", err))
			continue
		}
		f := newFrame(padHeader(trimTrailingEmpty(rows)))
		if f.empty() {
			md = append(md, fmt.Sprintf("## Sheet: %s\n", name), "*No data found in this sheet*\n")
			continue
		}

		origRows, origCols := len(f.rows), len(f.header)
		totalRows += origRows
		maxCols = max(maxCols, origCols)

		shown := f.cleaned().truncate(cfg.MaxRowsDisplay, cfg.MaxColumnsDisplay)
		md = append(md,
			fmt.Sprintf("## Sheet: %s\n", name),
			fmt.Sprintf("**Dimensions:** %d rows × %d columns", origRows, origCols))
		if origRows > cfg.MaxRowsDisplay || origCols > cfg.MaxColumnsDisplay {
			md = append(md, fmt.Sprintf(" *(showing %d rows × %d columns)*", len(shown.rows), len(shown.header)))
		}
		md = append(md, "\n", renderMarkdownTable(shown.header, shown.rows)+"\n")

		sheets[name] = map[string]any{
			"rows":         origRows,
			"columns":      origCols,
			"column_names": shown.header,
		}
	}

	if names == nil {
		names = []string{}
	}
	meta := baseMetadata(path, "pandas_excel")
	meta["file_type"] = "Excel"
	meta["sheet_count"] = len(names)
	meta["sheet_names"] = names
	meta["total_rows"] = totalRows
	meta["max_columns"] = maxCols
	meta["sheets_data"] = sheets
	return strings.Join(md, "\n"), meta, nil
}
