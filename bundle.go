package ragprep

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	bundleSignature   = `bundle,"key"`
	maxBundleText     = 150
	maxBundleKeyChars = 50
)

// isBundleFile reports whether data is a translation bundle export.
func isBundleFile(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var first string
	if utf8.Valid(line) {
		first = string(line)
	} else if s, err := decodeAs(line, "latin-1"); err == nil {
		first = s
	}
	return strings.HasPrefix(strings.TrimSpace(first), bundleSignature)
}

func isBundleKeyColumn(name string) bool {
	switch strings.ToLower(name) {
	case "bundle", "key":
		return true
	}
	return false
}

// processBundle renders a translation bundle: one column per language plus
// per-language counts.
func processBundle(path string, data []byte, cfg *Config, log logrus.FieldLogger) (string, Metadata, error) {
	var (
		f       *frame
		usedEnc string
	)
	for _, enc := range csvEncodings {
		text, err := decodeAs(data, enc)
		if err != nil {
			log.WithError(err).Debugf("bundle decode with %s failed", enc)
			continue
		}
		parsed, err := parseDelimited(text, csvOptions{sep: ',', trimLeading: true})
		if err != nil {
			log.WithError(err).Debugf("bundle parse with %s failed", enc)
			continue
		}
		f, usedEnc = parsed, enc
		break
	}
	if f == nil {
		return "", nil, errors.New("Unable to parse bundle file with any encoding")
	}

	var languages []string
	bundleCol := -1
	for i, h := range f.header {
		if strings.ToLower(h) == "bundle" && bundleCol < 0 {
			bundleCol = i
		}
		if !isBundleKeyColumn(h) {
			languages = append(languages, h)
		}
	}

	header := make([]string, len(f.header))
	for i, h := range f.header {
		header[i] = cleanColumnName(h)
	}
	rows := make([][]string, len(f.rows))
	for r, row := range f.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = bundleCell(c, header[i], i == bundleCol)
		}
		rows[r] = cells
	}

	total := len(rows)
	shown := rows
	if limit := cfg.MaxRowsDisplay; total > limit {
		shown = rows[:limit]
		log.Infof("truncated bundle to %d rows (original: %d)", limit, total)
	}

	unique := 0
	if bundleCol >= 0 {
		seen := make(map[string]bool)
		for _, row := range f.rows {
			if v := row[bundleCol]; !isNullCell(v) && !seen[v] {
				seen[v] = true
			}
		}
		unique = len(seen)
	}

	name := filepath.Base(path)
	md := []string{
		fmt.Sprintf("# %s - Translation Bundle\n", name),
		"**File Type:** Translation Bundle (CSV)",
		fmt.Sprintf("**Encoding:** %s", usedEnc),
		"**Structure:** Bundle translations with quoted text support",
		fmt.Sprintf("**Languages:** %s", strings.Join(languages, ", ")),
		fmt.Sprintf("**Total Entries:** %d translation entries", total),
		fmt.Sprintf("**Total Languages:** %d", len(languages)),
	}
	if total > cfg.MaxRowsDisplay {
		md = append(md, fmt.Sprintf("**Note:** Showing first %d entries out of %d", cfg.MaxRowsDisplay, total))
	}
	md = append(md, "\n## Translation Data\n")
	if total == 0 {
		md = append(md, "*No translation data found*")
	} else {
		md = append(md, renderMarkdownTable(header, shown))
		md = append(md, "\n## Summary\n", fmt.Sprintf("- **Unique Bundles:** %d", unique))
		for i, h := range f.header {
			if isBundleKeyColumn(h) {
				continue
			}
			filled := 0
			for _, row := range f.rows {
				if !isNullCell(row[i]) {
					filled++
				}
			}
			md = append(md, fmt.Sprintf("- **%s Translations:** %d", strings.ToUpper(h), filled))
		}
	}

	if languages == nil {
		languages = []string{}
	}
	meta := baseMetadata(path, "pandas_bundle_csv")
	meta["file_type"] = "Translation Bundle"
	meta["encoding"] = usedEnc
	meta["separator"] = ","
	meta["languages"] = languages
	meta["total_entries"] = total
	meta["total_languages"] = len(languages)
	meta["unique_bundles"] = unique
	meta["displayed_entries"] = len(shown)
	meta["column_names"] = header
	return strings.Join(md, "\n"), meta, nil
}

// bundleCell cleans one bundle cell. Bundle names keep their text and are
// only made table-safe; translations are fully sanitized.
func bundleCell(value, column string, isBundleName bool) string {
	if isNullCell(value) {
		return ""
	}
	limit := maxBundleText
	if isBundleKeyColumn(column) {
		limit = maxBundleKeyChars
	}
	if isBundleName {
		s := strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ").Replace(value)
		return ellipsize(s, limit)
	}
	return ellipsize(cleanCell(value), limit)
}
