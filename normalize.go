package ragprep

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
	reBlankRun      = regexp.MustCompile(`\n{3,}`)
)

// tidyMarkdown cleans in-process HTML conversions: LF line endings, no
// control characters, no trailing blanks and at most one empty line in a row.
func tidyMarkdown(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = reTrailingSpace.ReplaceAllString(s+"\n", "\n")
	s = reBlankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
