package pandoc

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	reTableCaption = regexp.MustCompile(`(\n\n): \[\]\{.*?\}(Tabela[^\n]+)`)
	reTitleLine    = regexp.MustCompile(`(?m)^---\s*\ntitle:\s*(.*?)\n`)
)

// FixMediaPaths collapses the media/media/ prefix left by --extract-media
// when the input already referenced media/. It reports whether anything changed.
func FixMediaPaths(content string) (string, bool) {
	if !strings.Contains(content, "media/media/") {
		return content, false
	}
	return strings.ReplaceAll(content, "media/media/", "media/"), true
}

// FixTableCaptions turns the attribute-span captions pandoc emits for
// "Tabela" tables into bold lines.
func FixTableCaptions(content string) string {
	return reTableCaption.ReplaceAllString(content, "\n\n**$2**")
}

type frontMatter struct {
	Title any `yaml:"title"`
}

// FrontMatterTitle returns the document title from a YAML metadata block.
// A "---" line directly followed by "title:" is accepted anywhere in content.
func FrontMatterTitle(content string) (string, bool) {
	if block, ok := leadingBlock(content); ok {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(block), &fm); err == nil {
			if s, ok := fm.Title.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	m := reTitleLine.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	raw := strings.TrimSpace(m[1])
	var fm frontMatter
	if err := yaml.Unmarshal([]byte("title: "+raw), &fm); err == nil {
		if s, ok := fm.Title.(string); ok {
			return strings.TrimSpace(s), true
		}
	}
	return raw, true
}

// leadingBlock returns the YAML between an opening "---" line and the next
// "---" or "..." line.
func leadingBlock(content string) (string, bool) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return "", false
	}
	for _, end := range []string{"\n---\n", "\n...\n"} {
		if i := strings.Index(rest, end); i >= 0 {
			return rest[:i], true
		}
	}
	return "", false
}
