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
	"sort"
	"strings"
)

// mdImageRef matches ![alt](target "title") with an optional title.
var mdImageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s*"([^"]*)")?\)`)

// RewriteImageRefs replaces every Markdown image and HTML <img> reference to
// a decided placeholder. Longer placeholders are handled first so that one
// placeholder being a prefix of another cannot corrupt the longer reference.
// References to placeholders without a decision are left untouched.
func RewriteImageRefs(markdown string, decisions map[string]ImageDecision) string {
	for _, ph := range longestFirst(decisions) {
		markdown = rewritePlaceholder(markdown, ph, decisions[ph])
	}
	return markdown
}

func longestFirst(decisions map[string]ImageDecision) []string {
	keys := make([]string, 0, len(decisions))
	for k := range decisions {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func rewritePlaceholder(markdown, placeholder string, d ImageDecision) string {
	q := regexp.QuoteMeta(placeholder)
	target := d.Target()

	mdRef := regexp.MustCompile(`(?i)!\[([^\]]*)\]\(` + q + `(\s*"[^"]*")?\)`)
	markdown = mdRef.ReplaceAllStringFunc(markdown, func(m string) string {
		if d.Action == ActionRemove {
			return ""
		}
		sub := mdRef.FindStringSubmatch(m)
		return "![" + sub[1] + "](" + target + sub[2] + ")"
	})

	tag := regexp.MustCompile(`(?i)(<img\s[^>]*?src\s*=\s*)(?:"` + q + `"|'` + q + `')([^>]*>)`)
	return tag.ReplaceAllStringFunc(markdown, func(m string) string {
		if d.Action == ActionRemove {
			return ""
		}
		sub := tag.FindStringSubmatch(m)
		quote := `"`
		if strings.HasPrefix(m[len(sub[1]):], "'") {
			quote = "'"
		}
		return sub[1] + quote + target + quote + sub[2]
	})
}
