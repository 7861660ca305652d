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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// textKind selects how the simple processor formats a file.
type textKind int

const (
	kindPlain textKind = iota
	kindJSON
	kindCode
)

func (k textKind) parser() string {
	switch k {
	case kindJSON:
		return "json_simple"
	case kindCode:
		return "code_simple"
	default:
		return "txt_simple"
	}
}

var codeExtensions = []string{".py", ".js", ".java", ".cs", ".c", ".cpp", ".go", ".rb", ".php", ".rs", ".kt", ".swift"}

// SimpleProcessor handles plain text, JSON and source code. It is also the
// registry fallback: unknown extensions are treated as plain text.
type SimpleProcessor struct{}

// NewSimpleProcessor creates a new SimpleProcessor.
func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

func (p *SimpleProcessor) Name() string { return "simple" }

func (p *SimpleProcessor) SupportedExtensions() []string {
	return append([]string{".txt", ".json"}, codeExtensions...)
}

func (p *SimpleProcessor) CanProcess(path string) bool {
	return canProcess(path, p.SupportedExtensions())
}

func kindOf(ext string) textKind {
	switch ext {
	case ".json":
		return kindJSON
	case ".txt":
		return kindPlain
	}
	for _, c := range codeExtensions {
		if c == ext {
			return kindCode
		}
	}
	return kindPlain
}

func (p *SimpleProcessor) Process(_ context.Context, req *Request) *Result {
	ext := extensionOf(req.SourcePath)
	kind := kindOf(ext)
	log := req.log().WithFields(logrus.Fields{"file": req.SourcePath, "parser": kind.parser()})

	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		log.WithError(err).Error("read failed")
		return failWith(req.SourcePath, kind.parser(), err)
	}
	content := decodeText(data)
	meta := baseMetadata(req.SourcePath, kind.parser())

	switch kind {
	case kindJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
			// Invalid JSON still produces a document.
			log.WithError(err).Warn("invalid JSON, emitting raw block")
			meta["error"] = err.Error()
			return succeed(fmt.Sprintf("```\n%s\n```", content), meta)
		}
		return succeed(fmt.Sprintf("```json\n%s\n```", buf.String()), meta)
	case kindCode:
		lang := strings.TrimPrefix(ext, ".")
		meta["language"] = lang
		return succeed(fmt.Sprintf("```%s\n%s\n```", lang, content), meta)
	default:
		if ext != ".txt" {
			log.Warn("no formatter for extension, using plain text")
		}
		return succeed(content, meta)
	}
}
