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
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// StatusFunc receives human-readable status messages.
type StatusFunc func(message string)

// ProgressFunc receives batch completion in percent (0-100).
type ProgressFunc func(percent float64)

// Request describes one conversion. Processors may only write below MediaDir
// and OutputDir and never modify Config.
type Request struct {
	SourcePath string
	OutputDir  string
	MediaDir   string
	Config     *Config
	Status     StatusFunc
	Logger     logrus.FieldLogger
}

func (r *Request) config() *Config {
	if r.Config == nil {
		return DefaultConfig()
	}
	return r.Config
}

func (r *Request) notify(msg string) {
	if r.Status != nil {
		r.Status(msg)
	}
}

func (r *Request) log() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return discardLogger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Metadata is the sidecar record written as metadata.json.
type Metadata map[string]any

// Result is the outcome of a processor. A failed result has Err set, an
// "error" key in Metadata and no Markdown.
type Result struct {
	Markdown string
	Metadata Metadata
	Err      error
}

// Failed reports whether the processor rejected the input.
func (r *Result) Failed() bool {
	return r == nil || r.Err != nil
}

// Processor converts one family of formats to Markdown.
type Processor interface {
	// Name identifies the implementation; the registry keeps one processor per name.
	Name() string
	// SupportedExtensions lists lower-case extensions including the leading dot.
	SupportedExtensions() []string
	// CanProcess rejects temp/system files before checking the extension.
	CanProcess(path string) bool
	// Process never returns expected failures as panics; they come back as a failed Result.
	Process(ctx context.Context, req *Request) *Result
}

func baseMetadata(path, parser string) Metadata {
	return Metadata{
		"source_filename": filepath.Base(path),
		"parser":          parser,
	}
}

func succeed(markdown string, meta Metadata) *Result {
	return &Result{Markdown: markdown, Metadata: meta}
}

func fail(meta Metadata, err error) *Result {
	if meta == nil {
		meta = Metadata{}
	}
	meta["error"] = err.Error()
	return &Result{Metadata: meta, Err: err}
}

func failWith(path, parser string, err error) *Result {
	return fail(baseMetadata(path, parser), &ExtractionError{Parser: parser, Err: err})
}

// extensionOf returns the lower-cased extension of path.
func extensionOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// canProcess is the shared CanProcess implementation.
func canProcess(path string, exts []string) bool {
	if isCommonTempFile(path) {
		return false
	}
	return slices.Contains(exts, extensionOf(path))
}

// isCommonTempFile matches Office lock files, editor leftovers and OS metadata files.
func isCommonTempFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasPrefix(name, "~$"), strings.HasPrefix(name, ".~"):
		return true
	case strings.HasSuffix(name, ".tmp"), strings.HasSuffix(name, ".bak"):
		return true
	}
	switch name {
	case "thumbs.db", "desktop.ini", ".ds_store":
		return true
	}
	return false
}
