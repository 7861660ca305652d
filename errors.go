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
	"errors"
	"fmt"
)

var (
	// ErrEmptyMarkdown is returned when a package would contain a zero-length body.
	ErrEmptyMarkdown = errors.New("markdown file is empty")
	// ErrMarkdownMissing is returned when the markdown file to package does not exist.
	ErrMarkdownMissing = errors.New("markdown file is missing")
	// ErrToolUnavailable reports that the external document converter is not installed.
	ErrToolUnavailable = errors.New("Pandoc is not installed or not found on PATH")
	// ErrNoParse is returned when no encoding/separator/strategy combination parses a CSV file.
	ErrNoParse = errors.New("Unable to parse CSV file with any common encoding/separator combination")
	// ErrOutputLocked is returned when another batch holds the output folder lock.
	ErrOutputLocked = errors.New("output folder is in use by another batch")
	// ErrRejectedFile is returned for temporary, backup and system files.
	ErrRejectedFile = errors.New("temporary or system file skipped")
)

// ExtractionError wraps a failure inside a processor with the parser that produced it.
type ExtractionError struct {
	Parser string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: extraction failed", e.Parser)
	}
	return e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PackagingError is returned when the output archive cannot be built.
type PackagingError struct {
	Path string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package %s: %v", e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// IsPackagingError reports whether err came from archive construction.
func IsPackagingError(err error) bool {
	var target *PackagingError
	return errors.As(err, &target)
}

// ParserOf returns the parser tag carried by an ExtractionError, or "".
func ParserOf(err error) string {
	var target *ExtractionError
	if errors.As(err, &target) {
		return target.Parser
	}
	return ""
}
