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
	"sort"

	"github.com/nicholasgasior/ragprep-go/internal/pandoc"
)

// ExternalConverter is a processor whose format coverage depends on a tool
// detected at runtime.
type ExternalConverter interface {
	Processor
	// Supports reports whether the tool is installed and accepts the file's format.
	Supports(path string) bool
}

// Registry maps file extensions to processors. The first processor
// registered for an extension owns it.
type Registry struct {
	processors []Processor
	byExt      map[string]Processor
	external   ExternalConverter
	fallback   Processor
}

// NewRegistry builds a registry with the given fallback, optional external
// converter and processors in registration order.
func NewRegistry(fallback Processor, external ExternalConverter, processors ...Processor) *Registry {
	r := &Registry{
		byExt:    make(map[string]Processor),
		external: external,
		fallback: fallback,
	}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

// DefaultRegistry returns the built-in processors in their canonical order.
func DefaultRegistry() *Registry {
	simple := NewSimpleProcessor()
	external := NewPandocProcessor(pandoc.Default())
	return NewRegistry(simple, external,
		NewPDFProcessor(),
		NewMarkdownProcessor(),
		NewPresentationProcessor(),
		NewTabularProcessor(),
		simple,
		NewFeedProcessor(),
		external,
	)
}

// Register appends p unless a processor with the same name is already
// present. It reports whether p was added.
func (r *Registry) Register(p Processor) bool {
	for _, existing := range r.processors {
		if existing.Name() == p.Name() {
			return false
		}
	}
	r.processors = append(r.processors, p)
	for _, ext := range p.SupportedExtensions() {
		if _, taken := r.byExt[ext]; !taken {
			r.byExt[ext] = p
		}
	}
	return true
}

// Processors returns the registered processors in order.
func (r *Registry) Processors() []Processor {
	out := make([]Processor, len(r.processors))
	copy(out, r.processors)
	return out
}

// Lookup returns the processor that claims ext.
func (r *Registry) Lookup(ext string) (Processor, bool) {
	p, ok := r.byExt[ext]
	return p, ok
}

// Select returns the processor responsible for path. It never returns nil
// when the registry has a fallback.
func (r *Registry) Select(path string) Processor {
	if p, ok := r.byExt[extensionOf(path)]; ok {
		return p
	}
	if r.external != nil && r.external.Supports(path) {
		return r.external
	}
	return r.fallback
}

// Claims reports whether a registered processor owns the extension of path.
func (r *Registry) Claims(path string) bool {
	_, ok := r.byExt[extensionOf(path)]
	return ok
}

// Eligible reports whether a batch should pick up path.
func (r *Registry) Eligible(path string) bool {
	if isCommonTempFile(path) {
		return false
	}
	if r.Claims(path) {
		return true
	}
	return r.external != nil && r.external.Supports(path)
}

// SupportedExtensions lists every claimed extension, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
