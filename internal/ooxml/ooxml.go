// Package ooxml reads the parts of an Office Open XML package (a zip of XML
// parts linked by relationship files).
package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// NSRelationships is the namespace of r:id and r:embed attributes.
const NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// Relationship types used by presentations.
const (
	RelSlide      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	RelNotesSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	RelImage      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Relationship represents an OOXML relationship.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

type relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// Package is an opened OOXML container.
type Package struct {
	zr     *zip.Reader
	closer io.Closer
	files  map[string]*zip.File
}

// Open opens the package at path.
func Open(name string) (*Package, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	p := newPackage(&rc.Reader)
	p.closer = rc
	return p, nil
}

// NewPackage wraps an already opened zip reader.
func NewPackage(zr *zip.Reader) *Package {
	return newPackage(zr)
}

func newPackage(zr *zip.Reader) *Package {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return &Package{zr: zr, files: files}
}

// Close releases the underlying file, if any.
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Has reports whether the part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.files[name]
	return ok
}

// Names lists every part in archive order.
func (p *Package) Names() []string {
	names := make([]string, 0, len(p.zr.File))
	for _, f := range p.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Read returns the bytes of a part.
func (p *Package) Read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ReadNode parses a part into a generic tree.
func (p *Package) ReadNode(name string) (*Node, error) {
	data, err := p.Read(name)
	if err != nil {
		return nil, err
	}
	return ParseNode(data)
}

// Rels returns the relationships of part keyed by ID. A part without a rels
// file has no relationships.
func (p *Package) Rels(part string) (map[string]Relationship, error) {
	relsPath := RelsPathFor(part)
	if !p.Has(relsPath) {
		return map[string]Relationship{}, nil
	}
	data, err := p.Read(relsPath)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("decode relationships %s: %w", relsPath, err)
	}
	result := make(map[string]Relationship, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		result[rel.ID] = rel
	}
	return result, nil
}

// CoreTitle returns dc:title from docProps/core.xml, or "".
func (p *Package) CoreTitle() string {
	root, err := p.ReadNode("docProps/core.xml")
	if err != nil {
		return ""
	}
	if t := root.Find("title"); t != nil {
		return strings.TrimSpace(t.Text())
	}
	return ""
}

// RelsPathFor returns the .rels path for a given part.
func RelsPathFor(filePath string) string {
	dir := path.Dir(filePath)
	base := path.Base(filePath)
	if dir == "." {
		return "_rels/" + base + ".rels"
	}
	return dir + "/_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target against the part that owns it.
func ResolveTarget(basePath, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(basePath), target)
}
