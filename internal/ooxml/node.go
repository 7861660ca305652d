package ooxml

import (
	"encoding/xml"
	"strings"
)

// Node is a generic XML element. Lookups match local names only, so callers
// never deal with namespace prefixes.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Node     `xml:",any"`
	Content  string     `xml:",chardata"`
}

// ParseNode decodes an XML document into a Node tree.
func ParseNode(data []byte) (*Node, error) {
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Local is the element name without namespace.
func (n *Node) Local() string { return n.XMLName.Local }

// Attr returns the attribute with the given local name.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// RelAttr returns an attribute in the relationships namespace, such as r:id.
// Elements like p:sldId carry both id and r:id, so the namespace matters.
func (n *Node) RelAttr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local && (a.Name.Space == NSRelationships || a.Name.Space == "r") {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func (n *Node) AttrOr(local, def string) string {
	if v, ok := n.Attr(local); ok {
		return v
	}
	return def
}

// Child returns the first direct child named local.
func (n *Node) Child(local string) *Node {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// Path follows a chain of direct children.
func (n *Node) Path(locals ...string) *Node {
	cur := n
	for _, l := range locals {
		if cur = cur.Child(l); cur == nil {
			return nil
		}
	}
	return cur
}

// ChildrenNamed returns the direct children named local.
func (n *Node) ChildrenNamed(local string) []*Node {
	var out []*Node
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// Find returns the first descendant named local, depth first.
func (n *Node) Find(local string) *Node {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local {
			return c
		}
		if found := c.Find(local); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant named local in document order.
func (n *Node) FindAll(local string) []*Node {
	var out []*Node
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local {
			out = append(out, c)
		}
		out = append(out, c.FindAll(local)...)
	}
	return out
}

// Text concatenates the character data of n and its descendants.
func (n *Node) Text() string {
	if len(n.Children) == 0 {
		return n.Content
	}
	var b strings.Builder
	for i := range n.Children {
		b.WriteString(n.Children[i].Text())
	}
	return b.String()
}
