// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package data

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/netconfd/confd/yang/schema"
)

// editConfigOpNS is the NETCONF base namespace the "operation" attribute
// is always qualified with, regardless of which module owns the element
// it appears on (RFC 6241 section 7.2).
const editConfigOpNS = "urn:ietf:params:xml:ns:netconf:base:1.0"

// Binder walks a parsed XML document in document order and resolves each
// element's name within its ancestor namespace context against the
// expected schema children (spec.md section 4.2's "Binding"). Unknown
// well-formed nodes are rejected unless the expected schema child is
// anydata/anyxml or a mount-point boundary is crossed (component H,
// resolved by a caller-supplied MountLookup rather than imported here, to
// avoid a yang/data -> mount -> yang/data import cycle).
type Binder struct {
	Domain *schema.Domain
	// Mounts resolves a mount-point instance to the schema.Domain that
	// governs it, so binding can cross into the mounted subtree with a
	// fresh module/namespace context (spec.md section 4.8). Nil if
	// schema-mount is unused.
	Mounts func(mountPoint *Node) (*schema.Domain, error)
}

// Bind parses xmlBytes (a sequence of zero or more top-level data
// elements, such as the content of an edit-config <config>) into an
// instance tree under a synthetic root node named "config". Each
// top-level element is resolved against the domain's modules by
// namespace; a <config> wrapper element itself is not accepted.
func (b *Binder) Bind(xmlBytes []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	root := &Node{Name: "config"}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			sn, err := b.resolveTopLevel(start.Name)
			if err != nil {
				return nil, err
			}
			child, err := b.bindElement(dec, start, sn, root)
			if err != nil {
				return nil, err
			}
			root.AppendChild(child)
		}
	}
	return root, nil
}

func (b *Binder) resolveTopLevel(name xml.Name) (*schema.Node, error) {
	for _, m := range b.Domain.Modules() {
		if m.Namespace == name.Space {
			if sn := m.Root.Child(name.Local); sn != nil {
				return sn, nil
			}
		}
	}
	return nil, fmt.Errorf("data: unknown top-level element {%s}%s", name.Space, name.Local)
}

// bindElement consumes one element (already positioned at its
// StartElement) and everything up to its matching EndElement, producing a
// bound Node. sn may be nil for an anydata/anyxml subtree, in which case
// children are bound without schema pointers.
func (b *Binder) bindElement(dec *xml.Decoder, start xml.StartElement, sn *schema.Node, parent *Node) (*Node, error) {
	n := &Node{Schema: sn, Name: start.Name.Local}
	for _, attr := range start.Attr {
		if attr.Name.Space == editConfigOpNS && attr.Name.Local == "operation" {
			op, err := ParseOp(attr.Value)
			if err != nil {
				return nil, err
			}
			n.SetOp(op)
		}
	}

	if sn != nil && sn.IsMountPoint() && b.Mounts != nil {
		mountDomain, err := b.Mounts(n)
		if err != nil {
			return nil, err
		}
		if mountDomain != nil {
			sub := &Binder{Domain: mountDomain, Mounts: b.Mounts}
			return sub.bindMountedChildren(dec, start, n)
		}
	}

	var textBuf strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var childSn *schema.Node
			if sn != nil {
				childSn = sn.Child(t.Name.Local)
				if childSn == nil && sn.Kind != schema.KindAnydata && sn.Kind != schema.KindAnyxml {
					// Unknown well-formed node under a schema-bound
					// parent is rejected (spec.md section 4.2) unless
					// the parent is itself unbound (sn == nil, an
					// anydata/anyxml descendant) or is anydata/anyxml.
					return nil, fmt.Errorf("data: unknown element %q under %s", t.Name.Local, n.Path())
				}
			}
			child, err := b.bindElement(dec, t, childSn, n)
			if err != nil {
				return nil, err
			}
			n.AppendChild(child)
		case xml.CharData:
			textBuf.Write(t)
		case xml.EndElement:
			if len(n.children) == 0 {
				n.Value = strings.TrimSpace(textBuf.String())
			}
			return n, nil
		}
	}
}

// BindAt parses xmlBytes as the content of a single resource already known
// to be sn - the RESTCONF POST/PUT/PATCH XML body shape (spec.md section
// 4.7), which names only the target resource rather than a whole
// document, unlike Bind's top-level namespace resolution.
func (b *Binder) BindAt(sn *schema.Node, xmlBytes []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("data: empty body")
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return b.bindElement(dec, start, sn, nil)
		}
	}
}

func (b *Binder) bindMountedChildren(dec *xml.Decoder, start xml.StartElement, n *Node) (*Node, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			sn, err := b.resolveTopLevel(t.Name)
			if err != nil {
				return nil, err
			}
			child, err := b.bindElement(dec, t, sn, n)
			if err != nil {
				return nil, err
			}
			n.AppendChild(child)
		case xml.EndElement:
			return n, nil
		}
	}
}
