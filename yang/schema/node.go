// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package schema implements the resolved YANG schema tree (spec.md
// component A): a forest of modules with imports/augments/uses/refines
// resolved, typedef/leafref/identity linkage, and lookup APIs used by the
// instance tree (package yang/data), the validator (package union) and the
// XPath path-arg evaluator (package yang/xpath).
package schema

import (
	"fmt"
	"strings"

	"github.com/netconfd/confd/yang/xpath"
)

// Kind is the statement kind of a datanode or schema-tree-only construct.
type Kind int

const (
	KindModule Kind = iota
	KindContainer
	KindList
	KindLeaf
	KindLeafList
	KindChoice
	KindCase
	KindRPC
	KindAction
	KindNotification
	KindInput
	KindOutput
	KindAnydata
	KindAnyxml
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindContainer:
		return "container"
	case KindList:
		return "list"
	case KindLeaf:
		return "leaf"
	case KindLeafList:
		return "leaf-list"
	case KindChoice:
		return "choice"
	case KindCase:
		return "case"
	case KindRPC:
		return "rpc"
	case KindAction:
		return "action"
	case KindNotification:
		return "notification"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindAnydata:
		return "anydata"
	case KindAnyxml:
		return "anyxml"
	}
	return "unknown"
}

// Flag bits computed during resolution pass 7 (spec.md 4.1).
type Flag uint32

const (
	FlagPresence Flag = 1 << iota
	FlagOrderedByUser
	FlagConfigFalse
	FlagMountPoint
	FlagMandatory
)

func (n *Node) Has(f Flag) bool { return n.flags&f != 0 }

// Node is a resolved schema datanode (or a module/rpc/input/output
// structural node). Cross references (parent, children, leafref targets,
// identity bases) are plain Go pointers, including pointers into other
// modules of the same Domain.
type Node struct {
	Kind      Kind
	Name      string
	Module    *Module // owning module
	Parent    *Node
	Children  []*Node

	// leaf / leaf-list
	Type *Type

	// list
	KeyNames []string
	MinElems int
	MaxElems int // 0 == unbounded

	Mandatory bool
	Default   []string // one entry for leaf, possibly many for leaf-list

	Whens  []*Constraint
	Musts  []*Constraint
	Unique [][]string // each entry is a set of relative leaf paths

	flags Flag

	// mount-point module-set-id callback key (spec.md 4.8); populated by
	// the mount package when the extension is present.
	MountExtension bool

	canonicalPath string
}

// Constraint is a compiled when/must statement attached to a schema node.
type Constraint struct {
	XPath   string
	Program *xpath.Program
	AppTag  string
	Message string
}

// Presence reports whether a container is a presence container (has a
// "presence" substatement) rather than a structural non-presence container.
func (n *Node) Presence() bool { return n.Has(FlagPresence) }

func (n *Node) OrderedByUser() bool { return n.Has(FlagOrderedByUser) }

// Config reports the effective config value (true unless this node or an
// ancestor declared "config false").
func (n *Node) Config() bool { return !n.Has(FlagConfigFalse) }

func (n *Node) IsMountPoint() bool { return n.Has(FlagMountPoint) }

// CanonicalPath returns the module-prefixed absolute schema path, e.g.
// "/ex:top/ex:x", computed once and cached at resolution time.
func (n *Node) CanonicalPath() string {
	if n.canonicalPath != "" {
		return n.canonicalPath
	}
	if n.Parent == nil {
		n.canonicalPath = "/"
		return n.canonicalPath
	}
	parent := n.Parent.CanonicalPath()
	if parent == "/" {
		parent = ""
	}
	n.canonicalPath = parent + "/" + n.Module.Prefix + ":" + n.Name
	return n.canonicalPath
}

// Child finds an immediate schema child by name, transparently flattening
// choice/case wrapper nodes (spec.md section 4.1 lookup requirement).
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Kind == KindChoice || c.Kind == KindCase {
			if found := c.Child(name); found != nil {
				return found
			}
			continue
		}
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FlattenedChildren flattens choice/case wrapping so callers see only datanodes.
func (n *Node) FlattenedChildren() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == KindChoice || c.Kind == KindCase {
			out = append(out, c.FlattenedChildren()...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsKey reports whether leaf name is one of this list's key leaves.
func (n *Node) IsKey(name string) bool {
	for _, k := range n.KeyNames {
		if k == name {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s", n.Kind, n.CanonicalPath())
}

// Root walks up to the owning module's top-level statement node.
func (n *Node) Root() *Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// xnode adapts a schema Node to xpath.Node for path-arg resolution
// (spec.md section 4.5.2). It is a separate wrapper rather than methods on
// Node itself because Node already exposes Parent/Children as plain fields
// used throughout this package.
type xnode struct{ n *Node }

func asXPathNode(n *Node) xpath.Node {
	if n == nil {
		return nil
	}
	return xnode{n}
}

func (x xnode) LocalName() string    { return x.n.Name }
func (x xnode) NamespaceURI() string { return x.n.Module.Namespace }
func (x xnode) IsAttribute() bool    { return false }
func (x xnode) StringValue() string  { return "" }
func (x xnode) Attributes() []xpath.Node { return nil }

func (x xnode) Parent() xpath.Node {
	if x.n.Parent == nil {
		return nil
	}
	return xnode{x.n.Parent}
}

func (x xnode) Children() []xpath.Node {
	out := make([]xpath.Node, len(x.n.Children))
	for i, c := range x.n.Children {
		out[i] = xnode{c}
	}
	return out
}

// pathSegments splits a "/"-separated canonical or relative path.
func pathSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
