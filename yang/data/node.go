// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package data implements the instance tree (spec.md component B): a
// schema-bound configuration/state data tree built from NETCONF XML or
// RESTCONF JSON, with the structural operations edit-config merge needs
// (insert, replace, detach) and an xpath.Node view for the XPath engine.
package data

import (
	"fmt"

	"github.com/netconfd/confd/yang/schema"
	"github.com/netconfd/confd/yang/xpath"
)

// Op is an edit-config "operation" attribute value (RFC 6241 section 7.2).
type Op int

const (
	OpMerge Op = iota
	OpReplace
	OpCreate
	OpDelete
	OpRemove
	OpNone
)

func (o Op) String() string {
	switch o {
	case OpMerge:
		return "merge"
	case OpReplace:
		return "replace"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpRemove:
		return "remove"
	case OpNone:
		return "none"
	}
	return "merge"
}

func ParseOp(s string) (Op, error) {
	switch s {
	case "", "merge":
		return OpMerge, nil
	case "replace":
		return OpReplace, nil
	case "create":
		return OpCreate, nil
	case "delete":
		return OpDelete, nil
	case "remove":
		return OpRemove, nil
	case "none":
		return OpNone, nil
	}
	return OpMerge, fmt.Errorf("invalid operation %q", s)
}

// Node is one instance-tree node: a container/list-entry/leaf/leaf-list
// value bound to the schema node it instantiates. Parent is a plain
// pointer rather than a generational weak reference — see DESIGN.md's
// cross-reference note: Go's garbage collector already makes a detached
// subtree safe to keep referencing, so there is nothing for an
// index/generation scheme to protect against here.
type Node struct {
	Schema *schema.Node
	Name   string // redundant with Schema.Name except for anyxml/anydata subtrees parsed without schema binding

	// Value holds a leaf/leaf-list's canonical lexical value. Unset for
	// container/list/choice-bearing nodes.
	Value string

	parent   *Node
	children []*Node

	// Op is this node's edit-config operation attribute, defaulting to
	// "merge" when absent from the wire form (RFC 6241 section 7.2).
	Op Op

	// OpExplicit distinguishes a node whose "operation" attribute was
	// actually present on the wire from one that merely defaults to
	// OpMerge, which package datastore's edit-config dispatch needs to
	// correctly inherit a parent's effective operation (spec.md
	// section 4.5) instead of always falling back to merge.
	OpExplicit bool

	// Transient marks a node materialized only to satisfy an XPath "when"
	// or "must" evaluation (e.g. a default value not actually stored) so
	// it is never mistaken for committed configuration.
	Transient bool
}

// SetOp records an explicit edit-config "operation" attribute parsed off
// the wire (as opposed to Op's zero value, which is indistinguishable from
// an explicit "merge").
func (n *Node) SetOp(op Op) {
	n.Op = op
	n.OpExplicit = true
}

// New creates a detached node bound to sn.
func New(sn *schema.Node) *Node {
	return &Node{Schema: sn, Name: sn.Name}
}

// NewLeaf creates a detached leaf/leaf-list value node.
func NewLeaf(sn *schema.Node, value string) *Node {
	return &Node{Schema: sn, Name: sn.Name, Value: value}
}

func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }

// Child returns the first child instance matching name. Keys are not
// matched; use ChildrenNamed and MatchesKeys to pick a list entry.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every immediate child instance named name, in
// document order (used for list entries and leaf-lists sharing one name).
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// KeyValues returns this list entry's key leaf values in schema key order.
func (n *Node) KeyValues() []string {
	if n.Schema == nil {
		return nil
	}
	out := make([]string, 0, len(n.Schema.KeyNames))
	for _, k := range n.Schema.KeyNames {
		if c := n.Child(k); c != nil {
			out = append(out, c.Value)
		} else {
			out = append(out, "")
		}
	}
	return out
}

// MatchesKeys reports whether this list entry's keys equal keys, in order.
func (n *Node) MatchesKeys(keys []string) bool {
	got := n.KeyValues()
	if len(got) != len(keys) {
		return false
	}
	for i := range got {
		if got[i] != keys[i] {
			return false
		}
	}
	return true
}

// AppendChild appends child to n's children, setting child's parent.
// child must be detached first (AppendChild does not implicitly detach).
func (n *Node) AppendChild(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// InsertChildAt inserts child at position i (used by ordered-by-user
// leaf-lists/lists honoring "insert"/"before"/"after" edit-config
// attributes, RFC 6241 section 7.8.6).
func (n *Node) InsertChildAt(i int, child *Node) {
	child.parent = n
	if i < 0 || i > len(n.children) {
		i = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
}

// RemoveChild detaches child from n. child's parent becomes nil; the
// subtree itself is untouched and remains perfectly usable standalone
// (no back-pointer to invalidate).
func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// ReplaceChild swaps oldChild for newChild at the same position.
func (n *Node) ReplaceChild(oldChild, newChild *Node) {
	for i, c := range n.children {
		if c == oldChild {
			oldChild.parent = nil
			newChild.parent = n
			n.children[i] = newChild
			return
		}
	}
}

// Clone deep-copies n (used before mutating a candidate datastore copy
// independently of the tree it was read from).
func (n *Node) Clone() *Node {
	c := &Node{Schema: n.Schema, Name: n.Name, Value: n.Value, Op: n.Op, OpExplicit: n.OpExplicit, Transient: n.Transient}
	for _, ch := range n.children {
		c.AppendChild(ch.Clone())
	}
	return c
}

// Path renders the canonical instance path ("/top/iface[name='eth0']/mtu")
// used in error-path and logging contexts.
func (n *Node) Path() string {
	if n.parent == nil {
		return "/" + n.Name
	}
	seg := n.Name
	if n.Schema != nil && len(n.Schema.KeyNames) > 0 {
		seg += "["
		for i, k := range n.Schema.KeyNames {
			if i > 0 {
				seg += ","
			}
			v := ""
			if c := n.Child(k); c != nil {
				v = c.Value
			}
			seg += fmt.Sprintf("%s='%s'", k, v)
		}
		seg += "]"
	}
	return n.parent.Path() + "/" + seg
}

// The methods below implement xpath.Node (spec.md section 4.3's instance
// mode) by delegating to the fields above; a Node is its own xpath.Node,
// unlike yang/schema's wrapper type, because Parent()/Children() here
// don't collide with exported struct fields of the same name.

func (n *Node) LocalName() string { return n.Name }

func (n *Node) NamespaceURI() string {
	if n.Schema != nil && n.Schema.Module != nil {
		return n.Schema.Module.Namespace
	}
	return ""
}

func (n *Node) IsAttribute() bool { return false }

func (n *Node) StringValue() string {
	if len(n.children) == 0 {
		return n.Value
	}
	s := ""
	for _, c := range n.children {
		s += c.StringValue()
	}
	return s
}

func (n *Node) XPathParent() xpath.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) XPathChildren() []xpath.Node {
	out := make([]xpath.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) Attributes() []xpath.Node { return nil }
