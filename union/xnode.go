// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package union implements the validator (spec.md component D): type,
// key, unique, mandatory, when/must and leafref checks over a schema-bound
// instance tree, plus default-leaf instantiation ahead of validation.
//
// The name follows the teacher's own "union" terminology for the
// candidate/running overlay this validator runs against; here it is a
// dedicated validation pass over a single already-merged yang/data tree
// rather than a lazy two-tree overlay, since yang/data.Node.Clone already
// gives datastore (component E) a cheap copy-on-write candidate.
package union

import "github.com/netconfd/confd/yang/xpath"

// dnode adapts *data.Node to xpath.Node. data.Node cannot implement
// xpath.Node directly: its own Parent()/Children() methods return *Node,
// not xpath.Node, so the signatures collide. Kept as an unexported
// lightweight wrapper rather than changing data.Node's public field-like
// accessors.
type dnode struct{ n dataNode }

// dataNode is the subset of *data.Node this package needs, expressed as an
// interface so this file doesn't import yang/data directly.
type dataNode interface {
	LocalName() string
	NamespaceURI() string
	IsAttribute() bool
	StringValue() string
	Attributes() []xpath.Node
	XPathParent() xpath.Node
	XPathChildren() []xpath.Node
}

func wrap(n dataNode) xpath.Node {
	if n == nil {
		return nil
	}
	return dnode{n}
}

func (x dnode) LocalName() string    { return x.n.LocalName() }
func (x dnode) NamespaceURI() string { return x.n.NamespaceURI() }
func (x dnode) IsAttribute() bool    { return x.n.IsAttribute() }
func (x dnode) StringValue() string  { return x.n.StringValue() }
func (x dnode) Attributes() []xpath.Node { return x.n.Attributes() }
func (x dnode) Parent() xpath.Node       { return x.n.XPathParent() }
func (x dnode) Children() []xpath.Node   { return x.n.XPathChildren() }
