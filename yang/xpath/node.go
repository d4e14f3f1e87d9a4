// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package xpath implements XPath 1.0 (W3C REC 16-Nov-1999) evaluation in
// two modes sharing one parser and AST (spec.md component C):
//
//   - Instance mode evaluates a full expression against an instance tree
//     (package yang/data), producing node-sets/numbers/strings/booleans.
//   - Schema-path mode ("path-arg", RFC 7950 section 9.9.2) evaluates the
//     restricted leafref path grammar against a schema tree (package
//     yang/schema), accepting only child/parent axes, current(), and
//     equality predicates on key leaves (treated as always-true at schema
//     level).
//
// Both trees implement the Node interface below so the engine never
// imports yang/data or yang/schema directly, avoiding an import cycle.
package xpath

// Node is the minimal tree-navigation surface XPath evaluation needs. Both
// the bound instance tree and the schema tree implement it.
type Node interface {
	// LocalName is the node's unqualified name ("" for text/root nodes).
	LocalName() string
	// NamespaceURI is the node's owning-module namespace.
	NamespaceURI() string
	// Parent returns the node's parent, or nil at the root.
	Parent() Node
	// Children returns the node's element children in document order.
	Children() []Node
	// Attributes returns the node's attribute pseudo-nodes.
	Attributes() []Node
	// StringValue is the XPath 1.0 string-value of the node (concatenated
	// descendant text for elements, the value itself for attributes/text).
	StringValue() string
	// IsAttribute distinguishes attribute nodes from element nodes for the
	// attribute:: axis and node-type tests.
	IsAttribute() bool
}

// NSResolver resolves a QName prefix used in the expression text (node test
// names, or the re-match()/deref() etc. function arguments) to a namespace
// URI, scoped to the expression's defining context.
type NSResolver interface {
	Resolve(prefix string) (uri string, ok bool)
}
