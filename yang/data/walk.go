// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package data

// WalkResult is a visitor's short-circuit instruction (spec.md
// section 4.2): Continue descends into children, SkipSubtree continues
// the walk but does not descend into the current node's children, and
// Stop/StopError end the walk immediately.
type WalkResult int

const (
	WalkContinue WalkResult = iota
	WalkSkipSubtree
	WalkStop
	WalkStopError
)

// Visitor is applied to each node in document order by Walk.
type Visitor func(n *Node) WalkResult

// Walk applies v to root and every descendant, pre-order, honoring the
// short-circuit codes v returns. It reports whether the walk ran to
// completion (true) or was stopped early by WalkStop/WalkStopError.
func Walk(root *Node, v Visitor) bool {
	switch v(root) {
	case WalkStop, WalkStopError:
		return false
	case WalkSkipSubtree:
		return true
	}
	for _, c := range root.children {
		if !Walk(c, v) {
			return false
		}
	}
	return true
}
