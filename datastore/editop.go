package datastore

import (
	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// applyEdit merges fragment into target in place, per RFC 6241 section 7.2
// as spec.md section 4.5 describes it. defaultOp is the implicit
// operation inherited by any fragment node lacking its own Op (fragment
// nodes default to data.OpMerge when parsed without an explicit
// "operation" attribute, so defaultOp only matters for the fragment's own
// root here; descendants inherit from their immediate parent's effective
// operation, computed recursively below).
func applyEdit(target, fragment *data.Node, defaultOp data.Op) error {
	return mergeChildren(target, fragment, defaultOp)
}

// mergeChildren applies fragment's children onto target under the
// effective operation inherited (parentOp) when a child doesn't carry its
// own explicit Op.
func mergeChildren(target, fragment *data.Node, parentOp data.Op) error {
	for _, src := range fragment.Children() {
		op := src.Op
		if !src.OpExplicit {
			op = parentOp
		}
		if err := applyOneOp(target, src, op); err != nil {
			return err
		}
	}
	return nil
}

// applyOneOp applies src (one fragment child, with resolved effective
// operation op) onto target.
func applyOneOp(target, src *data.Node, op data.Op) error {
	existing := findMatch(target, src)

	switch op {
	case data.OpNone:
		// Open Question (a), spec.md section 9: "none" only descends;
		// the teacher's inherited-context behavior is preserved rather
		// than rewritten to a stricter reading. A "none" node absent on
		// target is simply skipped - it is never created.
		if existing != nil {
			return mergeChildren(existing, src, data.OpNone)
		}
		return nil

	case data.OpCreate:
		if existing != nil {
			return mgmterror.NewDataExistsError([]string{src.Path()})
		}
		target.AppendChild(cloneDetached(src))
		return nil

	case data.OpDelete:
		if existing == nil {
			return mgmterror.NewDataMissingError([]string{src.Path()})
		}
		target.RemoveChild(existing)
		return nil

	case data.OpRemove:
		if existing != nil {
			target.RemoveChild(existing)
		}
		return nil

	case data.OpReplace:
		if existing != nil {
			target.ReplaceChild(existing, cloneDetached(src))
			return nil
		}
		target.AppendChild(cloneDetached(src))
		return nil

	default: // data.OpMerge
		if existing == nil {
			target.AppendChild(cloneDetached(src))
			return nil
		}
		if len(src.Children()) == 0 {
			existing.Value = src.Value
			return nil
		}
		return mergeChildren(existing, src, data.OpMerge)
	}
}

// findMatch locates target's existing child corresponding to src: for
// list entries, the sibling with equal key tuple; for leaf-list entries,
// the sibling with equal value (a leaf-list has no KeyNames, but its
// entries are still individually addressed by value, not position -
// RFC 6241 section 7.2); otherwise the child instance sharing src's
// schema node (or name, for unbound anyxml/anydata).
func findMatch(target, src *data.Node) *data.Node {
	if src.Schema != nil && len(src.Schema.KeyNames) > 0 {
		for _, c := range target.ChildrenNamed(src.Name) {
			if c.MatchesKeys(src.KeyValues()) {
				return c
			}
		}
		return nil
	}
	if src.Schema != nil && src.Schema.Kind == schema.KindLeafList {
		for _, c := range target.ChildrenNamed(src.Name) {
			if c.Value == src.Value {
				return c
			}
		}
		return nil
	}
	return target.Child(src.Name)
}

// cloneDetached deep-copies src (stripping any operation attributes, since
// the copy becomes ordinary committed/candidate content once applied) for
// insertion into target.
func cloneDetached(src *data.Node) *data.Node {
	c := src.Clone()
	stripOps(c)
	return c
}

func stripOps(n *data.Node) {
	n.Op = data.OpMerge
	n.OpExplicit = false
	for _, c := range n.Children() {
		stripOps(c)
	}
}
