// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/netconfd/confd/yang/parse"
	"github.com/netconfd/confd/yang/xpath"
)

// buildChildren builds one Node per datanode statement in stmts, appending
// each to parent.Children in source order (spec.md 4.1 pass 3). "uses" is
// expanded inline at the position it occurs, so source-order precedence
// between a later refine/augment and an earlier conflicting one still
// holds.
func (c *compiler) buildChildren(m *Module, parent *Node, stmts []*parse.Statement) error {
	for _, stmt := range stmts {
		if !c.passesFeatures(m, stmt) {
			continue
		}
		switch stmt.Keyword {
		case "container", "list", "leaf", "leaf-list", "choice", "anydata", "anyxml",
			"rpc", "action", "notification", "case":
			n, err := c.buildNode(m, parent, stmt)
			if err != nil {
				return err
			}
			if n != nil {
				parent.Children = append(parent.Children, n)
			}
		case "uses":
			if err := c.expandUses(m, parent, stmt); err != nil {
				return err
			}
		case "input", "output":
			n := &Node{Kind: kindForInputOutput(stmt.Keyword), Name: stmt.Keyword, Module: m, Parent: parent}
			if err := c.buildChildren(m, n, stmt.Children); err != nil {
				return err
			}
			parent.Children = append(parent.Children, n)
		}
	}
	return nil
}

func kindForInputOutput(kw string) Kind {
	if kw == "input" {
		return KindInput
	}
	return KindOutput
}

// buildNode constructs a single datanode (and, for container/list/choice,
// recurses into its own children) from stmt.
func (c *compiler) buildNode(m *Module, parent *Node, stmt *parse.Statement) (*Node, error) {
	n := &Node{Module: m, Parent: parent, Name: stmt.Argument}
	if parent != nil && parent.Has(FlagConfigFalse) {
		n.flags |= FlagConfigFalse
	}
	if cfg := stmt.Find("config"); cfg != nil && cfg.Argument == "false" {
		n.flags |= FlagConfigFalse
	}

	switch stmt.Keyword {
	case "container":
		n.Kind = KindContainer
		if stmt.Find("presence") != nil {
			n.flags |= FlagPresence
		}
		if hasMountPointExtension(stmt) {
			n.flags |= FlagMountPoint
			n.MountExtension = true
		}
		c.attachConstraints(m, n, stmt)
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
		if err := c.applyLocalAugments(m, n, stmt); err != nil {
			return nil, err
		}
	case "list":
		n.Kind = KindList
		if ks := stmt.Find("key"); ks != nil {
			n.KeyNames = strings.Fields(ks.Argument)
		}
		n.MinElems, n.MaxElems = minMaxElements(stmt)
		if ob := stmt.Find("ordered-by"); ob != nil && ob.Argument == "user" {
			n.flags |= FlagOrderedByUser
		}
		for _, u := range stmt.FindAll("unique") {
			n.Unique = append(n.Unique, strings.Fields(u.Argument))
		}
		if hasMountPointExtension(stmt) {
			n.flags |= FlagMountPoint
			n.MountExtension = true
		}
		c.attachConstraints(m, n, stmt)
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
		if err := c.applyLocalAugments(m, n, stmt); err != nil {
			return nil, err
		}
	case "leaf":
		n.Kind = KindLeaf
		if stmt.Find("mandatory") != nil && stmt.Find("mandatory").Argument == "true" {
			n.Mandatory = true
			n.flags |= FlagMandatory
		}
		if d := stmt.Find("default"); d != nil {
			n.Default = []string{d.Argument}
		}
		t, err := c.resolveType(m, stmt.Find("type"), n)
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", n.Name, err)
		}
		n.Type = t
		c.attachConstraints(m, n, stmt)
	case "leaf-list":
		n.Kind = KindLeafList
		n.MinElems, n.MaxElems = minMaxElements(stmt)
		if ob := stmt.Find("ordered-by"); ob != nil && ob.Argument == "user" {
			n.flags |= FlagOrderedByUser
		}
		for _, d := range stmt.FindAll("default") {
			n.Default = append(n.Default, d.Argument)
		}
		t, err := c.resolveType(m, stmt.Find("type"), n)
		if err != nil {
			return nil, fmt.Errorf("leaf-list %s: %w", n.Name, err)
		}
		n.Type = t
		c.attachConstraints(m, n, stmt)
	case "choice":
		n.Kind = KindChoice
		if stmt.Find("mandatory") != nil && stmt.Find("mandatory").Argument == "true" {
			n.Mandatory = true
		}
		if err := c.buildChoiceCases(m, n, stmt); err != nil {
			return nil, err
		}
	case "case":
		n.Kind = KindCase
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
	case "anydata":
		n.Kind = KindAnydata
		c.attachConstraints(m, n, stmt)
	case "anyxml":
		n.Kind = KindAnyxml
		c.attachConstraints(m, n, stmt)
	case "rpc":
		n.Kind = KindRPC
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
	case "action":
		n.Kind = KindAction
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
	case "notification":
		n.Kind = KindNotification
		if err := c.buildChildren(m, n, stmt.Children); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported datanode keyword %q", stmt.Keyword)
	}
	return n, nil
}

// buildChoiceCases expands a choice's direct non-case child statements as
// implicit single-node cases, per RFC 7950 section 7.9.2.
func (c *compiler) buildChoiceCases(m *Module, choice *Node, stmt *parse.Statement) error {
	for _, cs := range stmt.Children {
		if !c.passesFeatures(m, cs) {
			continue
		}
		switch cs.Keyword {
		case "case":
			n, err := c.buildNode(m, choice, cs)
			if err != nil {
				return err
			}
			choice.Children = append(choice.Children, n)
		case "container", "leaf", "leaf-list", "list", "choice", "anydata", "anyxml":
			implicitCase := &Node{Kind: KindCase, Name: cs.Argument, Module: m, Parent: choice}
			n, err := c.buildNode(m, implicitCase, cs)
			if err != nil {
				return err
			}
			implicitCase.Children = append(implicitCase.Children, n)
			choice.Children = append(choice.Children, implicitCase)
		}
	}
	return nil
}

// hasMountPointExtension reports whether stmt carries an RFC 8528
// "mount-point" extension statement, matched by local name regardless of
// the importing module's chosen prefix for ietf-yang-schema-mount (spec.md
// section 4.8).
func hasMountPointExtension(stmt *parse.Statement) bool {
	for _, c := range stmt.Children {
		if c.Keyword == "mount-point" || strings.HasSuffix(c.Keyword, ":mount-point") {
			return true
		}
	}
	return false
}

func minMaxElements(stmt *parse.Statement) (min, max int) {
	if s := stmt.Find("min-elements"); s != nil {
		if v, err := strconv.Atoi(s.Argument); err == nil {
			min = v
		}
	}
	if s := stmt.Find("max-elements"); s != nil && s.Argument != "unbounded" {
		if v, err := strconv.Atoi(s.Argument); err == nil {
			max = v
		}
	}
	return min, max
}

// attachConstraints compiles a node's "when"/"must" substatements into
// Constraint values with ready-to-evaluate xpath.Program bodies.
func (c *compiler) attachConstraints(m *Module, n *Node, stmt *parse.Statement) {
	for _, w := range stmt.FindAll("when") {
		n.Whens = append(n.Whens, compileConstraint(w.Argument, w))
	}
	for _, mu := range stmt.FindAll("must") {
		n.Musts = append(n.Musts, compileConstraint(mu.Argument, mu))
	}
}

func compileConstraint(expr string, stmt *parse.Statement) *Constraint {
	cst := &Constraint{XPath: expr}
	if prog, err := xpath.Compile(expr); err == nil {
		cst.Program = prog
	}
	if at := stmt.Find("error-app-tag"); at != nil {
		cst.AppTag = at.Argument
	}
	if em := stmt.Find("error-message"); em != nil {
		cst.Message = em.Argument
	}
	return cst
}

// expandUses splices a grouping's children into parent in place, applying
// any "refine" substatements of the uses statement (spec.md 4.1 pass 3).
// Augments nested inside a uses (uses-augment) apply against the expanded
// subtree only, so they are handled separately from top-level augments.
func (c *compiler) expandUses(m *Module, parent *Node, stmt *parse.Statement) error {
	prefix, local, err := splitQName(stmt.Argument)
	if err != nil {
		return err
	}
	groupMod := m
	if prefix != "" && prefix != m.Prefix {
		groupMod, err = c.moduleFor(m, prefix)
		if err != nil {
			return fmt.Errorf("uses %s: %w", stmt.Argument, err)
		}
	}
	grouping, ok := c.groupings[groupMod][local]
	if !ok {
		return fmt.Errorf("uses %s: unknown grouping", stmt.Argument)
	}
	cloned := cloneStatements(grouping.Children)
	applyRefines(cloned, stmt.FindAll("refine"))
	before := len(parent.Children)
	if err := c.buildChildren(groupMod, parent, cloned); err != nil {
		return err
	}
	for _, aug := range stmt.FindAll("augment") {
		if err := c.applyAugmentWithin(m, parent, before, aug); err != nil {
			return err
		}
	}
	return nil
}

// applyLocalAugments applies augment statements nested directly inside a
// container/list body (rather than at module top level) against the
// sibling subtree just built for that body.
func (c *compiler) applyLocalAugments(m *Module, n *Node, stmt *parse.Statement) error {
	for _, aug := range stmt.Children {
		if aug.Keyword != "augment" {
			continue
		}
		if err := c.applyAugment(m, n, aug); err != nil {
			return err
		}
	}
	return nil
}

// applyAugmentWithin resolves an augment nested in a "uses" against the
// subtree that uses just spliced into parent starting at index from.
func (c *compiler) applyAugmentWithin(m *Module, parent *Node, from int, aug *parse.Statement) error {
	target, err := resolveRelativeTarget(parent, aug.Argument, from)
	if err != nil {
		return fmt.Errorf("augment %s: %w", aug.Argument, err)
	}
	return c.buildChildren(m, target, aug.Children)
}

func resolveRelativeTarget(parent *Node, path string, from int) (*Node, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	cur := parent
	for i, seg := range segs {
		_, local, _ := splitQName(seg)
		var next *Node
		if i == 0 {
			for _, ch := range parent.Children[from:] {
				if ch.Name == local {
					next = ch
					break
				}
			}
		} else {
			next = cur.Child(local)
		}
		if next == nil {
			return nil, fmt.Errorf("no node %q", seg)
		}
		cur = next
	}
	return cur, nil
}

// applyAugment resolves a schema-node-id (absolute if rooted at a module,
// relative to root otherwise) and builds aug's children onto the target,
// propagating aug's own "when" (if present) onto each new child per
// RFC 7950 section 7.17.
func (c *compiler) applyAugment(m *Module, root *Node, aug *parse.Statement) error {
	target, err := c.findAugmentTarget(m, root, aug.Argument)
	if err != nil {
		return err
	}
	if !c.passesFeatures(m, aug) {
		return nil
	}
	before := len(target.Children)
	if err := c.buildChildren(m, target, aug.Children); err != nil {
		return err
	}
	if w := aug.Find("when"); w != nil {
		cst := compileConstraint(w.Argument, w)
		for _, ch := range target.Children[before:] {
			ch.Whens = append(ch.Whens, cst)
		}
	}
	return nil
}

func (c *compiler) findAugmentTarget(m *Module, root *Node, path string) (*Node, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	var cur *Node
	for i, seg := range segs {
		prefix, local, err := splitQName(seg)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if !strings.HasPrefix(path, "/") {
				cur = root.Child(local)
				if cur == nil {
					return nil, fmt.Errorf("augment target %q not found", path)
				}
				continue
			}
			targetMod := m
			if prefix != "" {
				targetMod, err = c.moduleFor(m, prefix)
				if err != nil {
					return nil, err
				}
			}
			cur = targetMod.Root.Child(local)
			if cur == nil {
				return nil, fmt.Errorf("augment target %q not found", path)
			}
			continue
		}
		next := cur.Child(local)
		if next == nil {
			return nil, fmt.Errorf("augment target %q not found", path)
		}
		cur = next
	}
	return cur, nil
}

// cloneStatements deep-copies a grouping's body so each "uses" gets its own
// independent statement tree to mutate (refine) without corrupting the
// grouping definition for the next use.
func cloneStatements(stmts []*parse.Statement) []*parse.Statement {
	out := make([]*parse.Statement, len(stmts))
	for i, s := range stmts {
		out[i] = cloneStatement(s)
	}
	return out
}

func cloneStatement(s *parse.Statement) *parse.Statement {
	c := &parse.Statement{Keyword: s.Keyword, Argument: s.Argument, Line: s.Line}
	c.Children = cloneStatements(s.Children)
	for _, ch := range c.Children {
		ch.Parent = c
	}
	return c
}

// applyRefines mutates cloned in place per each "refine" statement's
// substatements (RFC 7950 section 7.13.2): default, config, mandatory,
// presence, min-elements, max-elements, must; other refine substatements
// (description, reference, ...) are ignored. Only refine targets at the immediate top level of the grouping
// body are supported; deeper refine targets are a known simplification.
func applyRefines(cloned []*parse.Statement, refines []*parse.Statement) {
	for _, r := range refines {
		name := r.Argument
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		for _, target := range cloned {
			if target.Argument != name {
				continue
			}
			for _, sub := range r.Children {
				switch sub.Keyword {
				case "default", "config", "mandatory", "presence", "min-elements", "max-elements":
					replaceOrAppend(target, sub)
				case "must":
					target.Children = append(target.Children, cloneStatement(sub))
				}
			}
		}
	}
}

func replaceOrAppend(target *parse.Statement, sub *parse.Statement) {
	for i, existing := range target.Children {
		if existing.Keyword == sub.Keyword {
			target.Children[i] = cloneStatement(sub)
			return
		}
	}
	target.Children = append(target.Children, cloneStatement(sub))
}
