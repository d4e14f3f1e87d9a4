// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package schema

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/netconfd/confd/yang/parse"
	"github.com/netconfd/confd/yang/xpath"
)

// Options controls feature pruning and other compile-time choices (spec.md
// section 4.1 pass 4).
type Options struct {
	Features map[string]bool // "module-name:feature-name" -> enabled
}

// compiler carries the state threaded through the seven resolution passes
// of spec.md section 4.1. Cyclic cross-references (leafref targets,
// identity bases) are deferred to pass 5/6 after every module's datanode
// tree exists, so forward references across modules resolve correctly.
type compiler struct {
	domain    *Domain
	opts      Options
	typedefs  map[*Module]map[string]*parse.Statement // name -> raw typedef statement, for lazy resolution
	groupings map[*Module]map[string]*parse.Statement
	leafrefs  []*Type // types needing pass-5 path linkage
	nodeByPath map[string]*Node
}

// Compile runs all resolution passes over every module added to d via
// AddModuleSource and returns d ready for lookups. A partially-resolved
// domain is never returned: any fatal error aborts the whole compile.
func Compile(d *Domain, opts Options) error {
	c := &compiler{
		domain:     d,
		opts:       opts,
		typedefs:   make(map[*Module]map[string]*parse.Statement),
		groupings:  make(map[*Module]map[string]*parse.Statement),
		nodeByPath: make(map[string]*Node),
	}

	// Pass 1: import/include fixup (resolve prefix -> Module for every
	// module before any of them build their datanode trees).
	for _, m := range d.Modules() {
		m.imports = make(map[string]*Module)
		for _, imp := range m.statement.FindAll("import") {
			name := imp.Argument
			rev := ""
			if rs := imp.Find("revision-date"); rs != nil {
				rev = rs.Argument
			}
			im, err := d.Module(name, rev)
			if err != nil {
				return errors.Wrapf(err, "module %s: unresolved import", m.Name)
			}
			prefix := im.Prefix
			if ps := imp.Find("prefix"); ps != nil {
				prefix = ps.Argument
			}
			m.imports[prefix] = im
		}
		for _, inc := range m.statement.FindAll("include") {
			sub, err := d.Module(inc.Argument, "")
			if err != nil {
				return errors.Wrapf(err, "module %s: unresolved include", m.Name)
			}
			// A submodule's top-level statements are spliced into the
			// including module's own statement list.
			m.statement.Children = append(m.statement.Children, sub.statement.Children...)
		}
	}

	// Pass 2: collect typedefs/groupings into per-module scope tables
	// (nested typedefs are collected lazily while walking, see
	// resolveTypedef/resolveGrouping below).
	for _, m := range d.Modules() {
		c.typedefs[m] = make(map[string]*parse.Statement)
		c.groupings[m] = make(map[string]*parse.Statement)
		collectTypedefsAndGroupings(m.statement, c.typedefs[m], c.groupings[m])
	}

	// Pass 6 (identity inheritance closure) runs before node building so
	// identityref validation during pass 1-5 node building can already
	// see base identities; base-of links are cheap to add before derived
	// resolution because Identity.Bases are appended incrementally.
	for _, m := range d.Modules() {
		for _, idstmt := range m.statement.FindAll("identity") {
			id := &Identity{Module: m, Name: idstmt.Argument}
			d.identities[id.QName()] = id
		}
	}
	for _, m := range d.Modules() {
		for _, idstmt := range m.statement.FindAll("identity") {
			id := d.identities[m.Name+":"+idstmt.Argument]
			for _, base := range idstmt.FindAll("base") {
				prefix, local, _ := splitQName(base.Argument)
				bm, err := c.moduleFor(m, prefix)
				if err != nil {
					return errors.Wrapf(err, "module %s: identity %s base", m.Name, id.Name)
				}
				bid, ok := d.identities[bm.Name+":"+local]
				if !ok {
					return fmt.Errorf("module %s: identity %s: unknown base %s", m.Name, id.Name, base.Argument)
				}
				id.Bases = append(id.Bases, bid)
			}
		}
	}

	// Pass 3/4/5/7: build each module's datanode tree: uses+refine+augment
	// expansion in source order, feature pruning, type/leafref resolution,
	// flag computation.
	for _, m := range d.Modules() {
		root := &Node{Kind: KindModule, Name: m.Name, Module: m}
		m.Root = root
		if err := c.buildChildren(m, root, m.statement.Children); err != nil {
			return errors.Wrapf(err, "module %s", m.Name)
		}
	}

	// Augments may target nodes in a different module than the one
	// declaring them; apply those once every module's own tree exists.
	for _, m := range d.Modules() {
		for _, aug := range m.statement.FindAll("augment") {
			if err := c.applyAugment(m, m.Root, aug); err != nil {
				return errors.Wrapf(err, "module %s: augment %s", m.Name, aug.Argument)
			}
		}
	}

	// Pass 5: link every deferred leafref "path" now that all modules'
	// trees (including augments) are complete.
	for _, t := range c.leafrefs {
		owner := leafOwnerTable[t]
		target, err := xpath.ResolvePathArg(t.PathProg, asXPathNode(owner), schemaResolverFor(d))
		if err != nil {
			return fmt.Errorf("leafref path %q: %w", t.PathExpr, err)
		}
		t.leafrefTarget = target.(xnode).n
	}

	return nil
}

// leafOwnerTable records the owning leaf/leaf-list Node for each Type that
// has a pending leafref path; stashed outside Type itself since typedefs
// share one *Type across many call sites until instantiated.
var leafOwnerTable = map[*Type]*Node{}

type schemaResolverAdapter struct{ d *Domain }

func schemaResolverFor(d *Domain) xpath.PathArgResolver { return &schemaResolverAdapter{d: d} }

func (a *schemaResolverAdapter) SchemaChild(n xpath.Node, prefix, local string) (xpath.Node, bool) {
	node := n.(xnode).n
	if prefix == "" {
		if c := node.Child(local); c != nil {
			return asXPathNode(c), true
		}
		return nil, false
	}
	m, err := a.d.moduleByPrefixOrName(prefix, node.Module)
	if err != nil {
		return nil, false
	}
	if m.Root != nil {
		if c := m.Root.Child(local); c != nil {
			return asXPathNode(c), true
		}
	}
	if c := node.Child(local); c != nil {
		return asXPathNode(c), true
	}
	return nil, false
}

func (a *schemaResolverAdapter) SchemaParent(n xpath.Node) (xpath.Node, bool) {
	node := n.(xnode).n
	if node.Parent == nil {
		return nil, false
	}
	return asXPathNode(node.Parent), true
}

func collectTypedefsAndGroupings(stmt *parse.Statement, typedefs, groupings map[string]*parse.Statement) {
	for _, c := range stmt.Children {
		switch c.Keyword {
		case "typedef":
			typedefs[c.Argument] = c
		case "grouping":
			groupings[c.Argument] = c
		case "container", "list", "input", "output", "case":
			collectTypedefsAndGroupings(c, typedefs, groupings)
		}
	}
}

func (c *compiler) moduleFor(from *Module, prefix string) (*Module, error) {
	if prefix == "" || prefix == from.Prefix {
		return from, nil
	}
	if m, ok := from.imports[prefix]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown prefix %q", prefix)
}

// featureEnabled evaluates an "if-feature" argument against c.opts.Features,
// defaulting unlisted features to enabled (spec.md open-world default: an
// implementation with no explicit feature bag compiles every feature in).
func (c *compiler) featureEnabled(m *Module, arg string) bool {
	if c.opts.Features == nil {
		return true
	}
	prefix, local, _ := splitQName(arg)
	mod := m
	if prefix != "" && prefix != m.Prefix {
		if im, ok := m.imports[prefix]; ok {
			mod = im
		}
	}
	key := mod.Name + ":" + local
	v, ok := c.opts.Features[key]
	if !ok {
		return true
	}
	return v
}

func (c *compiler) passesFeatures(m *Module, stmt *parse.Statement) bool {
	for _, f := range stmt.FindAll("if-feature") {
		if !c.featureEnabled(m, f.Argument) {
			return false
		}
	}
	return true
}
