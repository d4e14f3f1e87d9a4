// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/netconfd/confd/yang/parse"
	"github.com/netconfd/confd/yang/xpath"
)

// resolveType resolves a "type" statement into a *Type, recursing through
// typedefs (spec.md 4.1 pass 2/3) and layering any restriction
// substatements present at the use site on top of the typedef's own. owner
// is the leaf/leaf-list Node the type belongs to; it is nil while resolving
// a typedef's or union member's nested type, where leafref path linkage is
// deferred to the outermost call.
func (c *compiler) resolveType(m *Module, typeStmt *parse.Statement, owner *Node) (*Type, error) {
	return c.resolveTypeRec(m, typeStmt, owner, map[string]bool{})
}

func (c *compiler) resolveTypeRec(m *Module, typeStmt *parse.Statement, owner *Node, seen map[string]bool) (*Type, error) {
	if typeStmt == nil {
		return nil, fmt.Errorf("missing type statement")
	}
	prefix, local, err := splitQName(typeStmt.Argument)
	if err != nil {
		return nil, err
	}

	if prefix == "" {
		if base, ok := baseTypeByName(local); ok {
			return c.resolveBuiltin(m, base, local, typeStmt, owner)
		}
	}

	targetMod := m
	if prefix != "" {
		targetMod, err = c.moduleFor(m, prefix)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", typeStmt.Argument, err)
		}
	}
	key := targetMod.Name + ":" + local
	if seen[key] {
		return nil, fmt.Errorf("type %s: circular typedef", typeStmt.Argument)
	}
	seen[key] = true

	def, ok := c.typedefs[targetMod][local]
	if !ok {
		return nil, fmt.Errorf("type %s: unknown type or typedef", typeStmt.Argument)
	}
	base, err := c.resolveTypeRec(targetMod, def.Find("type"), owner, seen)
	if err != nil {
		return nil, err
	}
	return c.layerRestrictions(m, base, typeStmt, owner)
}

// resolveBuiltin constructs a Type for a built-in base type, applying
// whatever restriction substatements typeStmt carries directly.
func (c *compiler) resolveBuiltin(m *Module, base BaseType, name string, typeStmt *parse.Statement, owner *Node) (*Type, error) {
	t := &Type{Base: base, Name: name}
	switch base {
	case TUint64:
		t.RangeMin, t.RangeMaxU64 = 0, ^uint64(0)
	default:
		t.RangeMin, t.RangeMax = integerRange(base)
	}
	switch base {
	case TString, TBinary:
		t.LengthMin, t.LengthMax = 0, -1
	case TEnumeration:
		if err := fillEnums(t, typeStmt); err != nil {
			return nil, err
		}
	case TBits:
		fillBits(t, typeStmt)
	case TDecimal64:
		if fd := typeStmt.Find("fraction-digits"); fd != nil {
			if v, err := strconv.Atoi(fd.Argument); err == nil {
				t.FractionDigits = v
			}
		}
	case TLeafref:
		if p := typeStmt.Find("path"); p != nil {
			t.PathExpr = p.Argument
			prog, err := xpath.Compile(p.Argument)
			if err != nil {
				return nil, fmt.Errorf("leafref path %q: %w", p.Argument, err)
			}
			t.PathProg = prog
		}
		t.RequireInstance = true
		if ri := typeStmt.Find("require-instance"); ri != nil && ri.Argument == "false" {
			t.RequireInstance = false
		}
	case TIdentityref:
		for _, b := range typeStmt.FindAll("base") {
			bp, bl, _ := splitQName(b.Argument)
			bm, err := c.moduleFor(m, bp)
			if err != nil {
				return nil, fmt.Errorf("identityref base %s: %w", b.Argument, err)
			}
			t.IdentityBases = append(t.IdentityBases, bm.Name+":"+bl)
		}
	case TInstanceIdentifier:
		t.RequireInstance = true
		if ri := typeStmt.Find("require-instance"); ri != nil && ri.Argument == "false" {
			t.RequireInstance = false
		}
	case TUnion:
		for _, mt := range typeStmt.FindAll("type") {
			member, err := c.resolveTypeRec(m, mt, nil, map[string]bool{})
			if err != nil {
				return nil, err
			}
			t.Members = append(t.Members, member)
		}
	}
	return c.layerRestrictions(m, t, typeStmt, owner)
}

// layerRestrictions applies range/length/pattern substatements present
// directly on typeStmt on top of a base Type (itself already fully
// restricted, when base came from a typedef). A use-site restriction
// narrows, never widens; we do not currently verify that a narrower
// restriction is actually a subset of the typedef's own, matching the
// lenient stance the teacher's own schema compiler takes at load time
// (strict subset checking happens implicitly at validate time instead).
func (c *compiler) layerRestrictions(m *Module, base *Type, typeStmt *parse.Statement, owner *Node) (*Type, error) {
	t := *base // shallow copy: share Members/Enums/Bits slices unless overridden below
	switch base.Base {
	case TString, TBinary:
		if l := typeStmt.Find("length"); l != nil {
			lo, hi, err := parseYangLength(l.Argument)
			if err != nil {
				return nil, err
			}
			t.LengthMin, t.LengthMax = lo, hi
		}
		if ps := typeStmt.FindAll("pattern"); len(ps) > 0 {
			t.Patterns = nil
			for _, p := range ps {
				re, err := regexp.Compile("^(?:" + p.Argument + ")$")
				if err != nil {
					return nil, fmt.Errorf("pattern %q: %w", p.Argument, err)
				}
				t.Patterns = append(t.Patterns, re)
			}
		}
	default:
		if isIntegerBase(base.Base) {
			if r := typeStmt.Find("range"); r != nil {
				if base.Base == TUint64 {
					lo, hi, err := parseYangRangeU64(r.Argument)
					if err != nil {
						return nil, err
					}
					t.RangeMin, t.RangeMaxU64 = int64(lo), hi
				} else {
					lo, hi, err := parseYangRange(r.Argument, base.Base)
					if err != nil {
						return nil, err
					}
					t.RangeMin, t.RangeMax = lo, hi
				}
			}
		}
	}
	if owner != nil && t.Base == TLeafref && t.PathProg != nil {
		leafOwnerTable[&t] = owner
		c.leafrefs = append(c.leafrefs, &t)
	}
	return &t, nil
}

func parseYangLength(arg string) (int, int, error) {
	parts := strings.Split(arg, "|")
	first := strings.TrimSpace(parts[0])
	bounds := strings.SplitN(first, "..", 2)
	lo, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad length bound %q: %w", bounds[0], err)
	}
	hi := lo
	if len(bounds) == 2 {
		if strings.TrimSpace(bounds[1]) == "max" {
			hi = -1
		} else {
			v, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return 0, 0, fmt.Errorf("bad length bound %q: %w", bounds[1], err)
			}
			hi = v
		}
	}
	return lo, hi, nil
}

func fillEnums(t *Type, typeStmt *parse.Statement) error {
	next := 0
	for _, e := range typeStmt.FindAll("enum") {
		v := next
		if vs := e.Find("value"); vs != nil {
			n, err := strconv.Atoi(vs.Argument)
			if err != nil {
				return fmt.Errorf("enum %q: bad value %q", e.Argument, vs.Argument)
			}
			v = n
		}
		t.Enums = append(t.Enums, EnumValue{Name: e.Argument, Value: v})
		next = v + 1
	}
	return nil
}

func fillBits(t *Type, typeStmt *parse.Statement) {
	next := 0
	for _, b := range typeStmt.FindAll("bit") {
		p := next
		if ps := b.Find("position"); ps != nil {
			if n, err := strconv.Atoi(ps.Argument); err == nil {
				p = n
			}
		}
		t.Bits = append(t.Bits, BitValue{Name: b.Argument, Position: p})
		next = p + 1
	}
}
