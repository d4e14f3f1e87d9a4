// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package restconf implements the RESTCONF request translator (spec.md
// component G, RFC 8040): api-path parsing, verb mapping onto the
// edit/validate/commit pipeline (package datastore), and RFC 7951
// JSON<->XML body conversion.
package restconf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// Segment is one parsed api-path element: "[module:]name[=key1,key2,...]".
type Segment struct {
	Module string
	Name   string
	Keys   []string
}

// ParseAPIPath splits a RESTCONF api-path ("example:top/ifs=eth0") into
// its segments, percent-decoding each key value (spec.md section 4.7).
// Key values themselves containing "," must already be percent-encoded by
// the client, as RFC 8040 section 3.5.3 requires.
func ParseAPIPath(path string) ([]Segment, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		seg, err := parseSegment(p)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(p string) (Segment, error) {
	name := p
	var keysPart string
	if i := strings.IndexByte(p, '='); i >= 0 {
		name, keysPart = p[:i], p[i+1:]
	}
	var mod string
	if i := strings.IndexByte(name, ':'); i >= 0 {
		mod, name = name[:i], name[i+1:]
	}
	var keys []string
	if keysPart != "" {
		for _, k := range strings.Split(keysPart, ",") {
			dk, err := url.QueryUnescape(k)
			if err != nil {
				return Segment{}, fmt.Errorf("restconf: bad key encoding %q: %w", k, err)
			}
			keys = append(keys, dk)
		}
	}
	return Segment{Module: mod, Name: name, Keys: keys}, nil
}

// Resolve walks segs against domain, returning the final schema node and
// the canonical instance XPath identifying it (spec.md section 4.7). The
// owning module of each segment defaults to the previous segment's module
// when unqualified, per RFC 8040 section 3.5.1.1.
func Resolve(domain *schema.Domain, segs []Segment) (*schema.Node, string, error) {
	var cur *schema.Node
	var xp strings.Builder
	lastModule := ""
	for i, seg := range segs {
		modName := seg.Module
		if modName == "" {
			modName = lastModule
		}
		if modName == "" {
			return nil, "", mgmterror.NewUnknownElementError(nil, seg.Name)
		}
		lastModule = modName
		if i == 0 {
			m, err := domain.Module(modName, "")
			if err != nil {
				return nil, "", mgmterror.NewUnknownNamespaceError(nil, modName)
			}
			cur = m.Root.Child(seg.Name)
		} else {
			cur = cur.Child(seg.Name)
		}
		if cur == nil {
			return nil, "", mgmterror.NewUnknownElementError(nil, seg.Name)
		}
		xp.WriteString("/")
		xp.WriteString(modName)
		xp.WriteString(":")
		xp.WriteString(seg.Name)
		if len(seg.Keys) > 0 {
			if len(seg.Keys) != len(cur.KeyNames) {
				return nil, "", mgmterror.NewInvalidValueError()
			}
			xp.WriteString("[")
			for i, k := range cur.KeyNames {
				if i > 0 {
					xp.WriteString(" and ")
				}
				xp.WriteString(fmt.Sprintf("%s='%s'", k, seg.Keys[i]))
			}
			xp.WriteString("]")
		}
	}
	return cur, xp.String(), nil
}

// Locate finds the instance (if any) an api-path names within root,
// creating no nodes - used by GET/HEAD/DELETE to find the existing
// target, and by PUT to tell a replace (204) from a create (201).
func Locate(root *data.Node, segs []Segment) *data.Node {
	cur := root
	for _, seg := range segs {
		if len(seg.Keys) == 0 {
			cur = cur.Child(seg.Name)
		} else {
			var match *data.Node
			for _, c := range cur.ChildrenNamed(seg.Name) {
				if c.MatchesKeys(seg.Keys) {
					match = c
					break
				}
			}
			cur = match
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}
