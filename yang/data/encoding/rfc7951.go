// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package encoding implements RFC 7951 JSON<->XML conversion over a
// schema-bound instance tree (spec.md section 4.7): module-qualified JSON
// object keys, array mapping for lists/leaf-lists, and YANG-to-JSON type
// mapping (64-bit integers and decimal64 as strings, empty leaves as
// [null]).
package encoding

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// Options controls ToJSON's output.
type Options struct {
	// WidenInt64 emits int64/uint64/decimal64 leaves as JSON numbers
	// instead of RFC 7951 section 6.1's mandated strings (spec.md
	// section 9(b) open question (b); default false keeps the
	// RFC-compliant string form).
	WidenInt64 bool
}

// ToJSON renders root's children as an RFC 7951 JSON object: each child
// keyed "module:name" (module qualified only when it differs from the
// parent's owning module, spec.md section 4.7).
func ToJSON(root *data.Node, opts Options) ([]byte, error) {
	obj := orderedObject{}
	parentModule := ""
	if root.Schema != nil && root.Schema.Module != nil {
		parentModule = root.Schema.Module.Name
	}
	groupChildren(root, parentModule, opts, &obj)
	return json.Marshal(obj)
}

// orderedObject preserves insertion order (document order) when
// marshaled, rather than encoding/json's map-based alphabetical default,
// matching the canonical-form expectation spec.md section 3 describes
// for XML and carries over to JSON emission for readability.
type orderedObject struct {
	keys   []string
	values map[string]interface{}
}

func (o *orderedObject) set(k string, v interface{}) {
	if o.values == nil {
		o.values = map[string]interface{}{}
	}
	if _, ok := o.values[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.values[k] = v
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func groupChildren(n *data.Node, parentModule string, opts Options, obj *orderedObject) {
	type group struct {
		sn    *schema.Node
		nodes []*data.Node
	}
	var order []*schema.Node
	bySchema := map[*schema.Node]*group{}
	for _, c := range n.Children() {
		if c.Schema == nil {
			continue
		}
		g, ok := bySchema[c.Schema]
		if !ok {
			g = &group{sn: c.Schema}
			bySchema[c.Schema] = g
			order = append(order, c.Schema)
		}
		g.nodes = append(g.nodes, c)
	}
	for _, sn := range order {
		g := bySchema[sn]
		key := jsonKey(sn, parentModule)
		switch sn.Kind {
		case schema.KindList, schema.KindLeafList:
			arr := make([]interface{}, len(g.nodes))
			for i, e := range g.nodes {
				arr[i] = jsonValue(e, sn, opts)
			}
			obj.set(key, arr)
		default:
			obj.set(key, jsonValue(g.nodes[0], sn, opts))
		}
	}
}

func jsonKey(sn *schema.Node, parentModule string) string {
	if sn.Module != nil && sn.Module.Name != parentModule {
		return sn.Module.Name + ":" + sn.Name
	}
	return sn.Name
}

func jsonValue(n *data.Node, sn *schema.Node, opts Options) interface{} {
	switch sn.Kind {
	case schema.KindContainer, schema.KindList, schema.KindInput, schema.KindOutput:
		child := orderedObject{}
		mod := ""
		if sn.Module != nil {
			mod = sn.Module.Name
		}
		groupChildren(n, mod, opts, &child)
		return child
	case schema.KindLeaf, schema.KindLeafList:
		return leafJSONValue(n.Value, sn, opts)
	}
	return nil
}

func leafJSONValue(value string, sn *schema.Node, opts Options) interface{} {
	if sn.Type == nil {
		return value
	}
	switch sn.Type.Base {
	case schema.TEmpty:
		return []interface{}{nil}
	case schema.TBoolean:
		return value == "true"
	case schema.TInt64, schema.TUint64, schema.TDecimal64:
		if opts.WidenInt64 {
			var n json.Number = json.Number(value)
			return n
		}
		return value
	case schema.TInt8, schema.TInt16, schema.TInt32, schema.TUint8, schema.TUint16, schema.TUint32:
		return json.Number(value)
	default:
		return value
	}
}

// keysSorted gives FromJSON/FromJSONFragment a deterministic iteration
// order over a decoded JSON object (Go's map ranging order is randomized,
// so the keys are sorted lexically; binding errors - "unknown element" -
// are therefore reported in that order, not in document order).
func keysSorted(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromJSON parses an RFC 7951 JSON document (the shape ToJSON produces: a
// top-level object keyed "module:name" per child) into an instance tree
// rooted at a synthetic "config" node, the JSON-input counterpart of
// data.Binder.Bind (spec.md section 4.7). Each top-level key resolves
// against domain's modules directly, matching a whole datastore document
// or a whole-config edit-config fragment.
func FromJSON(domain *schema.Domain, body []byte) (*data.Node, error) {
	raw, err := decodeJSONObject(body)
	if err != nil {
		return nil, err
	}
	root := &data.Node{Name: "config"}
	for _, key := range keysSorted(raw) {
		mod, local := splitJSONKey(key, "")
		sn, err := resolveTopLevelJSON(domain, mod, local)
		if err != nil {
			return nil, err
		}
		if err := bindJSONValue(root, sn, raw[key]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// FromJSONFragment parses body as the JSON representation of a single
// resource already known to be sn - the RESTCONF POST/PUT/PATCH body
// shape (RFC 8040 section 3.5.3), which names only the target resource
// rather than a whole document. The single top-level key must name sn
// (qualified "module:name" or, when sn's module matches parentModule,
// unqualified). Returns every data.Node the value produced (more than one
// only for a leaf-list or a list value enumerating several entries).
func FromJSONFragment(sn *schema.Node, parentModule string, body []byte) ([]*data.Node, error) {
	raw, err := decodeJSONObject(body)
	if err != nil {
		return nil, err
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("encoding: RESTCONF resource body must have exactly one top-level member, got %d", len(raw))
	}
	for key, val := range raw {
		mod, local := splitJSONKey(key, parentModule)
		if local != sn.Name || (sn.Module != nil && mod != sn.Module.Name) {
			return nil, fmt.Errorf("encoding: body member %q does not name resource %q", key, sn.Name)
		}
		holder := &data.Node{Name: "holder"}
		if err := bindJSONValue(holder, sn, val); err != nil {
			return nil, err
		}
		return holder.Children(), nil
	}
	return nil, nil
}

func decodeJSONObject(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("encoding: malformed JSON body: %w", err)
	}
	return raw, nil
}

// resolveTopLevelJSON finds the module-root datanode named modName:local,
// the JSON counterpart of data.Binder's XML namespace-based lookup.
func resolveTopLevelJSON(domain *schema.Domain, modName, local string) (*schema.Node, error) {
	for _, m := range domain.Modules() {
		if m.Name == modName {
			if sn := m.Root.Child(local); sn != nil {
				return sn, nil
			}
		}
	}
	return nil, fmt.Errorf("encoding: unknown top-level element %q:%q", modName, local)
}

// splitJSONKey splits a "module:name" JSON object key into its module and
// local parts, defaulting the module to parentModule when key carries no
// prefix (RFC 7951 section 4's "the parent's module" rule).
func splitJSONKey(key, parentModule string) (mod, local string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return parentModule, key
}

// bindJSONValue binds one decoded JSON value to sn, appending the
// resulting node(s) to parent.
func bindJSONValue(parent *data.Node, sn *schema.Node, val interface{}) error {
	switch sn.Kind {
	case schema.KindList:
		arr, ok := val.([]interface{})
		if !ok {
			return fmt.Errorf("encoding: expected array for list %q", sn.Name)
		}
		for _, entryVal := range arr {
			obj, ok := entryVal.(map[string]interface{})
			if !ok {
				return fmt.Errorf("encoding: expected object in list %q entry", sn.Name)
			}
			entry := data.New(sn)
			if err := bindJSONObject(entry, sn, obj); err != nil {
				return err
			}
			parent.AppendChild(entry)
		}
		return nil

	case schema.KindLeafList:
		arr, ok := val.([]interface{})
		if !ok {
			return fmt.Errorf("encoding: expected array for leaf-list %q", sn.Name)
		}
		for _, v := range arr {
			lexical, err := scalarToLexical(v, sn)
			if err != nil {
				return err
			}
			parent.AppendChild(data.NewLeaf(sn, lexical))
		}
		return nil

	case schema.KindContainer, schema.KindInput, schema.KindOutput:
		obj, ok := val.(map[string]interface{})
		if !ok {
			return fmt.Errorf("encoding: expected object for container %q", sn.Name)
		}
		n := data.New(sn)
		if err := bindJSONObject(n, sn, obj); err != nil {
			return err
		}
		parent.AppendChild(n)
		return nil

	case schema.KindLeaf:
		if sn.Type != nil && sn.Type.Base == schema.TEmpty {
			arr, ok := val.([]interface{})
			if !ok || len(arr) != 1 || arr[0] != nil {
				return fmt.Errorf("encoding: empty leaf %q must be JSON [null]", sn.Name)
			}
			parent.AppendChild(data.NewLeaf(sn, ""))
			return nil
		}
		lexical, err := scalarToLexical(val, sn)
		if err != nil {
			return err
		}
		parent.AppendChild(data.NewLeaf(sn, lexical))
		return nil
	}
	return fmt.Errorf("encoding: unsupported schema kind %s for JSON binding", sn.Kind)
}

func bindJSONObject(n *data.Node, sn *schema.Node, obj map[string]interface{}) error {
	mod := ""
	if sn.Module != nil {
		mod = sn.Module.Name
	}
	for _, key := range keysSorted(obj) {
		_, local := splitJSONKey(key, mod)
		child := sn.Child(local)
		if child == nil {
			return fmt.Errorf("encoding: unknown element %q under %s", local, sn.CanonicalPath())
		}
		if err := bindJSONValue(n, child, obj[key]); err != nil {
			return err
		}
	}
	return nil
}

// scalarToLexical converts a decoded JSON scalar to its YANG canonical
// lexical value. 64-bit integers/decimal64 arrive as JSON strings (RFC
// 7951 section 6.1) and pass through unchanged; smaller integers arrive
// as JSON numbers.
func scalarToLexical(val interface{}, sn *schema.Node) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("encoding: unsupported JSON value %v for %q", val, sn.Name)
}
