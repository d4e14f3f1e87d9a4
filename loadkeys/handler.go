// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package loadkeys

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/netconfd/confd/mgmterror"
	"github.com/netconfd/confd/netconf"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// Namespace is load-key's own namespace; as a plugin-registered extension
// (spec.md section 4.6) it is never part of the NETCONF base operations
// so it must be namespace-qualified on the wire, unlike "get"/"commit".
const Namespace = "urn:netconfd:params:xml:ns:yang:load-keys"

const Operation netconf.Operation = "load-key"

// RegisterHandler wires the load-key extension onto d. A request body is
// shaped:
//
//	<load-key xmlns="urn:netconfd:params:xml:ns:yang:load-keys">
//	  <config>...ancestor elements down to (and including) the empty
//	          public-keys list this entry's schema node owns...</config>
//	  <authorized-keys>...raw authorized_keys file content...</authorized-keys>
//	</load-key>
//
// reusing data.Binder's ordinary edit-config fragment parsing for <config>
// rather than inventing a second path-addressing scheme: the caller
// supplies exactly the ancestor nesting its schema requires, the same way
// an edit-config <config> body would.
func RegisterHandler(d *netconf.Dispatcher) {
	d.Register(Namespace, Operation, func(ctx interface{}, req *netconf.Request) ([]byte, error) {
		s := ctx.(*netconf.Session)
		var body struct {
			Config struct {
				Inner []byte `xml:",innerxml"`
			} `xml:"config"`
			AuthorizedKeys string `xml:"authorized-keys"`
		}
		if err := xml.Unmarshal(req.Body, &body); err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}

		root, err := s.Binder.Bind(body.Config.Inner)
		if err != nil {
			return nil, mgmterror.NewMalformedMessageError()
		}
		list := deepestList(root)
		if list == nil {
			return nil, fmt.Errorf("loadkeys: config fragment names no list for public keys")
		}

		keys, err := ParseAuthorizedKeys(bytes.NewReader([]byte(body.AuthorizedKeys)))
		if err != nil {
			return nil, mgmterror.NewOperationFailedApplicationError()
		}
		if list.Schema == nil {
			return nil, fmt.Errorf("loadkeys: target list has no schema")
		}
		build := Fragment(list.Schema)
		for _, k := range keys {
			entry, err := build(k)
			if err != nil {
				return nil, mgmterror.NewOperationFailedApplicationError()
			}
			list.AppendChild(entry)
		}
		return nil, s.Store.Edit(root, data.OpMerge)
	})
}

// deepestList finds the innermost schema.KindList instance in n's
// descendants (depth-first), the list the request's <config> fragment
// names as the target for new public-key entries.
func deepestList(n *data.Node) *data.Node {
	var found *data.Node
	for _, c := range n.Children() {
		if c.Schema != nil && c.Schema.Kind == schema.KindList {
			found = c
		}
		if deeper := deepestList(c); deeper != nil {
			found = deeper
		}
	}
	return found
}
