// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package encoding

import (
	"bytes"
	"encoding/xml"

	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

// ToXML renders root's children as the canonical XML form spec.md section
// 3 describes: each element qualified by its owning module's namespace,
// nested in document order. Used for NETCONF <rpc-reply> bodies and the
// RESTCONF application/yang-data+xml encoding (component B's serialize
// operation).
func ToXML(root *data.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	for _, c := range root.Children() {
		if err := encodeXMLNode(enc, c); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xmlName(n *data.Node) xml.Name {
	ns := ""
	if n.Schema != nil && n.Schema.Module != nil {
		ns = n.Schema.Module.Namespace
	}
	return xml.Name{Space: ns, Local: n.Name}
}

func encodeXMLNode(enc *xml.Encoder, n *data.Node) error {
	start := xml.StartElement{Name: xmlName(n)}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	children := n.Children()
	if len(children) == 0 {
		if n.Value != "" || isEmptyType(n) {
			if err := enc.EncodeToken(xml.CharData([]byte(n.Value))); err != nil {
				return err
			}
		}
	} else {
		for _, c := range children {
			if err := encodeXMLNode(enc, c); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}

func isEmptyType(n *data.Node) bool {
	return n.Schema != nil && n.Schema.Type != nil && n.Schema.Type.Base == schema.TEmpty
}
