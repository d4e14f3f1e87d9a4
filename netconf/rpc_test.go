// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package netconf

import (
	"testing"

	"github.com/netconfd/confd/mgmterror"
)

func TestParseRequestExtractsOperation(t *testing.T) {
	msg := []byte(`<rpc message-id="101" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <get-config><source><running/></source></get-config>
</rpc>`)
	req, err := ParseRequest(msg)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.MessageID != "101" {
		t.Fatalf("got message-id %q, want 101", req.MessageID)
	}
	if req.Operation != OpGetConfig {
		t.Fatalf("got operation %q, want get-config", req.Operation)
	}
}

func TestParseRequestRejectsUnbalancedTags(t *testing.T) {
	msg := []byte(`<rpc message-id="1"><get-config><source><running/></source></rpc>`)
	_, err := ParseRequest(msg)
	if err == nil {
		t.Fatalf("expected error for unbalanced tags")
	}
	if _, ok := err.(*mgmterror.MgmtError); !ok {
		t.Fatalf("got error of type %T, want *mgmterror.MgmtError", err)
	}
}

func TestDispatchUnknownOperationIsOperationNotSupported(t *testing.T) {
	d := NewDispatcher()
	reply := d.Dispatch(nil, &Request{MessageID: "1", Operation: "frobnicate"})
	if len(reply.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(reply.Errors))
	}
	if reply.Errors[0].Tag != mgmterror.NewOperationNotSupportedError().Tag {
		t.Fatalf("got tag %q, want operation-not-supported", reply.Errors[0].Tag)
	}
}
