// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

package loadkeys_test

import (
	"strings"
	"testing"

	"github.com/netconfd/confd/loadkeys"
	"github.com/netconfd/confd/yang/schema"
)

const testModule = `
module ex {
  namespace "urn:ex";
  prefix ex;

  container system {
    list authorized-key {
      key "name";
      leaf name { type string; }
      leaf type { type string; }
      leaf key { type string; }
      leaf options { type string; }
    }
  }
}
`

const authorizedKeys = `
# a comment line, ignored

ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl bob@bastion
no-port-forwarding ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQDwgUGpvdeC3tJlOIgShxaYewFc+URKrbLBmJFl+t+7ouCa6GwSyaPsfwuFgUY76jmr5lqQ/q7XO7qipLYQL9u8M2jg/KtuzMWGbuZ/8ZYx2N2jLFiZ6xdC2ddTYP0jLqvgZzcbw981L74Cc6BxwVwUvB/CTUzDoZznCQG0AGWrYaQ3vv8FUxe8a8zMlNUCNRkS59xJOikrK2cOF5EkDJWKpVPQzrh8ATaA/d8D7RwlM9TuFaQ5Z5eQs9SEj8GXQhbY2DHgdPNGRbEzjQ/fqTcl2aKhgS0R5/121iQ2rlVzdnUkNxaj2tD5V52RUh6EEFdAbmvLciVP64sYAv4Dwf6B alice@bastion
`

func compileTestDomain(t *testing.T) *schema.Domain {
	t.Helper()
	d := schema.NewDomain()
	if err := d.AddModuleSource("ex.yang", []byte(testModule)); err != nil {
		t.Fatalf("AddModuleSource: %v", err)
	}
	if err := schema.Compile(d, schema.Options{}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return d
}

func TestParseAuthorizedKeysSkipsCommentsAndBlankLines(t *testing.T) {
	keys, err := loadkeys.ParseAuthorizedKeys(strings.NewReader(authorizedKeys))
	if err != nil {
		t.Fatalf("ParseAuthorizedKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if keys[0].Comment != "bob@bastion" {
		t.Fatalf("got comment %q, want bob@bastion", keys[0].Comment)
	}
	if keys[0].Type() != "ssh-ed25519" {
		t.Fatalf("got type %q, want ssh-ed25519", keys[0].Type())
	}
	if len(keys[1].Options) != 1 || keys[1].Options[0] != "no-port-forwarding" {
		t.Fatalf("got options %v, want [no-port-forwarding]", keys[1].Options)
	}
}

func TestParseAuthorizedKeysRejectsGarbageLine(t *testing.T) {
	_, err := loadkeys.ParseAuthorizedKeys(strings.NewReader("not a key at all\n"))
	if err == nil {
		t.Fatalf("expected error for unparsable line")
	}
}

func TestFragmentBuildsEntryFromSchema(t *testing.T) {
	d := compileTestDomain(t)
	listSn, err := d.FindSchemaNode("/ex:system/ex:authorized-key")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	keys, err := loadkeys.ParseAuthorizedKeys(strings.NewReader(authorizedKeys))
	if err != nil {
		t.Fatalf("ParseAuthorizedKeys: %v", err)
	}
	build := loadkeys.Fragment(listSn)
	entry, err := build(keys[0])
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if entry.Schema != listSn {
		t.Fatalf("entry not bound to the list's own schema node")
	}
	var gotType, gotKey, gotName string
	for _, c := range entry.Children() {
		switch c.Schema.Name {
		case "name":
			gotName = c.Value
		case "type":
			gotType = c.Value
		case "key":
			gotKey = c.Value
		}
	}
	if gotName != "bob@bastion" {
		t.Fatalf("got name %q, want bob@bastion", gotName)
	}
	if gotType != "ssh-ed25519" {
		t.Fatalf("got type %q, want ssh-ed25519", gotType)
	}
	if gotKey == "" {
		t.Fatalf("expected non-empty key material")
	}
}

func TestFragmentRejectsListWithoutSingleKey(t *testing.T) {
	d := schema.NewDomain()
	if err := d.AddModuleSource("bad.yang", []byte(`
module bad {
  namespace "urn:bad";
  prefix bad;
  container system {
    list authorized-key {
      key "name other";
      leaf name { type string; }
      leaf other { type string; }
      leaf type { type string; }
      leaf key { type string; }
    }
  }
}
`)); err != nil {
		t.Fatalf("AddModuleSource: %v", err)
	}
	if err := schema.Compile(d, schema.Options{}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	listSn, err := d.FindSchemaNode("/bad:system/bad:authorized-key")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	build := loadkeys.Fragment(listSn)
	if _, err := build(&loadkeys.PublicKey{Comment: "x"}); err == nil {
		t.Fatalf("expected error for multi-key list")
	}
}
