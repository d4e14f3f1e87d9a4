package union_test

import (
	"testing"

	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
	"github.com/netconfd/confd/union"
)

const testModule = `
module ex {
  namespace "urn:ex";
  prefix ex;

  identity base-proto;
  identity tcp { base base-proto; }

  container top {
    list iface {
      key "name";
      leaf name {
        type string;
      }
      leaf mtu {
        type uint32 {
          range "68..9000";
        }
        default "1500";
      }
    }
    leaf iface-ref {
      type leafref {
        path "/ex:top/ex:iface/ex:name";
        require-instance true;
      }
    }
    leaf proto {
      type identityref {
        base base-proto;
      }
    }
  }
}
`

func compileDomain(t *testing.T) *schema.Domain {
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

func buildTree(t *testing.T, d *schema.Domain, ifaceName string) *data.Node {
	t.Helper()
	top, err := d.FindSchemaNode("/ex:top")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	root := data.New(top)
	iface := data.New(top.Child("iface"))
	iface.AppendChild(data.NewLeaf(top.Child("iface").Child("name"), ifaceName))
	root.AppendChild(iface)
	return root
}

func TestValidateMandatoryKeyAndDefaults(t *testing.T) {
	d := compileDomain(t)
	root := buildTree(t, d, "eth0")
	union.AddDefaults(root)

	mtu := root.Child("iface").Child("mtu")
	if mtu == nil || mtu.Value != "1500" {
		t.Fatalf("expected default mtu 1500, got %v", mtu)
	}

	errs := union.Validate(root, union.Options{Domain: d})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestValidateLeafrefTargetMissing(t *testing.T) {
	d := compileDomain(t)
	root := buildTree(t, d, "eth0")
	top, _ := d.FindSchemaNode("/ex:top")
	ref := data.NewLeaf(top.Child("iface-ref"), "eth1")
	root.AppendChild(ref)

	errs := union.Validate(root, union.Options{Domain: d})
	if len(errs) == 0 {
		t.Fatalf("expected a leafref-target-missing error")
	}
	found := false
	for _, e := range errs {
		if e.Tag == "data-missing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected data-missing tag, got %v", errs)
	}
}

func TestValidateIdentityrefDerivation(t *testing.T) {
	d := compileDomain(t)
	root := buildTree(t, d, "eth0")
	top, _ := d.FindSchemaNode("/ex:top")
	proto := data.NewLeaf(top.Child("proto"), "ex:tcp")
	root.AppendChild(proto)

	errs := union.Validate(root, union.Options{Domain: d})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors for valid identityref: %v", errs)
	}

	proto.Value = "ex:bogus"
	errs = union.Validate(root, union.Options{Domain: d})
	if len(errs) == 0 {
		t.Fatalf("expected invalid-value error for undeclared identity")
	}
}

func TestValidateDuplicateKeyRejected(t *testing.T) {
	d := compileDomain(t)
	root := buildTree(t, d, "eth0")
	top, _ := d.FindSchemaNode("/ex:top")
	dup := data.New(top.Child("iface"))
	dup.AppendChild(data.NewLeaf(top.Child("iface").Child("name"), "eth0"))
	root.AppendChild(dup)

	errs := union.Validate(root, union.Options{Domain: d})
	found := false
	for _, e := range errs {
		if e.Tag == "data-exists" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected data-exists for duplicate key, got %v", errs)
	}
}
