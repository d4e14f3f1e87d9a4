package schema_test

import (
	"testing"

	"github.com/netconfd/confd/yang/schema"
)

const testModule = `
module ex {
  namespace "urn:ex";
  prefix ex;

  identity base-proto;
  identity tcp { base base-proto; }

  typedef percent {
    type uint8 {
      range "0..100";
    }
  }

  grouping addr {
    leaf name {
      type string {
        length "1..16";
      }
    }
    leaf mtu {
      type uint32 {
        range "68..9000";
      }
      default "1500";
    }
  }

  container top {
    list iface {
      key "name";
      uses addr;
      leaf load {
        type percent;
      }
    }
    leaf iface-ref {
      type leafref {
        path "/ex:top/ex:iface/ex:name";
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

func TestCompileExpandsUsesAndTypedef(t *testing.T) {
	d := compileTestDomain(t)
	iface, err := d.FindSchemaNode("/ex:top/ex:iface")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	if iface.Child("name") == nil {
		t.Fatalf("expected grouping-sourced leaf \"name\" under iface")
	}
	mtu := iface.Child("mtu")
	if mtu == nil {
		t.Fatalf("expected grouping-sourced leaf \"mtu\"")
	}
	if len(mtu.Default) != 1 || mtu.Default[0] != "1500" {
		t.Fatalf("got default %v, want [1500]", mtu.Default)
	}
	load := iface.Child("load")
	if load == nil || load.Type == nil {
		t.Fatalf("expected leaf \"load\" with resolved typedef type")
	}
	if err := load.Type.ValidateValue(nil, "101"); err == nil {
		t.Fatalf("expected range violation for load=101")
	}
	if err := load.Type.ValidateValue(nil, "50"); err != nil {
		t.Fatalf("unexpected error for load=50: %v", err)
	}
}

func TestCompileLinksLeafref(t *testing.T) {
	d := compileTestDomain(t)
	ref, err := d.FindSchemaNode("/ex:top/ex:iface-ref")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	target := ref.Type.LeafrefTarget()
	if target == nil {
		t.Fatalf("expected leafref target to be linked")
	}
	if target.Name != "name" {
		t.Fatalf("got leafref target %q, want \"name\"", target.Name)
	}
}

func TestCompileResolvesIdentityDerivation(t *testing.T) {
	d := compileTestDomain(t)
	m, err := d.Module("ex", "")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	_ = m
	proto, err := d.FindSchemaNode("/ex:top/ex:proto")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	if len(proto.Type.IdentityBases) != 1 || proto.Type.IdentityBases[0] != "ex:base-proto" {
		t.Fatalf("got identity bases %v, want [ex:base-proto]", proto.Type.IdentityBases)
	}
}

func TestListKey(t *testing.T) {
	d := compileTestDomain(t)
	iface, err := d.FindSchemaNode("/ex:top/ex:iface")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	if !iface.IsKey("name") {
		t.Fatalf("expected \"name\" to be a key leaf")
	}
}
