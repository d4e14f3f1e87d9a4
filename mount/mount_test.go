package mount_test

import (
	"testing"

	"github.com/netconfd/confd/mount"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

const hostModule = `
module host {
  namespace "urn:host";
  prefix h;

  extension mount-point { argument label; }

  container mnt {
    h:mount-point "domain";
  }
}
`

const mountedModule = `
module foo {
  namespace "urn:foo";
  prefix foo;

  container bar {
    leaf x { type string; }
  }
}
`

func hostDomain(t *testing.T) (*schema.Domain, *schema.Node) {
	t.Helper()
	d := schema.NewDomain()
	if err := d.AddModuleSource("host.yang", []byte(hostModule)); err != nil {
		t.Fatalf("AddModuleSource: %v", err)
	}
	if err := schema.Compile(d, schema.Options{}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	mnt, err := d.FindSchemaNode("/h:mnt")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	return d, mnt
}

func TestDomainForSolicitsAndCaches(t *testing.T) {
	_, mnt := hostDomain(t)
	calls := 0
	r := mount.NewResolver(mount.Options{
		ShareDomains: true,
		Solicit: func(mp *data.Node) (*mount.YangLibrary, error) {
			calls++
			return &mount.YangLibrary{
				ModuleSetName: "fooset",
				ModuleSources: map[string][]byte{"foo.yang": []byte(mountedModule)},
			}, nil
		},
	})

	inst := data.New(mnt)
	d1, err := r.DomainFor(inst)
	if err != nil {
		t.Fatalf("DomainFor: %v", err)
	}
	if d1 == nil {
		t.Fatalf("expected a mounted domain")
	}
	if _, err := d1.FindSchemaNode("/foo:bar"); err != nil {
		t.Fatalf("mounted domain missing /foo:bar: %v", err)
	}

	d2, err := r.DomainFor(inst)
	if err != nil {
		t.Fatalf("DomainFor (cached): %v", err)
	}
	if d2 != d1 {
		t.Fatalf("expected cached binding to return the same domain")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one solicitation, got %d", calls)
	}
}

func TestDomainForSharesIdenticalLibraries(t *testing.T) {
	_, mnt := hostDomain(t)
	lib := &mount.YangLibrary{
		ModuleSetName: "fooset",
		ModuleSources: map[string][]byte{"foo.yang": []byte(mountedModule)},
	}
	r := mount.NewResolver(mount.Options{
		ShareDomains: true,
		Solicit:      func(mp *data.Node) (*mount.YangLibrary, error) { return lib, nil },
	})

	instA := data.New(mnt)
	instA.Name = "a"
	instB := data.New(mnt)
	instB.Name = "b"

	dA, _ := r.DomainFor(instA)
	dB, _ := r.DomainFor(instB)
	if dA != dB {
		t.Fatalf("expected identical yang-library advertisements to share a domain")
	}
}
