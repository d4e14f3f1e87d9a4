package datastore_test

import (
	"testing"

	"github.com/netconfd/confd/datastore"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

const testModule = `
module ex {
  namespace "urn:ex";
  prefix ex;

  container top {
    leaf x { type string; }
    list ifs {
      key "name";
      leaf name { type string; }
      leaf mtu { type uint32; }
    }
  }
}
`

func newDomain(t *testing.T) *schema.Domain {
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

func editFragment(t *testing.T, d *schema.Domain, op data.Op, name, mtu string) *data.Node {
	t.Helper()
	top, err := d.FindSchemaNode("/ex:top")
	if err != nil {
		t.Fatalf("FindSchemaNode: %v", err)
	}
	frag := &data.Node{Name: "config"}
	topInst := data.New(top)
	topInst.SetOp(op)
	entry := data.New(top.Child("ifs"))
	entry.AppendChild(data.NewLeaf(top.Child("ifs").Child("name"), name))
	entry.AppendChild(data.NewLeaf(top.Child("ifs").Child("mtu"), mtu))
	topInst.AppendChild(entry)
	frag.AppendChild(topInst)
	return frag
}

func TestCreateThenReplaceThenCommit(t *testing.T) {
	d := newDomain(t)
	store := datastore.New(d, nil, false)

	if err := store.Edit(editFragment(t, d, data.OpCreate, "eth0", "1500"), data.OpMerge); err != nil {
		t.Fatalf("Edit create: %v", err)
	}
	errs, err := store.Commit("sess1")
	if err != nil || len(errs) != 0 {
		t.Fatalf("Commit: errs=%v err=%v", errs, err)
	}
	running := store.Get(datastore.Running)
	ifs := running.Child("top").ChildrenNamed("ifs")
	if len(ifs) != 1 || ifs[0].Child("mtu").Value != "1500" {
		t.Fatalf("unexpected running tree after first commit: %+v", ifs)
	}

	if err := store.Edit(editFragment(t, d, data.OpReplace, "eth0", "9000"), data.OpMerge); err != nil {
		t.Fatalf("Edit replace: %v", err)
	}
	errs, err = store.Commit("sess1")
	if err != nil || len(errs) != 0 {
		t.Fatalf("Commit 2: errs=%v err=%v", errs, err)
	}
	running = store.Get(datastore.Running)
	ifs = running.Child("top").ChildrenNamed("ifs")
	if len(ifs) != 1 || ifs[0].Child("mtu").Value != "9000" {
		t.Fatalf("replace did not update mtu: %+v", ifs)
	}
}

func TestCreateConflict(t *testing.T) {
	d := newDomain(t)
	store := datastore.New(d, nil, false)

	if err := store.Edit(editFragment(t, d, data.OpCreate, "eth0", "1500"), data.OpMerge); err != nil {
		t.Fatalf("Edit create: %v", err)
	}
	if _, err := store.Commit("sess1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	err := store.Edit(editFragment(t, d, data.OpCreate, "eth0", "1500"), data.OpMerge)
	if err == nil {
		t.Fatalf("expected data-exists error on duplicate create")
	}
}

func TestLockDeniesOtherSessionCommit(t *testing.T) {
	d := newDomain(t)
	store := datastore.New(d, nil, false)
	if err := store.Lock(datastore.Running, "sess1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := store.Edit(editFragment(t, d, data.OpCreate, "eth0", "1500"), data.OpMerge); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if _, err := store.Commit("sess2"); err == nil {
		t.Fatalf("expected lock-denied for a non-owning session")
	}
	if _, err := store.Commit("sess1"); err != nil {
		t.Fatalf("owning session commit should succeed: %v", err)
	}
}

func TestDiscardChanges(t *testing.T) {
	d := newDomain(t)
	store := datastore.New(d, nil, false)
	if err := store.Edit(editFragment(t, d, data.OpCreate, "eth0", "1500"), data.OpMerge); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	store.DiscardChanges()
	cand := store.Get(datastore.Candidate)
	if cand.Child("top") != nil {
		t.Fatalf("expected discard-changes to drop uncommitted edits")
	}
}
