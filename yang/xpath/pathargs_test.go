package xpath_test

import (
	"testing"

	"github.com/netconfd/confd/yang/xpath"
)

type schemaResolver struct{ root *fakeNode }

func (r *schemaResolver) SchemaChild(n xpath.Node, prefix, local string) (xpath.Node, bool) {
	fn := n.(*fakeNode)
	for _, c := range fn.children {
		if c.name == local {
			return c, true
		}
	}
	return nil, false
}

func (r *schemaResolver) SchemaParent(n xpath.Node) (xpath.Node, bool) {
	fn := n.(*fakeNode)
	if fn.parent == nil {
		return nil, false
	}
	return fn.parent, true
}

func TestResolvePathArgChildChain(t *testing.T) {
	root := buildTree()
	prog := mustCompile(t, "/top/if/mtu")
	got, err := xpath.ResolvePathArg(prog, root, &schemaResolver{root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(*fakeNode).name != "mtu" {
		t.Fatalf("got %v, want mtu", got)
	}
}

func TestResolvePathArgRejectsDescendantAxis(t *testing.T) {
	root := buildTree()
	prog := mustCompile(t, "//mtu")
	if _, err := xpath.ResolvePathArg(prog, root, &schemaResolver{root: root}); err == nil {
		t.Fatalf("expected rejection of // axis in path-arg")
	}
}

func TestResolvePathArgAllowsKeyEqualityPredicate(t *testing.T) {
	root := buildTree()
	prog := mustCompile(t, "/top/if[name=current()/../name]/mtu")
	if _, err := xpath.ResolvePathArg(prog, root, &schemaResolver{root: root}); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestResolvePathArgRejectsFunctionCallOtherThanCurrent(t *testing.T) {
	root := buildTree()
	prog := mustCompile(t, "/top/if[name=concat('a','b')]/mtu")
	if _, err := xpath.ResolvePathArg(prog, root, &schemaResolver{root: root}); err == nil {
		t.Fatalf("expected rejection of non-current() function in predicate")
	}
}
