package xpath_test

import (
	"testing"

	"github.com/netconfd/confd/yang/xpath"
)

// fakeNode is a minimal in-memory tree for exercising the evaluator without
// depending on package yang/data (which itself depends on this package).
type fakeNode struct {
	name, ns, text string
	parent         *fakeNode
	children       []*fakeNode
	attrs          []*fakeNode
	isAttr         bool
}

func (n *fakeNode) LocalName() string     { return n.name }
func (n *fakeNode) NamespaceURI() string  { return n.ns }
func (n *fakeNode) IsAttribute() bool     { return n.isAttr }
func (n *fakeNode) Attributes() []xpath.Node {
	out := make([]xpath.Node, len(n.attrs))
	for i, a := range n.attrs {
		out[i] = a
	}
	return out
}
func (n *fakeNode) Parent() xpath.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
func (n *fakeNode) Children() []xpath.Node {
	out := make([]xpath.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}
func (n *fakeNode) StringValue() string {
	if len(n.children) == 0 {
		return n.text
	}
	s := ""
	for _, c := range n.children {
		s += c.StringValue()
	}
	return s
}

func child(parent *fakeNode, name, text string) *fakeNode {
	c := &fakeNode{name: name, ns: "urn:ex", text: text, parent: parent}
	parent.children = append(parent.children, c)
	return c
}

func buildTree() *fakeNode {
	root := &fakeNode{name: "config", ns: "urn:ex"}
	top := child(root, "top", "")
	child(top, "x", "a")
	eth0 := child(top, "if", "")
	eth0.children = nil
	name := child(eth0, "name", "eth0")
	_ = name
	child(eth0, "mtu", "1500")
	eth1 := child(top, "if", "")
	child(eth1, "name", "eth1")
	child(eth1, "mtu", "9000")
	return root
}

func evalString(t *testing.T, expr string, ctx *xpath.Context) string {
	t.Helper()
	prog, err := xpath.Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	v, err := xpath.Eval(prog, ctx)
	if err != nil {
		t.Fatalf("eval %q: %v", expr, err)
	}
	return v.String()
}

func TestEvalChildPath(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	if got := evalString(t, "/top/x", ctx); got != "a" {
		t.Fatalf("got %q, want \"a\"", got)
	}
}

func TestEvalPredicateByPosition(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	if got := evalString(t, "/top/if[2]/mtu", ctx); got != "9000" {
		t.Fatalf("got %q, want \"9000\"", got)
	}
}

func TestEvalPredicateByKeyEquality(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	if got := evalString(t, "/top/if[name='eth1']/mtu", ctx); got != "9000" {
		t.Fatalf("got %q, want \"9000\"", got)
	}
}

func TestEvalCountAndArithmetic(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	if got := evalString(t, "count(/top/if) + 1", ctx); got != "3" {
		t.Fatalf("got %q, want \"3\"", got)
	}
}

func TestEvalBooleanFunctions(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	prog, err := xpath.Compile("contains(/top/x, 'a') and not(/top/x = 'b')")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := xpath.EvalBoolean(prog, ctx)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Fatalf("expected true")
	}
}

func TestEvalNodeSetExistentialComparison(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	ok, err := xpath.EvalBoolean(mustCompile(t, "/top/if/name = 'eth1'"), ctx)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Fatalf("expected existential match against eth1")
	}
}

func TestEvalMissingNodeYieldsEmptyNotError(t *testing.T) {
	root := buildTree()
	ctx := &xpath.Context{Node: root}
	prog := mustCompile(t, "/top/nonexistent")
	v, err := xpath.Eval(prog, ctx)
	if err != nil {
		t.Fatalf("instance-mode missing node should not error: %v", err)
	}
	if len(v.NodeSet) != 0 {
		t.Fatalf("expected empty node-set")
	}
}

func mustCompile(t *testing.T, expr string) *xpath.Program {
	t.Helper()
	p, err := xpath.Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	return p
}
