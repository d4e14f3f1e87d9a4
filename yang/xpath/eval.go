package xpath

import (
	"fmt"
	"log"
	"math"

	"github.com/netconfd/confd/common"
)

// FunctionLibrary supplies the YANG-specific function extensions (RFC 7950
// section 10) that cannot be implemented purely in terms of the generic
// Node interface: re-match(), deref(), derived-from(),
// derived-from-or-self(), enum-value(), bit-is-set(). current() is not
// part of it: the evaluator answers it from Context.Current. With a nil
// Context.Funcs, re-match() is an error, deref() yields an empty
// node-set, derived-from()/derived-from-or-self()/bit-is-set() yield
// false and enum-value() yields NaN.
type FunctionLibrary interface {
	ReMatch(value, pattern string) (bool, error)
	Deref(n Node) (Node, error)
	DerivedFrom(n Node, moduleLocal string) (bool, error)
	DerivedFromOrSelf(n Node, moduleLocal string) (bool, error)
	EnumValue(n Node) (int, error)
	BitIsSet(n Node, bit string) (bool, error)
}

// Context is the evaluation context for instance-mode evaluation: a single
// context node, its position and size within the node-set it came from, the
// namespace context for resolving prefixes in the expression text, bound
// variables, and the YANG function extensions.
type Context struct {
	Node     Node
	Position int
	Size     int
	NS       NSResolver
	Vars     map[string]Value
	Funcs    FunctionLibrary

	// Current is what current() returns: the node the overall evaluation
	// started from, preserved across nested relative steps (spec.md 4.3).
	Current Node
}

func (c *Context) sub(n Node, pos, size int) *Context {
	nc := *c
	nc.Node, nc.Position, nc.Size = n, pos, size
	return &nc
}

// Eval evaluates prog against ctx.
func Eval(prog *Program, ctx *Context) (Value, error) {
	if ctx.Current == nil {
		ctx.Current = ctx.Node
	}
	v, err := evalExpr(prog.Root, ctx)
	if err != nil && common.LoggingIsEnabledAtLevel(common.LevelDebug, common.TypeXPath) {
		log.Printf("xpath: eval %q failed: %v", prog.Source, err)
	}
	return v, err
}

// EvalBoolean is a convenience for "when"/"must" conditions.
func EvalBoolean(prog *Program, ctx *Context) (bool, error) {
	v, err := Eval(prog, ctx)
	if err != nil {
		return false, err
	}
	return v.Boolean(), nil
}

func evalExpr(e Expr, ctx *Context) (Value, error) {
	switch n := e.(type) {
	case *Literal:
		return StringValue(n.Value), nil
	case *Number:
		return NumberValue(n.Value), nil
	case *Variable:
		if v, ok := ctx.Vars[n.Name]; ok {
			return v, nil
		}
		return Value{}, fmt.Errorf("xpath: undefined variable $%s", n.Name)
	case *UnaryMinus:
		v, err := evalExpr(n.X, ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(-v.Number()), nil
	case *BinaryExpr:
		return evalBinary(n, ctx)
	case *FunctionCall:
		return evalFunc(n, ctx)
	case *PathExpr:
		ns, err := evalPath(n, ctx)
		if err != nil {
			return Value{}, err
		}
		return NodeSetValue(ns), nil
	}
	return Value{}, fmt.Errorf("xpath: unhandled expression %T", e)
}

func evalBinary(n *BinaryExpr, ctx *Context) (Value, error) {
	switch n.Op {
	case "and":
		l, err := evalExpr(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		if !l.Boolean() {
			return BoolValue(false), nil
		}
		r, err := evalExpr(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(r.Boolean()), nil
	case "or":
		l, err := evalExpr(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		if l.Boolean() {
			return BoolValue(true), nil
		}
		r, err := evalExpr(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(r.Boolean()), nil
	case "|":
		l, err := evalExpr(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		r, err := evalExpr(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		if l.Kind != KindNodeSet || r.Kind != KindNodeSet {
			return Value{}, fmt.Errorf("xpath: '|' requires node-sets")
		}
		return NodeSetValue(unionNodeSets(l.NodeSet, r.NodeSet)), nil
	}

	l, err := evalExpr(n.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := evalExpr(n.Right, ctx)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		return compareValues(n.Op, l, r), nil
	case "+":
		return NumberValue(l.Number() + r.Number()), nil
	case "-":
		return NumberValue(l.Number() - r.Number()), nil
	case "*":
		return NumberValue(l.Number() * r.Number()), nil
	case "div":
		return NumberValue(l.Number() / r.Number()), nil
	case "mod":
		return NumberValue(math.Mod(l.Number(), r.Number())), nil
	}
	return Value{}, fmt.Errorf("xpath: unknown operator %q", n.Op)
}

// compareValues implements XPath 1.0 section 3.4's equality/relational
// comparison rules, including the existentially-quantified node-set
// comparisons spec.md requires.
func compareValues(op string, l, r Value) Value {
	if l.Kind == KindNodeSet && r.Kind == KindNodeSet {
		for _, ln := range l.NodeSet {
			for _, rn := range r.NodeSet {
				if compareScalars(op, StringValue(ln.StringValue()), StringValue(rn.StringValue())) {
					return BoolValue(true)
				}
			}
		}
		return BoolValue(false)
	}
	if l.Kind == KindNodeSet || r.Kind == KindNodeSet {
		ns, other := l, r
		if r.Kind == KindNodeSet {
			ns, other = r, l
		}
		for _, n := range ns.NodeSet {
			var conv Value
			switch other.Kind {
			case KindNumber:
				conv = NumberValue(stringToNumber(n.StringValue()))
			case KindBoolean:
				conv = BoolValue(n.StringValue() != "")
			default:
				conv = StringValue(n.StringValue())
			}
			if compareScalars(op, conv, other) {
				return BoolValue(true)
			}
		}
		return BoolValue(false)
	}
	if l.Kind == KindBoolean || r.Kind == KindBoolean {
		return BoolValue(compareScalars(op, BoolValue(l.Boolean()), BoolValue(r.Boolean())))
	}
	if l.Kind == KindNumber || r.Kind == KindNumber {
		return BoolValue(compareScalars(op, NumberValue(l.Number()), NumberValue(r.Number())))
	}
	return BoolValue(compareScalars(op, StringValue(l.String()), StringValue(r.String())))
}

func compareScalars(op string, l, r Value) bool {
	switch op {
	case "=":
		if l.Kind == KindNumber || r.Kind == KindNumber {
			return l.Number() == r.Number()
		}
		if l.Kind == KindBoolean || r.Kind == KindBoolean {
			return l.Boolean() == r.Boolean()
		}
		return l.String() == r.String()
	case "!=":
		return !compareScalars("=", l, r)
	case "<":
		return l.Number() < r.Number()
	case "<=":
		return l.Number() <= r.Number()
	case ">":
		return l.Number() > r.Number()
	case ">=":
		return l.Number() >= r.Number()
	}
	return false
}

func unionNodeSets(a, b []Node) []Node {
	seen := make(map[Node]bool, len(a)+len(b))
	var out []Node
	for _, n := range append(append([]Node{}, a...), b...) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// evalPath evaluates a location path (absolute or relative, possibly
// rooted at a filter expression) to a node-set.
func evalPath(p *PathExpr, ctx *Context) ([]Node, error) {
	var start []Node
	switch {
	case p.Filter != nil:
		v, err := evalExpr(p.Filter, ctx)
		if err != nil {
			return nil, err
		}
		if v.Kind != KindNodeSet {
			return nil, fmt.Errorf("xpath: path filter expression did not yield a node-set")
		}
		start = v.NodeSet
	case p.Absolute:
		start = []Node{documentRoot(ctx.Node)}
	default:
		start = []Node{ctx.Node}
	}

	cur := start
	for _, step := range p.Steps {
		next, err := evalStep(step, cur, ctx)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func documentRoot(n Node) Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

func evalStep(step *Step, context []Node, ctx *Context) ([]Node, error) {
	var axisNodes []Node
	for _, n := range context {
		axisNodes = append(axisNodes, axisStep(step.Axis, n)...)
	}
	axisNodes = filterByTest(step.Test, axisNodes, ctx)

	for _, pred := range step.Predicates {
		axisNodes = applyPredicate(pred, axisNodes, ctx)
	}
	return axisNodes, nil
}

func axisStep(axis Axis, n Node) []Node {
	switch axis {
	case AxisChild:
		return n.Children()
	case AxisParent:
		if p := n.Parent(); p != nil {
			return []Node{p}
		}
		return nil
	case AxisSelf:
		return []Node{n}
	case AxisAttribute:
		return n.Attributes()
	case AxisDescendantOrSelf:
		var out []Node
		var walk func(Node)
		walk = func(x Node) {
			out = append(out, x)
			for _, c := range x.Children() {
				walk(c)
			}
		}
		walk(n)
		return out
	case AxisAncestor, AxisAncestorOrSelf:
		var out []Node
		if axis == AxisAncestorOrSelf {
			out = append(out, n)
		}
		for p := n.Parent(); p != nil; p = p.Parent() {
			out = append(out, p)
		}
		return out
	case AxisFollowingSibling, AxisPrecedingSibling:
		p := n.Parent()
		if p == nil {
			return nil
		}
		sibs := p.Children()
		idx := -1
		for i, s := range sibs {
			if s == n {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		if axis == AxisFollowingSibling {
			return append([]Node{}, sibs[idx+1:]...)
		}
		return append([]Node{}, sibs[:idx]...)
	}
	return nil
}

func filterByTest(test NodeTest, nodes []Node, ctx *Context) []Node {
	var out []Node
	for _, n := range nodes {
		if test.TextType {
			continue // instance trees here never expose bare text nodes
		}
		if test.AnyNodeType || test.Wildcard {
			if test.Prefix != "" {
				uri, ok := resolvePrefix(ctx, test.Prefix)
				if !ok || n.NamespaceURI() != uri {
					continue
				}
			}
			out = append(out, n)
			continue
		}
		if n.LocalName() != test.Local {
			continue
		}
		if test.Prefix != "" {
			uri, ok := resolvePrefix(ctx, test.Prefix)
			if ok && n.NamespaceURI() != uri {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func resolvePrefix(ctx *Context, prefix string) (string, bool) {
	if ctx.NS == nil {
		return "", false
	}
	return ctx.NS.Resolve(prefix)
}

// applyPredicate evaluates pred for each node in nodes (with correct
// position/size context) and keeps those for which it is true, per XPath
// 1.0's numeric-predicate-means-position rule.
func applyPredicate(pred Expr, nodes []Node, ctx *Context) []Node {
	size := len(nodes)
	var out []Node
	for i, n := range nodes {
		sub := ctx.sub(n, i+1, size)
		v, err := evalExpr(pred, sub)
		if err != nil {
			continue
		}
		if v.Kind == KindNumber {
			if int(v.Num) == i+1 {
				out = append(out, n)
			}
			continue
		}
		if v.Boolean() {
			out = append(out, n)
		}
	}
	return out
}

func nodeSetStrings(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.StringValue()
	}
	return out
}
