package xpath

import (
	"fmt"
	"math"
	"strings"
)

// evalFunc implements the XPath 1.0 core function library (section 4) plus
// the YANG extensions of RFC 7950 section 10: current(), re-match(),
// deref(), derived-from(), derived-from-or-self(), enum-value(),
// bit-is-set(). "__filter" is an internal pseudo-function the parser emits
// for a PrimaryExpr with trailing predicates.
func evalFunc(f *FunctionCall, ctx *Context) (Value, error) {
	switch f.Name {
	case "__filter":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != KindNodeSet {
			return v, nil
		}
		nodes := v.NodeSet
		for _, pred := range f.Args[1:] {
			nodes = applyPredicate(pred, nodes, ctx)
		}
		return NodeSetValue(nodes), nil

	case "last":
		return NumberValue(float64(ctx.Size)), nil
	case "position":
		return NumberValue(float64(ctx.Position)), nil
	case "count":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(len(ns))), nil
	case "local-name", "name":
		n := ctx.Node
		if len(f.Args) > 0 {
			ns, err := argNodeSet(f, ctx, 0)
			if err != nil {
				return Value{}, err
			}
			if len(ns) == 0 {
				return StringValue(""), nil
			}
			n = ns[0]
		}
		if n == nil {
			return StringValue(""), nil
		}
		return StringValue(n.LocalName()), nil
	case "namespace-uri":
		n := ctx.Node
		if len(f.Args) > 0 {
			ns, err := argNodeSet(f, ctx, 0)
			if err != nil {
				return Value{}, err
			}
			if len(ns) == 0 {
				return StringValue(""), nil
			}
			n = ns[0]
		}
		if n == nil {
			return StringValue(""), nil
		}
		return StringValue(n.NamespaceURI()), nil

	case "string":
		if len(f.Args) == 0 {
			return StringValue(ctx.Node.StringValue()), nil
		}
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return StringValue(v.String()), nil
	case "concat":
		var b strings.Builder
		for _, a := range f.Args {
			v, err := evalExpr(a, ctx)
			if err != nil {
				return Value{}, err
			}
			b.WriteString(v.String())
		}
		return StringValue(b.String()), nil
	case "starts-with":
		a, b, err := arg2Strings(f, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(strings.HasPrefix(a, b)), nil
	case "contains":
		a, b, err := arg2Strings(f, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(strings.Contains(a, b)), nil
	case "substring-before":
		a, b, err := arg2Strings(f, ctx)
		if err != nil {
			return Value{}, err
		}
		i := strings.Index(a, b)
		if i < 0 {
			return StringValue(""), nil
		}
		return StringValue(a[:i]), nil
	case "substring-after":
		a, b, err := arg2Strings(f, ctx)
		if err != nil {
			return Value{}, err
		}
		i := strings.Index(a, b)
		if i < 0 {
			return StringValue(""), nil
		}
		return StringValue(a[i+len(b):]), nil
	case "substring":
		return evalSubstring(f, ctx)
	case "string-length":
		s := ctx.Node.StringValue()
		if len(f.Args) > 0 {
			v, err := evalExpr(f.Args[0], ctx)
			if err != nil {
				return Value{}, err
			}
			s = v.String()
		}
		return NumberValue(float64(len([]rune(s)))), nil
	case "normalize-space":
		s := ctx.Node.StringValue()
		if len(f.Args) > 0 {
			v, err := evalExpr(f.Args[0], ctx)
			if err != nil {
				return Value{}, err
			}
			s = v.String()
		}
		return StringValue(strings.Join(strings.Fields(s), " ")), nil
	case "translate":
		return evalTranslate(f, ctx)

	case "boolean":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(v.Boolean()), nil
	case "not":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!v.Boolean()), nil
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	case "lang":
		return BoolValue(false), nil

	case "number":
		if len(f.Args) == 0 {
			return NumberValue(stringToNumber(ctx.Node.StringValue())), nil
		}
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(v.Number()), nil
	case "sum":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		var total float64
		for _, n := range ns {
			total += stringToNumber(n.StringValue())
		}
		return NumberValue(total), nil
	case "floor":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(math.Floor(v.Number())), nil
	case "ceiling":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(math.Ceil(v.Number())), nil
	case "round":
		v, err := evalExpr(f.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(math.Round(v.Number())), nil

	// --- YANG extensions (RFC 7950 section 10) ---
	case "current":
		return NodeSetValue([]Node{ctx.Current}), nil
	case "re-match":
		s, pat, err := arg2Strings(f, ctx)
		if err != nil {
			return Value{}, err
		}
		if ctx.Funcs == nil {
			return Value{}, fmt.Errorf("xpath: re-match() requires a FunctionLibrary")
		}
		ok, err := ctx.Funcs.ReMatch(s, pat)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(ok), nil
	case "deref":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		if len(ns) == 0 || ctx.Funcs == nil {
			return NodeSetValue(nil), nil
		}
		target, err := ctx.Funcs.Deref(ns[0])
		if err != nil {
			return Value{}, err
		}
		if target == nil {
			return NodeSetValue(nil), nil
		}
		return NodeSetValue([]Node{target}), nil
	case "derived-from", "derived-from-or-self":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		idv, err := evalExpr(f.Args[1], ctx)
		if err != nil {
			return Value{}, err
		}
		if len(ns) == 0 || ctx.Funcs == nil {
			return BoolValue(false), nil
		}
		if f.Name == "derived-from" {
			ok, err := ctx.Funcs.DerivedFrom(ns[0], idv.String())
			return BoolValue(ok), err
		}
		ok, err := ctx.Funcs.DerivedFromOrSelf(ns[0], idv.String())
		return BoolValue(ok), err
	case "enum-value":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		if len(ns) == 0 || ctx.Funcs == nil {
			return NumberValue(math.NaN()), nil
		}
		n, err := ctx.Funcs.EnumValue(ns[0])
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(n)), nil
	case "bit-is-set":
		ns, err := argNodeSet(f, ctx, 0)
		if err != nil {
			return Value{}, err
		}
		bitv, err := evalExpr(f.Args[1], ctx)
		if err != nil {
			return Value{}, err
		}
		if len(ns) == 0 || ctx.Funcs == nil {
			return BoolValue(false), nil
		}
		ok, err := ctx.Funcs.BitIsSet(ns[0], bitv.String())
		return BoolValue(ok), err
	}
	return Value{}, fmt.Errorf("xpath: unknown function %s()", f.Name)
}

func argNodeSet(f *FunctionCall, ctx *Context, i int) ([]Node, error) {
	if i >= len(f.Args) {
		return nil, fmt.Errorf("xpath: %s() missing argument %d", f.Name, i)
	}
	v, err := evalExpr(f.Args[i], ctx)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindNodeSet {
		return nil, fmt.Errorf("xpath: %s() argument %d is not a node-set", f.Name, i)
	}
	return v.NodeSet, nil
}

func arg2Strings(f *FunctionCall, ctx *Context) (string, string, error) {
	if len(f.Args) < 2 {
		return "", "", fmt.Errorf("xpath: %s() requires 2 arguments", f.Name)
	}
	a, err := evalExpr(f.Args[0], ctx)
	if err != nil {
		return "", "", err
	}
	b, err := evalExpr(f.Args[1], ctx)
	if err != nil {
		return "", "", err
	}
	return a.String(), b.String(), nil
}

func evalSubstring(f *FunctionCall, ctx *Context) (Value, error) {
	if len(f.Args) < 2 {
		return Value{}, fmt.Errorf("xpath: substring() requires at least 2 arguments")
	}
	sv, err := evalExpr(f.Args[0], ctx)
	if err != nil {
		return Value{}, err
	}
	startv, err := evalExpr(f.Args[1], ctx)
	if err != nil {
		return Value{}, err
	}
	runes := []rune(sv.String())
	start := round5(startv.Number())
	length := float64(len(runes)) - start + 1
	if len(f.Args) == 3 {
		lv, err := evalExpr(f.Args[2], ctx)
		if err != nil {
			return Value{}, err
		}
		length = round5(lv.Number())
	}
	from := int(math.Max(1, start))
	to := int(math.Min(float64(len(runes)+1), start+length))
	if from > len(runes) || to <= from {
		return StringValue(""), nil
	}
	return StringValue(string(runes[from-1 : to-1])), nil
}

func round5(f float64) float64 {
	if math.IsNaN(f) {
		return f
	}
	return math.Round(f)
}

func evalTranslate(f *FunctionCall, ctx *Context) (Value, error) {
	if len(f.Args) != 3 {
		return Value{}, fmt.Errorf("xpath: translate() requires 3 arguments")
	}
	sv, err := evalExpr(f.Args[0], ctx)
	if err != nil {
		return Value{}, err
	}
	fromv, err := evalExpr(f.Args[1], ctx)
	if err != nil {
		return Value{}, err
	}
	tov, err := evalExpr(f.Args[2], ctx)
	if err != nil {
		return Value{}, err
	}
	from, to := []rune(fromv.String()), []rune(tov.String())
	var b strings.Builder
	for _, r := range sv.String() {
		idx := -1
		for i, fr := range from {
			if fr == r {
				idx = i
				break
			}
		}
		if idx < 0 {
			b.WriteRune(r)
			continue
		}
		if idx < len(to) {
			b.WriteRune(to[idx])
		}
	}
	return StringValue(b.String()), nil
}
