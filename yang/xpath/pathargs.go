package xpath

import "fmt"

// PathArgResolver performs a schema-path-mode ("path-arg") resolution
// step: from a given schema node, move along an axis to a named child or
// to the parent. It is implemented by package yang/schema.
type PathArgResolver interface {
	SchemaChild(n Node, prefix, local string) (Node, bool)
	SchemaParent(n Node) (Node, bool)
}

// ResolvePathArg evaluates prog as a leafref "path" argument (RFC 7950
// section 9.9.2) against a schema tree, starting at initial (the leafref's
// owning leaf, also used to resolve current()). Only child/parent axes and
// equality predicates on key leaves are legal; equality predicates are
// accepted syntactically but never evaluated (schema level has no values)
// per spec.md section 4.3. Any other construct is a syntactic rejection.
//
// Returns the single resolved schema node, or an error naming the first
// disallowed construct or an unresolved step.
func ResolvePathArg(prog *Program, initial Node, resolver PathArgResolver) (Node, error) {
	path, ok := prog.Root.(*PathExpr)
	if !ok || path.Filter != nil {
		return nil, fmt.Errorf("invalid path-arg: not a location path")
	}
	cur := initial
	if path.Absolute {
		for cur.Parent() != nil {
			cur = cur.Parent()
		}
	}
	for _, step := range path.Steps {
		if err := validatePathArgStep(step); err != nil {
			return nil, err
		}
		var ok bool
		switch step.Axis {
		case AxisChild:
			cur, ok = resolver.SchemaChild(cur, step.Test.Prefix, step.Test.Local)
		case AxisParent:
			cur, ok = resolver.SchemaParent(cur)
		default:
			return nil, fmt.Errorf("invalid path-arg: axis %s not permitted", step.Axis)
		}
		if !ok {
			return nil, fmt.Errorf("invalid path-arg: step %q did not resolve", step.Test.Local)
		}
	}
	return cur, nil
}

// validatePathArgStep rejects any step construct beyond the restricted
// grammar: only a plain child-name or ".." step, with zero or more
// equality predicates whose operands are current()/child-name paths.
func validatePathArgStep(step *Step) error {
	if step.Axis != AxisChild && step.Axis != AxisParent {
		return fmt.Errorf("invalid path-arg: axis %s not permitted", step.Axis)
	}
	if step.Axis == AxisChild && step.Test.Wildcard {
		return fmt.Errorf("invalid path-arg: wildcard node test not permitted")
	}
	for _, pred := range step.Predicates {
		if err := validatePathArgPredicate(pred); err != nil {
			return err
		}
	}
	return nil
}

func validatePathArgPredicate(e Expr) error {
	b, ok := e.(*BinaryExpr)
	if !ok || b.Op != "=" {
		return fmt.Errorf("invalid path-arg: predicate must be a key equality test")
	}
	if err := validatePathArgOperand(b.Left); err != nil {
		return err
	}
	return validatePathArgOperand(b.Right)
}

func validatePathArgOperand(e Expr) error {
	switch v := e.(type) {
	case *PathExpr:
		if v.Filter != nil {
			if fc, ok := v.Filter.(*FunctionCall); !ok || fc.Name != "current" {
				return fmt.Errorf("invalid path-arg: filter expressions not permitted")
			}
		}
		for _, s := range v.Steps {
			if err := validatePathArgStep(s); err != nil {
				return err
			}
		}
		return nil
	case *FunctionCall:
		if v.Name == "current" {
			return nil
		}
		return fmt.Errorf("invalid path-arg: function %s() not permitted", v.Name)
	}
	return fmt.Errorf("invalid path-arg: operand of unsupported kind")
}
