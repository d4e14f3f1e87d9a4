package xpath

import (
	"fmt"
	"strings"
)

// Compile parses expr into a ready-to-evaluate Program.
func Compile(expr string) (*Program, error) {
	p := &parser{lx: newLexer(expr)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tEOF {
		return nil, fmt.Errorf("xpath: trailing input after %q in %q", p.cur.text, expr)
	}
	return &Program{Root: e, Source: expr}, nil
}

type parser struct {
	lx  *lexer
	cur tok
}

func (p *parser) advance() error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expect(k tokKind, what string) error {
	if p.cur.kind != k {
		return fmt.Errorf("xpath: expected %s, got %q", what, p.cur.text)
	}
	return p.advance()
}

// --- precedence climbing, lowest to highest ---

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tName && p.cur.text == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tName && p.cur.text == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tOp && (p.cur.text == "=" || p.cur.text == "!=") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tOp && (p.cur.text == "<" || p.cur.text == ">" || p.cur.text == "<=" || p.cur.text == ">=") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tOp && (p.cur.text == "+" || p.cur.text == "-") {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for (p.cur.kind == tOp && p.cur.text == "*") ||
		(p.cur.kind == tName && (p.cur.text == "div" || p.cur.text == "mod")) {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur.kind == tOp && p.cur.text == "-" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryMinus{X: x}, nil
	}
	return p.parseUnion()
}

func (p *parser) parseUnion() (Expr, error) {
	left, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tOp && p.cur.text == "|" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "|", Left: left, Right: right}
	}
	return left, nil
}

// parsePath parses a LocationPath or a FilterExpr optionally followed by a
// relative location path (e.g. "current()/../x").
func (p *parser) parsePath() (Expr, error) {
	if p.cur.kind == tSlash || p.cur.kind == tDSlash {
		abs := p.cur.kind == tSlash
		dslashLeading := p.cur.kind == tDSlash
		if err := p.advance(); err != nil {
			return nil, err
		}
		path := &PathExpr{Absolute: true}
		if dslashLeading {
			path.Steps = append(path.Steps, &Step{Axis: AxisDescendantOrSelf, Test: NodeTest{AnyNodeType: true}})
		}
		if p.atStepStart() {
			steps, err := p.parseRelativeSteps()
			if err != nil {
				return nil, err
			}
			path.Steps = append(path.Steps, steps...)
		}
		_ = abs
		return path, nil
	}

	if p.atStepStart() {
		steps, err := p.parseRelativeSteps()
		if err != nil {
			return nil, err
		}
		return &PathExpr{Steps: steps}, nil
	}

	// FilterExpr: PrimaryExpr Predicate*
	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	var preds []Expr
	for p.cur.kind == tLBracket {
		pr, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pr)
	}
	if len(preds) > 0 {
		prim = &FunctionCall{Name: "__filter", Args: append([]Expr{prim}, preds...)}
	}
	if p.cur.kind == tSlash || p.cur.kind == tDSlash {
		dslash := p.cur.kind == tDSlash
		if err := p.advance(); err != nil {
			return nil, err
		}
		var steps []*Step
		if dslash {
			steps = append(steps, &Step{Axis: AxisDescendantOrSelf, Test: NodeTest{AnyNodeType: true}})
		}
		rest, err := p.parseRelativeSteps()
		if err != nil {
			return nil, err
		}
		steps = append(steps, rest...)
		return &PathExpr{Filter: prim, Steps: steps}, nil
	}
	return prim, nil
}

func (p *parser) atStepStart() bool {
	switch p.cur.kind {
	case tDot, tDDot, tAt, tStar:
		return true
	case tName:
		switch p.cur.text {
		case "node", "text", "comment", "processing-instruction":
			return true
		}
		save := *p.lx
		nt, err := p.lx.next()
		*p.lx = save
		return err != nil || nt.kind != tLParen
	}
	return false
}

func (p *parser) parseRelativeSteps() ([]*Step, error) {
	var steps []*Step
	for {
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		if p.cur.kind == tDSlash {
			if err := p.advance(); err != nil {
				return nil, err
			}
			steps = append(steps, &Step{Axis: AxisDescendantOrSelf, Test: NodeTest{AnyNodeType: true}})
			continue
		}
		if p.cur.kind == tSlash {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return steps, nil
}

func (p *parser) parseStep() (*Step, error) {
	if p.cur.kind == tDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Step{Axis: AxisSelf, Test: NodeTest{AnyNodeType: true}}, nil
	}
	if p.cur.kind == tDDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Step{Axis: AxisParent, Test: NodeTest{AnyNodeType: true}}, nil
	}

	axis := AxisChild
	if p.cur.kind == tAt {
		axis = AxisAttribute
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.cur.kind == tName && isAxisKeyword(p.cur.text) {
		save := *p
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tColonColon {
			axis = parseAxisName(name)
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			*p = save // was actually a name test equal to an axis keyword
		}
	}

	test, err := p.parseNodeTest()
	if err != nil {
		return nil, err
	}

	var preds []Expr
	for p.cur.kind == tLBracket {
		pr, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pr)
	}
	return &Step{Axis: axis, Test: test, Predicates: preds}, nil
}

func parseAxisName(s string) Axis {
	switch s {
	case "child":
		return AxisChild
	case "parent":
		return AxisParent
	case "self":
		return AxisSelf
	case "attribute":
		return AxisAttribute
	case "descendant-or-self":
		return AxisDescendantOrSelf
	case "ancestor":
		return AxisAncestor
	case "ancestor-or-self":
		return AxisAncestorOrSelf
	case "following-sibling":
		return AxisFollowingSibling
	case "preceding-sibling":
		return AxisPrecedingSibling
	}
	return AxisChild
}

func (p *parser) parseNodeTest() (NodeTest, error) {
	if p.cur.kind == tStar {
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		return NodeTest{Wildcard: true}, nil
	}
	if p.cur.kind != tName {
		return NodeTest{}, fmt.Errorf("xpath: expected node test, got %q", p.cur.text)
	}
	name := p.cur.text
	if err := p.advance(); err != nil {
		return NodeTest{}, err
	}
	if p.cur.kind == tLParen {
		// node()/text()/comment()/processing-instruction()
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		for p.cur.kind != tRParen {
			if p.cur.kind == tEOF {
				return NodeTest{}, fmt.Errorf("xpath: unterminated node-type test")
			}
			if err := p.advance(); err != nil {
				return NodeTest{}, err
			}
		}
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		if name == "text" {
			return NodeTest{TextType: true}, nil
		}
		return NodeTest{AnyNodeType: true}, nil
	}
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		prefix, local := name[:idx], name[idx+1:]
		if local == "*" {
			return NodeTest{Wildcard: true, Prefix: prefix}, nil
		}
		return NodeTest{Prefix: prefix, Local: local}, nil
	}
	return NodeTest{Local: name}, nil
}

func (p *parser) parsePredicate() (Expr, error) {
	if err := p.expect(tLBracket, "'['"); err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tRBracket, "']'"); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tDollar:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Variable{Name: name}, nil
	case tLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case tLiteral:
		v := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Value: v}, nil
	case tNumber:
		v := p.cur.num
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Number{Value: v}, nil
	case tName:
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tLParen {
			if err := p.advance(); err != nil {
				return nil, err
			}
			var args []Expr
			for p.cur.kind != tRParen {
				a, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur.kind == tComma {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
			if err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}
			return &FunctionCall{Name: name, Args: args}, nil
		}
		return nil, fmt.Errorf("xpath: unexpected bare name %q in expression context", name)
	}
	return nil, fmt.Errorf("xpath: unexpected token %q", p.cur.text)
}
