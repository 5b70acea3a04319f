package template

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// parser is a recursive-descent parser over the token stream. Precedence,
// loosest to tightest: or, and, not, comparison/membership/test, `~` concat,
// additive, multiplicative, unary minus, pipe filters, postfix access.
type parser struct {
	toks []token
	pos  int
}

func parseExpr(src string) (expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(op string) bool {
	if t := p.peek(); t.kind == tokOp && t.text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if t := p.peek(); t.kind == tokKeyword && t.text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectOp(op string) error {
	if !p.acceptOp(op) {
		return fmt.Errorf("expected %q, found %q at offset %d", op, p.peek().text, p.peek().pos)
	}
	return nil
}

func (p *parser) parseOr() (expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("or") {
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = binExpr{op: "or", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (expr, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("and") {
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lhs = binExpr{op: "and", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.acceptKeyword("not") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "not", operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]struct{}{
	"==": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
}

func (p *parser) parseComparison() (expr, error) {
	lhs, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tokOp && hasKey(comparisonOps, t.text):
			p.next()
			rhs, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			lhs = binExpr{op: t.text, lhs: lhs, rhs: rhs}
		case t.kind == tokKeyword && t.text == "in":
			p.next()
			rhs, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			lhs = binExpr{op: "in", lhs: lhs, rhs: rhs}
		case t.kind == tokKeyword && t.text == "not":
			// `not in`: the only postfix use of "not".
			if p.toks[p.pos+1].kind == tokKeyword && p.toks[p.pos+1].text == "in" {
				p.next()
				p.next()
				rhs, err := p.parseConcat()
				if err != nil {
					return nil, err
				}
				lhs = unaryExpr{op: "not", operand: binExpr{op: "in", lhs: lhs, rhs: rhs}}
				continue
			}
			return lhs, nil
		case t.kind == tokKeyword && t.text == "is":
			p.next()
			negated := p.acceptKeyword("not")
			nameTok := p.next()
			if nameTok.kind != tokIdent {
				return nil, fmt.Errorf("expected test name after 'is' at offset %d", nameTok.pos)
			}
			lhs = testExpr{target: lhs, name: nameTok.text, negated: negated}
		default:
			return lhs, nil
		}
	}
}

func (p *parser) parseConcat() (expr, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("~") {
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		lhs = binExpr{op: "~", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAdditive() (expr, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = binExpr{op: t.text, lhs: lhs, rhs: rhs}
	}
}

func (p *parser) parseMultiplicative() (expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "%" && t.text != "//") {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = binExpr{op: t.text, lhs: lhs, rhs: rhs}
	}
}

func (p *parser) parseUnary() (expr, error) {
	if p.acceptOp("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "-", operand: operand}, nil
	}
	return p.parsePipe()
}

func (p *parser) parsePipe() (expr, error) {
	target, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("|") {
		nameTok := p.next()
		if nameTok.kind != tokIdent {
			return nil, fmt.Errorf("expected filter name after '|' at offset %d", nameTok.pos)
		}
		f := filterExpr{target: target, name: nameTok.text}
		if p.acceptOp("(") {
			if !p.acceptOp(")") {
				for {
					arg, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					f.args = append(f.args, arg)
					if p.acceptOp(",") {
						continue
					}
					if err := p.expectOp(")"); err != nil {
						return nil, err
					}
					break
				}
			}
		}
		target = f
	}
	return target, nil
}

func (p *parser) parsePostfix() (expr, error) {
	target, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("."):
			nameTok := p.next()
			if nameTok.kind != tokIdent && nameTok.kind != tokNumber {
				return nil, fmt.Errorf("expected attribute name after '.' at offset %d", nameTok.pos)
			}
			target = attrExpr{target: target, name: nameTok.text}
		case p.acceptOp("["):
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			target = indexExpr{target: target, index: idx}
		default:
			return target, nil
		}
	}
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, ok := new(big.Float).SetString(t.text)
		if !ok {
			return nil, fmt.Errorf("bad number %q at offset %d", t.text, t.pos)
		}
		return litExpr{val: cty.NumberVal(f)}, nil
	case tokString:
		return litExpr{val: cty.StringVal(t.text)}, nil
	case tokIdent:
		return nameExpr{name: t.text}, nil
	case tokKeyword:
		switch t.text {
		case "true", "True":
			return litExpr{val: cty.True}, nil
		case "false", "False":
			return litExpr{val: cty.False}, nil
		case "none", "None", "null":
			return litExpr{val: cty.NullVal(cty.DynamicPseudoType)}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", t.text, t.pos)
	case tokOp:
		switch t.text {
		case "(":
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			var items []expr
			if !p.acceptOp("]") {
				for {
					item, err := p.parseOr()
					if err != nil {
						return nil, err
					}
					items = append(items, item)
					if p.acceptOp(",") {
						continue
					}
					if err := p.expectOp("]"); err != nil {
						return nil, err
					}
					break
				}
			}
			return listExpr{items: items}, nil
		}
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
