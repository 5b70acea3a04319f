package template

import "github.com/zclconf/go-cty/cty"

// expr is the interface implemented by every parsed expression node.
type expr interface{ exprNode() }

// litExpr is a literal scalar: number, string, boolean or none.
type litExpr struct{ val cty.Value }

// nameExpr is a free variable reference.
type nameExpr struct{ name string }

// attrExpr is dotted attribute access, target.name.
type attrExpr struct {
	target expr
	name   string
}

// indexExpr is bracket access, target[index].
type indexExpr struct {
	target expr
	index  expr
}

// listExpr is a literal sequence, [a, b, c].
type listExpr struct{ items []expr }

// unaryExpr is `-x` or `not x`.
type unaryExpr struct {
	op      string
	operand expr
}

// binExpr is a binary operation; op is one of the arithmetic, comparison,
// boolean, membership or concatenation operators.
type binExpr struct {
	op       string
	lhs, rhs expr
}

// filterExpr is a pipe application, target | name(args...).
type filterExpr struct {
	target expr
	name   string
	args   []expr
}

// testExpr is `target is [not] name`, e.g. `x is defined`.
type testExpr struct {
	target  expr
	name    string
	negated bool
}

func (litExpr) exprNode()    {}
func (nameExpr) exprNode()   {}
func (attrExpr) exprNode()   {}
func (indexExpr) exprNode()  {}
func (listExpr) exprNode()   {}
func (unaryExpr) exprNode()  {}
func (binExpr) exprNode()    {}
func (filterExpr) exprNode() {}
func (testExpr) exprNode()   {}
