package template

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/scope"
)

// undefinedError marks a reference to a name with no binding anywhere. It is
// recoverable through the `default` filter and the `defined` test.
type undefinedError struct{ name string }

func (e undefinedError) Error() string { return fmt.Sprintf("undefined variable %q", e.name) }

// deferredError marks an expression that legitimately cannot resolve at
// parse time. It always propagates to the whole expression.
type deferredError struct{ reason string }

func (e deferredError) Error() string { return "deferred: " + e.reason }

// evalFailure is a genuine evaluation error: type mismatch, unknown filter,
// missing attribute.
type evalFailure struct{ msg string }

func (e evalFailure) Error() string { return e.msg }

// runtimeOnlyNames are reserved names that only exist during execution.
// References to them, or to any unseeded ansible_* fact, defer resolution.
var runtimeOnlyNames = map[string]struct{}{
	"hostvars":           {},
	"groups":             {},
	"group_names":        {},
	"inventory_hostname": {},
	"play_hosts":         {},
	"ansible_facts":      {},
	"omit":               {},
	"item":               {},
}

func isRuntimeOnly(name string) bool {
	if strings.HasPrefix(name, "ansible_") {
		return true
	}
	_, ok := runtimeOnlyNames[name]
	return ok
}

type evaluator struct {
	stack *scope.Stack
}

func (ev *evaluator) eval(e expr) (cty.Value, error) {
	switch n := e.(type) {
	case litExpr:
		return n.val, nil

	case nameExpr:
		v, ok := ev.stack.Lookup(n.name)
		if ok {
			if !v.IsKnown() {
				return cty.NilVal, deferredError{reason: model.ReasonUnresolvedRef}
			}
			return v, nil
		}
		if isRuntimeOnly(n.name) {
			return cty.NilVal, deferredError{reason: model.ReasonRuntimeFact}
		}
		return cty.NilVal, undefinedError{name: n.name}

	case attrExpr:
		target, err := ev.eval(n.target)
		if err != nil {
			return cty.NilVal, err
		}
		return elementOf(target, cty.StringVal(n.name))

	case indexExpr:
		target, err := ev.eval(n.target)
		if err != nil {
			return cty.NilVal, err
		}
		idx, err := ev.eval(n.index)
		if err != nil {
			return cty.NilVal, err
		}
		return elementOf(target, idx)

	case listExpr:
		if len(n.items) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, 0, len(n.items))
		for _, item := range n.items {
			v, err := ev.eval(item)
			if err != nil {
				return cty.NilVal, err
			}
			vals = append(vals, v)
		}
		return cty.TupleVal(vals), nil

	case unaryExpr:
		operand, err := ev.eval(n.operand)
		if err != nil {
			return cty.NilVal, err
		}
		switch n.op {
		case "not":
			return cty.BoolVal(!looseTruth(operand)), nil
		case "-":
			num, ok := toNumber(operand)
			if !ok {
				return cty.NilVal, evalFailure{msg: "cannot negate a non-numeric value"}
			}
			return cty.NumberVal(num.AsBigFloat().Neg(num.AsBigFloat())), nil
		}
		return cty.NilVal, evalFailure{msg: "unknown unary operator " + n.op}

	case binExpr:
		return ev.evalBinary(n)

	case filterExpr:
		return ev.evalFilter(n)

	case testExpr:
		return ev.evalTest(n)
	}
	return cty.NilVal, evalFailure{msg: fmt.Sprintf("unhandled expression node %T", e)}
}

func (ev *evaluator) evalBinary(n binExpr) (cty.Value, error) {
	// Boolean operators short-circuit the way the reference engine does.
	if n.op == "and" || n.op == "or" {
		lhs, err := ev.eval(n.lhs)
		if err != nil {
			return cty.NilVal, err
		}
		lt := looseTruth(lhs)
		if n.op == "and" && !lt {
			return cty.False, nil
		}
		if n.op == "or" && lt {
			return cty.True, nil
		}
		rhs, err := ev.eval(n.rhs)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.BoolVal(looseTruth(rhs)), nil
	}

	lhs, err := ev.eval(n.lhs)
	if err != nil {
		return cty.NilVal, err
	}
	rhs, err := ev.eval(n.rhs)
	if err != nil {
		return cty.NilVal, err
	}

	switch n.op {
	case "==":
		return cty.BoolVal(looseEqual(lhs, rhs)), nil
	case "!=":
		return cty.BoolVal(!looseEqual(lhs, rhs)), nil
	case "<", "<=", ">", ">=":
		cmp, ok := looseCompare(lhs, rhs)
		if !ok {
			return cty.NilVal, evalFailure{msg: "values are not comparable"}
		}
		switch n.op {
		case "<":
			return cty.BoolVal(cmp < 0), nil
		case "<=":
			return cty.BoolVal(cmp <= 0), nil
		case ">":
			return cty.BoolVal(cmp > 0), nil
		default:
			return cty.BoolVal(cmp >= 0), nil
		}
	case "in":
		return membership(lhs, rhs)
	case "~":
		ls, err := toString(lhs)
		if err != nil {
			return cty.NilVal, evalFailure{msg: err.Error()}
		}
		rs, err := toString(rhs)
		if err != nil {
			return cty.NilVal, evalFailure{msg: err.Error()}
		}
		return cty.StringVal(ls + rs), nil
	case "+":
		if lhs.Type() == cty.String && rhs.Type() == cty.String && !lhs.IsNull() && !rhs.IsNull() {
			return cty.StringVal(lhs.AsString() + rhs.AsString()), nil
		}
		if lhs.Type().IsTupleType() && rhs.Type().IsTupleType() {
			items := append(valuesOf(lhs), valuesOf(rhs)...)
			if len(items) == 0 {
				return cty.EmptyTupleVal, nil
			}
			return cty.TupleVal(items), nil
		}
		fallthrough
	case "-", "*", "/", "%", "//":
		return arith(n.op, lhs, rhs)
	}
	return cty.NilVal, evalFailure{msg: "unknown operator " + n.op}
}

func (ev *evaluator) evalFilter(n filterExpr) (cty.Value, error) {
	if n.name == "default" {
		return ev.evalDefault(n)
	}

	target, err := ev.eval(n.target)
	if err != nil {
		return cty.NilVal, err
	}
	args := make([]cty.Value, 0, len(n.args))
	for _, a := range n.args {
		av, err := ev.eval(a)
		if err != nil {
			return cty.NilVal, err
		}
		args = append(args, av)
	}

	fn, ok := filters[n.name]
	if !ok {
		msg := fmt.Sprintf("unknown filter %q", n.name)
		if s := nameSuggestion(n.name, filterNames()); s != "" {
			msg += fmt.Sprintf("; did you mean %q?", s)
		}
		return cty.NilVal, evalFailure{msg: msg}
	}
	return fn(target, args)
}

// evalDefault implements the `default` filter's recovery semantics: an
// undefined target anywhere in the chain falls back to the first argument. A
// truthy second argument extends the fallback to falsy values.
func (ev *evaluator) evalDefault(n filterExpr) (cty.Value, error) {
	if len(n.args) < 1 {
		return cty.NilVal, evalFailure{msg: "default requires at least one argument"}
	}
	target, err := ev.eval(n.target)
	if err != nil {
		if _, isUndef := err.(undefinedError); !isUndef {
			if _, isFail := err.(evalFailure); !isFail {
				return cty.NilVal, err
			}
		}
		return ev.eval(n.args[0])
	}
	if len(n.args) > 1 {
		treatFalsy, err2 := ev.eval(n.args[1])
		if err2 == nil && looseTruth(treatFalsy) && !looseTruth(target) {
			return ev.eval(n.args[0])
		}
	}
	return target, nil
}

func (ev *evaluator) evalTest(n testExpr) (cty.Value, error) {
	v, err := ev.eval(n.target)
	var res bool
	switch n.name {
	case "defined", "undefined":
		defined := true
		if err != nil {
			switch err.(type) {
			case undefinedError, evalFailure:
				defined = false
			default:
				return cty.NilVal, err
			}
		}
		res = defined == (n.name == "defined")
	case "none":
		if err != nil {
			return cty.NilVal, err
		}
		res = v.IsNull()
	case "string":
		if err != nil {
			return cty.NilVal, err
		}
		res = !v.IsNull() && v.Type() == cty.String
	case "number":
		if err != nil {
			return cty.NilVal, err
		}
		res = !v.IsNull() && v.Type() == cty.Number
	default:
		return cty.NilVal, evalFailure{msg: fmt.Sprintf("unknown test %q", n.name)}
	}
	if n.negated {
		res = !res
	}
	return cty.BoolVal(res), nil
}

// elementOf resolves attribute and index access uniformly: string keys reach
// object attributes and map entries, numeric keys reach sequence elements.
func elementOf(target, key cty.Value) (cty.Value, error) {
	if target.IsNull() {
		return cty.NilVal, evalFailure{msg: "cannot access an element of null"}
	}
	ty := target.Type()

	if key.Type() == cty.String {
		name := key.AsString()
		switch {
		case ty.IsObjectType():
			if !ty.HasAttribute(name) {
				return cty.NilVal, evalFailure{msg: fmt.Sprintf("no attribute %q", name)}
			}
			return knownOrDefer(target.GetAttr(name))
		case ty.IsMapType():
			if hi := target.HasIndex(key); hi.IsKnown() && hi.True() {
				return knownOrDefer(target.Index(key))
			}
			return cty.NilVal, evalFailure{msg: fmt.Sprintf("no key %q", name)}
		}
		// Dotted numeric access like a.0 arrives as a string key.
		if num, ok := toNumber(key); ok {
			return elementOf(target, num)
		}
		return cty.NilVal, evalFailure{msg: fmt.Sprintf("cannot access %q on %s", name, ty.FriendlyName())}
	}

	if key.Type() == cty.Number && (ty.IsTupleType() || ty.IsListType()) {
		if hi := target.HasIndex(key); hi.IsKnown() && hi.True() {
			return knownOrDefer(target.Index(key))
		}
		return cty.NilVal, evalFailure{msg: "index out of range"}
	}
	return cty.NilVal, evalFailure{msg: fmt.Sprintf("cannot index %s", ty.FriendlyName())}
}

func knownOrDefer(v cty.Value) (cty.Value, error) {
	if !v.IsKnown() {
		return cty.NilVal, deferredError{reason: model.ReasonUnresolvedRef}
	}
	return v, nil
}

func membership(needle, haystack cty.Value) (cty.Value, error) {
	if haystack.IsNull() {
		return cty.NilVal, evalFailure{msg: "'in' against null"}
	}
	ty := haystack.Type()
	switch {
	case ty == cty.String:
		ns, err := toString(needle)
		if err != nil {
			return cty.NilVal, evalFailure{msg: err.Error()}
		}
		return cty.BoolVal(strings.Contains(haystack.AsString(), ns)), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		for _, item := range valuesOf(haystack) {
			if looseEqual(needle, item) {
				return cty.True, nil
			}
		}
		return cty.False, nil
	case ty.IsObjectType() || ty.IsMapType():
		ns, err := toString(needle)
		if err != nil {
			return cty.NilVal, evalFailure{msg: err.Error()}
		}
		if ty.IsObjectType() {
			return cty.BoolVal(ty.HasAttribute(ns)), nil
		}
		hi := haystack.HasIndex(cty.StringVal(ns))
		return cty.BoolVal(hi.IsKnown() && hi.True()), nil
	}
	return cty.NilVal, evalFailure{msg: "'in' requires a string or collection on the right"}
}

func arith(op string, lhs, rhs cty.Value) (cty.Value, error) {
	ln, ok := toNumber(lhs)
	if !ok {
		return cty.NilVal, evalFailure{msg: "left operand is not numeric"}
	}
	rn, ok := toNumber(rhs)
	if !ok {
		return cty.NilVal, evalFailure{msg: "right operand is not numeric"}
	}
	switch op {
	case "+":
		return ln.Add(rn), nil
	case "-":
		return ln.Subtract(rn), nil
	case "*":
		return ln.Multiply(rn), nil
	case "/":
		if rn.AsBigFloat().Sign() == 0 {
			return cty.NilVal, evalFailure{msg: "division by zero"}
		}
		return ln.Divide(rn), nil
	case "//":
		if rn.AsBigFloat().Sign() == 0 {
			return cty.NilVal, evalFailure{msg: "division by zero"}
		}
		q := ln.Divide(rn)
		i, _ := q.AsBigFloat().Int64()
		return cty.NumberIntVal(i), nil
	case "%":
		if rn.AsBigFloat().Sign() == 0 {
			return cty.NilVal, evalFailure{msg: "modulo by zero"}
		}
		return ln.Modulo(rn), nil
	}
	return cty.NilVal, evalFailure{msg: "unknown arithmetic operator " + op}
}

func valuesOf(v cty.Value) []cty.Value {
	if !v.CanIterateElements() {
		return nil
	}
	out := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		out = append(out, ev)
	}
	return out
}
