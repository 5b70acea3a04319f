package model

import (
	"encoding/json"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Reasons a Value may be left unresolved.
const (
	ReasonRuntimeFact    = "runtime-fact"
	ReasonUndefined      = "undefined-variable"
	ReasonVaultEncrypted = "vault-encrypted"
	ReasonEvalError      = "evaluation-error"
	ReasonDeferred       = "deferred-include"
	ReasonUnresolvedRef  = "unresolved-reference"
)

// Value is either a literal (scalar, mapping or sequence, as a cty.Value) or
// an unresolved expression retained verbatim together with the reason
// resolution could not complete.
type Value struct {
	Literal    cty.Value
	Unresolved bool
	Expr       string
	Reason     string
}

// LiteralValue wraps a fully resolved cty value.
func LiteralValue(v cty.Value) Value {
	return Value{Literal: v}
}

// UnresolvedValue records an expression that could not be resolved at parse
// time. expr is the original text, verbatim and never partially substituted.
func UnresolvedValue(expr, reason string) Value {
	return Value{Unresolved: true, Expr: expr, Reason: reason}
}

// IsLiteral reports whether the value resolved fully.
func (v Value) IsLiteral() bool { return !v.Unresolved }

// IsTrue applies loose boolean coercion to a literal value. Unresolved values
// are never true.
func (v Value) IsTrue() bool {
	if v.Unresolved || v.Literal.IsNull() {
		return false
	}
	lit := v.Literal
	switch lit.Type() {
	case cty.Bool:
		return lit.True()
	case cty.String:
		switch lit.AsString() {
		case "", "false", "False", "no", "No", "off", "Off", "0":
			return false
		}
		return true
	case cty.Number:
		return lit.AsBigFloat().Sign() != 0
	}
	return lit.LengthInt() > 0
}

// MarshalJSON renders literals through cty's JSON encoding and unresolved
// values as an object carrying the original expression and reason.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Unresolved {
		return json.Marshal(map[string]string{
			"__unresolved__": v.Expr,
			"reason":         v.Reason,
		})
	}
	if v.Literal == cty.NilVal || v.Literal.IsNull() {
		return []byte("null"), nil
	}
	return ctyjson.Marshal(v.Literal, v.Literal.Type())
}
