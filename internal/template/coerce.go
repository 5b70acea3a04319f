package template

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// This file implements Ansible's documented loose-coercion rules. A value's
// type is never assumed until a consuming operation demands one; the demand
// point is where coercion happens.

// toNumber attempts numeric coercion: numbers pass through, numeric strings
// parse, booleans coerce to 1/0.
func toNumber(v cty.Value) (cty.Value, bool) {
	if v.IsNull() {
		return cty.NilVal, false
	}
	switch v.Type() {
	case cty.Number:
		return v, true
	case cty.String:
		s := strings.TrimSpace(v.AsString())
		if s == "" {
			return cty.NilVal, false
		}
		if f, ok := new(big.Float).SetString(s); ok {
			return cty.NumberVal(f), true
		}
		return cty.NilVal, false
	case cty.Bool:
		if v.True() {
			return cty.NumberIntVal(1), true
		}
		return cty.NumberIntVal(0), true
	}
	return cty.NilVal, false
}

// toString renders a value the way interpolation output does: numbers in
// their shortest form, booleans Python-style, null as the empty string.
func toString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return formatNumber(v), nil
	case cty.Bool:
		if v.True() {
			return "True", nil
		}
		return "False", nil
	}
	return "", fmt.Errorf("cannot render %s as a string", v.Type().FriendlyName())
}

func formatNumber(v cty.Value) string {
	bf := v.AsBigFloat()
	if bf.IsInt() {
		i, _ := bf.Int64()
		return fmt.Sprintf("%d", i)
	}
	return bf.Text('g', -1)
}

// looseTruth applies Ansible's boolean coercion: loosely-typed boolean
// strings (yes/no/on/off/true/false), non-zero numbers, non-empty strings
// and collections.
func looseTruth(v cty.Value) bool {
	if v.IsNull() {
		return false
	}
	switch v.Type() {
	case cty.Bool:
		return v.True()
	case cty.Number:
		return v.AsBigFloat().Sign() != 0
	case cty.String:
		switch strings.ToLower(strings.TrimSpace(v.AsString())) {
		case "", "false", "no", "off", "0", "0.0", "none", "null":
			return false
		}
		return true
	}
	if v.CanIterateElements() {
		return v.LengthInt() > 0
	}
	return true
}

// looseBool maps the loosely-typed boolean vocabulary to a bool, reporting
// whether the value belongs to the vocabulary at all.
func looseBool(v cty.Value) (bool, bool) {
	if v.IsNull() {
		return false, false
	}
	switch v.Type() {
	case cty.Bool:
		return v.True(), true
	case cty.Number:
		return v.AsBigFloat().Sign() != 0, true
	case cty.String:
		switch strings.ToLower(strings.TrimSpace(v.AsString())) {
		case "yes", "on", "true", "1":
			return true, true
		case "no", "off", "false", "0":
			return false, true
		}
	}
	return false, false
}

// looseEqual compares two values: numerically when both coerce to numbers,
// otherwise by string rendering when both are scalars, otherwise by cty
// deep equality.
func looseEqual(a, b cty.Value) bool {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an.AsBigFloat().Cmp(bn.AsBigFloat()) == 0
		}
	}
	as, aerr := toString(a)
	bs, berr := toString(b)
	if aerr == nil && berr == nil {
		return as == bs
	}
	eq := a.Equals(b)
	return eq.IsKnown() && eq.True()
}

// looseCompare orders two values, numerically when possible, otherwise
// lexicographically over strings. The second result is false when the values
// are not comparable.
func looseCompare(a, b cty.Value) (int, bool) {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an.AsBigFloat().Cmp(bn.AsBigFloat()), true
		}
	}
	if a.Type() == cty.String && b.Type() == cty.String && !a.IsNull() && !b.IsNull() {
		return strings.Compare(a.AsString(), b.AsString()), true
	}
	return 0, false
}
