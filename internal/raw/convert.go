package raw

import (
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// CtyValue converts a node subtree into a cty value, applying YAML's resolved
// scalar typing. Template interpolation is not this package's concern: a
// scalar containing "{{ ... }}" converts to a plain string here and is
// resolved later by the template engine.
func (n *Node) CtyValue() cty.Value {
	if n == nil {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	switch n.Kind {
	case KindMapping:
		if len(n.Pairs) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(n.Pairs))
		for _, p := range n.Pairs {
			attrs[p.Key] = p.Value.CtyValue()
		}
		return cty.ObjectVal(attrs)
	case KindSequence:
		if len(n.Items) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, 0, len(n.Items))
		for _, item := range n.Items {
			vals = append(vals, item.CtyValue())
		}
		return cty.TupleVal(vals)
	default:
		return n.ctyScalar()
	}
}

func (n *Node) ctyScalar() cty.Value {
	switch n.Tag {
	case "!!null":
		return cty.NullVal(cty.DynamicPseudoType)
	case "!!bool":
		return cty.BoolVal(n.Value == "true" || n.Value == "True" || n.Value == "TRUE")
	case "!!int":
		if f, ok := new(big.Float).SetString(n.Value); ok {
			return cty.NumberVal(f)
		}
		return cty.StringVal(n.Value)
	case "!!float":
		if f, ok := new(big.Float).SetString(n.Value); ok {
			return cty.NumberVal(f)
		}
		return cty.StringVal(n.Value)
	default:
		// !vault scalars are deliberately left as their raw payload here;
		// the playbook pipeline decides whether to decrypt or defer them.
		return cty.StringVal(n.Value)
	}
}
