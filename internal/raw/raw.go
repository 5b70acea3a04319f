// Package raw turns already-read YAML or JSON source text into a
// position-tagged node tree. The tree is the input to the playbook and
// inventory builders; nothing downstream touches yaml.v3 directly.
package raw

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"gopkg.in/yaml.v3"
)

// Kind discriminates the three node shapes.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
)

// VaultTag marks a scalar that carries an ansible-vault encrypted payload.
const VaultTag = "!vault"

// Node is one node of the parsed tree. It is immutable once produced.
type Node struct {
	Kind Kind

	// Scalar fields. Value holds the raw scalar text, Tag the resolved YAML
	// tag (e.g. "!!int", "!!str", "!vault"), Quoted whether the scalar was
	// written with quotes in the source.
	Value  string
	Tag    string
	Quoted bool

	// Mapping entries in source order.
	Pairs []Pair

	// Sequence items in source order.
	Items []*Node

	Range hcl.Range
}

// Pair is a single key/value entry of a mapping node.
type Pair struct {
	Key      string
	KeyRange hcl.Range
	Value    *Node
}

// Parse decodes src into a Node tree. filename is used only for diagnostic
// ranges. JSON input is accepted through the same decoder. A syntax error is
// fatal for the file: the returned node is nil and the diagnostics carry an
// error.
func Parse(src []byte, filename string) (*Node, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Syntax error",
			Detail:   fmt.Sprintf("Cannot parse %s: %s.", filename, err),
			Subject:  &hcl.Range{Filename: filename, Start: hcl.Pos{Line: 1, Column: 1}, End: hcl.Pos{Line: 1, Column: 1}},
		})
		return nil, diags
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		// Empty file: callers treat a nil node as "no content".
		return nil, diags
	}

	return convert(doc.Content[0], filename), diags
}

func convert(n *yaml.Node, filename string) *Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	rng := rangeOf(n, filename)

	switch n.Kind {
	case yaml.MappingNode:
		node := &Node{Kind: KindMapping, Range: rng}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			node.Pairs = append(node.Pairs, Pair{
				Key:      k.Value,
				KeyRange: rangeOf(k, filename),
				Value:    convert(v, filename),
			})
		}
		return node
	case yaml.SequenceNode:
		node := &Node{Kind: KindSequence, Range: rng}
		for _, item := range n.Content {
			node.Items = append(node.Items, convert(item, filename))
		}
		return node
	default:
		return &Node{
			Kind:   KindScalar,
			Value:  n.Value,
			Tag:    scalarTag(n),
			Quoted: n.Style == yaml.SingleQuotedStyle || n.Style == yaml.DoubleQuotedStyle,
			Range:  rng,
		}
	}
}

func scalarTag(n *yaml.Node) string {
	if n.Tag != "" {
		return n.Tag
	}
	return "!!str"
}

func rangeOf(n *yaml.Node, filename string) hcl.Range {
	pos := hcl.Pos{Line: n.Line, Column: n.Column}
	return hcl.Range{Filename: filename, Start: pos, End: pos}
}

// Get returns the value node for key within a mapping, or nil when the node
// is not a mapping or the key is absent.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	for _, p := range n.Pairs {
		if p.Key == key {
			return p.Value
		}
	}
	return nil
}

// Has reports whether a mapping node contains key.
func (n *Node) Has(key string) bool {
	return n.Get(key) != nil
}

// IsVault reports whether the node is a vault-encrypted scalar.
func (n *Node) IsVault() bool {
	return n != nil && n.Kind == KindScalar && n.Tag == VaultTag
}

// IsNull reports whether the node is an explicit YAML null.
func (n *Node) IsNull() bool {
	return n != nil && n.Kind == KindScalar && n.Tag == "!!null"
}

// String renders a compact description for diagnostics and logs.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindMapping:
		keys := make([]string, 0, len(n.Pairs))
		for _, p := range n.Pairs {
			keys = append(keys, p.Key)
		}
		return "mapping{" + strings.Join(keys, ",") + "}"
	case KindSequence:
		return fmt.Sprintf("sequence[%d]", len(n.Items))
	default:
		return fmt.Sprintf("scalar(%q)", n.Value)
	}
}
