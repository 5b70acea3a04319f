package inventory

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/pattern"
	"github.com/vk/playparse/internal/raw"
)

// parseStructured reads the YAML/JSON inventory form: a mapping of group
// name to {hosts, children, vars}. JSON arrives through the same node tree.
func (inv *Inventory) parseStructured(root *raw.Node) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, p := range root.Pairs {
		diags = append(diags, inv.parseStructuredGroup(p.Key, p.Value, p.KeyRange)...)
	}
	return diags
}

func (inv *Inventory) parseStructuredGroup(name string, node *raw.Node, rng hcl.Range) hcl.Diagnostics {
	var diags hcl.Diagnostics
	g := inv.group(name)

	if node == nil || node.IsNull() {
		return diags
	}
	if node.Kind != raw.KindMapping {
		return append(diags, warnLine(rng, fmt.Sprintf("group %q must be a mapping", name)))
	}

	for _, p := range node.Pairs {
		switch p.Key {
		case "hosts":
			diags = append(diags, inv.parseStructuredHosts(name, p.Value, p.KeyRange)...)
		case "children":
			if p.Value == nil || p.Value.Kind != raw.KindMapping {
				if !p.Value.IsNull() {
					diags = append(diags, warnLine(p.KeyRange, "children must be a mapping of group names"))
				}
				continue
			}
			for _, child := range p.Value.Pairs {
				g.Children = append(g.Children, child.Key)
				diags = append(diags, inv.parseStructuredGroup(child.Key, child.Value, child.KeyRange)...)
			}
		case "vars":
			if p.Value == nil || p.Value.Kind != raw.KindMapping {
				if !p.Value.IsNull() {
					diags = append(diags, warnLine(p.KeyRange, "vars must be a mapping"))
				}
				continue
			}
			for _, v := range p.Value.Pairs {
				g.Vars[v.Key] = v.Value.CtyValue()
			}
		default:
			diags = append(diags, warnLine(p.KeyRange, fmt.Sprintf("unknown group key %q", p.Key)))
		}
	}
	return diags
}

func (inv *Inventory) parseStructuredHosts(groupName string, node *raw.Node, rng hcl.Range) hcl.Diagnostics {
	var diags hcl.Diagnostics
	if node == nil || node.IsNull() {
		return diags
	}
	if node.Kind != raw.KindMapping {
		return append(diags, warnLine(rng, "hosts must be a mapping of host name to vars"))
	}

	for _, p := range node.Pairs {
		names, err := pattern.Expand(p.Key)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagBadPattern,
				Detail:   err.Error() + ".",
				Subject:  p.KeyRange.Ptr(),
			})
			continue
		}
		for _, name := range names {
			inv.addHostToGroup(name, groupName)
			if p.Value == nil || p.Value.Kind != raw.KindMapping {
				continue
			}
			h := inv.host(name)
			for _, v := range p.Value.Pairs {
				h.inline[v.Key] = v.Value.CtyValue()
			}
		}
	}
	return diags
}
