package app

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/playparse/internal/inventory"
	"github.com/vk/playparse/internal/model"
)

// result is the application's JSON output envelope.
type result struct {
	Playbook    *model.ParsedPlaybook `json:"playbook,omitempty"`
	Inventory   *inventoryOut         `json:"inventory,omitempty"`
	Diagnostics []diagOut             `json:"diagnostics"`
}

type inventoryOut struct {
	Hosts  map[string]hostOut  `json:"hosts"`
	Groups map[string]groupOut `json:"groups"`
}

type hostOut struct {
	Groups []string                   `json:"groups,omitempty"`
	Vars   map[string]json.RawMessage `json:"vars,omitempty"`
}

type groupOut struct {
	Hosts    []string                   `json:"hosts,omitempty"`
	Children []string                   `json:"children,omitempty"`
	Vars     map[string]json.RawMessage `json:"vars,omitempty"`
}

type diagOut struct {
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail,omitempty"`
	Subject  string `json:"subject,omitempty"`
}

func (a *App) writeResult(res *result) error {
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func renderInventory(inv *inventory.Inventory) *inventoryOut {
	out := &inventoryOut{
		Hosts:  make(map[string]hostOut, len(inv.Hosts)),
		Groups: make(map[string]groupOut, len(inv.Groups)),
	}
	for name, h := range inv.Hosts {
		groups := append([]string(nil), h.Groups...)
		sort.Strings(groups)
		out.Hosts[name] = hostOut{Groups: groups, Vars: renderVars(h.Vars)}
	}
	for name, g := range inv.Groups {
		out.Groups[name] = groupOut{
			Hosts:    g.Hosts,
			Children: g.Children,
			Vars:     renderVars(g.Vars),
		}
	}
	return out
}

func renderVars(vars map[string]cty.Value) map[string]json.RawMessage {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(vars))
	for k, v := range vars {
		b, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			b = []byte(fmt.Sprintf("%q", v.GoString()))
		}
		out[k] = b
	}
	return out
}

func renderDiags(diags hcl.Diagnostics) []diagOut {
	out := make([]diagOut, 0, len(diags))
	for _, d := range diags {
		o := diagOut{Summary: d.Summary, Detail: d.Detail}
		switch d.Severity {
		case hcl.DiagError:
			o.Severity = "error"
		case hcl.DiagWarning:
			o.Severity = "warning"
		default:
			o.Severity = "invalid"
		}
		if d.Subject != nil && d.Subject.Filename != "" {
			o.Subject = fmt.Sprintf("%s:%d,%d", d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column)
		}
		out = append(out, o)
	}
	return out
}
