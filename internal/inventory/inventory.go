// Package inventory parses Ansible-compatible inventory sources (INI, YAML
// or JSON) into a resolved host/group topology. Group inheritance forms a
// DAG rooted at the implicit `all` group; per-host variables are computed by
// pushing group overlays onto a scope stack in ascending precedence, which
// makes the merge order total and the result deterministic regardless of
// internal storage order.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/ctxlog"
	"github.com/vk/playparse/internal/raw"
	"github.com/vk/playparse/internal/scope"
)

// Diagnostic summaries emitted by this package.
const (
	DiagCyclicGroups  = "Cyclic group inheritance"
	DiagMalformedLine = "Malformed inventory line"
	DiagBadPattern    = "Invalid host pattern"
	DiagCardinality   = "Pattern cardinality mismatch"
)

// Names of the two implicit groups every inventory carries.
const (
	GroupAll       = "all"
	GroupUngrouped = "ungrouped"
)

// Host is a single target with its fully merged variables.
type Host struct {
	Name string
	// Vars is the resolved variable mapping after precedence merge.
	Vars map[string]cty.Value
	// Groups lists direct group memberships; order carries no meaning.
	Groups []string

	// inline holds the host's own inline vars, highest precedence.
	inline map[string]cty.Value
}

// Group is a named collection of hosts with its own vars overlay and child
// groups.
type Group struct {
	Name     string
	Hosts    []string
	Children []string
	Vars     map[string]cty.Value
}

// Inventory is the parsed topology. The implicit `all` group is always
// present and is the root of every group's ancestry.
type Inventory struct {
	Groups map[string]*Group
	Hosts  map[string]*Host

	// groupOrder records group declaration order; sibling precedence during
	// variable resolution follows it.
	groupOrder []string
}

func newInventory() *Inventory {
	inv := &Inventory{
		Groups: make(map[string]*Group),
		Hosts:  make(map[string]*Host),
	}
	inv.group(GroupAll)
	inv.group(GroupUngrouped)
	return inv
}

// group returns the named group, creating and registering it on first use.
func (inv *Inventory) group(name string) *Group {
	if g, ok := inv.Groups[name]; ok {
		return g
	}
	g := &Group{Name: name, Vars: make(map[string]cty.Value)}
	inv.Groups[name] = g
	inv.groupOrder = append(inv.groupOrder, name)
	return g
}

// host returns the named host, creating it on first use.
func (inv *Inventory) host(name string) *Host {
	if h, ok := inv.Hosts[name]; ok {
		return h
	}
	h := &Host{Name: name, inline: make(map[string]cty.Value)}
	inv.Hosts[name] = h
	return h
}

func (inv *Inventory) addHostToGroup(hostName, groupName string) {
	g := inv.group(groupName)
	for _, existing := range g.Hosts {
		if existing == hostName {
			return
		}
	}
	g.Hosts = append(g.Hosts, hostName)

	h := inv.host(hostName)
	for _, existing := range h.Groups {
		if existing == groupName {
			return
		}
	}
	h.Groups = append(h.Groups, groupName)
}

// Parse reads an inventory from already-read source text. The format is
// sniffed: sources whose top level is a YAML/JSON mapping use the structured
// form, everything else is treated as INI. Diagnostics accumulate; a partial
// inventory is always returned.
func Parse(ctx context.Context, src []byte, filename string) (*Inventory, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	inv := newInventory()
	var diags hcl.Diagnostics

	if node, yamlDiags := raw.Parse(src, filename); node != nil && node.Kind == raw.KindMapping {
		logger.Debug("parsing structured inventory", "file", filename)
		diags = append(diags, yamlDiags...)
		diags = append(diags, inv.parseStructured(node)...)
	} else {
		logger.Debug("parsing INI inventory", "file", filename)
		diags = append(diags, inv.parseINI(src, filename)...)
	}

	diags = append(diags, inv.checkGroupCycles(filename)...)
	inv.attachImplicitGroups()
	inv.resolveHostVars()

	logger.Debug("inventory parsed",
		"file", filename, "hosts", len(inv.Hosts), "groups", len(inv.Groups))
	return inv, diags
}

// attachImplicitGroups wires every parentless group under `all` and every
// groupless host under `ungrouped`.
func (inv *Inventory) attachImplicitGroups() {
	hasParent := make(map[string]bool)
	for _, g := range inv.Groups {
		for _, c := range g.Children {
			hasParent[c] = true
		}
	}
	all := inv.Groups[GroupAll]
	for _, name := range inv.groupOrder {
		if name == GroupAll || hasParent[name] {
			continue
		}
		all.Children = append(all.Children, name)
	}
	for _, h := range inv.Hosts {
		if len(h.Groups) == 0 {
			inv.addHostToGroup(h.Name, GroupUngrouped)
		}
	}
}

// checkGroupCycles verifies the children graph is acyclic. A detected cycle
// is reported naming its members and the closing edge is dropped so the rest
// of the inventory still resolves. Runs before implicit attachment so a group
// freed from its cycle is still hung under the root afterwards.
func (inv *Inventory) checkGroupCycles(filename string) hcl.Diagnostics {
	var diags hcl.Diagnostics

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)
	var chain []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = inProgress
		chain = append(chain, name)
		g := inv.Groups[name]
		kept := g.Children[:0]
		for _, child := range g.Children {
			if _, ok := inv.Groups[child]; !ok {
				kept = append(kept, child)
				continue
			}
			if state[child] == inProgress {
				cycle := cycleFrom(chain, child)
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  DiagCyclicGroups,
					Detail: fmt.Sprintf("Group inheritance must be acyclic; found cycle %s.",
						strings.Join(append(cycle, child), " -> ")),
					Subject: &hcl.Range{Filename: filename, Start: hcl.Pos{Line: 1, Column: 1}, End: hcl.Pos{Line: 1, Column: 1}},
				})
				// Drop the closing edge so resolution can proceed.
				continue
			}
			if state[child] == unvisited {
				visit(child)
			}
			kept = append(kept, child)
		}
		g.Children = kept
		chain = chain[:len(chain)-1]
		state[name] = done
	}

	for _, name := range inv.groupOrder {
		if state[name] == unvisited {
			visit(name)
		}
	}
	return diags
}

func cycleFrom(chain []string, start string) []string {
	for i, name := range chain {
		if name == start {
			out := make([]string, len(chain)-i)
			copy(out, chain[i:])
			return out
		}
	}
	return append([]string(nil), chain...)
}

// resolveHostVars computes each host's merged variable view: `all` first,
// then ancestor groups breadth-first from the root downward (parents before
// children on every path, siblings in declaration order so the last-declared
// wins remaining ties), then the host's own inline vars last.
func (inv *Inventory) resolveHostVars() {
	for _, h := range inv.Hosts {
		ancestors := inv.ancestorsOf(h)
		st := scope.NewStack()
		for _, groupName := range inv.applyOrder(ancestors) {
			st.Push(scope.FromMap(groupName, inv.Groups[groupName].Vars))
		}
		st.Push(scope.FromMap("host:"+h.Name, h.inline))
		h.Vars = st.Flatten()
	}
}

// ancestorsOf returns the set of groups that contain the host directly or
// through the children graph.
func (inv *Inventory) ancestorsOf(h *Host) map[string]bool {
	containing := make(map[string]bool)
	for _, g := range h.Groups {
		containing[g] = true
	}
	containing[GroupAll] = true

	// Walk parent edges until the set stops growing.
	parents := make(map[string][]string)
	for _, g := range inv.Groups {
		for _, c := range g.Children {
			parents[c] = append(parents[c], g.Name)
		}
	}
	queue := make([]string, 0, len(containing))
	for g := range containing {
		queue = append(queue, g)
	}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		for _, p := range parents[g] {
			if !containing[p] {
				containing[p] = true
				queue = append(queue, p)
			}
		}
	}
	return containing
}

// applyOrder orders the ancestor groups breadth-first from `all` downward,
// visiting siblings in declaration order.
func (inv *Inventory) applyOrder(ancestors map[string]bool) []string {
	declIndex := make(map[string]int, len(inv.groupOrder))
	for i, name := range inv.groupOrder {
		declIndex[name] = i
	}

	var order []string
	seen := map[string]bool{GroupAll: true}
	level := []string{GroupAll}
	for len(level) > 0 {
		order = append(order, level...)
		var next []string
		for _, name := range level {
			children := append([]string(nil), inv.Groups[name].Children...)
			sortByIndex(children, declIndex)
			for _, c := range children {
				if seen[c] || !ancestors[c] {
					continue
				}
				seen[c] = true
				next = append(next, c)
			}
		}
		level = next
	}
	return order
}

func sortByIndex(names []string, index map[string]int) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && index[names[j-1]] > index[names[j]]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}
