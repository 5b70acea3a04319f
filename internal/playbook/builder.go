package playbook

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/raw"
)

// Diagnostic summaries emitted by the builder.
const (
	DiagBadPlaybook   = "Invalid playbook structure"
	DiagUnknownModule = "Unknown module"
)

// prePlay is a play after the first, untemplated builder pass: scalar
// attributes extracted, task and handler nodes still raw so the include
// resolver can discover directives in them.
type prePlay struct {
	// file is the canonical id of the source the play came from; spliced
	// playbooks resolve their includes relative to their own file.
	file      string
	name      string
	hosts     string
	varsNode  *raw.Node
	varsFiles []string
	roles     []string
	tasks     []*raw.Node
	handlers  []*raw.Node
	src       hcl.Range
}

// condSrc is one `when` expression with its source position, kept until the
// template pass evaluates it.
type condSrc struct {
	expr string
	rng  hcl.Range
}

// pendingTask is a task between expansion and template resolution: the
// typed skeleton plus everything the resolver needs to finish it inside the
// right scope.
type pendingTask struct {
	task *model.Task
	args map[string]*raw.Node
	loop *raw.Node
	// conds collects the task's own `when` plus every condition inherited
	// from enclosing include directives, ANDed at resolution time.
	conds []condSrc
	// overlayNode is the task's own `vars` mapping, if any.
	overlayNode *raw.Node
	// overlay snapshots the include-provided bindings active where the task
	// was emitted; two expansions of the same file never share it.
	overlay map[string]cty.Value
}

// buildPlay extracts one play's scalar attributes from its raw mapping.
func buildPlay(node *raw.Node) (*prePlay, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	if node == nil || node.Kind != raw.KindMapping {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   "Each play must be a mapping.",
			Subject:  nodeRange(node),
		})
	}

	p := &prePlay{src: node.Range}
	for _, pair := range node.Pairs {
		switch pair.Key {
		case "name":
			p.name = pair.Value.Value
		case "hosts":
			p.hosts = pair.Value.Value
		case "vars":
			p.varsNode = pair.Value
		case "vars_files":
			for _, s := range stringList(pair.Value) {
				p.varsFiles = append(p.varsFiles, s)
			}
		case "roles":
			diags = append(diags, buildRoleRefs(pair.Value, p)...)
		case "tasks":
			p.tasks = sequenceItems(pair.Value)
		case "handlers":
			p.handlers = sequenceItems(pair.Value)
		}
	}

	if p.hosts == "" {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("Play %q has no hosts pattern.", p.name),
			Subject:  node.Range.Ptr(),
		})
	}
	return p, diags
}

func buildRoleRefs(node *raw.Node, p *prePlay) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, item := range sequenceItems(node) {
		switch item.Kind {
		case raw.KindScalar:
			p.roles = append(p.roles, item.Value)
		case raw.KindMapping:
			if ref := item.Get("role"); ref != nil && ref.Kind == raw.KindScalar {
				p.roles = append(p.roles, ref.Value)
				continue
			}
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagBadPlaybook,
				Detail:   "A role entry must be a name or a mapping with a 'role' key.",
				Subject:  item.Range.Ptr(),
			})
		}
	}
	return diags
}

// buildTask converts one raw task mapping into a pending task: reserved keys
// extracted, the module call normalized into a uniform args mapping. The id
// and index are assigned by the expander once the task's final position is
// known.
func buildTask(node *raw.Node) (*pendingTask, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	if node == nil || node.Kind != raw.KindMapping {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   "Each task must be a mapping.",
			Subject:  nodeRange(node),
		})
	}

	pt := &pendingTask{
		task: &model.Task{Source: node.Range},
		args: make(map[string]*raw.Node),
	}
	t := pt.task

	var moduleKey string
	for _, pair := range node.Pairs {
		switch pair.Key {
		case "name":
			t.Name = pair.Value.Value
		case "when":
			for _, c := range conditionList(pair.Value) {
				pt.conds = append(pt.conds, c)
			}
		case "tags":
			t.Tags = append(t.Tags, stringList(pair.Value)...)
		case "notify":
			t.Notify = append(t.Notify, stringList(pair.Value)...)
		case "register":
			t.Register = pair.Value.Value
		case "dependencies":
			t.DependsOn = append(t.DependsOn, stringList(pair.Value)...)
		case "loop", "with_items":
			pt.loop = pair.Value
		case "vars":
			// Task-level vars join the task's resolution overlay.
			if pair.Value != nil && pair.Value.Kind == raw.KindMapping {
				if pt.overlayNode == nil {
					pt.overlayNode = pair.Value
				}
			}
		default:
			if isReservedTaskKey(pair.Key) {
				continue
			}
			if moduleKey != "" {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  DiagBadPlaybook,
					Detail:   fmt.Sprintf("Task %q invokes both %q and %q; one module per task.", t.Name, moduleKey, pair.Key),
					Subject:  pair.KeyRange.Ptr(),
				})
				continue
			}
			moduleKey = pair.Key
			t.Module = pair.Key
			argDiags := normalizeArgs(pair.Value, pt)
			diags = append(diags, argDiags...)
		}
	}

	if moduleKey == "" {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("Task %q invokes no module.", t.Name),
			Subject:  node.Range.Ptr(),
		})
		return nil, diags
	}

	diags = append(diags, checkModuleName(t.Module, node.Range)...)
	return pt, diags
}

func nodeRange(node *raw.Node) *hcl.Range {
	if node == nil {
		return &hcl.Range{}
	}
	return node.Range.Ptr()
}

func sequenceItems(node *raw.Node) []*raw.Node {
	if node == nil || node.Kind != raw.KindSequence {
		return nil
	}
	return node.Items
}

// stringList accepts either a scalar or a sequence of scalars.
func stringList(node *raw.Node) []string {
	if node == nil {
		return nil
	}
	if node.Kind == raw.KindScalar {
		if node.IsNull() {
			return nil
		}
		return []string{node.Value}
	}
	var out []string
	for _, item := range sequenceItems(node) {
		if item.Kind == raw.KindScalar && !item.IsNull() {
			out = append(out, item.Value)
		}
	}
	return out
}

// conditionList accepts a scalar expression or a sequence of them; a list
// `when` is the conventional spelling of an AND chain.
func conditionList(node *raw.Node) []condSrc {
	if node == nil {
		return nil
	}
	if node.Kind == raw.KindScalar {
		if node.IsNull() {
			return nil
		}
		return []condSrc{{expr: node.Value, rng: node.Range}}
	}
	var out []condSrc
	for _, item := range sequenceItems(node) {
		if item.Kind == raw.KindScalar && !item.IsNull() {
			out = append(out, condSrc{expr: item.Value, rng: item.Range})
		}
	}
	return out
}
