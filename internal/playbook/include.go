package playbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/ctxlog"
	"github.com/vk/playparse/internal/loader"
	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/raw"
	"github.com/vk/playparse/internal/scope"
	"github.com/vk/playparse/internal/taskid"
	"github.com/vk/playparse/internal/template"
)

// Diagnostic summaries emitted during include resolution.
const (
	DiagCyclicInclude    = "Cyclic include"
	DiagIncludeDepth     = "Include depth exceeded"
	DiagSourceNotFound   = "Source not found"
	DiagSourceUnreadable = "Source unreadable"
)

// DefaultMaxIncludeDepth bounds include nesting when Options leaves the
// limit unset.
const DefaultMaxIncludeDepth = 100

// expander walks raw task sequences and resolves include/import directives
// against the live scope stack. One expander serves one playbook parse; the
// task index counter it carries is what keeps ids unique across plays and
// repeated inlining of the same file.
type expander struct {
	ctx   context.Context
	ld    loader.Loader
	stack *scope.Stack
	eng   *template.Engine

	// base is the stack depth below which overlays belong to the play and
	// global environment; FlattenAbove(base) snapshots only what the
	// expansion itself pushed.
	base     int
	maxDepth int
	rootFile string
	next     int
}

// frame is the per-expansion context threaded through recursive calls.
type frame struct {
	// file is the canonical id of the source the tasks came from.
	file       string
	qualifiers []string
	conds      []condSrc
	tags       []string
	dynamic    bool
	depth      int
	// path is the chain of canonical source ids entered through static
	// imports; re-entering one is a cycle regardless of which directive
	// kind closes it.
	path []string
}

func (fr frame) onPath(id string) bool {
	for _, p := range fr.path {
		if p == id {
			return true
		}
	}
	return false
}

// enter derives the child frame for one expansion step. The path slice is
// copied so sibling directives never alias each other's chains.
func (fr frame) enter(id, qualifier string, static bool) frame {
	child := frame{
		file:       id,
		qualifiers: append(append([]string(nil), fr.qualifiers...), qualifier),
		conds:      fr.conds,
		tags:       fr.tags,
		dynamic:    fr.dynamic || !static,
		depth:      fr.depth + 1,
		path:       append(append([]string(nil), fr.path...), id),
	}
	return child
}

// expandTasks resolves one raw task sequence into pending tasks, recursing
// through every directive it finds. The returned error is non-nil only for
// caller cancellation, which aborts the whole parse.
func (ex *expander) expandTasks(items []*raw.Node, fr frame) ([]*pendingTask, hcl.Diagnostics, error) {
	var out []*pendingTask
	var diags hcl.Diagnostics

	for _, item := range items {
		if d := parseDirective(item); d != nil {
			inlined, dirDiags, err := ex.expandDirective(d, fr)
			diags = append(diags, dirDiags...)
			if err != nil {
				return nil, diags, err
			}
			out = append(out, inlined...)
			continue
		}

		pt, taskDiags := buildTask(item)
		diags = append(diags, taskDiags...)
		if pt == nil {
			continue
		}
		ex.emit(pt, fr)
		out = append(out, pt)
	}
	return out, diags, nil
}

// emit finalizes a pending task's frame-derived attributes: id, inherited
// conditions and tags, dynamic provenance, and the scope snapshot the
// resolver will replay.
func (ex *expander) emit(pt *pendingTask, fr frame) {
	pt.task.ID = taskid.New(ex.next, fr.qualifiers...).String()
	ex.next++
	pt.conds = append(append([]condSrc(nil), fr.conds...), pt.conds...)
	pt.task.Tags = mergeTags(fr.tags, pt.task.Tags)
	pt.task.DynamicSource = fr.dynamic
	pt.overlay = ex.stack.FlattenAbove(ex.base)
}

func (ex *expander) expandDirective(d *model.Directive, fr frame) ([]*pendingTask, hcl.Diagnostics, error) {
	var diags hcl.Diagnostics

	if fr.depth >= ex.maxDepth {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagIncludeDepth,
			Detail: fmt.Sprintf("Resolving %s %q exceeds the include depth limit of %d.",
				d.Kind, d.RawTarget, ex.maxDepth),
			Subject: d.TargetRange.Ptr(),
		}), nil
	}

	switch d.Kind {
	case model.ImportPlaybook, model.IncludePlaybook:
		// Playbook splicing is a play-level construct.
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("%s is only valid at the play level, not inside a task list.", d.Kind),
			Subject:  d.Source.Ptr(),
		}), nil
	}

	target, tDiags := ex.resolveTarget(d)
	diags = append(diags, tDiags...)
	if target.Unresolved {
		if d.Kind.IsStatic() {
			return nil, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagBadPlaybook,
				Detail: fmt.Sprintf("The %s target %q cannot be resolved at parse time; static imports require a literal target.",
					d.Kind, d.RawTarget),
				Subject: d.TargetRange.Ptr(),
			}), nil
		}
		deferred := ex.deferDirective(d, target, fr)
		return []*pendingTask{deferred}, diags, nil
	}

	name, err := targetString(target)
	if err != nil {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("The %s target must be a string, got %s.", d.Kind, err),
			Subject:  d.TargetRange.Ptr(),
		}), nil
	}

	if d.Kind.IsRole() {
		return ex.expandRole(d, name, fr)
	}
	if d.Kind == model.IncludeVars {
		return nil, ex.mergeVarsFile(d, name, fr), nil
	}
	return ex.expandTaskFile(d, name, fr)
}

// expandTaskFile inlines an include_tasks/import_tasks target.
func (ex *expander) expandTaskFile(d *model.Directive, target string, fr frame) ([]*pendingTask, hcl.Diagnostics, error) {
	ref := loader.ResolveRelative(fr.file, target)

	src, diags, err := ex.loadSource(ref, d.TargetRange)
	if err != nil || src == nil {
		return nil, diags, err
	}

	if d.Kind.IsStatic() && fr.onPath(src.ID) {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagCyclicInclude,
			Detail: fmt.Sprintf("Importing %q re-enters a file already on the inclusion path: %s.",
				target, strings.Join(append(fr.path, src.ID), " -> ")),
			Subject: d.TargetRange.Ptr(),
		}), nil
	}

	root, parseDiags := raw.Parse(src.Bytes, src.ID)
	diags = append(diags, parseDiags...)
	if root == nil {
		return nil, diags, nil
	}
	if root.Kind != raw.KindSequence && !root.IsNull() {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("Task file %q must contain a sequence of tasks.", src.ID),
			Subject:  d.TargetRange.Ptr(),
		}), nil
	}
	items := sequenceItems(root)

	child := fr.enter(src.ID, taskid.Stem(target), d.Kind.IsStatic())
	child.conds = appendConds(child.conds, d)
	child.tags = mergeTags(child.tags, d.Tags)

	ex.pushOverlay(src.ID, d.Vars)
	tasks, childDiags, err := ex.expandTasks(items, child)
	diags = append(diags, childDiags...)
	ex.popOverlay()
	return tasks, diags, err
}

// expandRole inlines a role's tasks/main.yml with the role defaults pushed
// as the lowest-precedence overlay and the directive vars above them.
func (ex *expander) expandRole(d *model.Directive, role string, fr frame) ([]*pendingTask, hcl.Diagnostics, error) {
	var diags hcl.Diagnostics

	defaults, defDiags := ex.loadRoleDefaults(role)
	diags = append(diags, defDiags...)

	tasksRef := loader.RoleTasksPath(ex.rootFile, role)
	src, loadDiags, err := ex.loadSource(tasksRef, d.TargetRange)
	diags = append(diags, loadDiags...)
	if err != nil || src == nil {
		return nil, diags, err
	}

	if d.Kind.IsStatic() && fr.onPath(src.ID) {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagCyclicInclude,
			Detail: fmt.Sprintf("Role %q re-enters a file already on the inclusion path: %s.",
				role, strings.Join(append(fr.path, src.ID), " -> ")),
			Subject: d.TargetRange.Ptr(),
		}), nil
	}

	root, parseDiags := raw.Parse(src.Bytes, src.ID)
	diags = append(diags, parseDiags...)
	if root == nil {
		return nil, diags, nil
	}

	child := fr.enter(src.ID, taskid.Stem(role), d.Kind.IsStatic())
	child.conds = appendConds(child.conds, d)
	child.tags = mergeTags(child.tags, d.Tags)

	ex.stack.Push(defaults)
	ex.pushOverlay(src.ID, d.Vars)
	tasks, childDiags, err := ex.expandTasks(sequenceItems(root), child)
	diags = append(diags, childDiags...)
	ex.popOverlay()
	ex.stack.Pop()
	return tasks, diags, err
}

// loadRoleDefaults reads roles/<name>/defaults/main.yml into an overlay. A
// missing defaults file is not an error; roles are not required to have one.
// Defaults sit at the bottom of precedence, so a name already bound anywhere
// on the stack keeps its existing binding.
func (ex *expander) loadRoleDefaults(role string) (*scope.Scope, hcl.Diagnostics) {
	sc := scope.New("role:" + role + ":defaults")

	ref := loader.RoleDefaultsPath(ex.rootFile, role)
	src, err := ex.ld.Load(ex.ctx, ref)
	if err != nil {
		return sc, nil
	}

	root, diags := raw.Parse(src.Bytes, src.ID)
	if root == nil || root.Kind != raw.KindMapping {
		return sc, diags
	}
	for _, pair := range root.Pairs {
		if _, bound := ex.stack.Lookup(pair.Key); bound {
			continue
		}
		sc.Set(pair.Key, pair.Value.CtyValue())
	}
	return sc, diags
}

// mergeVarsFile implements include_vars: the target mapping is bound into
// the scope active at the point of inclusion, visible to subsequent siblings
// and popped with the enclosing boundary.
func (ex *expander) mergeVarsFile(d *model.Directive, target string, fr frame) hcl.Diagnostics {
	ref := loader.ResolveRelative(fr.file, target)

	src, diags, err := ex.loadSource(ref, d.TargetRange)
	if err != nil || src == nil {
		return diags
	}

	root, parseDiags := raw.Parse(src.Bytes, src.ID)
	diags = append(diags, parseDiags...)
	if root == nil {
		return diags
	}
	if root.Kind != raw.KindMapping {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("Vars file %q must contain a top-level mapping.", src.ID),
			Subject:  d.TargetRange.Ptr(),
		})
	}

	top := ex.stack.Top()
	for _, pair := range root.Pairs {
		top.Set(pair.Key, pair.Value.CtyValue())
	}
	ctxlog.FromContext(ex.ctx).Debug("merged vars file",
		slog.String("source", src.ID), slog.Int("bindings", len(root.Pairs)))
	return diags
}

// deferDirective produces the deferred-expansion marker task for a dynamic
// include whose target depends on runtime-only information.
func (ex *expander) deferDirective(d *model.Directive, target model.Value, fr frame) *pendingTask {
	def := &model.DeferredInclude{
		Kind:   d.Kind,
		Target: target,
		Vars:   ex.deferredVars(d.Vars),
		Tags:   mergeTags(fr.tags, d.Tags),
	}
	if d.When != "" {
		w, _ := ex.eng.Evaluate(d.When, d.WhenRange)
		def.When = &w
	}

	pt := &pendingTask{
		task: &model.Task{
			Module:   string(d.Kind),
			Deferred: def,
			Source:   d.Source,
		},
		args: make(map[string]*raw.Node),
	}
	ex.emit(pt, fr)
	return pt
}

// deferredVars resolves a directive vars overlay into model values for the
// deferred marker, keeping unresolvable entries verbatim.
func (ex *expander) deferredVars(node *raw.Node) map[string]model.Value {
	if node == nil || node.Kind != raw.KindMapping {
		return nil
	}
	out := make(map[string]model.Value, len(node.Pairs))
	for _, pair := range node.Pairs {
		out[pair.Key] = ex.scopeValue(pair.Value)
	}
	return out
}

// resolveTarget evaluates the directive's target reference through the
// active scopes.
func (ex *expander) resolveTarget(d *model.Directive) (model.Value, hcl.Diagnostics) {
	if !template.HasInterpolation(d.RawTarget) {
		return model.LiteralValue(cty.StringVal(d.RawTarget)), nil
	}
	return ex.eng.Interpolate(d.RawTarget, d.TargetRange)
}

// pushOverlay binds a directive's vars overlay for the duration of one
// expansion. A fresh overlay is pushed even when the directive carries no
// vars, so include_vars bindings from inside the target pop with it.
func (ex *expander) pushOverlay(sourceID string, vars *raw.Node) {
	sc := scope.New("include:" + sourceID)
	if vars != nil && vars.Kind == raw.KindMapping {
		for _, pair := range vars.Pairs {
			v := ex.scopeValue(pair.Value)
			if v.IsLiteral() {
				sc.Set(pair.Key, v.Literal)
			}
		}
	}
	ex.stack.Push(sc)
}

func (ex *expander) popOverlay() {
	ex.stack.Pop()
}

// scopeValue converts one raw vars value through the active scopes: scalars
// with template syntax are interpolated, everything else converts directly.
func (ex *expander) scopeValue(node *raw.Node) model.Value {
	if node != nil && node.Kind == raw.KindScalar && template.HasInterpolation(node.Value) {
		v, _ := ex.eng.Interpolate(node.Value, node.Range)
		return v
	}
	if node == nil {
		return model.LiteralValue(cty.NullVal(cty.DynamicPseudoType))
	}
	return model.LiteralValue(node.CtyValue())
}

// loadSource fetches one include target. Not-found and unreadable sources
// degrade to diagnostics so the surrounding directive becomes a recorded
// no-op; cancellation aborts the parse.
func (ex *expander) loadSource(ref string, rng hcl.Range) (*loader.Source, hcl.Diagnostics, error) {
	src, err := ex.ld.Load(ex.ctx, ref)
	if err == nil {
		return src, nil, nil
	}

	switch err := err.(type) {
	case *loader.CancelledError:
		return nil, nil, err
	case *loader.NotFoundError:
		return nil, hcl.Diagnostics{&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagSourceNotFound,
			Detail:   fmt.Sprintf("Cannot load %q: no such source.", ref),
			Subject:  rng.Ptr(),
		}}, nil
	default:
		return nil, hcl.Diagnostics{&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagSourceUnreadable,
			Detail:   fmt.Sprintf("Cannot load %q: %s.", ref, err),
			Subject:  rng.Ptr(),
		}}, nil
	}
}

// parseDirective recognizes an include/import directive in a raw task node.
// Returns nil when the node is an ordinary task.
func parseDirective(node *raw.Node) *model.Directive {
	if node == nil || node.Kind != raw.KindMapping {
		return nil
	}

	var d *model.Directive
	for _, pair := range node.Pairs {
		kind, ok := directiveKind(pair.Key)
		if !ok {
			continue
		}
		d = &model.Directive{Kind: kind, Source: node.Range}
		switch {
		case pair.Value == nil:
		case pair.Value.Kind == raw.KindScalar:
			d.RawTarget = pair.Value.Value
			d.TargetRange = pair.Value.Range
		case pair.Value.Kind == raw.KindMapping:
			key := "file"
			if kind.IsRole() {
				key = "name"
			}
			if ref := pair.Value.Get(key); ref != nil && ref.Kind == raw.KindScalar {
				d.RawTarget = ref.Value
				d.TargetRange = ref.Range
			}
			if vars := pair.Value.Get("vars"); vars != nil {
				d.Vars = vars
			}
		}
		break
	}
	if d == nil {
		return nil
	}

	for _, pair := range node.Pairs {
		switch pair.Key {
		case "when":
			if pair.Value != nil && pair.Value.Kind == raw.KindScalar {
				d.When = pair.Value.Value
				d.WhenRange = pair.Value.Range
			}
		case "tags":
			d.Tags = stringList(pair.Value)
		case "vars":
			if d.Vars == nil {
				d.Vars = pair.Value
			}
		}
	}
	return d
}

func directiveKind(key string) (model.IncludeKind, bool) {
	for _, k := range model.IncludeKinds {
		if string(k) == key {
			return k, true
		}
	}
	return "", false
}

func appendConds(conds []condSrc, d *model.Directive) []condSrc {
	if d.When == "" {
		return conds
	}
	return append(append([]condSrc(nil), conds...), condSrc{expr: d.When, rng: d.WhenRange})
}

// mergeTags unions inherited and own tags, preserving first-seen order.
func mergeTags(inherited, own []string) []string {
	if len(inherited) == 0 {
		return own
	}
	seen := make(map[string]struct{}, len(inherited)+len(own))
	out := make([]string, 0, len(inherited)+len(own))
	for _, lists := range [][]string{inherited, own} {
		for _, t := range lists {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func targetString(v model.Value) (string, error) {
	if v.Literal.Type() != cty.String {
		return "", fmt.Errorf("%s value", v.Literal.Type().FriendlyName())
	}
	return v.Literal.AsString(), nil
}
