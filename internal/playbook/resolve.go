package playbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/raw"
	"github.com/vk/playparse/internal/scope"
	"github.com/vk/playparse/internal/template"
	"github.com/vk/playparse/internal/vault"
)

// DiagVault is the summary for vault-related diagnostics.
const DiagVault = "Vault payload"

// resolver runs the template pass: it finishes pending tasks into model
// tasks by evaluating every templated field inside the scope that was active
// where the task was emitted.
type resolver struct {
	ctx       context.Context
	stack     *scope.Stack
	decryptor vault.Decryptor

	// vaultIDs accumulates every vault id label seen, resolved or not, in
	// first-seen order.
	vaultIDs   map[string]struct{}
	vaultOrder []string
	// factsRequired flips when any value defers on runtime-only facts.
	factsRequired bool
}

// resolveTask finishes one pending task. The expansion-time overlay snapshot
// and the task's own vars are pushed for the duration, so lookups see
// exactly what was visible at the task's position.
func (r *resolver) resolveTask(pt *pendingTask) (*model.Task, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	t := pt.task

	base := r.stack.Depth()
	if len(pt.overlay) > 0 {
		r.stack.Push(scope.FromMap("include-overlay", pt.overlay))
	}
	eng := template.New(r.stack)
	if pt.overlayNode != nil {
		taskVars := scope.New("task-vars")
		for _, pair := range pt.overlayNode.Pairs {
			v, vDiags := r.resolveNode(eng, pair.Value)
			diags = append(diags, vDiags...)
			if v.IsLiteral() {
				taskVars.Set(pair.Key, v.Literal)
			}
		}
		r.stack.Push(taskVars)
	}
	defer func() {
		for r.stack.Depth() > base {
			r.stack.Pop()
		}
	}()

	if t.Deferred != nil {
		r.noteValue(t.Deferred.Target)
		if t.Deferred.When != nil {
			r.noteValue(*t.Deferred.When)
		}
		return t, diags
	}

	t.Args = make(map[string]model.Value, len(pt.args))
	for key, node := range pt.args {
		v, argDiags := r.resolveNode(eng, node)
		diags = append(diags, argDiags...)
		r.noteValue(v)
		t.Args[key] = v
	}

	if when := combineConds(pt.conds); when.expr != "" {
		v, whenDiags := eng.Evaluate(when.expr, when.rng)
		diags = append(diags, whenDiags...)
		r.noteValue(v)
		t.When = &v
	}

	if pt.loop != nil {
		v, loopDiags := r.resolveNode(eng, pt.loop)
		diags = append(diags, loopDiags...)
		r.noteValue(v)
		t.Loop = &v
	}

	if template.HasInterpolation(t.Name) {
		v, nameDiags := eng.Interpolate(t.Name, t.Source)
		diags = append(diags, nameDiags...)
		if v.IsLiteral() && v.Literal.Type() == cty.String {
			t.Name = v.Literal.AsString()
		}
	}
	return t, diags
}

// resolveNode resolves one raw value tree into a model value. Structured
// values resolve leaf by leaf; if any leaf stays unresolved the whole value
// is unresolved, carrying that leaf's original text.
func (r *resolver) resolveNode(eng *template.Engine, node *raw.Node) (model.Value, hcl.Diagnostics) {
	if node == nil || node.IsNull() {
		return model.LiteralValue(cty.NullVal(cty.DynamicPseudoType)), nil
	}

	switch node.Kind {
	case raw.KindScalar:
		if node.IsVault() {
			return r.resolveVault(node)
		}
		if node.Tag == "!!str" && template.HasInterpolation(node.Value) {
			return eng.Interpolate(node.Value, node.Range)
		}
		return model.LiteralValue(node.CtyValue()), nil

	case raw.KindSequence:
		var diags hcl.Diagnostics
		items := make([]cty.Value, 0, len(node.Items))
		for _, item := range node.Items {
			v, itemDiags := r.resolveNode(eng, item)
			diags = append(diags, itemDiags...)
			if v.Unresolved {
				return model.UnresolvedValue(v.Expr, v.Reason), diags
			}
			items = append(items, v.Literal)
		}
		if len(items) == 0 {
			return model.LiteralValue(cty.EmptyTupleVal), diags
		}
		return model.LiteralValue(cty.TupleVal(items)), diags

	default:
		var diags hcl.Diagnostics
		attrs := make(map[string]cty.Value, len(node.Pairs))
		for _, pair := range node.Pairs {
			v, pairDiags := r.resolveNode(eng, pair.Value)
			diags = append(diags, pairDiags...)
			if v.Unresolved {
				return model.UnresolvedValue(v.Expr, v.Reason), diags
			}
			attrs[pair.Key] = v.Literal
		}
		if len(attrs) == 0 {
			return model.LiteralValue(cty.EmptyObjectVal), diags
		}
		return model.LiteralValue(cty.ObjectVal(attrs)), diags
	}
}

// resolveVault records the payload's vault id and decrypts when a decryptor
// was supplied; otherwise the value stays unresolved with the payload text.
func (r *resolver) resolveVault(node *raw.Node) (model.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	header, err := vault.ParseHeader(node.Value)
	if err != nil {
		return model.UnresolvedValue(node.Value, model.ReasonVaultEncrypted), append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagVault,
			Detail:   fmt.Sprintf("Malformed vault envelope: %s.", err),
			Subject:  node.Range.Ptr(),
		})
	}
	if _, seen := r.vaultIDs[header.ID]; !seen {
		r.vaultIDs[header.ID] = struct{}{}
		r.vaultOrder = append(r.vaultOrder, header.ID)
	}

	if r.decryptor == nil {
		return model.UnresolvedValue(node.Value, model.ReasonVaultEncrypted), diags
	}

	plain, err := r.decryptor.Decrypt(r.ctx, []byte(node.Value), header.ID)
	if err != nil {
		return model.UnresolvedValue(node.Value, model.ReasonVaultEncrypted), append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagVault,
			Detail:   fmt.Sprintf("Decryption failed for vault id %q: %s.", header.ID, err),
			Subject:  node.Range.Ptr(),
		})
	}
	return model.LiteralValue(cty.StringVal(string(plain))), diags
}

// noteValue tracks whether runtime facts are required to finish resolution.
func (r *resolver) noteValue(v model.Value) {
	if v.Unresolved && (v.Reason == model.ReasonRuntimeFact || v.Reason == model.ReasonDeferred) {
		r.factsRequired = true
	}
}

// combineConds folds a condition chain into one AND expression. A single
// condition passes through untouched so its text stays verbatim.
func combineConds(conds []condSrc) condSrc {
	switch len(conds) {
	case 0:
		return condSrc{}
	case 1:
		return conds[0]
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = "(" + c.expr + ")"
	}
	return condSrc{expr: strings.Join(parts, " and "), rng: conds[0].rng}
}
