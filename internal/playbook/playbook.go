package playbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/ctxlog"
	"github.com/vk/playparse/internal/dag"
	"github.com/vk/playparse/internal/loader"
	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/raw"
	"github.com/vk/playparse/internal/scope"
	"github.com/vk/playparse/internal/template"
	"github.com/vk/playparse/internal/vault"
)

// Options configures one playbook parse.
type Options struct {
	// Path is the reference of the root playbook, resolved by Loader.
	Path string

	// Loader fetches the root playbook and every include/import target.
	Loader loader.Loader

	// Facts seeds pre-resolved values into the bottom scope. Optional.
	Facts template.FactSeed

	// Decryptor, when set, turns vault payloads into plaintext. Without it
	// vault scalars stay unresolved and only their ids are recorded.
	Decryptor vault.Decryptor

	// MaxIncludeDepth bounds include nesting; zero means the default.
	MaxIncludeDepth int
}

// Parse runs the full playbook pipeline. The model is best-effort: most
// problems become diagnostics on a still-usable model. The error return is
// reserved for caller cancellation and root-source load failures; when it is
// non-nil the partially built model is discarded.
func Parse(ctx context.Context, opts Options) (*model.ParsedPlaybook, hcl.Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)
	var diags hcl.Diagnostics

	if opts.Loader == nil {
		return nil, nil, fmt.Errorf("playbook: Options.Loader is required")
	}
	maxDepth := opts.MaxIncludeDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxIncludeDepth
	}

	src, err := opts.Loader.Load(ctx, opts.Path)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("loaded root playbook",
		slog.String("source", src.ID), slog.Int("bytes", len(src.Bytes)))

	p := &parser{
		ctx:      ctx,
		opts:     opts,
		maxDepth: maxDepth,
		res: &resolver{
			ctx:       ctx,
			decryptor: opts.Decryptor,
			vaultIDs:  make(map[string]struct{}),
		},
	}

	prePlays, playDiags, err := p.collectPlays(src, nil)
	diags = append(diags, playDiags...)
	if err != nil {
		return nil, diags, err
	}

	pb := &model.ParsedPlaybook{
		Meta: model.Meta{
			SourcePath: src.ID,
			Checksum:   src.Checksum,
			ParsedAt:   time.Now().UTC(),
		},
		Vars: make(map[string]model.Value),
	}

	for _, pre := range prePlays {
		play, playDiags, err := p.finishPlay(pre)
		diags = append(diags, playDiags...)
		if err != nil {
			return nil, diags, err
		}
		pb.Plays = append(pb.Plays, play)
		for k, v := range play.Vars {
			pb.Vars[k] = v
		}
	}

	pb.FactsRequired = p.res.factsRequired
	pb.VaultIDs = p.res.vaultOrder
	return pb, diags, nil
}

// parser carries the state of one Parse call.
type parser struct {
	ctx      context.Context
	opts     Options
	maxDepth int
	res      *resolver
	// next is the playbook-wide task index counter, shared across plays so
	// ids stay unique through repeated inlining.
	next int
}

// collectPlays parses one playbook source into prePlays, splicing
// import_playbook/include_playbook entries in place. path tracks playbook
// files entered, for cycle detection across splices.
func (p *parser) collectPlays(src *loader.Source, path []string) ([]*prePlay, hcl.Diagnostics, error) {
	var diags hcl.Diagnostics

	for _, id := range path {
		if id == src.ID {
			return nil, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagCyclicInclude,
				Detail:   fmt.Sprintf("Playbook %q imports itself through: %s.", src.ID, joinPath(append(path, src.ID))),
			}), nil
		}
	}
	path = append(append([]string(nil), path...), src.ID)

	root, parseDiags := raw.Parse(src.Bytes, src.ID)
	diags = append(diags, parseDiags...)
	if root == nil {
		return nil, diags, nil
	}
	if root.IsNull() {
		return nil, diags, nil
	}
	if root.Kind != raw.KindSequence {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   fmt.Sprintf("Playbook %q must contain a top-level sequence of plays.", src.ID),
			Subject:  root.Range.Ptr(),
		}), nil
	}

	var out []*prePlay
	for _, item := range root.Items {
		if d := parseDirective(item); d != nil && (d.Kind == model.ImportPlaybook || d.Kind == model.IncludePlaybook) {
			spliced, spliceDiags, err := p.splicePlaybook(d, src.ID, path)
			diags = append(diags, spliceDiags...)
			if err != nil {
				return nil, diags, err
			}
			out = append(out, spliced...)
			continue
		}

		pre, playDiags := buildPlay(item)
		diags = append(diags, playDiags...)
		if pre == nil {
			continue
		}
		pre.file = src.ID
		out = append(out, pre)
	}
	return out, diags, nil
}

// splicePlaybook resolves one play-level playbook directive. A dynamic
// include whose target cannot resolve is a warning and the entry is omitted;
// a static import with the same problem is an error.
func (p *parser) splicePlaybook(d *model.Directive, fromFile string, path []string) ([]*prePlay, hcl.Diagnostics, error) {
	var diags hcl.Diagnostics

	target := d.RawTarget
	if template.HasInterpolation(target) {
		stack := scope.NewStack()
		if p.opts.Facts != nil {
			stack.Push(p.opts.Facts.Scope())
		}
		v, vDiags := template.New(stack).Interpolate(target, d.TargetRange)
		diags = append(diags, vDiags...)
		if v.Unresolved {
			severity := hcl.DiagWarning
			if d.Kind.IsStatic() {
				severity = hcl.DiagError
			}
			return nil, append(diags, &hcl.Diagnostic{
				Severity: severity,
				Summary:  DiagBadPlaybook,
				Detail: fmt.Sprintf("The %s target %q cannot be resolved at parse time; the entry is omitted.",
					d.Kind, d.RawTarget),
				Subject: d.TargetRange.Ptr(),
			}), nil
		}
		target = v.Literal.AsString()
	}

	ref := loader.ResolveRelative(fromFile, target)
	src, err := p.opts.Loader.Load(p.ctx, ref)
	if err != nil {
		if cancelled, ok := err.(*loader.CancelledError); ok {
			return nil, diags, cancelled
		}
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagSourceNotFound,
			Detail:   fmt.Sprintf("Cannot load playbook %q: %s.", ref, err),
			Subject:  d.TargetRange.Ptr(),
		}), nil
	}
	return p.collectPlays(src, path)
}

// finishPlay runs the expansion, template and linking passes over one play.
func (p *parser) finishPlay(pre *prePlay) (*model.Play, hcl.Diagnostics, error) {
	var diags hcl.Diagnostics

	play := &model.Play{
		Name:   pre.name,
		Hosts:  pre.hosts,
		Roles:  pre.roles,
		Source: pre.src,
	}

	stack := scope.NewStack()
	if p.opts.Facts != nil {
		stack.Push(p.opts.Facts.Scope())
	}
	playScope := scope.New("play:" + pre.name)
	stack.Push(playScope)

	eng := template.New(stack)
	play.Vars = make(map[string]model.Value)
	if pre.varsNode != nil {
		for _, pair := range pre.varsNode.Pairs {
			v, vDiags := p.res.resolveNodeOn(stack, pair.Value)
			diags = append(diags, vDiags...)
			play.Vars[pair.Key] = v
			if v.IsLiteral() {
				playScope.Set(pair.Key, v.Literal)
			}
		}
	}

	ex := &expander{
		ctx:      p.ctx,
		ld:       p.opts.Loader,
		stack:    stack,
		eng:      eng,
		base:     stack.Depth(),
		maxDepth: p.maxDepth,
		rootFile: p.opts.Path,
	}
	ex.next = p.next
	defer func() { p.next = ex.next }()

	fr := frame{file: pre.file, path: []string{pre.file}}

	vfDiags := p.loadVarsFiles(ex, pre, playScope)
	diags = append(diags, vfDiags...)

	var pending []*pendingTask
	for _, role := range pre.roles {
		roleTasks, roleDiags, err := ex.expandDirective(&model.Directive{
			Kind:      model.ImportRole,
			RawTarget: role,
			Source:    pre.src,
		}, fr)
		diags = append(diags, roleDiags...)
		if err != nil {
			return nil, diags, err
		}
		pending = append(pending, roleTasks...)
	}

	taskPending, taskDiags, err := ex.expandTasks(pre.tasks, fr)
	diags = append(diags, taskDiags...)
	if err != nil {
		return nil, diags, err
	}
	pending = append(pending, taskPending...)

	handlerFrame := fr
	handlerFrame.qualifiers = []string{"handler"}
	handlerPending, handlerDiags, err := ex.expandTasks(pre.handlers, handlerFrame)
	diags = append(diags, handlerDiags...)
	if err != nil {
		return nil, diags, err
	}

	p.res.stack = stack
	for i, pt := range pending {
		t, tDiags := p.res.resolveTask(pt)
		diags = append(diags, tDiags...)
		t.Index = i
		play.Tasks = append(play.Tasks, t)
	}
	for _, pt := range handlerPending {
		h, hDiags := p.res.resolveTask(pt)
		diags = append(diags, hDiags...)
		play.Handlers = append(play.Handlers, &model.Handler{Task: *h})
	}

	diags = append(diags, dag.BuildPlay(p.ctx, play)...)

	ctxlog.FromContext(p.ctx).Debug("play finished",
		slog.String("play", play.Name),
		slog.Int("tasks", len(play.Tasks)),
		slog.Int("handlers", len(play.Handlers)))
	return play, diags, nil
}

// loadVarsFiles merges each vars_files entry into the play scope, in order,
// through the same machinery include_vars uses.
func (p *parser) loadVarsFiles(ex *expander, pre *prePlay, playScope *scope.Scope) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, ref := range pre.varsFiles {
		d := &model.Directive{
			Kind:        model.IncludeVars,
			RawTarget:   ref,
			TargetRange: pre.src,
			Source:      pre.src,
		}
		fileDiags := ex.mergeVarsFile(d, ref, frame{file: pre.file})
		diags = append(diags, fileDiags...)
	}
	return diags
}

// resolveNodeOn resolves one raw node against the given stack. Used for
// play-level vars before any expansion state exists.
func (r *resolver) resolveNodeOn(stack *scope.Stack, node *raw.Node) (model.Value, hcl.Diagnostics) {
	prev := r.stack
	r.stack = stack
	defer func() { r.stack = prev }()
	v, diags := r.resolveNode(template.New(stack), node)
	r.noteValue(v)
	return v, diags
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
