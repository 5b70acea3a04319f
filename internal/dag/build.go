package dag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/ctxlog"
	"github.com/vk/playparse/internal/model"
)

// Diagnostic summaries emitted by the graph builder.
const (
	DiagCyclicTasks      = "Cyclic task dependencies"
	DiagUnknownHandler   = "Unknown notify target"
	DiagUnknownDep       = "Unknown task dependency"
	DiagDuplicateHandler = "Duplicate handler name"
)

// BuildPlay links one play's task and handler graph, validates it and writes
// the resulting execution order into play.Order. On a dependency cycle the
// order stays empty and an error diagnostic names the ids involved.
func BuildPlay(ctx context.Context, play *model.Play) hcl.Diagnostics {
	logger := ctxlog.FromContext(ctx)
	var diags hcl.Diagnostics

	g := New()
	for _, t := range play.Tasks {
		g.AddNode(t.ID)
	}

	handlers, dupDiags := dedupeHandlers(play)
	diags = append(diags, dupDiags...)
	for _, h := range play.Handlers {
		g.AddNode(h.ID)
	}

	diags = append(diags, linkSequential(g, play)...)
	diags = append(diags, linkNotify(g, play, handlers)...)

	if cycle := g.DetectCycle(); cycle != nil {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagCyclicTasks,
			Detail:   fmt.Sprintf("Tasks form a dependency cycle: %s.", strings.Join(cycle, " -> ")),
			Subject:  play.Source.Ptr(),
		})
	}

	play.Order = g.TopoOrder()
	logger.Debug("play graph linked",
		slog.String("play", play.Name),
		slog.Int("tasks", len(play.Tasks)),
		slog.Int("handlers", len(play.Handlers)))
	return diags
}

// linkSequential adds each task's dependency edges: the declared ids when
// present, otherwise the implicit edge from the immediate predecessor.
func linkSequential(g *Graph, play *model.Play) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for i, t := range play.Tasks {
		if len(t.DependsOn) == 0 {
			if i > 0 {
				prev := play.Tasks[i-1].ID
				t.DependsOn = []string{prev}
				g.AddEdge(t.ID, prev)
			}
			continue
		}
		kept := t.DependsOn[:0]
		for _, dep := range t.DependsOn {
			if !g.HasNode(dep) {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  DiagUnknownDep,
					Detail:   fmt.Sprintf("Task %q depends on %q, which names no task in this play.", t.ID, dep),
					Subject:  t.Source.Ptr(),
				})
				continue
			}
			kept = append(kept, dep)
			g.AddEdge(t.ID, dep)
		}
		t.DependsOn = kept
	}
	return diags
}

// linkNotify adds handler edges. Notify names resolve case-sensitively
// within the play; an unknown target is a warning and the edge is omitted.
func linkNotify(g *Graph, play *model.Play, handlers map[string]*model.Handler) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, t := range play.Tasks {
		for _, name := range t.Notify {
			h, ok := handlers[name]
			if !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagWarning,
					Summary:  DiagUnknownHandler,
					Detail:   fmt.Sprintf("Task %q notifies %q, but the play declares no such handler.", t.ID, name),
					Subject:  t.Source.Ptr(),
				})
				continue
			}
			g.AddEdge(h.ID, t.ID)
		}
	}
	return diags
}

// dedupeHandlers maps handler names to their first-declared instance. A
// repeated name is an error diagnostic; all edges bind to the first
// instance, so notifying it multiple times still runs it once.
func dedupeHandlers(play *model.Play) (map[string]*model.Handler, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	handlers := make(map[string]*model.Handler, len(play.Handlers))
	for _, h := range play.Handlers {
		if first, ok := handlers[h.Name]; ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagDuplicateHandler,
				Detail: fmt.Sprintf("Handler %q is declared more than once in play %q; the first declaration (%s) keeps the name.",
					h.Name, play.Name, first.ID),
				Subject: h.Source.Ptr(),
			})
			continue
		}
		handlers[h.Name] = h
	}
	return handlers, diags
}
