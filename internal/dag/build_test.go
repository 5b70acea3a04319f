package dag

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/playparse/internal/model"
)

func task(id string, deps ...string) *model.Task {
	return &model.Task{ID: id, DependsOn: deps}
}

func handler(id, name string) *model.Handler {
	return &model.Handler{Task: model.Task{ID: id, Name: name}}
}

func findDiag(diags hcl.Diagnostics, summary string) *hcl.Diagnostic {
	for _, d := range diags {
		if d.Summary == summary {
			return d
		}
	}
	return nil
}

func TestBuildPlay_ImplicitSequence(t *testing.T) {
	t.Parallel()

	play := &model.Play{
		Tasks: []*model.Task{task("task_0"), task("task_1"), task("task_2")},
	}
	diags := BuildPlay(context.Background(), play)
	require.False(t, diags.HasErrors())

	assert.Equal(t, []string{"task_0", "task_1", "task_2"}, play.Order)
	assert.Empty(t, play.Tasks[0].DependsOn)
	assert.Equal(t, []string{"task_0"}, play.Tasks[1].DependsOn)
	assert.Equal(t, []string{"task_1"}, play.Tasks[2].DependsOn)
}

func TestBuildPlay_ExplicitDependencies(t *testing.T) {
	t.Parallel()

	// task_2 declares its own dependency, so no implicit edge to task_1.
	play := &model.Play{
		Tasks: []*model.Task{task("task_0"), task("task_1"), task("task_2", "task_0")},
	}
	diags := BuildPlay(context.Background(), play)
	require.False(t, diags.HasErrors())

	assert.Equal(t, []string{"task_0"}, play.Tasks[2].DependsOn)
	assert.Equal(t, []string{"task_0", "task_1", "task_2"}, play.Order)
}

func TestBuildPlay_UnknownDependency(t *testing.T) {
	t.Parallel()

	play := &model.Play{
		Tasks: []*model.Task{task("task_0"), task("task_1", "task_9", "task_0")},
	}
	diags := BuildPlay(context.Background(), play)

	d := findDiag(diags, DiagUnknownDep)
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, `"task_9"`)

	// The bad edge is dropped, the good one kept, and an order still comes out.
	assert.Equal(t, []string{"task_0"}, play.Tasks[1].DependsOn)
	assert.Equal(t, []string{"task_0", "task_1"}, play.Order)
}

func TestBuildPlay_NotifyEdges(t *testing.T) {
	t.Parallel()

	notifier := task("task_0")
	notifier.Notify = []string{"restart app"}
	play := &model.Play{
		Tasks:    []*model.Task{notifier, task("task_1")},
		Handlers: []*model.Handler{handler("handler.task_2", "restart app")},
	}
	diags := BuildPlay(context.Background(), play)
	require.False(t, diags.HasErrors())

	require.Len(t, play.Order, 3)
	assert.Greater(t, indexOf(play.Order, "handler.task_2"), indexOf(play.Order, "task_0"))
}

func TestBuildPlay_UnknownNotifyTarget(t *testing.T) {
	t.Parallel()

	notifier := task("task_0")
	notifier.Notify = []string{"no such handler"}
	play := &model.Play{Tasks: []*model.Task{notifier}}
	diags := BuildPlay(context.Background(), play)

	d := findDiag(diags, DiagUnknownHandler)
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagWarning, d.Severity)
	assert.False(t, diags.HasErrors())
	assert.Equal(t, []string{"task_0"}, play.Order)
}

func TestBuildPlay_DuplicateHandlerFirstWins(t *testing.T) {
	t.Parallel()

	notifier := task("task_0")
	notifier.Notify = []string{"restart app"}
	play := &model.Play{
		Tasks: []*model.Task{notifier},
		Handlers: []*model.Handler{
			handler("handler.task_1", "restart app"),
			handler("handler.task_2", "restart app"),
		},
	}
	diags := BuildPlay(context.Background(), play)

	d := findDiag(diags, DiagDuplicateHandler)
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, "handler.task_1")

	// The notify edge binds to the first declaration.
	assert.Greater(t, indexOf(play.Order, "handler.task_1"), indexOf(play.Order, "task_0"))
}

func TestBuildPlay_CyclicDependencies(t *testing.T) {
	t.Parallel()

	play := &model.Play{
		Tasks: []*model.Task{task("task_0", "task_1"), task("task_1", "task_0")},
	}
	diags := BuildPlay(context.Background(), play)

	d := findDiag(diags, DiagCyclicTasks)
	require.NotNil(t, d)
	assert.Equal(t, hcl.DiagError, d.Severity)
	assert.Contains(t, d.Detail, "task_0")
	assert.Contains(t, d.Detail, "task_1")
	assert.Empty(t, play.Order)
}

func TestGraph_TopoOrderDeterministic(t *testing.T) {
	t.Parallel()

	build := func() []string {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		g.AddEdge("d", "b")
		g.AddEdge("c", "a")
		return g.TopoOrder()
	}

	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, first)
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
