package model

import (
	"github.com/hashicorp/hcl/v2"
)

// Task is a single module invocation within a play.
type Task struct {
	// ID is stable and unique across the whole ParsedPlaybook; inlined
	// content carries an include- or role-qualified variant.
	ID string `json:"id"`
	// Index is the task's position within its play after expansion.
	Index int `json:"index"`

	Name   string           `json:"name,omitempty"`
	Module string           `json:"module"`
	Args   map[string]Value `json:"args,omitempty"`
	Tags   []string         `json:"tags,omitempty"`

	// When is nil for unconditional tasks. Conditions inherited from import
	// directives are ANDed with the task's own.
	When *Value `json:"when,omitempty"`

	// Loop carries a loop/with_items expression when present.
	Loop *Value `json:"loop,omitempty"`

	// Notify lists handler names in declaration order.
	Notify []string `json:"notify,omitempty"`

	// DependsOn lists the task's dependency edges by id: explicit
	// `dependencies` from the declaration, or the implicit sequential edge
	// recorded during graph linking. Immutable after linking.
	DependsOn []string `json:"depends_on,omitempty"`

	// Register names the variable the task's runtime result binds to.
	Register string `json:"register,omitempty"`

	// DynamicSource marks tasks inlined through a dynamic include whose
	// target was resolvable at parse time.
	DynamicSource bool `json:"dynamic_source,omitempty"`

	// Deferred is non-nil only for deferred dynamic-include markers; such
	// tasks have no module semantics of their own.
	Deferred *DeferredInclude `json:"deferred,omitempty"`

	Source hcl.Range `json:"source"`
}

// IsDeferredInclude reports whether the task is a deferred-expansion marker
// rather than a real module invocation.
func (t *Task) IsDeferredInclude() bool { return t.Deferred != nil }

// Handler is a task that only runs in response to a notify signal. Its name
// is required and must be unique within its play.
type Handler struct {
	Task
}
