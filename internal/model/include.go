package model

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/raw"
)

// IncludeKind names one of the include/import directive variants.
type IncludeKind string

const (
	IncludeTasks    IncludeKind = "include_tasks"
	ImportTasks     IncludeKind = "import_tasks"
	IncludeRole     IncludeKind = "include_role"
	ImportRole      IncludeKind = "import_role"
	IncludeVars     IncludeKind = "include_vars"
	IncludePlaybook IncludeKind = "include_playbook"
	ImportPlaybook  IncludeKind = "import_playbook"
)

// IncludeKinds lists every directive keyword the builder recognizes.
var IncludeKinds = []IncludeKind{
	IncludeTasks, ImportTasks, IncludeRole, ImportRole,
	IncludeVars, IncludePlaybook, ImportPlaybook,
}

// IsStatic reports whether the kind is an import, expanded eagerly and
// unconditionally inlined at parse time.
func (k IncludeKind) IsStatic() bool {
	switch k {
	case ImportTasks, ImportRole, ImportPlaybook:
		return true
	}
	return false
}

// IsRole reports whether the kind targets a role rather than a file.
func (k IncludeKind) IsRole() bool {
	return k == IncludeRole || k == ImportRole
}

// Directive is the transient representation of an include/import directive
// discovered by the model builder. Directives are consumed during include
// resolution and never appear in the final model; the only trace a directive
// may leave is a DeferredInclude marker.
type Directive struct {
	Kind IncludeKind

	// RawTarget is the directive's target reference: a literal path, a role
	// name, or a templated expression.
	RawTarget   string
	TargetRange hcl.Range

	// Vars is the raw per-include vars overlay, nil when absent.
	Vars *raw.Node

	// When is the directive's raw condition expression, empty when absent.
	When      string
	WhenRange hcl.Range

	Tags   []string
	Source hcl.Range
}

// DeferredInclude marks a dynamic include whose target or condition depends
// on runtime-only information and therefore could not be expanded at parse
// time. It is the one directive trace permitted in the final model.
type DeferredInclude struct {
	Kind   IncludeKind      `json:"kind"`
	Target Value            `json:"target"`
	When   *Value           `json:"when,omitempty"`
	Vars   map[string]Value `json:"vars,omitempty"`
	Tags   []string         `json:"tags,omitempty"`
}
