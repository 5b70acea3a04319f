package model

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Play is a named block targeting a set of hosts with its own tasks,
// handlers and variables. A play owns its tasks and handlers.
type Play struct {
	Name string `json:"name,omitempty"`

	// Hosts is the play's host pattern, kept as an unresolved string
	// expression; pattern matching against inventory happens at run time.
	Hosts string `json:"hosts"`

	// Vars is the play's initial variable overlay after template resolution.
	Vars map[string]Value `json:"vars,omitempty"`

	Tasks    []*Task    `json:"tasks,omitempty"`
	Handlers []*Handler `json:"handlers,omitempty"`

	// Roles lists role references applied by the play, in order.
	Roles []string `json:"roles,omitempty"`

	// Order is the validated execution order over task and handler ids,
	// produced by the dependency graph builder.
	Order []string `json:"order,omitempty"`

	Source hcl.Range `json:"source"`
}

// Meta records the provenance of a parsed source so external caching can key
// on content.
type Meta struct {
	SourcePath string    `json:"source_path"`
	Checksum   string    `json:"checksum"`
	ParsedAt   time.Time `json:"parsed_at"`
}

// ParsedPlaybook is the fully resolved, validated output of the playbook
// pipeline.
type ParsedPlaybook struct {
	Meta  Meta    `json:"meta"`
	Plays []*Play `json:"plays"`

	// Vars aggregates top-level variables across all plays.
	Vars map[string]Value `json:"vars,omitempty"`

	// FactsRequired is true when any unresolved expression in the model
	// references a runtime-only fact.
	FactsRequired bool `json:"facts_required"`

	// VaultIDs lists the vault ids of encrypted scalars encountered, in
	// first-seen order.
	VaultIDs []string `json:"vault_ids,omitempty"`
}

// Handler looks up a handler by exact, case-sensitive name within a play.
// When duplicates exist the first-declared instance wins.
func (p *Play) Handler(name string) *Handler {
	for _, h := range p.Handlers {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// TaskByID looks up a task by id across all plays.
func (pb *ParsedPlaybook) TaskByID(id string) *Task {
	for _, play := range pb.Plays {
		for _, t := range play.Tasks {
			if t.ID == id {
				return t
			}
		}
		for _, h := range play.Handlers {
			if h.ID == id {
				return &h.Task
			}
		}
	}
	return nil
}
