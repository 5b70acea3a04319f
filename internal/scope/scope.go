// Package scope implements the layered variable environment used by every
// resolution pass. A Stack is an ordered sequence of named overlays; lookup
// walks from the most recently pushed overlay downward and the first binding
// wins. Each pass threads its own Stack instance, so independent parses never
// share state.
package scope

import (
	"errors"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// ErrUnderflow is returned by Pop on an empty stack.
var ErrUnderflow = errors.New("scope stack underflow")

// Scope is one named overlay of variable bindings.
type Scope struct {
	name string
	vars map[string]cty.Value
}

// New creates an empty overlay with the given name. The name only appears in
// logs and diagnostics.
func New(name string) *Scope {
	return &Scope{name: name, vars: make(map[string]cty.Value)}
}

// FromMap creates an overlay pre-populated with the given bindings.
func FromMap(name string, vars map[string]cty.Value) *Scope {
	s := New(name)
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Name returns the overlay's name.
func (s *Scope) Name() string { return s.name }

// Set binds key to value within this overlay.
func (s *Scope) Set(key string, value cty.Value) {
	s.vars[key] = value
}

// Get returns the binding for key within this overlay only.
func (s *Scope) Get(key string) (cty.Value, bool) {
	v, ok := s.vars[key]
	return v, ok
}

// Len returns the number of bindings in this overlay.
func (s *Scope) Len() int { return len(s.vars) }

// Keys returns the overlay's keys in sorted order.
func (s *Scope) Keys() []string {
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stack is an ordered sequence of overlays. The zero value is not usable;
// call NewStack.
type Stack struct {
	scopes []*Scope
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push adds an overlay at the top of the stack.
func (st *Stack) Push(s *Scope) {
	st.scopes = append(st.scopes, s)
}

// Pop removes and returns the most recently pushed overlay. Popping an empty
// stack returns ErrUnderflow.
func (st *Stack) Pop() (*Scope, error) {
	if len(st.scopes) == 0 {
		return nil, ErrUnderflow
	}
	top := st.scopes[len(st.scopes)-1]
	st.scopes = st.scopes[:len(st.scopes)-1]
	return top, nil
}

// Depth returns the number of overlays currently on the stack.
func (st *Stack) Depth() int { return len(st.scopes) }

// Top returns the most recently pushed overlay, or nil when empty.
func (st *Stack) Top() *Scope {
	if len(st.scopes) == 0 {
		return nil
	}
	return st.scopes[len(st.scopes)-1]
}

// Lookup scans overlays top to bottom and returns the first binding for key.
// Lookup never mutates any overlay.
func (st *Stack) Lookup(key string) (cty.Value, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if v, ok := st.scopes[i].Get(key); ok {
			return v, true
		}
	}
	return cty.NilVal, false
}

// Names returns the union of all bound names across overlays, sorted. Used
// for did-you-mean suggestions in diagnostics.
func (st *Stack) Names() []string {
	seen := make(map[string]struct{})
	for _, s := range st.scopes {
		for k := range s.vars {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flatten materializes the merged view of the stack: every binding visible
// through Lookup, as a plain map. The result is detached from the stack.
func (st *Stack) Flatten() map[string]cty.Value {
	return st.FlattenAbove(0)
}

// FlattenAbove materializes the merged view of only the overlays pushed
// above the given depth. Resolution passes use it to snapshot the overlays
// they own without capturing the base environment.
func (st *Stack) FlattenAbove(depth int) map[string]cty.Value {
	out := make(map[string]cty.Value)
	for i := depth; i < len(st.scopes); i++ {
		for k, v := range st.scopes[i].vars {
			out[k] = v
		}
	}
	return out
}
