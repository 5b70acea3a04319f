package template

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/scope"
)

// FactSeed is a set of pre-resolved fact values supplied by the caller,
// typically gathered facts or inventory-derived host variables. Seeded names
// resolve like any other binding; an ansible_* name that is seeded no longer
// defers resolution.
type FactSeed map[string]cty.Value

// Scope materializes the seed as the bottom overlay of a resolution stack.
func (fs FactSeed) Scope() *scope.Scope {
	return scope.FromMap("facts", fs)
}
