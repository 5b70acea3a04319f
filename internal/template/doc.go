// Package template evaluates Ansible-style expressions and "{{ ... }}"
// interpolations against a scope stack.
//
// The engine resolves an expression to a literal only when every free
// variable it references resolves to a literal. If any referenced name is a
// runtime-only fact that was not seeded, or resolves to an unresolved value,
// the whole expression is returned unresolved with its original text retained
// verbatim; partial substitution never happens. A reference to a name with no
// binding anywhere and no `default` fallback is reported as a diagnostic, and
// the expression is likewise returned unresolved so processing can continue.
package template
