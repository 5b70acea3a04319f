// Package dag builds and validates the task dependency graph of a play.
//
// Within a play every task depends on its immediate predecessor unless it
// declares explicit dependencies, and every notify adds an edge from the
// notifying task to the named handler. The builder checks the result is
// acyclic and produces a deterministic execution order.
package dag
