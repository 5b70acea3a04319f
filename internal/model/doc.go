// Package model defines the typed intermediate representation produced by the
// parsing front end: plays, tasks, handlers, include markers and the resolved
// playbook container. The model is built untemplated, mutated exactly twice
// (template resolution fills in args and conditions, graph linking fills in
// dependencies and ordering) and is immutable afterward.
package model
