// Package playbook implements the playbook half of the parsing front end:
// the model builder that turns raw YAML nodes into typed plays, the
// include/import resolver that expands directives inside an active variable
// scope, and the template pass that resolves every task's arguments and
// conditions. The pipeline is single-threaded per parse; independent parses
// share nothing and may run fully in parallel.
package playbook
