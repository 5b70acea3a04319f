package dag

import "fmt"

// Graph is a directed dependency graph over string ids. Insertion order is
// retained so traversal results are deterministic for the same input.
type Graph struct {
	nodes map[string]*node
	order []string
}

// node is one vertex. It is un-exported so callers interact with the graph
// through ids, not by direct struct manipulation.
type node struct {
	id string
	// deps holds the nodes this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the nodes that depend on this node (successors).
	dependents map[string]*node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a vertex. Adding an existing id is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
}

// HasNode reports whether id is a vertex.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge records that `from` depends on `to`. Both ids must already be
// vertices.
func (g *Graph) AddEdge(from, to string) error {
	fn, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("unknown node %q", from)
	}
	tn, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("unknown node %q", to)
	}
	fn.deps[to] = tn
	tn.dependents[from] = fn
	return nil
}

// DetectCycle finds one dependency cycle using DFS and returns the ids along
// it, or nil when the graph is acyclic.
func (g *Graph) DetectCycle() []string {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var chain []string
	var cycle []string

	var visit func(n *node) bool
	visit = func(n *node) bool {
		visiting[n.id] = true
		chain = append(chain, n.id)
		for _, depID := range g.sortedDeps(n) {
			dep := n.deps[depID]
			if visiting[dep.id] {
				cycle = cycleFrom(append(chain, dep.id), dep.id)
				return true
			}
			if !visited[dep.id] {
				if visit(dep) {
					return true
				}
			}
		}
		chain = chain[:len(chain)-1]
		delete(visiting, n.id)
		visited[n.id] = true
		return false
	}

	for _, id := range g.order {
		if !visited[id] {
			if visit(g.nodes[id]) {
				return cycle
			}
		}
	}
	return nil
}

// TopoOrder returns a topological order: every node after all its
// dependencies, ties broken by insertion order. Call only after DetectCycle
// returned nil.
func (g *Graph) TopoOrder() []string {
	emitted := make(map[string]bool, len(g.nodes))
	out := make([]string, 0, len(g.nodes))

	for len(out) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if emitted[id] {
				continue
			}
			n := g.nodes[id]
			ready := true
			for depID := range n.deps {
				if !emitted[depID] {
					ready = false
					break
				}
			}
			if ready {
				emitted[id] = true
				out = append(out, id)
				progressed = true
			}
		}
		if !progressed {
			// Unreachable for an acyclic graph.
			break
		}
	}
	return out
}

// sortedDeps returns a node's dependency ids in insertion order of the
// graph, keeping DFS deterministic despite map iteration.
func (g *Graph) sortedDeps(n *node) []string {
	out := make([]string, 0, len(n.deps))
	for _, id := range g.order {
		if _, ok := n.deps[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// cycleFrom trims a DFS chain to the segment starting at the repeated id.
func cycleFrom(chain []string, start string) []string {
	for i, id := range chain {
		if id == start {
			return append([]string(nil), chain[i:]...)
		}
	}
	return chain
}
