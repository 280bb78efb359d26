// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. The orchestrator uses it to check that unit references
// can be satisfied and to propose a valid unit order when they cannot.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError[K ~string] struct {
		// Cycle lists the nodes of one cycle in edge order, with the first node
		// repeated at the end (A -> B -> A).
		Cycle []K
	}

	// Graph is a directed graph for topological sorting.
	// Edges represent "must run before" relationships: an edge from A to B
	// means A must complete before B starts.
	Graph[K ~string] struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[K][]K
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []K
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[K]bool
	}
)

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = string(n)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is for programmatic detection.
func (e *CycleError[K]) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New[K ~string]() *Graph[K] {
	return &Graph[K]{
		adjacency: make(map[K][]K),
		nodeSet:   make(map[K]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph[K]) AddNode(name K) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Both nodes are implicitly added if they don't exist. Repeated edges are ignored.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Has reports whether name is a node of the graph.
func (g *Graph[K]) Has(name K) bool { return g.nodeSet[name] }

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns *CycleError if the graph contains a cycle.
// The returned order is deterministic: whenever several nodes are ready, the
// one added to the graph first is emitted first, so an already valid
// insertion order is returned unchanged.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	position := make(map[K]int, len(g.nodes))
	inDegree := make(map[K]int, len(g.nodes))
	for i, node := range g.nodes {
		position[node] = i
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	var ready []K
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			ready = append(ready, node)
		}
	}

	result := make([]K, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pick the earliest-inserted ready node.
		best := 0
		for i := 1; i < len(ready); i++ {
			if position[ready[i]] < position[ready[best]] {
				best = i
			}
		}
		node := ready[best]
		ready = slices.Delete(ready, best, best+1)
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError[K]{Cycle: g.findCycle(inDegree)}
	}
	return result, nil
}

// findCycle walks the nodes Kahn's algorithm could not emit and returns one
// concrete cycle among them. Every such node has an unemitted predecessor, so
// following predecessors must eventually revisit a node.
func (g *Graph[K]) findCycle(inDegree map[K]int) []K {
	stuck := make(map[K]bool)
	for _, node := range g.nodes {
		if inDegree[node] > 0 {
			stuck[node] = true
		}
	}

	predecessor := make(map[K]K)
	for _, from := range g.nodes {
		if !stuck[from] {
			continue
		}
		for _, to := range g.adjacency[from] {
			if _, seen := predecessor[to]; !seen && stuck[to] {
				predecessor[to] = from
			}
		}
	}

	var start K
	for _, node := range g.nodes {
		if stuck[node] {
			start = node
			break
		}
	}

	visited := make(map[K]int)
	var walk []K
	for node := start; ; node = predecessor[node] {
		if i, ok := visited[node]; ok {
			cycle := slices.Clone(walk[i:])
			slices.Reverse(cycle)
			// Start the report at the earliest-inserted member.
			first := 0
			for j, n := range cycle {
				if slices.Index(g.nodes, n) < slices.Index(g.nodes, cycle[first]) {
					first = j
				}
			}
			cycle = slices.Concat(cycle[first:], cycle[:first])
			return append(cycle, cycle[0])
		}
		visited[node] = len(walk)
		walk = append(walk, node)
	}
}
