package plotforge

import (
	"fmt"
)

// DependencyGraph is a module dependency graph: one node per module, one
// edge per declared "requires" relationship (dependent -> dependency).
// Graphs are built fresh per resolution request and never partially
// mutated on failure.
type DependencyGraph struct {
	nodes     []string            // discovery order
	nodeSet   map[string]bool
	adjacency map[string][]string // module -> modules it requires
	edges     [][2]string         // (dependent, dependency) in declaration order
}

// BuildGraph constructs a dependency graph from each module's declared
// requires list. Node order follows the input (discovery) order; duplicate
// names keep their first occurrence.
func BuildGraph(modules []ModuleRequirement) *DependencyGraph {
	g := &DependencyGraph{
		nodeSet:   make(map[string]bool),
		adjacency: make(map[string][]string),
	}
	for _, m := range modules {
		if g.nodeSet[m.Name] {
			continue
		}
		g.nodes = append(g.nodes, m.Name)
		g.nodeSet[m.Name] = true
		g.adjacency[m.Name] = append([]string(nil), m.Requires...)
		for _, dep := range m.Requires {
			g.edges = append(g.edges, [2]string{m.Name, dep})
		}
	}
	return g
}

// Nodes returns the node names in discovery order.
func (g *DependencyGraph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns (dependent, dependency) pairs in declaration order.
func (g *DependencyGraph) Edges() [][2]string {
	return append([][2]string(nil), g.edges...)
}

// CycleReport is the outcome of cycle detection.
type CycleReport struct {
	HasCycles bool
	// Cycles holds each detected cycle as the node sequence starting at the
	// repeated node, e.g. [A B] for A -> B -> A.
	Cycles [][]string
	// AffectedModules is the union of all nodes appearing in any cycle, in
	// first-seen order.
	AffectedModules []string
}

// node colors for the three-state DFS
const (
	colorUnvisited = iota
	colorInProgress
	colorDone
)

// DetectCycles runs an explicit stack-based depth-first traversal with
// three-state marking. A back-edge to an in-progress node signals a cycle;
// the cycle is reconstructed from the current DFS path, truncated at the
// repeated node.
func (g *DependencyGraph) DetectCycles() *CycleReport {
	report := &CycleReport{}
	color := make(map[string]int, len(g.nodes))
	affected := make(map[string]bool)

	type frame struct {
		node string
		next int // index of the next dependency to visit
	}

	for _, start := range g.nodes {
		if color[start] != colorUnvisited {
			continue
		}

		stack := []frame{{node: start}}
		path := []string{start}
		color[start] = colorInProgress

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.adjacency[top.node]

			if top.next >= len(deps) {
				color[top.node] = colorDone
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}

			dep := deps[top.next]
			top.next++

			switch color[dep] {
			case colorUnvisited:
				color[dep] = colorInProgress
				stack = append(stack, frame{node: dep})
				path = append(path, dep)
			case colorInProgress:
				// Back-edge: the cycle is the path suffix starting at dep.
				idx := 0
				for i, n := range path {
					if n == dep {
						idx = i
						break
					}
				}
				cycle := append([]string(nil), path[idx:]...)
				report.Cycles = append(report.Cycles, cycle)
				for _, n := range cycle {
					if !affected[n] {
						affected[n] = true
						report.AffectedModules = append(report.AffectedModules, n)
					}
				}
			case colorDone:
			}
		}
	}

	report.HasCycles = len(report.Cycles) > 0
	return report
}

// TopologicalSort computes a load order in which every dependency precedes
// its dependents, using Kahn's algorithm. The in-degree of a node is the
// number of its declared dependencies; nodes become ready in discovery
// order and newly-freed nodes join the queue tail, so ties break by
// insertion order rather than alphabetically.
//
// Cycle detection runs first: a cyclic graph yields a descriptive error
// rather than a partial order. A dependency on an unknown module is also an
// error.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if report := g.DetectCycles(); report.HasCycles {
		return nil, fmt.Errorf("%w: cycles %v affecting modules %v",
			ErrCircularDependency, report.Cycles, report.AffectedModules)
	}

	for _, node := range g.nodes {
		for _, dep := range g.adjacency[node] {
			if !g.nodeSet[dep] {
				return nil, fmt.Errorf("%w: %s requires %s",
					ErrDependencyMissing, node, dep)
			}
		}
	}

	// Reverse adjacency (dependency -> dependents), built in discovery
	// order so decrements release dependents deterministically.
	dependents := make(map[string][]string, len(g.nodes))
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.adjacency[node])
		for _, dep := range g.adjacency[node] {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range dependents[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("%w: ordered %d of %d modules",
			ErrIncompleteOrder, len(order), len(g.nodes))
	}

	return order, nil
}
