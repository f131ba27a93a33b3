package agentflow

import (
	"fmt"
	"sort"
)

// Edge wires one step to the next.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// GraphOptions are used to configure a graph.
type GraphOptions struct {
	Name  string
	Entry string
	Nodes []Node
	Edges []Edge
}

// Graph is an immutable, validated mapping from step names to nodes plus
// the static edges between them. It is constructed once during process
// initialization and shared by reference across runs; there is no run-time
// mutation of nodes or edges. Every node has at most one outgoing edge, so
// execution order is fully determined by the entry step.
type Graph struct {
	name        string
	entry       string
	nodesByName map[string]Node
	successors  map[string]string
}

// NewGraph validates the wiring and returns a new Graph. All wiring
// mistakes (duplicate or unnamed nodes, edges to unregistered steps, more
// than one outgoing edge, cycles, a missing entry step) are configuration
// errors reported here, never at run time.
func NewGraph(opts GraphOptions) (*Graph, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("graph name required")
	}
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("graph must have at least one node")
	}

	nodesByName := make(map[string]Node, len(opts.Nodes))
	for _, node := range opts.Nodes {
		name := node.Name()
		if name == "" {
			return nil, fmt.Errorf("node name required")
		}
		if _, ok := nodesByName[name]; ok {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		nodesByName[name] = node
	}

	if opts.Entry == "" {
		return nil, fmt.Errorf("graph entry step required")
	}
	if _, ok := nodesByName[opts.Entry]; !ok {
		return nil, fmt.Errorf("entry step %q not registered", opts.Entry)
	}

	successors := make(map[string]string, len(opts.Edges))
	for _, edge := range opts.Edges {
		if _, ok := nodesByName[edge.From]; !ok {
			return nil, fmt.Errorf("edge from unregistered step %q", edge.From)
		}
		if _, ok := nodesByName[edge.To]; !ok {
			return nil, fmt.Errorf("edge to unregistered step %q", edge.To)
		}
		if prior, ok := successors[edge.From]; ok {
			return nil, fmt.Errorf("step %q has multiple outgoing edges (%q and %q)", edge.From, prior, edge.To)
		}
		successors[edge.From] = edge.To
	}

	g := &Graph{
		name:        opts.Name,
		entry:       opts.Entry,
		nodesByName: nodesByName,
		successors:  successors,
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkAcyclic walks from the entry step. With at most one outgoing edge
// per step, any revisit is a cycle.
func (g *Graph) checkAcyclic() error {
	visited := map[string]bool{}
	current := g.entry
	for {
		if visited[current] {
			return fmt.Errorf("cycle detected at step %q", current)
		}
		visited[current] = true
		next, ok := g.successors[current]
		if !ok {
			return nil
		}
		current = next
	}
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Entry returns the name of the entry step.
func (g *Graph) Entry() string {
	return g.entry
}

// Node returns a registered node by name.
func (g *Graph) Node(name string) (Node, bool) {
	node, ok := g.nodesByName[name]
	return node, ok
}

// Successor returns the name of the step following the given one. The
// second return is false for terminal steps.
func (g *Graph) Successor(name string) (string, bool) {
	next, ok := g.successors[name]
	return next, ok
}

// NodeNames returns the names of all registered nodes, sorted.
func (g *Graph) NodeNames() []string {
	names := make([]string, 0, len(g.nodesByName))
	for name := range g.nodesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
