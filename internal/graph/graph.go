// Package graph builds the dependency graph of a lifecycle run.
//
// A Graph holds two views over the same key set. In the forward view a
// node's edges point at the nodes it depends on; in the backward view they
// point at the nodes that depend on it. Each view also carries an order in
// which every node appears after all of its edge targets, so walking the
// forward view starts dependencies first and walking the backward view
// stops dependents first.
package graph

// Node is one key in a view together with its ordered adjacency.
type Node[K comparable] struct {
	Key   K
	Edges []*Node[K]

	index int
}

// Index is the position of the node in its view's Nodes slice.
func (n *Node[K]) Index() int { return n.index }

// View is one direction of a Graph.
type View[K comparable] struct {
	nodes []*Node[K]
	byKey map[K]*Node[K]
	order []*Node[K]
}

// Nodes returns the nodes in input key order.
func (v *View[K]) Nodes() []*Node[K] { return v.nodes }

// Order returns the nodes so that each follows every node it has an edge to.
func (v *View[K]) Order() []*Node[K] { return v.order }

// Node looks up the node for key.
func (v *View[K]) Node(key K) (*Node[K], bool) {
	n, ok := v.byKey[key]
	return n, ok
}

// Len returns the number of nodes.
func (v *View[K]) Len() int { return len(v.nodes) }

// Graph is an immutable, acyclic dependency graph.
type Graph[K comparable] struct {
	keys     []K
	forward  *View[K]
	backward *View[K]
	levels   []int
}

// Build creates a graph over keys where deps(k) lists the keys k depends on.
//
// Every key returned by deps must be in keys; duplicates in keys or in a
// single deps list are rejected. Construction is all or nothing: on error
// no graph is returned.
func Build[K comparable](keys []K, deps func(K) []K) (*Graph[K], error) {
	byKey := make(map[K]int, len(keys))
	for i, k := range keys {
		if _, dup := byKey[k]; dup {
			return nil, invalidf("duplicate key %v", k)
		}
		byKey[k] = i
	}

	fwd := newView(keys)
	bwd := newView(keys)

	// One pass over the edges fills both directions.
	for i, k := range keys {
		if deps == nil {
			break
		}
		targets := deps(k)
		var seen map[K]struct{}
		if len(targets) > 1 {
			seen = make(map[K]struct{}, len(targets))
		}
		for _, d := range targets {
			j, ok := byKey[d]
			if !ok {
				return nil, unresolvable(k, d)
			}
			if seen != nil {
				if _, dup := seen[d]; dup {
					return nil, invalidf("%v depends on %v twice", k, d)
				}
				seen[d] = struct{}{}
			}
			fwd.nodes[i].Edges = append(fwd.nodes[i].Edges, fwd.nodes[j])
			bwd.nodes[j].Edges = append(bwd.nodes[j].Edges, bwd.nodes[i])
		}
	}

	order, err := topoOrder(fwd.nodes)
	if err != nil {
		return nil, err
	}

	fwd.order = make([]*Node[K], len(order))
	bwd.order = make([]*Node[K], len(order))
	for i, idx := range order {
		fwd.order[i] = fwd.nodes[idx]
		bwd.order[len(order)-1-i] = bwd.nodes[idx]
	}

	levels := make([]int, len(keys))
	for _, idx := range order {
		for _, dep := range fwd.nodes[idx].Edges {
			if l := levels[dep.index] + 1; l > levels[idx] {
				levels[idx] = l
			}
		}
	}

	return &Graph[K]{
		keys:     append([]K(nil), keys...),
		forward:  fwd,
		backward: bwd,
		levels:   levels,
	}, nil
}

func newView[K comparable](keys []K) *View[K] {
	v := &View[K]{
		nodes: make([]*Node[K], len(keys)),
		byKey: make(map[K]*Node[K], len(keys)),
	}
	for i, k := range keys {
		n := &Node[K]{Key: k, index: i}
		v.nodes[i] = n
		v.byKey[k] = n
	}
	return v
}

// topoOrder runs a white/grey/black DFS over the edges in input order and
// returns the postorder, which lists dependencies before dependents. A back
// edge into a grey node is reported as a cycle.
func topoOrder[K comparable](nodes []*Node[K]) ([]int, error) {
	const (
		white = iota
		grey
		black
	)

	color := make([]int, len(nodes))
	stack := make([]int, 0, len(nodes))
	order := make([]int, 0, len(nodes))

	var visit func(u int) error
	visit = func(u int) error {
		color[u] = grey
		stack = append(stack, u)
		for _, e := range nodes[u].Edges {
			v := e.index
			switch color[v] {
			case white:
				if err := visit(v); err != nil {
					return err
				}
			case grey:
				start := len(stack) - 1
				for stack[start] != v {
					start--
				}
				path := make([]K, 0, len(stack)-start+1)
				for _, idx := range stack[start:] {
					path = append(path, nodes[idx].Key)
				}
				path = append(path, nodes[v].Key)
				return cycleError(path)
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		order = append(order, u)
		return nil
	}

	for i := range nodes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// Forward returns the depends-on view.
func (g *Graph[K]) Forward() *View[K] { return g.forward }

// Backward returns the depended-on-by view.
func (g *Graph[K]) Backward() *View[K] { return g.backward }

// Len returns the number of keys.
func (g *Graph[K]) Len() int { return len(g.keys) }

// Keys returns the keys in input order.
func (g *Graph[K]) Keys() []K { return append([]K(nil), g.keys...) }

// Order returns the keys dependencies first.
func (g *Graph[K]) Order() []K {
	out := make([]K, len(g.forward.order))
	for i, n := range g.forward.order {
		out[i] = n.Key
	}
	return out
}

// Dependencies returns the keys that key depends on, in declaration order.
func (g *Graph[K]) Dependencies(key K) []K {
	return edgeKeys(g.forward, key)
}

// Dependents returns the keys that depend on key.
func (g *Graph[K]) Dependents(key K) []K {
	return edgeKeys(g.backward, key)
}

func edgeKeys[K comparable](v *View[K], key K) []K {
	n, ok := v.byKey[key]
	if !ok {
		return nil
	}
	out := make([]K, len(n.Edges))
	for i, e := range n.Edges {
		out[i] = e.Key
	}
	return out
}

// Levels returns the longest path from each key down to a key without
// dependencies. Keys without dependencies are at level 0.
func (g *Graph[K]) Levels() map[K]int {
	out := make(map[K]int, len(g.keys))
	for i, k := range g.keys {
		out[k] = g.levels[i]
	}
	return out
}

// Waves groups the keys by level, each wave in input order. Every key's
// dependencies are in earlier waves.
func (g *Graph[K]) Waves() [][]K {
	var waves [][]K
	for i, k := range g.keys {
		l := g.levels[i]
		for len(waves) <= l {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], k)
	}
	return waves
}
