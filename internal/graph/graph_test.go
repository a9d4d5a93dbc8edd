package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depsOf(m map[string][]string) func(string) []string {
	return func(k string) []string { return m[k] }
}

func keysOf(nodes []*Node[string]) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out
}

func TestBuild_Views(t *testing.T) {
	// d depends on b and c, both depend on a.
	deps := map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}
	g, err := Build([]string{"a", "b", "c", "d"}, depsOf(deps))
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.Keys())
	assert.Equal(t, []string{"b", "c"}, g.Dependencies("d"))
	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
	assert.Empty(t, g.Dependents("d"))

	// Same node set and mirrored edges in both views.
	fwd, bwd := g.Forward(), g.Backward()
	require.Equal(t, fwd.Len(), bwd.Len())
	for _, n := range fwd.Nodes() {
		for _, e := range n.Edges {
			back, ok := bwd.Node(e.Key)
			require.True(t, ok)
			assert.Contains(t, keysOf(back.Edges), n.Key)
		}
	}
	for i, n := range fwd.Nodes() {
		assert.Equal(t, i, n.Index())
	}
}

func TestBuild_Order(t *testing.T) {
	deps := map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}
	g, err := Build([]string{"d", "c", "b", "a"}, depsOf(deps))
	require.NoError(t, err)

	assertAfterEdges(t, g.Forward())
	assertAfterEdges(t, g.Backward())
	assert.Equal(t, "a", g.Order()[0])
	assert.Equal(t, "d", g.Order()[3])
	assert.Equal(t, "d", g.Backward().Order()[0].Key)
}

func assertAfterEdges(t *testing.T, v *View[string]) {
	t.Helper()
	pos := make(map[string]int)
	for i, n := range v.Order() {
		pos[n.Key] = i
	}
	require.Len(t, pos, v.Len())
	for _, n := range v.Nodes() {
		for _, e := range n.Edges {
			assert.Less(t, pos[e.Key], pos[n.Key], "%s must come after %s", n.Key, e.Key)
		}
	}
}

func TestBuild_Levels(t *testing.T) {
	deps := map[string][]string{
		"b": {"a"},
		"c": {"b"},
		"d": {"a", "c"},
		"e": nil,
	}
	g, err := Build([]string{"a", "b", "c", "d", "e"}, depsOf(deps))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2, "d": 3, "e": 0}, g.Levels())
	assert.Equal(t, [][]string{{"a", "e"}, {"b"}, {"c"}, {"d"}}, g.Waves())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		deps     map[string][]string
		wantKind error
		wantMsg  string
	}{
		{
			name:     "unknown dependency",
			keys:     []string{"a"},
			deps:     map[string][]string{"a": {"ghost"}},
			wantKind: ErrUnresolvable,
			wantMsg:  "graph is not complete: a depends on unknown ghost",
		},
		{
			name:     "duplicate key",
			keys:     []string{"a", "a"},
			wantKind: ErrInvalidGraph,
		},
		{
			name:     "duplicate edge",
			keys:     []string{"a", "b"},
			deps:     map[string][]string{"b": {"a", "a"}},
			wantKind: ErrInvalidGraph,
		},
		{
			name:     "self loop",
			keys:     []string{"a"},
			deps:     map[string][]string{"a": {"a"}},
			wantKind: ErrCycle,
			wantMsg:  "cycle detected: a -> a",
		},
		{
			name:     "two cycle",
			keys:     []string{"a", "b"},
			deps:     map[string][]string{"a": {"b"}, "b": {"a"}},
			wantKind: ErrCycle,
			wantMsg:  "cycle detected: a -> b -> a",
		},
		{
			name:     "three cycle behind a tail",
			keys:     []string{"root", "x", "y", "z"},
			deps:     map[string][]string{"root": {"x"}, "x": {"y"}, "y": {"z"}, "z": {"x"}},
			wantKind: ErrCycle,
			wantMsg:  "cycle detected: x -> y -> z -> x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Build(tt.keys, depsOf(tt.deps))
			assert.Nil(t, g)
			require.ErrorIs(t, err, tt.wantKind)
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			}

			var gerr *Error
			require.True(t, errors.As(err, &gerr))
			if tt.wantKind == ErrCycle {
				assert.Equal(t, gerr.Path[0], gerr.Path[len(gerr.Path)-1])
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build[string](nil, nil)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Order())
	assert.Empty(t, g.Waves())
}

func TestBuild_RandomDAG(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(60)
		keys := make([]int, n)
		deps := make(map[int][]int, n)
		for i := range keys {
			keys[i] = i
			// Edges only to lower keys keep the graph acyclic.
			for j := 0; j < i; j++ {
				if rng.Intn(4) == 0 {
					deps[i] = append(deps[i], j)
				}
			}
		}
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

		g, err := Build(keys, func(k int) []int { return deps[k] })
		require.NoError(t, err, fmt.Sprintf("round %d", round))

		pos := make(map[int]int, n)
		for i, k := range g.Order() {
			pos[k] = i
		}
		for k, ds := range deps {
			for _, d := range ds {
				assert.Less(t, pos[d], pos[k])
			}
		}
	}
}
