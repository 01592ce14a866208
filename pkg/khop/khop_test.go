package khop

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// path 0-1-2-3-4-5 plus a separate component 6-7
func pathGraph() models.EdgeIndex {
	edges := models.NewEdgeIndex(12)
	for i := 0; i < 5; i++ {
		edges.AppendUndirected(i, i+1)
	}
	edges.AppendUndirected(6, 7)
	return edges
}

func TestExpand_Path(t *testing.T) {
	edges := pathGraph()

	tests := []struct {
		name  string
		seeds []int
		hops  int
		want  []int
	}{
		{"zero hops", []int{2}, 0, []int{2}},
		{"one hop", []int{2}, 1, []int{1, 2, 3}},
		{"two hops", []int{0}, 2, []int{0, 1, 2}},
		{"three hops", []int{0}, 3, []int{0, 1, 2, 3}},
		{"two seeds", []int{0, 6}, 1, []int{0, 1, 6, 7}},
		{"duplicate seeds", []int{5, 5}, 1, []int{4, 5}},
		{"empty seeds", nil, 3, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.seeds, edges, 8, tt.hops))
		})
	}
}

func TestFindInfluenced_ExcludesSeeds(t *testing.T) {
	edges := pathGraph()

	got := FindInfluenced([]int{2, 3}, edges, 8, 2)
	assert.Equal(t, []int{0, 1, 4, 5}, got)

	assert.Empty(t, FindInfluenced(nil, edges, 8, 2))
}

func TestFindInfluenced_RespectsDirection(t *testing.T) {
	// only 0->1->2, no reverse edges
	edges := models.EdgeIndex{Src: []int{0, 1}, Dst: []int{1, 2}}

	assert.Equal(t, []int{1, 2}, FindInfluenced([]int{0}, edges, 3, 3))
	assert.Empty(t, FindInfluenced([]int{2}, edges, 3, 3))
}

func TestFindInfluenced_IdempotentBeyondClosure(t *testing.T) {
	edges := pathGraph()

	// component {6,7} is closed after one hop
	atBound := FindInfluenced([]int{6}, edges, 8, 1)
	beyond := FindInfluenced([]int{6}, edges, 8, 2)
	assert.Equal(t, atBound, beyond)
	assert.Equal(t, []int{7}, beyond)

	// the whole path is reached after five hops
	assert.Equal(t, FindInfluenced([]int{0}, edges, 8, 5), FindInfluenced([]int{0}, edges, 8, 9))
}

// gonumKHop computes the same neighborhood with gonum's breadth-first traversal
func gonumKHop(t *testing.T, edges models.EdgeIndex, numNodes int, seeds []int, hops int) []int {
	t.Helper()

	g := simple.NewDirectedGraph()
	for i := 0; i < numNodes; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < edges.Len(); i++ {
		if edges.Src[i] == edges.Dst[i] {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(edges.Src[i]), simple.Node(edges.Dst[i])))
	}

	reached := make([]bool, numNodes)
	for _, s := range seeds {
		bf := traverse.BreadthFirst{}
		bf.Walk(g, simple.Node(s), func(n graph.Node, d int) bool {
			if d > hops {
				return true
			}
			reached[n.ID()] = true
			return false
		})
	}
	return models.MaskToIndices(reached)
}

func TestExpand_MatchesGonumBreadthFirst(t *testing.T) {
	const numNodes = 60
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 20; trial++ {
		t.Run(fmt.Sprintf("trial_%d", trial), func(t *testing.T) {
			edges := models.NewEdgeIndex(0)
			seen := make(map[[2]int]bool)
			for len(seen) < 80 {
				u, v := rng.IntN(numNodes), rng.IntN(numNodes)
				if u == v || seen[[2]int{u, v}] || seen[[2]int{v, u}] {
					continue
				}
				seen[[2]int{u, v}] = true
				edges.AppendUndirected(u, v)
			}
			seeds := []int{rng.IntN(numNodes), rng.IntN(numNodes)}
			hops := 1 + rng.IntN(3)

			want := gonumKHop(t, edges, numNodes, seeds, hops)
			require.Equal(t, want, Expand(seeds, edges, numNodes, hops))
		})
	}
}

func TestVertexSubset(t *testing.T) {
	vs := NewVertexSubset(5)
	assert.Equal(t, 2, vs.AddVertices([]int{3, 1, 3, -1, 9}))
	assert.Equal(t, 2, vs.Size())
	assert.True(t, vs.IsIn(3))
	assert.False(t, vs.IsIn(9))

	assert.Equal(t, []int{1, 3}, vs.ToSeq())
	// sparse lookups after conversion
	assert.True(t, vs.IsIn(1))
	assert.False(t, vs.IsIn(2))

	other := NewVertexSubsetFromIndices(5, []int{3})
	assert.Equal(t, []int{1}, vs.Minus(other))
}
