package edgeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// sixNodeGraph: 0-1, 0-2, 1-3, 2-4, 4-5 with directions interleaved
func sixNodeGraph() models.EdgeIndex {
	edges := models.NewEdgeIndex(10)
	edges.AppendUndirected(0, 1)
	edges.AppendUndirected(2, 0)
	edges.AppendUndirected(1, 3)
	edges.AppendUndirected(4, 2)
	edges.AppendUndirected(4, 5)
	return edges
}

func pairSet(e models.EdgeIndex) map[[2]int]int {
	set := make(map[[2]int]int)
	for i := 0; i < e.Len(); i++ {
		set[[2]int{e.Src[i], e.Dst[i]}]++
	}
	return set
}

func TestEncoder_Subsets(t *testing.T) {
	enc := NewEncoder(sixNodeGraph())

	assert.Equal(t, []int{0, 3, 4, 7, 8}, enc.Canonical())
	assert.Equal(t, []int{1, 2, 5, 6, 9}, enc.Reversed())
}

func TestEncoder_KeyIsInjective(t *testing.T) {
	edges := sixNodeGraph()
	enc := NewEncoder(edges)

	seen := make(map[int64][2]int)
	for u := 0; u < 6; u++ {
		for v := 0; v < 6; v++ {
			key := enc.Key(u, v)
			prev, dup := seen[key]
			require.False(t, dup, "key collision between %v and %v", prev, [2]int{u, v})
			seen[key] = [2]int{u, v}
		}
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		edges models.EdgeIndex
	}{
		{"six nodes", sixNodeGraph()},
		{"empty", models.NewEdgeIndex(0)},
		{"single edge reversed first", models.EdgeIndex{Src: []int{7, 3}, Dst: []int{3, 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(tt.edges)
			positions := enc.Reconstruct(enc.Canonical())

			want := make([]int, tt.edges.Len())
			for i := range want {
				want[i] = i
			}
			assert.Equal(t, want, positions)
			assert.Equal(t, tt.edges, enc.Select(positions))
		})
	}
}

func TestEncoder_WithoutNodes(t *testing.T) {
	edges := sixNodeGraph()
	enc := NewEncoder(edges)

	out := enc.WithoutNodes([]int{2})
	pairs := pairSet(out)

	assert.Equal(t, 6, out.Len())
	for pair := range pairs {
		assert.NotEqual(t, 2, pair[0])
		assert.NotEqual(t, 2, pair[1])
	}
	assert.Contains(t, pairs, [2]int{4, 5})
	assert.Contains(t, pairs, [2]int{5, 4})

	// original is untouched
	assert.Equal(t, sixNodeGraph(), edges)
}

func TestEncoder_WithoutNodesEmpty(t *testing.T) {
	edges := sixNodeGraph()
	enc := NewEncoder(edges)

	assert.Equal(t, pairSet(edges), pairSet(enc.WithoutNodes(nil)))
}

func TestEncoder_WithoutEdges(t *testing.T) {
	edges := sixNodeGraph()
	enc := NewEncoder(edges)

	// canonical position 4 is 1->3, position 8 is 4->5
	out := enc.WithoutEdges([]int{4, 8})
	pairs := pairSet(out)

	assert.Equal(t, 6, out.Len())
	for _, removed := range [][2]int{{1, 3}, {3, 1}, {4, 5}, {5, 4}} {
		assert.NotContains(t, pairs, removed)
	}
	assert.Contains(t, pairs, [2]int{0, 1})
	assert.Contains(t, pairs, [2]int{1, 0})
}

func TestEncoder_SelfLoopsDropped(t *testing.T) {
	edges := models.EdgeIndex{Src: []int{0, 1, 1}, Dst: []int{1, 0, 1}}
	enc := NewEncoder(edges)

	assert.Equal(t, []int{0, 1}, enc.Reconstruct(enc.Canonical()))
}
