// Package khop expands seed node sets over a directed edge list to find the
// neighborhood influenced by an unlearning edit.
package khop

import (
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// Expand runs hops rounds of breadth-first expansion starting from seeds.
// Each round follows every directed edge whose source is in the set as it was
// at the start of the round. The result contains the seeds and is sorted.
func Expand(seeds []int, edges models.EdgeIndex, numNodes, hops int) []int {
	frontier := NewVertexSubsetFromIndices(numNodes, seeds)

	for hop := 0; hop < hops; hop++ {
		neighbors := make([]int, 0)
		for i := 0; i < edges.Len(); i++ {
			if frontier.IsIn(edges.Src[i]) {
				neighbors = append(neighbors, edges.Dst[i])
			}
		}
		if frontier.AddVertices(neighbors) == 0 {
			// closed under expansion, further rounds are no-ops
			break
		}
	}

	return frontier.ToSeq()
}

// FindInfluenced returns the hops-neighborhood of seeds with the seeds removed
func FindInfluenced(seeds []int, edges models.EdgeIndex, numNodes, hops int) []int {
	expanded := NewVertexSubsetFromIndices(numNodes, Expand(seeds, edges, numNodes, hops))
	return expanded.Minus(NewVertexSubsetFromIndices(numNodes, seeds))
}
