package edgeset

import (
	"sort"

	"github.com/tidwall/btree"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// Encoder splits a directed edge list into canonical (src < dst) and reversed
// (src > dst) positions and rebuilds edge sets from retained canonical edges.
// Positions always refer to the edge list the encoder was built from.
type Encoder struct {
	edges     models.EdgeIndex
	canonical []int
	reversed  []int

	// reversed edge key (dst*M + src) -> position, ordered for binary-search lookup
	reverseIndex *btree.Map[int64, int]
}

// NewEncoder indexes the given edge list. Self-loops belong to neither subset.
func NewEncoder(edges models.EdgeIndex) *Encoder {
	enc := &Encoder{
		edges:        edges,
		canonical:    make([]int, 0, edges.Len()/2),
		reversed:     make([]int, 0, edges.Len()/2),
		reverseIndex: btree.NewMap[int64, int](0),
	}

	for i := 0; i < edges.Len(); i++ {
		src, dst := edges.Src[i], edges.Dst[i]
		switch {
		case src < dst:
			enc.canonical = append(enc.canonical, i)
		case src > dst:
			enc.reversed = append(enc.reversed, i)
			// keep the first position for duplicated directed entries
			key := enc.Key(dst, src)
			if _, exists := enc.reverseIndex.Get(key); !exists {
				enc.reverseIndex.Set(key, i)
			}
		}
	}

	return enc
}

// Key encodes a (source, target) pair; 2*|edges| as multiplier keeps keys unique
func (enc *Encoder) Key(src, dst int) int64 {
	return int64(src)*2*int64(enc.edges.Len()) + int64(dst)
}

// Edges returns the indexed edge list
func (enc *Encoder) Edges() models.EdgeIndex {
	return enc.edges
}

// Canonical returns positions of unique undirected edges (src < dst), ascending
func (enc *Encoder) Canonical() []int {
	return append([]int(nil), enc.canonical...)
}

// Reversed returns positions of the complementary direction (src > dst), ascending
func (enc *Encoder) Reversed() []int {
	return append([]int(nil), enc.reversed...)
}

// RetainWithoutNodes returns canonical positions whose endpoints are both outside nodes
func (enc *Encoder) RetainWithoutNodes(nodes []int) []int {
	excluded := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		excluded[n] = true
	}

	retained := make([]int, 0, len(enc.canonical))
	for _, pos := range enc.canonical {
		if excluded[enc.edges.Src[pos]] || excluded[enc.edges.Dst[pos]] {
			continue
		}
		retained = append(retained, pos)
	}
	return retained
}

// RetainWithoutPositions returns canonical positions not listed in removed (setdiff), ascending
func (enc *Encoder) RetainWithoutPositions(removed []int) []int {
	drop := make(map[int]bool, len(removed))
	for _, pos := range removed {
		drop[pos] = true
	}

	retained := make([]int, 0, len(enc.canonical))
	for _, pos := range enc.canonical {
		if !drop[pos] {
			retained = append(retained, pos)
		}
	}
	return retained
}

// Reconstruct adds the reversed partner of every retained canonical edge and
// returns the sorted union of both position sets.
func (enc *Encoder) Reconstruct(retained []int) []int {
	union := make(map[int]bool, 2*len(retained))
	for _, pos := range retained {
		union[pos] = true

		key := enc.Key(enc.edges.Src[pos], enc.edges.Dst[pos])
		if partner, ok := enc.reverseIndex.Get(key); ok {
			union[partner] = true
		}
	}

	positions := make([]int, 0, len(union))
	for pos := range union {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions
}

// Select materializes the directed edges at the given positions, in order
func (enc *Encoder) Select(positions []int) models.EdgeIndex {
	out := models.NewEdgeIndex(len(positions))
	for _, pos := range positions {
		out.Append(enc.edges.Src[pos], enc.edges.Dst[pos])
	}
	return out
}

// WithoutNodes rebuilds the edge list without any edge touching nodes
func (enc *Encoder) WithoutNodes(nodes []int) models.EdgeIndex {
	return enc.Select(enc.Reconstruct(enc.RetainWithoutNodes(nodes)))
}

// WithoutEdges rebuilds the edge list without the given canonical positions (both directions)
func (enc *Encoder) WithoutEdges(positions []int) models.EdgeIndex {
	return enc.Select(enc.Reconstruct(enc.RetainWithoutPositions(positions)))
}
