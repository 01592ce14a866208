package models

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// EdgeIndex stores a directed edge list as two parallel arrays.
// Every undirected edge is expected twice: u->v and v->u.
type EdgeIndex struct {
	Src []int `json:"src" yaml:"src"`
	Dst []int `json:"dst" yaml:"dst"`
}

// NewEdgeIndex creates an edge index with room for n directed edges
func NewEdgeIndex(n int) EdgeIndex {
	return EdgeIndex{
		Src: make([]int, 0, n),
		Dst: make([]int, 0, n),
	}
}

// Len returns the number of directed edges
func (e EdgeIndex) Len() int {
	return len(e.Src)
}

// Append adds a single directed edge
func (e *EdgeIndex) Append(src, dst int) {
	e.Src = append(e.Src, src)
	e.Dst = append(e.Dst, dst)
}

// AppendUndirected adds both directions of an undirected edge
func (e *EdgeIndex) AppendUndirected(u, v int) {
	e.Append(u, v)
	e.Append(v, u)
}

// Clone creates a deep copy of the edge index
func (e EdgeIndex) Clone() EdgeIndex {
	clone := EdgeIndex{
		Src: make([]int, len(e.Src)),
		Dst: make([]int, len(e.Dst)),
	}
	copy(clone.Src, e.Src)
	copy(clone.Dst, e.Dst)
	return clone
}

// Graph is a node-classification dataset: structure, features, labels and split masks
type Graph struct {
	Name      string
	NumNodes  int
	Edges     EdgeIndex
	Features  *mat.Dense // NumNodes x NumFeatures
	Labels    []int
	TrainMask []bool
	TestMask  []bool

	// Predefined split shipped with the dataset, if any
	TrainIndices []int
	TestIndices  []int
}

// NumEdges returns the number of directed edges
func (g *Graph) NumEdges() int {
	return g.Edges.Len()
}

// NumFeatures returns the feature dimension
func (g *Graph) NumFeatures() int {
	if g.Features == nil {
		return 0
	}
	_, c := g.Features.Dims()
	return c
}

// NumClasses returns the number of distinct labels
func (g *Graph) NumClasses() int {
	seen := make(map[int]bool)
	for _, y := range g.Labels {
		seen[y] = true
	}
	return len(seen)
}

// HasPredefinedSplit reports whether the dataset carries its own train/test split
func (g *Graph) HasPredefinedSplit() bool {
	return len(g.TrainIndices) > 0 && len(g.TestIndices) > 0
}

// ApplySplit sets the train/test masks from index lists
func (g *Graph) ApplySplit(train, test []int) {
	g.TrainMask = IndicesToMask(train, g.NumNodes)
	g.TestMask = IndicesToMask(test, g.NumNodes)
}

// Clone creates a deep copy of the graph
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		Name:         g.Name,
		NumNodes:     g.NumNodes,
		Edges:        g.Edges.Clone(),
		Labels:       append([]int(nil), g.Labels...),
		TrainMask:    append([]bool(nil), g.TrainMask...),
		TestMask:     append([]bool(nil), g.TestMask...),
		TrainIndices: append([]int(nil), g.TrainIndices...),
		TestIndices:  append([]int(nil), g.TestIndices...),
	}
	if g.Features != nil {
		clone.Features = mat.DenseCopyOf(g.Features)
	}
	return clone
}

// IndicesToMask converts index lists to a boolean mask of length n
func IndicesToMask(indices []int, n int) []bool {
	mask := make([]bool, n)
	for _, i := range indices {
		if i >= 0 && i < n {
			mask[i] = true
		}
	}
	return mask
}

// MaskToIndices returns the positions set in mask, ascending
func MaskToIndices(mask []bool) []int {
	indices := make([]int, 0)
	for i, set := range mask {
		if set {
			indices = append(indices, i)
		}
	}
	return indices
}

// Task identifies what kind of element is unlearned
type Task string

const (
	TaskNode    Task = "node"
	TaskEdge    Task = "edge"
	TaskFeature Task = "feature"
)

// ParseTask validates an unlearning task name
func ParseTask(s string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(s))) {
	case TaskNode:
		return TaskNode, nil
	case TaskEdge:
		return TaskEdge, nil
	case TaskFeature:
		return TaskFeature, nil
	}
	return "", ValidationError{Field: "unlearn_task", Message: "must be one of node, edge, feature", Value: s}
}

// Selection lists the nodes touched by an unlearning request.
// Exactly one of Deleted/Feature is populated depending on the task.
type Selection struct {
	Deleted   []int `json:"deleted_nodes" yaml:"deleted_nodes"`
	Feature   []int `json:"feature_nodes" yaml:"feature_nodes"`
	Influence []int `json:"influence_nodes" yaml:"influence_nodes"`
}

// Summary renders set sizes for logging
func (s Selection) Summary() string {
	return fmt.Sprintf("deleted=%d feature=%d influence=%d", len(s.Deleted), len(s.Feature), len(s.Influence))
}

// UnlearnedGraph is the post-edit view kept alongside the original graph
type UnlearnedGraph struct {
	Edges    EdgeIndex
	Features *mat.Dense
}

// SortedUnique returns a sorted copy of xs without duplicates
func SortedUnique(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	n := 0
	for i, x := range out {
		if i == 0 || x != out[n-1] {
			out[n] = x
			n++
		}
	}
	return out[:n]
}

// ValidationError represents structured validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("validation error in field '%s': %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(ve), ve[0].Error(), len(ve)-1)
}
