// Package unlearning builds unlearning requests: it samples the nodes, edges or
// feature rows to forget, derives the edited graph and the influenced neighborhood.
package unlearning

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/gilchrisn/graph-unlearning-service/pkg/edgeset"
	"github.com/gilchrisn/graph-unlearning-service/pkg/khop"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// Request is the outcome of an unlearning request
type Request struct {
	Task      models.Task
	Ratio     float64
	Unlearned models.UnlearnedGraph
	Selection models.Selection

	// Sampled holds the directly edited nodes (deleted, feature-zeroed or edge endpoints)
	Sampled []int
	// RemovedEdges holds the sampled canonical edge positions for the edge task
	RemovedEdges []int
}

// HopsFor returns the influence radius of a task: deletions propagate one hop further than edits
func HopsFor(task models.Task) int {
	if task == models.TaskNode {
		return 3
	}
	return 2
}

// Builder samples and applies unlearning requests
type Builder struct {
	src    rand.Source
	logger zerolog.Logger
}

// NewBuilder creates a builder drawing samples from src
func NewBuilder(src rand.Source, logger zerolog.Logger) *Builder {
	return &Builder{src: src, logger: logger}
}

// Build samples the elements to remove and derives the edited graph and selection.
// The input graph is never modified.
func (b *Builder) Build(task models.Task, ratio float64, trainIndices []int, graph *models.Graph) (*Request, error) {
	switch task {
	case models.TaskNode, models.TaskEdge, models.TaskFeature:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	if !(ratio > 0 && ratio <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}
	if graph == nil || graph.Features == nil {
		return nil, ErrNilGraph
	}

	b.logger.Debug().
		Int("num_nodes", graph.NumNodes).
		Int("num_edges", graph.NumEdges()).
		Str("task", string(task)).
		Float64("ratio", ratio).
		Msg("Building unlearning request")

	req := &Request{
		Task:  task,
		Ratio: ratio,
		Unlearned: models.UnlearnedGraph{
			Edges:    graph.Edges.Clone(),
			Features: mat.DenseCopyOf(graph.Features),
		},
	}

	enc := edgeset.NewEncoder(graph.Edges)

	switch task {
	case models.TaskNode:
		req.Sampled = b.sampleNodes(trainIndices, ratio)
		req.Unlearned.Edges = enc.WithoutNodes(req.Sampled)

	case models.TaskEdge:
		canonical := enc.Canonical()
		positions := b.sample(len(canonical), ratio)
		req.RemovedEdges = make([]int, len(positions))
		endpoints := make([]int, 0, 2*len(positions))
		for i, p := range positions {
			pos := canonical[p]
			req.RemovedEdges[i] = pos
			endpoints = append(endpoints, graph.Edges.Src[pos], graph.Edges.Dst[pos])
		}
		req.Sampled = models.SortedUnique(endpoints)
		req.Unlearned.Edges = enc.WithoutEdges(req.RemovedEdges)

	case models.TaskFeature:
		req.Sampled = b.sampleNodes(trainIndices, ratio)
		_, numFeatures := req.Unlearned.Features.Dims()
		zeros := make([]float64, numFeatures)
		for _, node := range req.Sampled {
			req.Unlearned.Features.SetRow(node, zeros)
		}
	}

	req.Selection = selectionFor(task, req.Sampled, graph)

	b.logger.Info().
		Str("task", string(task)).
		Int("sampled", len(req.Sampled)).
		Int("edges_before", graph.NumEdges()).
		Int("edges_after", req.Unlearned.Edges.Len()).
		Str("selection", req.Selection.Summary()).
		Msg("Unlearning request built")

	return req, nil
}

// selectionFor expands the edited nodes into the influenced neighborhood
func selectionFor(task models.Task, sampled []int, graph *models.Graph) models.Selection {
	hops := HopsFor(task)
	var sel models.Selection

	switch task {
	case models.TaskNode:
		sel.Deleted = sampled
		sel.Influence = khop.FindInfluenced(sampled, graph.Edges, graph.NumNodes, hops)
	case models.TaskFeature:
		sel.Feature = sampled
		sel.Influence = khop.FindInfluenced(sampled, graph.Edges, graph.NumNodes, hops)
	case models.TaskEdge:
		// edited endpoints stay in the influenced set
		sel.Influence = khop.Expand(sampled, graph.Edges, graph.NumNodes, hops)
	}
	return sel
}

// sampleNodes draws floor(|train|*ratio) distinct training nodes, sorted
func (b *Builder) sampleNodes(trainIndices []int, ratio float64) []int {
	positions := b.sample(len(trainIndices), ratio)
	nodes := make([]int, len(positions))
	for i, p := range positions {
		nodes[i] = trainIndices[p]
	}
	return models.SortedUnique(nodes)
}

// sample draws floor(n*ratio) distinct positions from [0, n)
func (b *Builder) sample(n int, ratio float64) []int {
	k := SampleSize(n, ratio)
	if k == 0 {
		return []int{}
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, b.src)
	return idxs
}

// SampleSize returns floor(n*ratio) clamped to [0, n]
func SampleSize(n int, ratio float64) int {
	k := int(float64(n) * ratio)
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
