package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseTask(t *testing.T) {
	tests := map[string]Task{
		"node":    TaskNode,
		" Edge ":  TaskEdge,
		"FEATURE": TaskFeature,
	}
	for in, want := range tests {
		got, err := ParseTask(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseTask("vertex")
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unlearn_task", ve.Field)
}

func TestMasks(t *testing.T) {
	mask := IndicesToMask([]int{3, 0, 7, -1, 3}, 5)
	assert.Equal(t, []bool{true, false, false, true, false}, mask)
	assert.Equal(t, []int{0, 3}, MaskToIndices(mask))
	assert.Empty(t, MaskToIndices(make([]bool, 3)))
}

func TestSortedUnique(t *testing.T) {
	in := []int{4, 1, 4, 2, 1}
	assert.Equal(t, []int{1, 2, 4}, SortedUnique(in))
	assert.Equal(t, []int{4, 1, 4, 2, 1}, in)
	assert.Empty(t, SortedUnique(nil))
}

func TestGraph(t *testing.T) {
	edges := NewEdgeIndex(4)
	edges.AppendUndirected(0, 1)
	edges.AppendUndirected(1, 2)

	g := &Graph{
		NumNodes: 3,
		Edges:    edges,
		Features: mat.NewDense(3, 2, nil),
		Labels:   []int{0, 1, 1},
	}
	assert.Equal(t, 4, g.NumEdges())
	assert.Equal(t, 2, g.NumFeatures())
	assert.Equal(t, 2, g.NumClasses())
	assert.False(t, g.HasPredefinedSplit())

	g.ApplySplit([]int{0, 1}, []int{2})
	assert.Equal(t, []bool{true, true, false}, g.TrainMask)
	assert.Equal(t, []bool{false, false, true}, g.TestMask)

	clone := g.Clone()
	clone.Edges.Src[0] = 2
	clone.Features.Set(0, 0, 1)
	clone.Labels[0] = 1
	assert.Equal(t, 0, g.Edges.Src[0])
	assert.Equal(t, 0.0, g.Features.At(0, 0))
	assert.Equal(t, 0, g.Labels[0])
}

func TestValidationErrors(t *testing.T) {
	single := ValidationErrors{{Field: "scale", Message: "must be nonzero"}}
	assert.Equal(t, "validation error in field 'scale': must be nonzero", single.Error())

	many := append(single, ValidationError{Field: "damp", Message: "bad", Value: "x"})
	assert.Contains(t, many.Error(), "2 validation errors")

	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
}
