package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_MicroF1(t *testing.T) {
	labels := []int{0, 0, 1, 1, 2, 2}

	tests := []struct {
		name        string
		predictions []int
		indices     []int
		want        float64
	}{
		{"perfect", []int{0, 0, 1, 1, 2, 2}, []int{0, 1, 2, 3, 4, 5}, 1},
		{"all wrong", []int{1, 1, 2, 2, 0, 0}, []int{0, 1, 2, 3, 4, 5}, 0},
		{"half", []int{0, 1, 1, 0, 2, 0}, []int{0, 1, 2, 3, 4, 5}, 0.5},
		{"subset only", []int{0, 1, 1, 0, 2, 0}, []int{0, 2, 4}, 1},
		{"empty subset", []int{0, 0, 0, 0, 0, 0}, []int{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.predictions, labels, tt.indices)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.MicroF1, 1e-12)
		})
	}
}

func TestScore_MacroAndCounts(t *testing.T) {
	labels := []int{0, 0, 0, 1}
	predictions := []int{0, 0, 1, 1}

	scores, err := Score(predictions, labels, []int{0, 1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, scores.SortedClasses())
	assert.Equal(t, ClassCounts{TP: 2, FP: 0, FN: 1}, *scores.Classes[0])
	assert.Equal(t, ClassCounts{TP: 1, FP: 1, FN: 0}, *scores.Classes[1])

	// class 0: 4/5, class 1: 2/3
	assert.InDelta(t, (0.8+2.0/3)/2, scores.MacroF1, 1e-12)
	assert.InDelta(t, 0.75, scores.MicroF1, 1e-12)
	assert.Equal(t, 4, scores.Support)
}

func TestScore_Errors(t *testing.T) {
	_, err := Score([]int{0}, []int{0, 1}, []int{0})
	assert.Error(t, err)

	_, err = Score([]int{0, 1}, []int{0, 1}, []int{2})
	assert.Error(t, err)
}
