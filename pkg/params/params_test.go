package params

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func pair(w, b []float64) Set {
	return Set{mat.NewDense(2, 2, w), mat.NewDense(1, 2, b)}
}

func TestArithmetic(t *testing.T) {
	a := pair([]float64{1, 2, 3, 4}, []float64{5, 6})
	b := pair([]float64{1, 1, 1, 1}, []float64{2, 2})

	diff, err := Sub(a, b)
	require.NoError(t, err)
	assert.True(t, EqualApprox(diff, pair([]float64{0, 1, 2, 3}, []float64{3, 4}), 0))

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.True(t, EqualApprox(sum, pair([]float64{2, 3, 4, 5}, []float64{7, 8}), 0))

	scaled := Scale(0.5, a)
	assert.True(t, EqualApprox(scaled, pair([]float64{0.5, 1, 1.5, 2}, []float64{2.5, 3}), 0))

	axpy, err := AddScaled(a, -2, b)
	require.NoError(t, err)
	assert.True(t, EqualApprox(axpy, pair([]float64{-1, 0, 1, 2}, []float64{1, 2}), 0))

	dot, err := Dot(a, b)
	require.NoError(t, err)
	assert.Equal(t, 10.0+22.0, dot)

	assert.InDelta(t, math.Sqrt(1+4+9+16+25+36), Norm(a), 1e-12)
	assert.Equal(t, 6, a.Size())

	// inputs are never mutated
	assert.Equal(t, 1.0, a[0].At(0, 0))
	assert.Equal(t, 1.0, b[0].At(0, 0))
}

func TestCloneAndZeros(t *testing.T) {
	a := pair([]float64{1, 2, 3, 4}, []float64{5, 6})

	c := a.Clone()
	c[0].Set(0, 0, 99)
	assert.Equal(t, 1.0, a[0].At(0, 0))

	z := a.Zeros()
	require.NoError(t, Aligned(a, z))
	assert.Equal(t, 0.0, Norm(z))
}

func TestShapeMismatch(t *testing.T) {
	a := pair([]float64{1, 2, 3, 4}, []float64{5, 6})
	short := Set{mat.NewDense(2, 2, nil)}
	wrong := Set{mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil)}

	_, err := Sub(a, short)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Add(a, wrong)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Dot(a, wrong)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = AddScaled(a, 1, short)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.False(t, EqualApprox(a, wrong, 1))
}
