// Package params holds model parameter collections: one gonum matrix per
// trainable tensor, combined elementwise tensor by tensor.
package params

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when two parameter sets are not aligned
var ErrShapeMismatch = errors.New("params: shape mismatch")

// Set is an ordered list of parameter tensors
type Set []*mat.Dense

// Zeros creates a set of zero tensors shaped like s
func (s Set) Zeros() Set {
	out := make(Set, len(s))
	for i, t := range s {
		r, c := t.Dims()
		out[i] = mat.NewDense(r, c, nil)
	}
	return out
}

// Clone creates a deep copy of the set
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for i, t := range s {
		out[i] = mat.DenseCopyOf(t)
	}
	return out
}

// Size returns the total number of scalar entries
func (s Set) Size() int {
	n := 0
	for _, t := range s {
		r, c := t.Dims()
		n += r * c
	}
	return n
}

// Aligned checks that every set has the same tensor count and per-tensor shapes as ref
func Aligned(ref Set, others ...Set) error {
	for k, o := range others {
		if len(o) != len(ref) {
			return fmt.Errorf("%w: operand %d has %d tensors, want %d", ErrShapeMismatch, k, len(o), len(ref))
		}
		for i := range ref {
			rr, rc := ref[i].Dims()
			or, oc := o[i].Dims()
			if rr != or || rc != oc {
				return fmt.Errorf("%w: operand %d tensor %d is %dx%d, want %dx%d", ErrShapeMismatch, k, i, or, oc, rr, rc)
			}
		}
	}
	return nil
}

// Sub returns a - b
func Sub(a, b Set) (Set, error) {
	if err := Aligned(a, b); err != nil {
		return nil, err
	}
	out := a.Zeros()
	for i := range a {
		out[i].Sub(a[i], b[i])
	}
	return out, nil
}

// Add returns a + b
func Add(a, b Set) (Set, error) {
	if err := Aligned(a, b); err != nil {
		return nil, err
	}
	out := a.Zeros()
	for i := range a {
		out[i].Add(a[i], b[i])
	}
	return out, nil
}

// Scale returns f * s
func Scale(f float64, s Set) Set {
	out := s.Zeros()
	for i := range s {
		out[i].Scale(f, s[i])
	}
	return out
}

// AddScaled returns a + f*b
func AddScaled(a Set, f float64, b Set) (Set, error) {
	if err := Aligned(a, b); err != nil {
		return nil, err
	}
	out := a.Zeros()
	for i := range a {
		out[i].Scale(f, b[i])
		out[i].Add(a[i], out[i])
	}
	return out, nil
}

// Dot returns sum(a ⊙ b) over all tensors
func Dot(a, b Set) (float64, error) {
	if err := Aligned(a, b); err != nil {
		return 0, err
	}
	var prod mat.Dense
	sum := 0.0
	for i := range a {
		prod.Reset()
		prod.MulElem(a[i], b[i])
		sum += mat.Sum(&prod)
	}
	return sum, nil
}

// Norm returns the Euclidean norm of the flattened set
func Norm(s Set) float64 {
	sq := 0.0
	for _, t := range s {
		n := mat.Norm(t, 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// EqualApprox reports whether a and b are aligned and equal within tol
func EqualApprox(a, b Set, tol float64) bool {
	if Aligned(a, b) != nil {
		return false
	}
	for i := range a {
		if !mat.EqualApprox(a[i], b[i], tol) {
			return false
		}
	}
	return true
}
