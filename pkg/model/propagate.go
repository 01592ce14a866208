package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// Propagate applies hops rounds of symmetric normalized aggregation with self-loops,
// D^-1/2 (A + I) D^-1/2, messages flowing from Src to Dst.
func Propagate(edges models.EdgeIndex, features *mat.Dense, hops int) *mat.Dense {
	n, f := features.Dims()

	deg := make([]float64, n)
	for i := range deg {
		deg[i] = 1
	}
	for i := 0; i < edges.Len(); i++ {
		if inRange(edges.Src[i], n) && inRange(edges.Dst[i], n) {
			deg[edges.Dst[i]]++
		}
	}
	invSqrt := make([]float64, n)
	for i, d := range deg {
		invSqrt[i] = 1 / math.Sqrt(d)
	}

	cur := mat.DenseCopyOf(features)
	for k := 0; k < hops; k++ {
		next := mat.NewDense(n, f, nil)
		for v := 0; v < n; v++ {
			floats.AddScaled(next.RawRowView(v), 1/deg[v], cur.RawRowView(v))
		}
		for i := 0; i < edges.Len(); i++ {
			u, v := edges.Src[i], edges.Dst[i]
			if !inRange(u, n) || !inRange(v, n) {
				continue
			}
			floats.AddScaled(next.RawRowView(v), invSqrt[u]*invSqrt[v], cur.RawRowView(u))
		}
		cur = next
	}
	return cur
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

// selectRows copies the given rows of m; nil when rows is empty
func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// softmax returns row-wise softmax(z W + b)
func softmax(z, w, b *mat.Dense) *mat.Dense {
	var logits mat.Dense
	logits.Mul(z, w)
	bias := b.RawRowView(0)

	r, _ := logits.Dims()
	for i := 0; i < r; i++ {
		row := logits.RawRowView(i)
		floats.Add(row, bias)
		hi := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - hi)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return &logits
}

// argmaxRows returns the index of the largest entry of each row
func argmaxRows(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}

// columnSums returns the 1 x c row of column sums
func columnSums(m *mat.Dense) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	row := out.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(row, m.RawRowView(i))
	}
	return out
}
