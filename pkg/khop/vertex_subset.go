package khop

// VertexSubset represents a subset of vertices with a dense membership array
// and a sparse, sorted view built on demand.
type VertexSubset struct {
	n       int
	d       []bool // dense representation
	s       []int  // sparse representation, ascending
	isDense bool
	size    int
}

func NewVertexSubset(n int) *VertexSubset {
	return &VertexSubset{
		n:       n,
		d:       make([]bool, n),
		isDense: true,
		size:    0,
	}
}

func NewVertexSubsetFromIndices(n int, vertices []int) *VertexSubset {
	vs := NewVertexSubset(n)
	vs.AddVertices(vertices)
	return vs
}

// AddVertices inserts vertices, ignoring out-of-range ids and duplicates.
// Returns the number of newly added vertices.
func (vs *VertexSubset) AddVertices(vertices []int) int {
	vs.ToDense()
	added := 0
	for _, v := range vertices {
		if v < 0 || v >= vs.n || vs.d[v] {
			continue
		}
		vs.d[v] = true
		added++
	}
	vs.size += added
	return added
}

func (vs *VertexSubset) IsIn(v int) bool {
	if v < 0 || v >= vs.n {
		return false
	}
	if vs.isDense {
		return vs.d[v]
	}
	return vs.binarySearch(v)
}

func (vs *VertexSubset) binarySearch(v int) bool {
	left, right := 0, len(vs.s)-1
	for left <= right {
		mid := (left + right) / 2
		if vs.s[mid] == v {
			return true
		} else if vs.s[mid] < v {
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return false
}

func (vs *VertexSubset) Size() int {
	return vs.size
}

func (vs *VertexSubset) ToSparse() {
	if !vs.isDense {
		return
	}
	vs.s = vs.s[:0]
	for i := 0; i < vs.n; i++ {
		if vs.d[i] {
			vs.s = append(vs.s, i)
		}
	}
	vs.isDense = false
}

func (vs *VertexSubset) ToDense() {
	if vs.isDense {
		return
	}
	for i := range vs.d {
		vs.d[i] = false
	}
	for _, v := range vs.s {
		vs.d[v] = true
	}
	vs.isDense = true
}

// ToSeq returns the members in ascending order
func (vs *VertexSubset) ToSeq() []int {
	vs.ToSparse()
	return append([]int{}, vs.s...)
}

// Minus returns members of vs that are not in other, ascending
func (vs *VertexSubset) Minus(other *VertexSubset) []int {
	out := make([]int, 0, vs.size)
	for _, v := range vs.ToSeq() {
		if !other.IsIn(v) {
			out = append(out, v)
		}
	}
	return out
}
