package memory

import (
	"github.com/notargets/BatchKernel/runner/builder"
)

// Vector is a strided view of one storage element. Data starts at the lowest
// address touched by the vector. Logical element 0 is at Data[0] for a
// positive increment and at the highest address for a negative one.
type Vector[T builder.Element] struct {
	Data []T
	N    int
	Inc  int
}

// Footprint returns the number of elements spanned by n values at increment inc
func Footprint(n, inc int) int {
	if n <= 0 {
		return 0
	}
	return 1 + (n-1)*absInt(inc)
}

// Offset maps logical position i to its offset in Data
func (v Vector[T]) Offset(i int) int {
	return LogicalOffset(i, v.N, v.Inc)
}

// At returns logical element i
func (v Vector[T]) At(i int) T {
	return v.Data[v.Offset(i)]
}

// Set stores logical element i
func (v Vector[T]) Set(i int, val T) {
	v.Data[v.Offset(i)] = val
}

// LogicalOffset maps logical position i of an n-vector with increment inc to
// a memory offset relative to the lowest address of its footprint
func LogicalOffset(i, n, inc int) int {
	if inc < 0 {
		return (n - 1 - i) * -inc
	}
	return i * inc
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
