// Package reduce finds the index of the extreme magnitude in every vector of
// a batch (iamax / iamin), on the device and with a sequential host oracle.
//
// Positions are logical: index i names the i-th element in increment order
// whatever the increment's sign. Max keeps the first strictly greater
// magnitude and Min the first strictly smaller one, so ties go to the lowest
// index. A NaN magnitude is never selected except at position 0, where it is
// the starting candidate and nothing compares past it.
package reduce

import (
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner/builder"
	"math"
)

// Kind selects the extreme searched for
type Kind int

const (
	Max Kind = iota
	Min
)

func (k Kind) String() string {
	if k == Min {
		return "iamin"
	}
	return "iamax"
}

// Index is a 0-based logical position
type Index int

// NoIndex marks a batch element with no result (n == 0)
const NoIndex Index = -1

// OneBased returns the BLAS convention value: i+1, or 0 for NoIndex
func (i Index) OneBased() int {
	if i < 0 {
		return 0
	}
	return int(i) + 1
}

// Magnitude is the value compared by the reduction: |x| for real types and
// |re| + |im| for complex types, evaluated in the component precision
func Magnitude[T builder.Element](v T) float64 {
	switch x := any(v).(type) {
	case float32:
		return float64(abs32(x))
	case float64:
		return math.Abs(x)
	case complex64:
		return float64(abs32(real(x)) + abs32(imag(x)))
	case complex128:
		return math.Abs(real(x)) + math.Abs(imag(x))
	}
	return 0
}

func abs32(v float32) float32 {
	return math.Float32frombits(math.Float32bits(v) &^ (1 << 31))
}

// better reports whether candidate m replaces the current best
func (k Kind) better(m, best float64) bool {
	if k == Min {
		return m < best
	}
	return m > best
}

// Oracle is the sequential reference for one vector
func Oracle[T builder.Element](kind Kind, v memory.Vector[T]) Index {
	if v.N <= 0 {
		return NoIndex
	}
	best := Index(0)
	bestMag := Magnitude(v.At(0))
	for i := 1; i < v.N; i++ {
		m := Magnitude(v.At(i))
		if kind.better(m, bestMag) {
			best, bestMag = Index(i), m
		}
	}
	return best
}

// OracleBatch applies Oracle to every batch element of h
func OracleBatch[T builder.Element](kind Kind, h *memory.HostBatchVector[T]) []Index {
	out := make([]Index, h.BatchCount())
	for b := range out {
		out[b] = Oracle(kind, h.Vector(b))
	}
	return out
}
