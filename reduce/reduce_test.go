package reduce

import (
	"github.com/notargets/BatchKernel/memory"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/blas/gonum"
	"math"
	"math/rand"
	"testing"
)

// vecOf lays out logical values in memory for the given increment
func vecOf[T float32 | float64 | complex64 | complex128](inc int, logical ...T) memory.Vector[T] {
	v := memory.Vector[T]{Data: make([]T, memory.Footprint(len(logical), inc)), N: len(logical), Inc: inc}
	for i, x := range logical {
		v.Set(i, x)
	}
	return v
}

func TestOracle_TieBreak(t *testing.T) {
	assert.Equal(t, Index(1), Oracle(Max, vecOf(1, 3.0, 5, 5, 1)), "first occurrence of the maximum")
	assert.Equal(t, Index(1), Oracle(Min, vecOf(1, 3.0, 1, 1, 5)), "first occurrence of the minimum")
	assert.Equal(t, Index(0), Oracle(Max, vecOf(1, 2.0, 2, 2)))
	assert.Equal(t, Index(0), Oracle(Min, vecOf(1, 2.0, 2, 2)))
}

func TestOracle_NegativeIncrement(t *testing.T) {
	for _, inc := range []int{-1, -3} {
		assert.Equal(t, Index(1), Oracle(Max, vecOf(inc, 3.0, 5, 5, 1)))
		assert.Equal(t, Index(1), Oracle(Min, vecOf(inc, 3.0, 1, 1, 5)))
	}

	// The same memory read with inc -1: logical element 0 is the last word
	mem := []float64{1, 5, 5, 3}
	v := memory.Vector[float64]{Data: mem, N: 4, Inc: -1}
	assert.Equal(t, Index(1), Oracle(Max, v))
}

func TestOracle_Degenerate(t *testing.T) {
	assert.Equal(t, NoIndex, Oracle(Max, memory.Vector[float64]{N: 0, Inc: 1}))
	assert.Equal(t, 0, NoIndex.OneBased())
	assert.Equal(t, 2, Index(1).OneBased())

	h := memory.NewHostBatchVector[float32](0, 1, 3)
	defer h.Free()
	assert.Equal(t, []Index{NoIndex, NoIndex, NoIndex}, OracleBatch(Min, h))
}

func TestOracle_Complex(t *testing.T) {
	// Magnitudes 3, 4, 4, 2
	v := vecOf(1, complex(3, 0), complex(2, -2), complex(0, 4), complex(-1, 1))
	assert.Equal(t, Index(1), Oracle(Max, v), "2-2i and 0+4i tie at 4, first wins")
	assert.Equal(t, Index(3), Oracle(Min, v))

	assert.Equal(t, 4.0, Magnitude(complex(2, -2)))
	assert.Equal(t, float64(float32(3.5)), Magnitude(complex64(complex(-3, 0.5))))
}

func TestOracle_NaN(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, Index(2), Oracle(Max, vecOf(1, 1.0, nan, 7, 7)), "NaN past position 0 is never selected")
	assert.Equal(t, Index(0), Oracle(Max, vecOf(1, nan, 9.0, 3)), "NaN at position 0 is never replaced")
	assert.Equal(t, Index(0), Oracle(Min, vecOf(1, 4.0, nan, 5)))
}

func TestOracle_MatchesGonum(t *testing.T) {
	impl := gonum.Implementation{}
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(300)
		inc := 1 + rng.Intn(4)

		x64 := make([]float64, memory.Footprint(n, inc))
		x32 := make([]float32, len(x64))
		z128 := make([]complex128, len(x64))
		z64 := make([]complex64, len(x64))
		for i := range x64 {
			// A small value range forces frequent ties
			x64[i] = float64(rng.Intn(21) - 10)
			x32[i] = float32(x64[i])
			z128[i] = complex(x64[i], float64(rng.Intn(5)-2))
			z64[i] = complex64(z128[i])
		}

		assert.Equal(t, impl.Idamax(n, x64, inc), int(Oracle(Max, memory.Vector[float64]{Data: x64, N: n, Inc: inc})))
		assert.Equal(t, impl.Isamax(n, x32, inc), int(Oracle(Max, memory.Vector[float32]{Data: x32, N: n, Inc: inc})))
		assert.Equal(t, impl.Izamax(n, z128, inc), int(Oracle(Max, memory.Vector[complex128]{Data: z128, N: n, Inc: inc})))
		assert.Equal(t, impl.Icamax(n, z64, inc), int(Oracle(Max, memory.Vector[complex64]{Data: z64, N: n, Inc: inc})))
	}
}
