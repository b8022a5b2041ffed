package reduce

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/notargets/BatchKernel/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"math/rand"
	"testing"
)

func newTestReducer(t *testing.T) (*Reducer, *runner.Runner) {
	t.Helper()
	device := utils.CreateTestDevice()
	kr := runner.NewRunner(device)
	t.Cleanup(func() {
		kr.Close()
		device.Free()
	})
	return NewReducer(kr, zerolog.Nop()), kr
}

// upload copies logical values into a device batch, one slice per element
func upload[T builder.Element](t *testing.T, kr *runner.Runner, inc int, batches [][]T,
	opts ...memory.Option) (*memory.HostBatchVector[T], *memory.DeviceBatchVector[T]) {
	t.Helper()
	n := 0
	if len(batches) > 0 {
		n = len(batches[0])
	}

	h := memory.NewHostBatchVector[T](n, inc, len(batches), opts...)
	require.NoError(t, h.MemoryCheck())
	for b, vals := range batches {
		v := h.Vector(b)
		for i, x := range vals {
			v.Set(i, x)
		}
	}
	d := memory.NewDeviceBatchVector[T](kr, n, inc, len(batches), opts...)
	require.NoError(t, d.MemoryCheck())
	require.NoError(t, d.TransferFromHost(h))
	t.Cleanup(func() {
		d.Free()
		h.Free()
	})
	return h, d
}

func TestReduce_TieBreak(t *testing.T) {
	r, kr := newTestReducer(t)

	for _, inc := range []int{1, -1} {
		t.Run(fmt.Sprintf("inc%d", inc), func(t *testing.T) {
			_, dmax := upload(t, kr, inc, [][]float64{{3, 5, 5, 1}})
			got, err := r.Reduce(Max, dmax)
			require.NoError(t, err)
			assert.Equal(t, []Index{1}, got)

			_, dmin := upload(t, kr, inc, [][]float64{{3, 1, 1, 5}})
			got, err = r.Reduce(Min, dmin)
			require.NoError(t, err)
			assert.Equal(t, []Index{1}, got)
		})
	}
}

func TestReduce_TiesAcrossWorkItems(t *testing.T) {
	r, kr := newTestReducer(t)

	// Equal maxima at positions owned by different work items and rounds
	const n = 3 * BlockSize
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = 1
	}
	for _, i := range []int{700, 300, 301, 44 + 2*BlockSize} {
		vals[i] = -9
	}
	_, d := upload(t, kr, 2, [][]float32{vals})

	got, err := r.Reduce(Max, d)
	require.NoError(t, err)
	assert.Equal(t, []Index{300}, got)

	got, err = r.Reduce(Min, d)
	require.NoError(t, err)
	assert.Equal(t, []Index{0}, got)
}

func TestReduce_Degenerate(t *testing.T) {
	r, kr := newTestReducer(t)

	d := memory.NewDeviceBatchVector[float64](kr, 0, 1, 1)
	defer d.Free()
	got, err := r.Reduce(Max, d)
	require.NoError(t, err)
	assert.Equal(t, []Index{NoIndex}, got, "n == 0 must not report index 0")

	empty := memory.NewDeviceBatchVector[float64](kr, 5, 1, 0)
	defer empty.Free()
	got, err = r.Reduce(Min, empty)
	require.NoError(t, err)
	assert.Empty(t, got)

	bad := memory.NewDeviceBatchVector[float64](kr, 4, 0, 1)
	_, err = r.Reduce(Max, bad)
	assert.ErrorIs(t, err, ErrInvalidOperand)

	_, err = r.Reduce(Max, nil)
	assert.ErrorIs(t, err, ErrInvalidOperand)
}

func TestReduce_NaN(t *testing.T) {
	r, kr := newTestReducer(t)
	nan := math.NaN()

	vals := [][]float64{
		{1, nan, 7, 7},
		{nan, 9, 3, 2},
		{2, 4, nan, 1},
	}
	h, d := upload(t, kr, 1, vals)
	for _, kind := range []Kind{Max, Min} {
		got, err := r.Reduce(kind, d)
		require.NoError(t, err)
		assert.Equal(t, OracleBatch(kind, h), got, kind.String())
	}
}

func randomBatches[T builder.Element](rng *rand.Rand, n, batch int, conv func(re, im float64) T) [][]T {
	out := make([][]T, batch)
	for b := range out {
		out[b] = make([]T, n)
		for i := range out[b] {
			// Integers in a narrow range make ties common
			out[b][i] = conv(float64(rng.Intn(41)-20), float64(rng.Intn(7)-3))
		}
	}
	return out
}

func checkAgainstOracle[T builder.Element](t *testing.T, r *Reducer, kr *runner.Runner, batches [][]T) {
	for _, inc := range []int{1, 3, -1, -2} {
		for _, bk := range []struct {
			name string
			opts []memory.Option
		}{
			{"pointer_array", nil},
			{"strided", []memory.Option{memory.WithStridedBacking(), memory.WithAlignment(builder.CacheLineAlign)}},
		} {
			t.Run(fmt.Sprintf("inc%d/%s", inc, bk.name), func(t *testing.T) {
				h, d := upload(t, kr, inc, batches, bk.opts...)
				for _, kind := range []Kind{Max, Min} {
					got, err := r.Reduce(kind, d)
					require.NoError(t, err)
					assert.Equal(t, OracleBatch(kind, h), got, kind.String())
				}
			})
		}
	}
}

func TestReduce_MatchesOracle(t *testing.T) {
	r, kr := newTestReducer(t)
	rng := rand.New(rand.NewSource(11))

	for _, n := range []int{1, 7, BlockSize, 1000} {
		t.Run(fmt.Sprintf("n%d", n), func(t *testing.T) {
			t.Run("f32_r", func(t *testing.T) {
				checkAgainstOracle(t, r, kr, randomBatches(rng, n, 5, func(re, _ float64) float32 { return float32(re) }))
			})
			t.Run("f64_r", func(t *testing.T) {
				checkAgainstOracle(t, r, kr, randomBatches(rng, n, 5, func(re, _ float64) float64 { return re / 4 }))
			})
			t.Run("f32_c", func(t *testing.T) {
				checkAgainstOracle(t, r, kr, randomBatches(rng, n, 5, func(re, im float64) complex64 {
					return complex(float32(re), float32(im))
				}))
			})
			t.Run("f64_c", func(t *testing.T) {
				checkAgainstOracle(t, r, kr, randomBatches(rng, n, 5, func(re, im float64) complex128 {
					return complex(re, im)
				}))
			})
		})
	}
}

func TestReduce_ReleasesResults(t *testing.T) {
	r, kr := newTestReducer(t)
	_, d := upload(t, kr, 1, [][]float64{{1, 2}, {2, 1}})
	live := kr.LiveAllocations()

	got, err := r.Reduce(Max, d)
	require.NoError(t, err)
	assert.Equal(t, []Index{1, 0}, got)
	assert.Equal(t, live, kr.LiveAllocations())
}
