package reduce

import (
	"errors"
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
	"unsafe"
)

// ErrInvalidOperand reports a vector batch that cannot be reduced
var ErrInvalidOperand = errors.New("reduce: invalid operand")

// Operand is a batch of device vectors, satisfied by
// *memory.DeviceBatchVector
type Operand interface {
	memory.DeviceOperand
	N() int
	Inc() int
}

// Reducer runs the reduction kernel on a runner's device
type Reducer struct {
	kr  *runner.Runner
	log zerolog.Logger
}

// NewReducer creates a Reducer on kr
func NewReducer(kr *runner.Runner, log zerolog.Logger) *Reducer {
	return &Reducer{kr: kr, log: log}
}

// Reduce returns one Index per batch element of x. Every element is NoIndex
// when n is 0; a batch count of 0 gives an empty result.
func (r *Reducer) Reduce(kind Kind, x Operand) (out []Index, err error) {
	if x == nil {
		return nil, fmt.Errorf("%w: nil vector", ErrInvalidOperand)
	}
	n, inc, batch := x.N(), x.Inc(), x.BatchCount()
	if n < 0 || inc == 0 || batch < 0 {
		return nil, fmt.Errorf("%w: n=%d inc=%d batch=%d", ErrInvalidOperand, n, inc, batch)
	}

	out = make([]Index, batch)
	if batch == 0 {
		return out, nil
	}
	if n == 0 {
		for b := range out {
			out[b] = NoIndex
		}
		return out, nil
	}
	if err := x.MemoryCheck(); err != nil {
		return nil, err
	}
	if memory.Footprint(n, inc) > x.ElementLength() {
		return nil, fmt.Errorf("%w: footprint %d exceeds storage %d",
			ErrInvalidOperand, memory.Footprint(n, inc), x.ElementLength())
	}

	kernel, err := r.kr.BuildKernel(reduceKernel, "iamax_batched", x.DataType())
	if err != nil {
		return nil, err
	}

	indices := make([]int64, batch)
	bytes := int64(batch * 8)
	results, err := r.kr.Malloc(bytes, memory.Discrete)
	if err != nil {
		return nil, fmt.Errorf("result allocation: %w", err)
	}
	defer func() {
		if ferr := r.kr.Free(results); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	findMax := int64(0)
	if kind == Max {
		findMax = 1
	}
	for _, seg := range x.Segments() {
		cfg := runner.LaunchConfig{
			Grid:  builder.Dim3{X: seg.Count, Y: 1, Z: 1},
			Block: builder.Dim3{X: BlockSize, Y: 1, Z: 1},
		}
		err = r.kr.Launch(kernel, cfg,
			int64(n), int64(inc), int64(seg.Stride), int64(seg.First), findMax,
			seg.Buffer.KernelArg(), results.KernelArg())
		if err != nil {
			return nil, fmt.Errorf("%s batch %d: %w", kind, seg.First, err)
		}
	}

	if err = r.kr.CopyToHost(unsafe.Pointer(&indices[0]), results, bytes, memory.MemcpyDeviceToHost); err != nil {
		return nil, err
	}
	for b, v := range indices {
		out[b] = Index(v)
	}

	r.log.Trace().
		Stringer("kind", kind).
		Stringer("type", x.DataType()).
		Int("n", n).Int("inc", inc).Int("batch_count", batch).
		Msg("reduction complete")
	return out, nil
}
