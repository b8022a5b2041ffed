package blas

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/reduce"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
)

// Iamax writes into results the 0-based position of the largest magnitude
// in every batch element of x. results must hold x.BatchCount() entries.
// With n == 0 every entry is reduce.NoIndex.
func Iamax[T builder.Element](h *Handle, x *memory.DeviceBatchVector[T], results []reduce.Index) Status {
	return iamaxCall(h, reduce.Max, x, results)
}

// Iamin is Iamax for the smallest magnitude
func Iamin[T builder.Element](h *Handle, x *memory.DeviceBatchVector[T], results []reduce.Index) Status {
	return iamaxCall(h, reduce.Min, x, results)
}

func iamaxCall[T builder.Element](h *Handle, kind reduce.Kind, x *memory.DeviceBatchVector[T], results []reduce.Index) Status {
	name := fmt.Sprintf("%s_batched_%s", kind, builder.DataTypeOf[T]())
	fields := func(e *zerolog.Event) *zerolog.Event {
		if x == nil {
			return e
		}
		return e.Int("n", x.N()).Int("incx", x.Inc()).
			Int("batch_count", x.BatchCount()).Stringer("backing", x.Backing())
	}
	return h.call(name, fields, func() error {
		return iamaxImpl(h, kind, x, results)
	})
}

// iamaxImpl validates arguments, checks the input, runs the reduction and
// stores the indices
func iamaxImpl[T builder.Element](h *Handle, kind reduce.Kind, x *memory.DeviceBatchVector[T], results []reduce.Index) error {
	if x == nil {
		return fmt.Errorf("%w: x", errInvalidPointer)
	}
	n, inc, batch := x.N(), x.Inc(), x.BatchCount()
	if n < 0 || inc == 0 || batch < 0 {
		return fmt.Errorf("%w: n=%d incx=%d batch_count=%d", errInvalidSize, n, inc, batch)
	}
	if results == nil && batch > 0 {
		return fmt.Errorf("%w: results", errInvalidPointer)
	}
	if len(results) < batch {
		return fmt.Errorf("%w: %d results for batch_count %d", errInvalidSize, len(results), batch)
	}
	if batch == 0 {
		return nil
	}
	if n == 0 {
		for b := 0; b < batch; b++ {
			results[b] = reduce.NoIndex
		}
		return nil
	}
	if err := x.MemoryCheck(); err != nil {
		return fmt.Errorf("%w: x: %v", errInvalidPointer, err)
	}

	if h.check != numerics.NoCheck {
		op := numerics.VectorOperand{N: n, Inc: inc, Data: x}
		if _, err := h.pipeline.ScanVector("x", op, h.check, numerics.Input); err != nil {
			return err
		}
	}

	out, err := h.reducer.Reduce(kind, x)
	if err != nil {
		return err
	}
	copy(results, out)
	return nil
}
