package blas

import (
	"github.com/notargets/BatchKernel/numerics"
	"github.com/rs/zerolog"
)

// CheckMatrix scans a matrix operand with the handle's check-numerics mode.
// Routines call it on their inputs before and on their outputs after the
// compute kernel.
func CheckMatrix(h *Handle, name string, op numerics.MatrixOperand, trans numerics.Transpose, phase numerics.Phase) Status {
	fields := func(e *zerolog.Event) *zerolog.Event {
		return e.Str("operand", name).Int("rows", op.Rows).Int("cols", op.Cols).
			Int("lda", op.Lda).Stringer("trans", trans).Stringer("phase", phase)
	}
	return h.call("check_numerics_matrix", fields, func() error {
		_, err := h.pipeline.ScanMatrix(name, op, trans, h.check, phase)
		return err
	})
}

// CheckVector scans a vector operand with the handle's check-numerics mode
func CheckVector(h *Handle, name string, op numerics.VectorOperand, phase numerics.Phase) Status {
	fields := func(e *zerolog.Event) *zerolog.Event {
		return e.Str("operand", name).Int("n", op.N).Int("inc", op.Inc).Stringer("phase", phase)
	}
	return h.call("check_numerics_vector", fields, func() error {
		_, err := h.pipeline.ScanVector(name, op, h.check, phase)
		return err
	})
}
