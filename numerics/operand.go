package numerics

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
)

// MatrixOperand describes a batched column-major matrix as an operation
// sees it. Rows and Cols are the logical dimensions of op(A); Offset is the
// element offset of A inside every batch element.
type MatrixOperand struct {
	Rows   int
	Cols   int
	Lda    int
	Offset int
	Data   memory.DeviceOperand
}

// VectorOperand describes a batched strided vector starting Offset elements
// into every batch element
type VectorOperand struct {
	N      int
	Inc    int
	Offset int
	Data   memory.DeviceOperand
}

// storedDims returns the dimensions of the matrix as it lies in memory
func (op MatrixOperand) storedDims(trans Transpose) (rows, cols int) {
	if trans == NoTrans {
		return op.Rows, op.Cols
	}
	return op.Cols, op.Rows
}

// degenerate reports whether there is nothing to scan: no storage, no batch
// elements or a zero extent. It runs before shape validation.
func degenerate(data memory.DeviceOperand, extents ...int) bool {
	if data == nil || data.BatchCount() == 0 || data.MemoryCheck() != nil {
		return true
	}
	for _, e := range extents {
		if e == 0 {
			return true
		}
	}
	return false
}

func (op MatrixOperand) validate(rows, cols int) error {
	if rows < 0 || cols < 0 || op.Offset < 0 {
		return fmt.Errorf("%w: %dx%d at offset %d", ErrInvalidOperand, rows, cols, op.Offset)
	}
	if op.Lda < max(1, rows) {
		return fmt.Errorf("%w: lda %d < rows %d", ErrInvalidOperand, op.Lda, rows)
	}
	return nil
}

// fits checks that the addressed window lies inside every batch element
func (op MatrixOperand) fits(rows, cols int) error {
	return fits(op.Data, op.Offset+op.Lda*(cols-1)+rows)
}

func (op VectorOperand) validate() error {
	if op.N < 0 || op.Inc == 0 || op.Offset < 0 {
		return fmt.Errorf("%w: n=%d inc=%d offset=%d", ErrInvalidOperand, op.N, op.Inc, op.Offset)
	}
	return nil
}

func (op VectorOperand) fits() error {
	return fits(op.Data, op.Offset+memory.Footprint(op.N, op.Inc))
}

func fits(data memory.DeviceOperand, need int) error {
	if need > data.ElementLength() {
		return fmt.Errorf("%w: needs %d elements per batch, storage holds %d",
			ErrInvalidOperand, need, data.ElementLength())
	}
	return nil
}
