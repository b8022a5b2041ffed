package memory

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
)

// Real is the set of real element types that can be exchanged with gonum
type Real interface {
	~float32 | ~float64
}

// SetMatrix copies a gonum matrix into batch element b.
// IMPORTANT: gonum matrices are row-major; batch elements are column-major
// with leading dimension Lda, so the copy transposes the storage order.
func SetMatrix[T Real](h *HostBatchMatrix[T], b int, m mat.Matrix) error {
	if err := h.MemoryCheck(); err != nil {
		return err
	}
	rows, cols := m.Dims()
	if rows != h.m || cols != h.n {
		return fmt.Errorf("matrix is %dx%d, batch element is %dx%d: %w",
			rows, cols, h.m, h.n, ErrShapeMismatch)
	}

	data := h.Batch(b)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			data[i+j*h.lda] = T(m.At(i, j))
		}
	}
	return nil
}

// Dense returns batch element b as a new gonum matrix
func Dense[T Real](h *HostBatchMatrix[T], b int) *mat.Dense {
	if h.m == 0 || h.n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(h.m, h.n, nil)
	data := h.Batch(b)
	for j := 0; j < h.n; j++ {
		for i := 0; i < h.m; i++ {
			out.Set(i, j, float64(data[i+j*h.lda]))
		}
	}
	return out
}
