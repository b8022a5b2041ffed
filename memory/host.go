package memory

import (
	"fmt"
	"github.com/notargets/BatchKernel/runner/builder"
	"unsafe"
)

// hostBatch is the backing shared by host vectors and matrices
type hostBatch[T builder.Element] struct {
	layout
	ptrs  [][]T // PointerArray backing
	flat  []T   // FlatStrided backing
	pool  *HostPool
	err   error
	freed bool
}

func (h *hostBatch[T]) allocate(o Options, elemLen, count int, shapeErr error) {
	h.pool = o.Pool
	if shapeErr != nil {
		h.err = shapeErr
		return
	}

	l, err := resolveLayout[T](o, elemLen, count)
	h.layout = l
	if err != nil {
		h.err = err
		return
	}

	if l.backing == FlatStrided {
		flat, err := allocHost[T](h.pool, l.flatLen())
		if err != nil {
			h.err = err
			return
		}
		h.flat = flat
		return
	}

	// One allocation per batch element, unwound on the first failure
	ptrs := make([][]T, count)
	for b := 0; b < count; b++ {
		buf, err := allocHost[T](h.pool, elemLen)
		if err != nil {
			for i := 0; i < b; i++ {
				freeHost(h.pool, ptrs[i])
			}
			h.err = err
			return
		}
		ptrs[b] = buf
	}
	h.ptrs = ptrs
}

// MemoryCheck returns nil when the backing storage is present
func (h *hostBatch[T]) MemoryCheck() error {
	if h.freed {
		return ErrOutOfMemory
	}
	return h.err
}

// BatchCount returns the number of batch elements
func (h *hostBatch[T]) BatchCount() int {
	return h.count
}

// Backing returns the storage scheme chosen at construction
func (h *hostBatch[T]) Backing() Backing {
	return h.backing
}

// Stride returns the distance in elements between consecutive batch bases
// for the flat strided backing, and 0 (not applicable) otherwise
func (h *hostBatch[T]) Stride() int {
	if h.backing != FlatStrided {
		return 0
	}
	return h.stride
}

// ElementLength returns the number of elements spanned by one batch element
func (h *hostBatch[T]) ElementLength() int {
	return h.elemLen
}

// DataType returns the element type tag
func (h *hostBatch[T]) DataType() builder.DataType {
	return builder.DataTypeOf[T]()
}

// Batch returns the storage of batch element b. The caller guarantees
// b < BatchCount(); builds tagged batchdebug verify it.
func (h *hostBatch[T]) Batch(b int) []T {
	if debugChecks && (b < 0 || b >= h.count) {
		panic(fmt.Sprintf("memory: batch index %d out of range [0,%d)", b, h.count))
	}
	if h.backing == FlatStrided {
		start := b * h.stride
		return h.flat[start : start+h.elemLen]
	}
	return h.ptrs[b]
}

// Free releases the backing storage. Calling Free more than once is a no-op.
func (h *hostBatch[T]) Free() {
	if h.freed || h.err != nil {
		return
	}
	h.freed = true
	if h.backing == FlatStrided {
		freeHost(h.pool, h.flat)
		h.flat = nil
		return
	}
	for _, buf := range h.ptrs {
		freeHost(h.pool, buf)
	}
	h.ptrs = nil
}

// copyFrom copies every batch element of src into h. Both sides must share
// batch count, element length, backing and stride.
func (h *hostBatch[T]) copyFrom(src *hostBatch[T]) error {
	if err := h.MemoryCheck(); err != nil {
		return err
	}
	if err := src.MemoryCheck(); err != nil {
		return err
	}
	if !h.layout.compatible(src.layout) {
		return ErrShapeMismatch
	}
	for b := 0; b < h.count; b++ {
		copy(h.Batch(b), src.Batch(b))
	}
	return nil
}

// segmentData returns the host memory for one device segment
func (h *hostBatch[T]) segmentData(seg Segment) (unsafe.Pointer, int64) {
	var data []T
	if h.backing == FlatStrided {
		data = h.flat
	} else {
		data = h.ptrs[seg.First]
	}
	return slicePtr(data), int64(len(data)) * elemSize[T]()
}

// HostBatchVector is a batch of strided vectors in host memory
type HostBatchVector[T builder.Element] struct {
	hostBatch[T]
	n   int
	inc int
}

// NewHostBatchVector allocates batchCount vectors of n elements with
// increment inc. Allocation or shape failures leave the container empty;
// check MemoryCheck before use.
func NewHostBatchVector[T builder.Element](n, inc, batchCount int, opts ...Option) *HostBatchVector[T] {
	o := buildOptions(opts)
	h := &HostBatchVector[T]{n: n, inc: inc}

	var shapeErr error
	if n < 0 || inc == 0 {
		shapeErr = ErrInvalidSize
	}
	h.allocate(o, Footprint(n, inc), batchCount, shapeErr)
	return h
}

// N returns the logical vector length
func (h *HostBatchVector[T]) N() int {
	return h.n
}

// Inc returns the vector increment
func (h *HostBatchVector[T]) Inc() int {
	return h.inc
}

// Vector returns the strided view of batch element b
func (h *HostBatchVector[T]) Vector(b int) Vector[T] {
	return Vector[T]{Data: h.Batch(b), N: h.n, Inc: h.inc}
}

// CopyFrom copies src into h when batch count, length, increment, backing
// and stride match. On mismatch h is left unchanged and ErrShapeMismatch is
// returned.
func (h *HostBatchVector[T]) CopyFrom(src *HostBatchVector[T]) error {
	if h.n != src.n || h.inc != src.inc || h.count != src.count {
		return ErrShapeMismatch
	}
	return h.copyFrom(&src.hostBatch)
}

// HostBatchMatrix is a batch of column-major matrices in host memory
type HostBatchMatrix[T builder.Element] struct {
	hostBatch[T]
	m   int
	n   int
	lda int
}

// NewHostBatchMatrix allocates batchCount m×n column-major matrices with
// leading dimension lda
func NewHostBatchMatrix[T builder.Element](m, n, lda, batchCount int, opts ...Option) *HostBatchMatrix[T] {
	o := buildOptions(opts)
	h := &HostBatchMatrix[T]{m: m, n: n, lda: lda}

	var shapeErr error
	if m < 0 || n < 0 || lda < max(1, m) {
		shapeErr = ErrInvalidSize
	}
	h.allocate(o, lda*n, batchCount, shapeErr)
	return h
}

// Rows returns the number of rows
func (h *HostBatchMatrix[T]) Rows() int {
	return h.m
}

// Cols returns the number of columns
func (h *HostBatchMatrix[T]) Cols() int {
	return h.n
}

// Lda returns the leading dimension
func (h *HostBatchMatrix[T]) Lda() int {
	return h.lda
}

// At returns element (i, j) of batch element b
func (h *HostBatchMatrix[T]) At(b, i, j int) T {
	return h.Batch(b)[i+j*h.lda]
}

// Set stores element (i, j) of batch element b
func (h *HostBatchMatrix[T]) Set(b, i, j int, v T) {
	h.Batch(b)[i+j*h.lda] = v
}

// CopyFrom copies src into h when batch count, dimensions, leading
// dimension, backing and stride match. On mismatch h is left unchanged.
func (h *HostBatchMatrix[T]) CopyFrom(src *HostBatchMatrix[T]) error {
	if h.m != src.m || h.n != src.n || h.lda != src.lda || h.count != src.count {
		return ErrShapeMismatch
	}
	return h.copyFrom(&src.hostBatch)
}

func slicePtr[T builder.Element](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(&s[0])
}

func elemSize[T builder.Element]() int64 {
	var zero T
	return int64(unsafe.Sizeof(zero))
}
