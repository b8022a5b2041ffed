package memory

import (
	"errors"
	"fmt"
	"github.com/notargets/BatchKernel/runner/builder"
)

// Segment is one addressing unit of a device container: Count consecutive
// batch elements starting at batch index First, separated by Stride
// elements inside Buffer. A pointer-array container has one segment per batch
// element; a flat strided container has a single segment.
type Segment struct {
	Buffer Buffer
	First  int
	Count  int
	Stride int
}

// DeviceOperand is the view of a device container used by kernels
type DeviceOperand interface {
	DataType() builder.DataType
	BatchCount() int
	ElementLength() int
	Segments() []Segment
	MemoryCheck() error
}

// deviceBatch is the backing shared by device vectors and matrices
type deviceBatch[T builder.Element] struct {
	layout
	mode  AllocMode
	rt    Runtime
	bufs  []Buffer
	err   error
	freed bool
}

func (d *deviceBatch[T]) allocate(rt Runtime, o Options, elemLen, count int, shapeErr error) {
	d.rt = rt
	d.mode = o.Mode
	if shapeErr != nil {
		d.err = shapeErr
		return
	}
	if rt == nil {
		d.err = fmt.Errorf("memory: nil runtime: %w", ErrOutOfMemory)
		return
	}

	l, err := resolveLayout[T](o, elemLen, count)
	d.layout = l
	if err != nil {
		d.err = err
		return
	}

	// Every batch index must point at real memory, so empty elements still
	// get a one element allocation
	size := elemSize[T]()
	bytesFor := func(n int) int64 {
		return int64(max(n, 1)) * size
	}

	if l.backing == FlatStrided {
		if count == 0 {
			return
		}
		buf, err := rt.Malloc(bytesFor(l.flatLen()), d.mode)
		if err != nil {
			d.err = err
			return
		}
		d.bufs = []Buffer{buf}
		return
	}

	bufs := make([]Buffer, 0, count)
	for b := 0; b < count; b++ {
		buf, err := rt.Malloc(bytesFor(elemLen), d.mode)
		if err != nil {
			// Release everything acquired so far
			for _, acquired := range bufs {
				_ = rt.Free(acquired)
			}
			d.err = err
			return
		}
		bufs = append(bufs, buf)
	}
	d.bufs = bufs
}

// MemoryCheck returns nil when the device storage is present
func (d *deviceBatch[T]) MemoryCheck() error {
	if d.freed {
		return ErrOutOfMemory
	}
	return d.err
}

// BatchCount returns the number of batch elements
func (d *deviceBatch[T]) BatchCount() int {
	return d.count
}

// Backing returns the storage scheme chosen at construction
func (d *deviceBatch[T]) Backing() Backing {
	return d.backing
}

// Mode returns the allocation strategy
func (d *deviceBatch[T]) Mode() AllocMode {
	return d.mode
}

// Stride returns the distance in elements between consecutive batch bases
// for the flat strided backing, and 0 (not applicable) otherwise
func (d *deviceBatch[T]) Stride() int {
	if d.backing != FlatStrided {
		return 0
	}
	return d.stride
}

// ElementLength returns the number of elements spanned by one batch element
func (d *deviceBatch[T]) ElementLength() int {
	return d.elemLen
}

// DataType returns the element type tag
func (d *deviceBatch[T]) DataType() builder.DataType {
	return builder.DataTypeOf[T]()
}

// Buffer returns the allocation holding batch element b. The caller
// guarantees b < BatchCount().
func (d *deviceBatch[T]) Buffer(b int) Buffer {
	if debugChecks && (b < 0 || b >= d.count) {
		panic(fmt.Sprintf("memory: batch index %d out of range [0,%d)", b, d.count))
	}
	if d.backing == FlatStrided {
		return d.bufs[0]
	}
	return d.bufs[b]
}

// Segments returns the addressing units covering all batch elements
func (d *deviceBatch[T]) Segments() []Segment {
	if d.MemoryCheck() != nil || d.count == 0 {
		return nil
	}
	if d.backing == FlatStrided {
		return []Segment{{Buffer: d.bufs[0], First: 0, Count: d.count, Stride: d.stride}}
	}
	segs := make([]Segment, d.count)
	for b, buf := range d.bufs {
		segs[b] = Segment{Buffer: buf, First: b, Count: 1}
	}
	return segs
}

// Free releases the device storage exactly once and returns the first
// runtime error encountered
func (d *deviceBatch[T]) Free() error {
	if d.freed || d.err != nil {
		return nil
	}
	d.freed = true

	var errs []error
	for _, buf := range d.bufs {
		if err := d.rt.Free(buf); err != nil {
			errs = append(errs, err)
		}
	}
	d.bufs = nil
	return errors.Join(errs...)
}

// DeviceBatchVector is a batch of strided vectors in device memory
type DeviceBatchVector[T builder.Element] struct {
	deviceBatch[T]
	n   int
	inc int
}

// NewDeviceBatchVector allocates batchCount vectors of n elements with
// increment inc on the runtime's device. Failures leave the container empty;
// check MemoryCheck before use.
func NewDeviceBatchVector[T builder.Element](rt Runtime, n, inc, batchCount int, opts ...Option) *DeviceBatchVector[T] {
	o := buildOptions(opts)
	d := &DeviceBatchVector[T]{n: n, inc: inc}

	var shapeErr error
	if n < 0 || inc == 0 {
		shapeErr = ErrInvalidSize
	}
	d.allocate(rt, o, Footprint(n, inc), batchCount, shapeErr)
	return d
}

// N returns the logical vector length
func (d *DeviceBatchVector[T]) N() int {
	return d.n
}

// Inc returns the vector increment
func (d *DeviceBatchVector[T]) Inc() int {
	return d.inc
}

// DeviceBatchMatrix is a batch of column-major matrices in device memory
type DeviceBatchMatrix[T builder.Element] struct {
	deviceBatch[T]
	m   int
	n   int
	lda int
}

// NewDeviceBatchMatrix allocates batchCount m×n column-major matrices with
// leading dimension lda on the runtime's device
func NewDeviceBatchMatrix[T builder.Element](rt Runtime, m, n, lda, batchCount int, opts ...Option) *DeviceBatchMatrix[T] {
	o := buildOptions(opts)
	d := &DeviceBatchMatrix[T]{m: m, n: n, lda: lda}

	var shapeErr error
	if m < 0 || n < 0 || lda < max(1, m) {
		shapeErr = ErrInvalidSize
	}
	d.allocate(rt, o, lda*n, batchCount, shapeErr)
	return d
}

// Rows returns the number of rows
func (d *DeviceBatchMatrix[T]) Rows() int {
	return d.m
}

// Cols returns the number of columns
func (d *DeviceBatchMatrix[T]) Cols() int {
	return d.n
}

// Lda returns the leading dimension
func (d *DeviceBatchMatrix[T]) Lda() int {
	return d.lda
}
