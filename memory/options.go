package memory

import (
	"github.com/notargets/BatchKernel/runner/builder"
)

// Backing selects how the batch elements of a container are stored
type Backing int

const (
	// PointerArray stores every batch element in its own allocation
	PointerArray Backing = iota
	// FlatStrided stores all batch elements in one buffer separated by a fixed stride
	FlatStrided
)

// String returns the backing name
func (b Backing) String() string {
	if b == FlatStrided {
		return "strided_batched"
	}
	return "batched"
}

// Options collects construction settings for batched containers
type Options struct {
	Backing    Backing
	Stride     int  // Elements between batch bases
	AutoStride bool // Derive Stride from the footprint and Alignment
	Alignment  builder.AlignmentType
	Pool       *HostPool
	Mode       AllocMode
}

// Option configures container construction
type Option func(*Options)

// WithStride selects the flat strided backing with an explicit stride in
// elements. With more than one batch element the stride must cover the
// element footprint.
func WithStride(stride int) Option {
	return func(o *Options) {
		o.Backing = FlatStrided
		o.Stride = stride
		o.AutoStride = false
	}
}

// WithStridedBacking selects the flat strided backing with a stride equal to
// the element footprint rounded up to the configured alignment
func WithStridedBacking() Option {
	return func(o *Options) {
		o.Backing = FlatStrided
		o.AutoStride = true
	}
}

// WithAlignment sets the alignment used to derive a default stride
func WithAlignment(alignment builder.AlignmentType) Option {
	return func(o *Options) {
		o.Alignment = alignment
	}
}

// WithPool makes a host container allocate from the given pool
func WithPool(p *HostPool) Option {
	return func(o *Options) {
		o.Pool = p
	}
}

// WithMode sets the allocation strategy of a device container
func WithMode(mode AllocMode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		Backing:   PointerArray,
		Alignment: builder.NoAlignment,
		Pool:      DefaultHostPool,
		Mode:      Discrete,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Pool == nil {
		o.Pool = DefaultHostPool
	}
	return o
}

// layout is the resolved batch geometry shared by host and device containers
type layout struct {
	backing Backing
	elemLen int // Elements spanned by one batch element
	stride  int // Only meaningful for FlatStrided
	count   int
}

func resolveLayout[T builder.Element](o Options, elemLen, count int) (layout, error) {
	l := layout{backing: o.Backing, elemLen: elemLen, count: count}
	if count < 0 || elemLen < 0 {
		return l, ErrInvalidSize
	}
	if o.Backing == FlatStrided {
		l.stride = o.Stride
		if o.AutoStride {
			l.stride = builder.AlignedLength(elemLen, elemSize[T](), o.Alignment)
		}
		// Batch elements may not overlap
		if l.stride < 0 || (count > 1 && l.stride < elemLen) {
			return l, ErrInvalidSize
		}
	}
	return l, nil
}

// flatLen is the length of the flat buffer backing a strided container
func (l layout) flatLen() int {
	if l.count == 0 {
		return 0
	}
	return l.stride*(l.count-1) + l.elemLen
}

// compatible reports whether two layouts address identical batch geometry
func (l layout) compatible(o layout) bool {
	if l.backing != o.backing || l.elemLen != o.elemLen || l.count != o.count {
		return false
	}
	return l.backing != FlatStrided || l.stride == o.stride
}
