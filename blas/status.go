// Package blas is the library boundary: a Handle carrying the device, the
// check-numerics mode and the logger, and entry points that validate
// arguments, run the numeric checks, dispatch kernels and translate every
// failure to a Status exactly once.
package blas

import (
	"errors"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/reduce"
)

// Status is the result code returned by every entry point
type Status int

const (
	Success Status = iota
	InvalidHandle
	InvalidSize
	InvalidPointer
	MemoryError
	CheckNumericsFail
	InternalError
)

var statusNames = [...]string{
	Success:           "success",
	InvalidHandle:     "invalid_handle",
	InvalidSize:       "invalid_size",
	InvalidPointer:    "invalid_pointer",
	MemoryError:       "memory_error",
	CheckNumericsFail: "check_numerics_fail",
	InternalError:     "internal_error",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown_status"
}

var (
	errInvalidHandle  = errors.New("blas: invalid handle")
	errInvalidSize    = errors.New("blas: invalid size")
	errInvalidPointer = errors.New("blas: invalid pointer")
)

// StatusOf maps an internal error to its Status
func StatusOf(err error) Status {
	var terr *memory.TransferError
	switch {
	case err == nil:
		return Success
	case errors.Is(err, errInvalidHandle):
		return InvalidHandle
	case errors.Is(err, errInvalidPointer):
		return InvalidPointer
	case errors.Is(err, errInvalidSize),
		errors.Is(err, memory.ErrInvalidSize),
		errors.Is(err, memory.ErrShapeMismatch),
		errors.Is(err, numerics.ErrInvalidOperand),
		errors.Is(err, reduce.ErrInvalidOperand):
		return InvalidSize
	case errors.Is(err, numerics.ErrAbnormalValue):
		return CheckNumericsFail
	case errors.Is(err, memory.ErrOutOfMemory),
		errors.As(err, &terr):
		return MemoryError
	default:
		return InternalError
	}
}
