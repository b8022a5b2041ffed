package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory indicates a host or device allocation could not be satisfied
	ErrOutOfMemory = errors.New("memory: out of memory")

	// ErrInvalidSize indicates a container shape that can't be allocated
	// (negative sizes, zero increment, leading dimension too small)
	ErrInvalidSize = errors.New("memory: invalid size")

	// ErrShapeMismatch indicates two containers whose batch count, length,
	// increment, leading dimension, stride or backing disagree
	ErrShapeMismatch = errors.New("memory: shape mismatch")

	// ErrDoubleFree indicates a buffer released more than once
	ErrDoubleFree = errors.New("memory: double free detected")
)

// TransferError reports the batch element whose bulk copy failed. Elements
// after Batch were not attempted.
type TransferError struct {
	Batch int
	Kind  MemcpyKind
	Err   error
}

// Error implements the error interface
func (e *TransferError) Error() string {
	return fmt.Sprintf("memory: %s transfer failed at batch %d: %v", e.Kind, e.Batch, e.Err)
}

// Unwrap returns the underlying runtime error
func (e *TransferError) Unwrap() error {
	return e.Err
}
