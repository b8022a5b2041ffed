// Package memory implements batched vector and matrix containers in host and
// device memory.
//
// A batched container holds BatchCount logically independent operands. Its
// backing is either an array of independently allocated buffers
// (PointerArray) or one flat buffer in which batch element b starts at
// b*Stride (FlatStrided). Consumers address both through the same methods
// and never need to know which backing is in use.
//
// Device memory is obtained from a Runtime. The runner package provides the
// OCCA implementation used in production; tests may supply their own.
package memory

import (
	"unsafe"
)

// MemcpyKind specifies the direction semantics of a bulk copy
type MemcpyKind int

const (
	MemcpyHostToHost   MemcpyKind = iota // Both sides host addressable (unified backing)
	MemcpyHostToDevice                   // Host to discrete device memory
	MemcpyDeviceToHost                   // Discrete device memory to host
)

// String returns the copy kind name
func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "HostToHost"
	case MemcpyHostToDevice:
		return "HostToDevice"
	case MemcpyDeviceToHost:
		return "DeviceToHost"
	default:
		return "Unknown"
	}
}

// AllocMode selects the device allocation strategy
type AllocMode int

const (
	Discrete AllocMode = iota // Device-only memory, explicit host<->device copies
	Unified                   // Managed memory shared with the host address space
)

// String returns the allocation mode name
func (m AllocMode) String() string {
	if m == Unified {
		return "unified"
	}
	return "discrete"
}

// Buffer is an opaque device allocation
type Buffer interface {
	// Bytes returns the allocated size in bytes
	Bytes() int64
	// KernelArg returns the value passed to a kernel for this buffer
	KernelArg() interface{}
}

// Runtime is the device collaborator: allocation, bulk copies and the
// device-wide synchronization barrier
type Runtime interface {
	Malloc(bytes int64, mode AllocMode) (Buffer, error)
	Free(buf Buffer) error
	CopyToDevice(dst Buffer, src unsafe.Pointer, bytes int64, kind MemcpyKind) error
	CopyToHost(dst unsafe.Pointer, src Buffer, bytes int64, kind MemcpyKind) error
	Synchronize() error
}

// copyKinds returns the copy semantics for a backing mode: unified memory is
// host addressable, so both directions use host-to-host copies
func copyKinds(mode AllocMode) (toDevice, toHost MemcpyKind) {
	if mode == Unified {
		return MemcpyHostToHost, MemcpyHostToHost
	}
	return MemcpyHostToDevice, MemcpyDeviceToHost
}
