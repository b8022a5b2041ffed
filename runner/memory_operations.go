package runner

import (
	"errors"
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/gocca"
	"unsafe"
)

var errForeignBuffer = errors.New("runner: buffer not allocated by this runner")

// deviceBuffer is a single OCCA allocation handed out through memory.Runtime
type deviceBuffer struct {
	mem   *gocca.OCCAMemory
	bytes int64
	mode  memory.AllocMode
}

// Bytes returns the allocated size in bytes
func (b *deviceBuffer) Bytes() int64 {
	return b.bytes
}

// KernelArg returns the OCCA memory handle passed to kernels
func (b *deviceBuffer) KernelArg() interface{} {
	return b.mem
}

// Malloc allocates bytes of device memory. Unified requests ask OCCA for
// memory shared with the host address space.
func (kr *Runner) Malloc(bytes int64, mode memory.AllocMode) (memory.Buffer, error) {
	if bytes <= 0 {
		return nil, fmt.Errorf("runner: allocation of %d bytes: %w", bytes, memory.ErrInvalidSize)
	}

	mem, err := kr.malloc(bytes, mode)
	if err != nil {
		return nil, err
	}

	buf := &deviceBuffer{mem: mem, bytes: bytes, mode: mode}
	kr.mu.Lock()
	kr.live[buf] = struct{}{}
	kr.mu.Unlock()
	return buf, nil
}

// malloc converts OCCA allocation failures, which surface as a nil handle or
// a panic from the binding, into ErrOutOfMemory
func (kr *Runner) malloc(bytes int64, mode memory.AllocMode) (mem *gocca.OCCAMemory, err error) {
	defer func() {
		if r := recover(); r != nil {
			mem = nil
			err = fmt.Errorf("runner: %s allocation of %d bytes failed (%v): %w",
				mode, bytes, r, memory.ErrOutOfMemory)
		}
	}()

	if mode == memory.Unified {
		props := gocca.JsonParse(`{"unified": true}`)
		defer props.Free()
		mem = kr.Device.Malloc(bytes, nil, props)
	} else {
		mem = kr.Device.Malloc(bytes, nil, nil)
	}
	if mem == nil {
		return nil, fmt.Errorf("runner: %s allocation of %d bytes: %w", mode, bytes, memory.ErrOutOfMemory)
	}
	return mem, nil
}

// Free releases a buffer exactly once
func (kr *Runner) Free(buf memory.Buffer) error {
	db, ok := buf.(*deviceBuffer)
	if !ok {
		return errForeignBuffer
	}

	kr.mu.Lock()
	_, live := kr.live[db]
	delete(kr.live, db)
	kr.mu.Unlock()

	if !live {
		return memory.ErrDoubleFree
	}
	db.mem.Free()
	return nil
}

// CopyToDevice copies bytes from host memory at src into dst
func (kr *Runner) CopyToDevice(dst memory.Buffer, src unsafe.Pointer, bytes int64, kind memory.MemcpyKind) error {
	db, err := kr.checkCopy(dst, src, bytes, kind, memory.MemcpyHostToDevice)
	if err != nil {
		return err
	}
	db.mem.CopyFrom(src, bytes)
	return nil
}

// CopyToHost copies bytes from src into host memory at dst
func (kr *Runner) CopyToHost(dst unsafe.Pointer, src memory.Buffer, bytes int64, kind memory.MemcpyKind) error {
	db, err := kr.checkCopy(src, dst, bytes, kind, memory.MemcpyDeviceToHost)
	if err != nil {
		return err
	}
	db.mem.CopyTo(dst, bytes)
	return nil
}

// checkCopy validates a bulk copy. Unified buffers take host-to-host
// semantics, discrete buffers the explicit direction.
func (kr *Runner) checkCopy(buf memory.Buffer, host unsafe.Pointer, bytes int64,
	kind, discreteKind memory.MemcpyKind) (*deviceBuffer, error) {

	db, ok := buf.(*deviceBuffer)
	if !ok {
		return nil, errForeignBuffer
	}

	kr.mu.Lock()
	_, live := kr.live[db]
	kr.mu.Unlock()
	if !live {
		return nil, fmt.Errorf("runner: copy on released buffer: %w", memory.ErrOutOfMemory)
	}

	if host == nil {
		return nil, fmt.Errorf("runner: nil host pointer")
	}
	if bytes <= 0 || bytes > db.bytes {
		return nil, fmt.Errorf("runner: copy of %d bytes into %d byte buffer: %w",
			bytes, db.bytes, memory.ErrInvalidSize)
	}

	expected := discreteKind
	if db.mode == memory.Unified {
		expected = memory.MemcpyHostToHost
	}
	if kind != expected {
		return nil, fmt.Errorf("runner: %s copy on %s buffer, expected %s", kind, db.mode, expected)
	}
	return db, nil
}

// Synchronize waits for all queued device work to complete
func (kr *Runner) Synchronize() error {
	kr.Device.Finish()
	return nil
}

// LiveAllocations returns the number of buffers allocated and not yet freed
func (kr *Runner) LiveAllocations() int {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	return len(kr.live)
}
