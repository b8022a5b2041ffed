package memory

import (
	"errors"
	"unsafe"
)

var errFakeCopy = errors.New("fake: copy failed")

type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Bytes() int64 {
	return int64(len(b.data))
}

func (b *fakeBuffer) KernelArg() interface{} {
	return b
}

// fakeRuntime is a host-memory Runtime that can fail the k-th allocation or
// copy and records the order of synchronizations and copies
type fakeRuntime struct {
	live         map[*fakeBuffer]bool
	mallocs      int
	failMallocAt int // 1-based, 0 never fails
	copies       int
	failCopyAt   int // 1-based, 0 never fails
	events       []string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{live: make(map[*fakeBuffer]bool)}
}

func (rt *fakeRuntime) Malloc(bytes int64, mode AllocMode) (Buffer, error) {
	rt.mallocs++
	if rt.mallocs == rt.failMallocAt {
		return nil, ErrOutOfMemory
	}
	buf := &fakeBuffer{data: make([]byte, bytes)}
	rt.live[buf] = true
	return buf, nil
}

func (rt *fakeRuntime) Free(buf Buffer) error {
	fb := buf.(*fakeBuffer)
	if !rt.live[fb] {
		return ErrDoubleFree
	}
	delete(rt.live, fb)
	return nil
}

func (rt *fakeRuntime) CopyToDevice(dst Buffer, src unsafe.Pointer, bytes int64, kind MemcpyKind) error {
	rt.copies++
	rt.events = append(rt.events, "copy:"+kind.String())
	if rt.copies == rt.failCopyAt {
		return errFakeCopy
	}
	copy(dst.(*fakeBuffer).data, unsafe.Slice((*byte)(src), bytes))
	return nil
}

func (rt *fakeRuntime) CopyToHost(dst unsafe.Pointer, src Buffer, bytes int64, kind MemcpyKind) error {
	rt.copies++
	rt.events = append(rt.events, "copy:"+kind.String())
	if rt.copies == rt.failCopyAt {
		return errFakeCopy
	}
	copy(unsafe.Slice((*byte)(dst), bytes), src.(*fakeBuffer).data[:bytes])
	return nil
}

func (rt *fakeRuntime) Synchronize() error {
	rt.events = append(rt.events, "sync")
	return nil
}
