package memory

import (
	"fmt"
	"github.com/notargets/BatchKernel/runner/builder"
)

// TransferFromHost copies every batch element of h into d. Shapes, backing
// and stride must match. Unified backings synchronize the device first.
func (d *DeviceBatchVector[T]) TransferFromHost(h *HostBatchVector[T]) error {
	if d.n != h.n || d.inc != h.inc {
		return ErrShapeMismatch
	}
	return transferToDevice(&d.deviceBatch, &h.hostBatch)
}

// TransferFromDevice copies every batch element of d into h
func (h *HostBatchVector[T]) TransferFromDevice(d *DeviceBatchVector[T]) error {
	if d.n != h.n || d.inc != h.inc {
		return ErrShapeMismatch
	}
	return transferToHost(&h.hostBatch, &d.deviceBatch)
}

// TransferFromHost copies every batch element of h into d
func (d *DeviceBatchMatrix[T]) TransferFromHost(h *HostBatchMatrix[T]) error {
	if d.m != h.m || d.n != h.n || d.lda != h.lda {
		return ErrShapeMismatch
	}
	return transferToDevice(&d.deviceBatch, &h.hostBatch)
}

// TransferFromDevice copies every batch element of d into h
func (h *HostBatchMatrix[T]) TransferFromDevice(d *DeviceBatchMatrix[T]) error {
	if d.m != h.m || d.n != h.n || d.lda != h.lda {
		return ErrShapeMismatch
	}
	return transferToHost(&h.hostBatch, &d.deviceBatch)
}

// checkTransfer validates both sides before any copy is issued
func checkTransfer[T builder.Element](d *deviceBatch[T], h *hostBatch[T]) error {
	if err := d.MemoryCheck(); err != nil {
		return fmt.Errorf("device side: %w", err)
	}
	if err := h.MemoryCheck(); err != nil {
		return fmt.Errorf("host side: %w", err)
	}
	if !d.layout.compatible(h.layout) {
		return ErrShapeMismatch
	}
	return nil
}

// transferToDevice issues one bulk copy per segment in ascending batch order
// and stops at the first failure
func transferToDevice[T builder.Element](d *deviceBatch[T], h *hostBatch[T]) error {
	if err := checkTransfer(d, h); err != nil {
		return err
	}

	kind, _ := copyKinds(d.mode)
	if d.mode == Unified {
		// Prior kernel writes must be visible before the host touches managed memory
		if err := d.rt.Synchronize(); err != nil {
			return &TransferError{Batch: 0, Kind: kind, Err: err}
		}
	}

	for _, seg := range d.Segments() {
		src, bytes := h.segmentData(seg)
		if bytes == 0 {
			continue
		}
		if err := d.rt.CopyToDevice(seg.Buffer, src, bytes, kind); err != nil {
			return &TransferError{Batch: seg.First, Kind: kind, Err: err}
		}
	}
	return nil
}

// transferToHost issues one bulk copy per segment in ascending batch order
// and stops at the first failure
func transferToHost[T builder.Element](h *hostBatch[T], d *deviceBatch[T]) error {
	if err := checkTransfer(d, h); err != nil {
		return err
	}

	_, kind := copyKinds(d.mode)
	if d.mode == Unified {
		if err := d.rt.Synchronize(); err != nil {
			return &TransferError{Batch: 0, Kind: kind, Err: err}
		}
	}

	for _, seg := range d.Segments() {
		dst, bytes := h.segmentData(seg)
		if bytes == 0 {
			continue
		}
		if err := d.rt.CopyToHost(dst, seg.Buffer, bytes, kind); err != nil {
			return &TransferError{Batch: seg.First, Kind: kind, Err: err}
		}
	}
	return nil
}
