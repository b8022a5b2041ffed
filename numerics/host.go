package numerics

import (
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner/builder"
	"math"
)

// Smallest positive normal values
const (
	minNormal32 = 0x1p-126
	minNormal64 = 0x1p-1022
)

func classifyReal(v, minNormal float64) ScanResult {
	a := math.Abs(v)
	return ScanResult{
		HasNaN:      math.IsNaN(v),
		HasInf:      math.IsInf(v, 0),
		HasZero:     v == 0,
		HasDenormal: v != 0 && a < minNormal,
	}
}

func classifyPair(re, im, minNormal float64) ScanResult {
	r, i := classifyReal(re, minNormal), classifyReal(im, minNormal)
	res := r.Or(i)
	// A complex value is zero only when both parts are
	res.HasZero = r.HasZero && i.HasZero
	return res
}

// Classify returns the flags a scan sets for a single value
func Classify[T builder.Element](v T) ScanResult {
	switch x := any(v).(type) {
	case float32:
		return classifyReal(float64(x), minNormal32)
	case float64:
		return classifyReal(x, minNormal64)
	case complex64:
		return classifyPair(float64(real(x)), float64(imag(x)), minNormal32)
	case complex128:
		return classifyPair(real(x), imag(x), minNormal64)
	}
	return ScanResult{}
}

// HostScan classifies values on the host. It is the reference the device
// scan is checked against.
func HostScan[T builder.Element](values []T) ScanResult {
	var res ScanResult
	for _, v := range values {
		res = res.Or(Classify(v))
	}
	return res
}

// HostScanVector classifies the logical elements of every batch element
func HostScanVector[T builder.Element](h *memory.HostBatchVector[T]) ScanResult {
	var res ScanResult
	for b := 0; b < h.BatchCount(); b++ {
		v := h.Vector(b)
		for i := 0; i < v.N; i++ {
			res = res.Or(Classify(v.At(i)))
		}
	}
	return res
}

// HostScanMatrix classifies the rows x cols window of every batch element,
// ignoring padding between lda and rows
func HostScanMatrix[T builder.Element](h *memory.HostBatchMatrix[T]) ScanResult {
	var res ScanResult
	for b := 0; b < h.BatchCount(); b++ {
		for j := 0; j < h.Cols(); j++ {
			for i := 0; i < h.Rows(); i++ {
				res = res.Or(Classify(h.At(b, i, j)))
			}
		}
	}
	return res
}
