package builder

import (
	"fmt"
	"strings"
)

// DataType represents the element type of an operand
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	Complex64
	Complex128
	INT32
	INT64
)

// Element is the set of Go element types a batched operand can hold
type Element interface {
	~float32 | ~float64 | ~complex64 | ~complex128
}

// TypeInfo is the per-type dispatch entry used for naming and kernel instantiation
type TypeInfo struct {
	Name       string // Display name used in logs and kernel cache keys
	CType      string // Component type on the device
	Components int    // 1 for real types, 2 for interleaved complex
	Size       int64  // Size of one element in bytes
	RealSuffix string // Literal suffix for the component type
	RealMin    string // Smallest positive normal component value
	RealMax    string // Largest finite component value
}

var typeTable = map[DataType]TypeInfo{
	Float32: {
		Name: "f32_r", CType: "float", Components: 1, Size: 4, RealSuffix: "f",
		RealMin: "1.17549435e-38f", RealMax: "3.40282347e+38f",
	},
	Float64: {
		Name: "f64_r", CType: "double", Components: 1, Size: 8,
		RealMin: "2.2250738585072014e-308", RealMax: "1.7976931348623157e+308",
	},
	Complex64: {
		Name: "f32_c", CType: "float", Components: 2, Size: 8, RealSuffix: "f",
		RealMin: "1.17549435e-38f", RealMax: "3.40282347e+38f",
	},
	Complex128: {
		Name: "f64_c", CType: "double", Components: 2, Size: 16,
		RealMin: "2.2250738585072014e-308", RealMax: "1.7976931348623157e+308",
	},
	INT32: {Name: "i32", CType: "int", Components: 1, Size: 4},
	INT64: {Name: "i64", CType: "long", Components: 1, Size: 8},
}

// Info returns the dispatch entry for a data type
func (dt DataType) Info() (TypeInfo, bool) {
	info, ok := typeTable[dt]
	return info, ok
}

// String returns the display name of the data type
func (dt DataType) String() string {
	if info, ok := typeTable[dt]; ok {
		return info.Name
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// IsComplex reports whether elements are interleaved (re, im) pairs
func (dt DataType) IsComplex() bool {
	return dt == Complex64 || dt == Complex128
}

// SizeOfType returns the size in bytes of a data type
func SizeOfType(dt DataType) int64 {
	if info, ok := typeTable[dt]; ok {
		return info.Size
	}
	return 8
}

// DataTypeOf returns the DataType tag for an element type
func DataTypeOf[T Element]() DataType {
	var sample T
	return GetDataTypeFromSample(sample)
}

// GetDataTypeFromSample returns the DataType based on a sample value
func GetDataTypeFromSample(sample interface{}) DataType {
	switch sample.(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	case int32:
		return INT32
	case int64:
		return INT64
	default:
		return 0
	}
}

// AlignmentType specifies memory alignment requirements
type AlignmentType int

const (
	NoAlignment    AlignmentType = 1
	CacheLineAlign AlignmentType = 64
	WarpAlign      AlignmentType = 128
	PageAlign      AlignmentType = 4096
)

// AlignedLength rounds a length of n elements of elemSize bytes up so that
// the next element starts on an alignment boundary. The result is in elements.
func AlignedLength(n int, elemSize int64, alignment AlignmentType) int {
	align := int64(alignment)
	if align <= 0 {
		align = int64(NoAlignment)
	}
	bytes := int64(n) * elemSize
	if bytes%align != 0 {
		bytes = ((bytes + align - 1) / align) * align
	}
	// An alignment that is not a multiple of the element size can't be met
	// exactly, round up to whole elements instead
	return int((bytes + elemSize - 1) / elemSize)
}

// Dim3 represents 3D dimensions for grid and block configurations
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of entries
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// CeilDiv returns the number of blocks of size b needed to cover n
func CeilDiv(n, b int) int {
	if n <= 0 {
		return 0
	}
	return (n + b - 1) / b
}

// Preamble generates the kernel preamble for an element type: type
// definitions, component constants and helper macros shared by all kernels
func Preamble(dt DataType) (string, error) {
	info, ok := typeTable[dt]
	if !ok || info.RealMax == "" {
		return "", fmt.Errorf("no kernel instantiation for data type %v", dt)
	}

	var sb strings.Builder

	// 1. Type definitions
	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", info.CType))
	sb.WriteString("typedef long int_t;\n")
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", info.RealSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_MIN %s\n", info.RealMin))
	sb.WriteString(fmt.Sprintf("#define REAL_MAX %s\n", info.RealMax))
	sb.WriteString("\n")

	// 2. Element layout, complex values are interleaved (re, im)
	sb.WriteString(fmt.Sprintf("#define ELEM_WIDTH %d\n", info.Components))
	if info.Components == 2 {
		sb.WriteString("#define IS_COMPLEX 1\n")
	} else {
		sb.WriteString("#define IS_COMPLEX 0\n")
	}
	sb.WriteString("\n")

	// 3. Classification helpers, written without libm so every backend agrees
	sb.WriteString("#define REAL_ABS(v) ((v) < REAL_ZERO ? -(v) : (v))\n")
	sb.WriteString("#define REAL_ISNAN(v) ((v) != (v))\n")
	sb.WriteString("#define REAL_ISINF(v) (REAL_ABS(v) > REAL_MAX)\n")
	sb.WriteString("#define REAL_ISDENORM(v) ((v) != REAL_ZERO && REAL_ABS(v) < REAL_MIN)\n")
	sb.WriteString("\n")

	return sb.String(), nil
}
