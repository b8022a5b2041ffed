package builder

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestDataTypeOf(t *testing.T) {
	assert.Equal(t, Float32, DataTypeOf[float32]())
	assert.Equal(t, Float64, DataTypeOf[float64]())
	assert.Equal(t, Complex64, DataTypeOf[complex64]())
	assert.Equal(t, Complex128, DataTypeOf[complex128]())
	assert.Equal(t, DataType(0), GetDataTypeFromSample("nope"))
}

func TestSizeOfType(t *testing.T) {
	testCases := []struct {
		dt   DataType
		size int64
	}{
		{Float32, 4},
		{Float64, 8},
		{Complex64, 8},
		{Complex128, 16},
		{INT32, 4},
		{INT64, 8},
	}
	for _, tc := range testCases {
		t.Run(tc.dt.String(), func(t *testing.T) {
			assert.Equal(t, tc.size, SizeOfType(tc.dt))
		})
	}
}

func TestAlignedLength(t *testing.T) {
	testCases := []struct {
		name      string
		n         int
		size      int64
		alignment AlignmentType
		expected  int
	}{
		{"no_alignment", 10, 8, NoAlignment, 10},
		{"zero_alignment", 10, 8, 0, 10},
		{"cache_line_double", 10, 8, CacheLineAlign, 16},
		{"cache_line_exact", 16, 4, CacheLineAlign, 16},
		{"cache_line_float", 17, 4, CacheLineAlign, 32},
		{"odd_element_size", 3, 24, CacheLineAlign, 6},
		{"empty", 0, 8, PageAlign, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AlignedLength(tc.n, tc.size, tc.alignment))
		})
	}
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 0, CeilDiv(0, 16))
	assert.Equal(t, 1, CeilDiv(1, 16))
	assert.Equal(t, 1, CeilDiv(16, 16))
	assert.Equal(t, 2, CeilDiv(17, 16))
	assert.Equal(t, 24, Dim3{X: 2, Y: 3, Z: 4}.Size())
}

func TestPreamble(t *testing.T) {
	t.Run("Float32", func(t *testing.T) {
		src, err := Preamble(Float32)
		require.NoError(t, err)
		assert.Contains(t, src, "typedef float real_t;")
		assert.Contains(t, src, "typedef long int_t;")
		assert.Contains(t, src, "#define ELEM_WIDTH 1")
		assert.Contains(t, src, "#define REAL_ZERO 0.0f")
	})

	t.Run("Complex128", func(t *testing.T) {
		src, err := Preamble(Complex128)
		require.NoError(t, err)
		assert.Contains(t, src, "typedef double real_t;")
		assert.Contains(t, src, "#define ELEM_WIDTH 2")
		assert.Contains(t, src, "#define IS_COMPLEX 1")
		assert.False(t, strings.Contains(src, "0.0f"))
	})

	t.Run("IntegerTypesHaveNoKernels", func(t *testing.T) {
		_, err := Preamble(INT32)
		assert.Error(t, err)
		_, err = Preamble(DataType(99))
		assert.Error(t, err)
	})
}
