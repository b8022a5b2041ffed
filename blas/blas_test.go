package blas

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/reduce"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/notargets/BatchKernel/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func newTestHandle(t *testing.T, cfg Config) *Handle {
	t.Helper()
	device := utils.CreateTestDevice()
	h, err := NewHandleOnDevice(device, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		h.Close()
		device.Free()
	})
	return h
}

func uploadVector(t *testing.T, h *Handle, inc int, batches [][]float64) *memory.DeviceBatchVector[float64] {
	t.Helper()
	n := len(batches[0])
	host := memory.NewHostBatchVector[float64](n, inc, len(batches), h.ContainerOptions()...)
	defer host.Free()
	for b, vals := range batches {
		v := host.Vector(b)
		for i, x := range vals {
			v.Set(i, x)
		}
	}
	d := memory.NewDeviceBatchVector[float64](h.Runtime(), n, inc, len(batches), h.ContainerOptions()...)
	require.NoError(t, d.MemoryCheck())
	require.NoError(t, d.TransferFromHost(host))
	t.Cleanup(func() { d.Free() })
	return d
}

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		err  error
		want Status
	}{
		{nil, Success},
		{errInvalidHandle, InvalidHandle},
		{fmt.Errorf("wrapped: %w", errInvalidPointer), InvalidPointer},
		{memory.ErrInvalidSize, InvalidSize},
		{memory.ErrShapeMismatch, InvalidSize},
		{reduce.ErrInvalidOperand, InvalidSize},
		{numerics.ErrInvalidOperand, InvalidSize},
		{memory.ErrOutOfMemory, MemoryError},
		{&memory.TransferError{Batch: 3, Err: errors.New("device reset")}, MemoryError},
		{&numerics.AbnormalValueError{Operand: "x"}, CheckNumericsFail},
		{errors.New("unexpected"), InternalError},
	}
	for _, tc := range testCases {
		t.Run(tc.want.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
	assert.Equal(t, "unknown_status", Status(99).String())
}

func TestConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("YAML", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
device: '{"mode": "OpenMP"}'
check_numerics: warn|fail
layer: trace,bench
scratch_memory: unified
log_level: debug
alignment: 64
`))
		require.NoError(t, err)
		assert.Equal(t, `{"mode": "OpenMP"}`, cfg.Device)

		s, err := cfg.resolve()
		require.NoError(t, err)
		assert.Equal(t, numerics.Warn|numerics.Fail, s.check)
		assert.Equal(t, LayerTrace|LayerBench, s.layer)
		assert.Equal(t, memory.Unified, s.scratch)
		assert.Equal(t, zerolog.DebugLevel, s.level)
		assert.Equal(t, builder.CacheLineAlign, s.alignment)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batchkernel.yaml")
		require.NoError(t, os.WriteFile(path, []byte("check_numerics: info\n"), 0o644))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.CheckNumerics)

		_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	invalid := []string{
		"check_numerics: loud",
		"layer: verbose",
		"scratch_memory: pinned",
		"log_level: chatty",
		"alignment: 48",
		"device: [unterminated",
	}
	for _, doc := range invalid {
		t.Run("Invalid/"+doc, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestIamax(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())

	for _, inc := range []int{1, -1} {
		t.Run(fmt.Sprintf("inc%d", inc), func(t *testing.T) {
			x := uploadVector(t, h, inc, [][]float64{{3, 5, 5, 1}, {3, 1, 1, 5}})
			results := make([]reduce.Index, 2)

			require.Equal(t, Success, Iamax(h, x, results))
			assert.Equal(t, []reduce.Index{1, 3}, results)

			require.Equal(t, Success, Iamin(h, x, results))
			assert.Equal(t, []reduce.Index{3, 1}, results)
			assert.Equal(t, 2, results[1].OneBased())
		})
	}

	t.Run("EmptyVectors", func(t *testing.T) {
		x := memory.NewDeviceBatchVector[float64](h.Runtime(), 0, 1, 3)
		defer x.Free()
		results := []reduce.Index{7, 7, 7}
		require.Equal(t, Success, Iamax(h, x, results))
		assert.Equal(t, []reduce.Index{reduce.NoIndex, reduce.NoIndex, reduce.NoIndex}, results)
	})
}

func TestIamax_Arguments(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())
	x := uploadVector(t, h, 1, [][]float64{{1, 2}, {2, 1}})

	assert.Equal(t, InvalidHandle, Iamax[float64](nil, x, make([]reduce.Index, 2)))
	assert.Equal(t, InvalidPointer, Iamax[float64](h, nil, make([]reduce.Index, 2)))
	assert.Equal(t, InvalidPointer, Iamax(h, x, nil))
	assert.Equal(t, InvalidSize, Iamax(h, x, make([]reduce.Index, 1)))

	zeroInc := memory.NewDeviceBatchVector[float64](h.Runtime(), 2, 0, 2)
	assert.Equal(t, InvalidSize, Iamin(h, zeroInc, make([]reduce.Index, 2)))

	closed := newTestHandle(t, DefaultConfig())
	closed.Close()
	assert.Equal(t, InvalidHandle, Iamax(closed, x, make([]reduce.Index, 2)))
}

func TestIamax_CheckNumerics(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())
	x := uploadVector(t, h, 1, [][]float64{{1, 2, 3}, {4, math.NaN(), 6}})
	results := make([]reduce.Index, 2)

	h.SetCheckNumerics(numerics.Warn)
	assert.Equal(t, Success, Iamax(h, x, results))
	assert.Equal(t, []reduce.Index{2, 2}, results)

	h.SetCheckNumerics(numerics.Fail)
	results = []reduce.Index{-5, -5}
	assert.Equal(t, CheckNumericsFail, Iamax(h, x, results))
	assert.Equal(t, []reduce.Index{-5, -5}, results, "results untouched when the input check fails")

	h.SetCheckNumerics(numerics.NoCheck)
	assert.Equal(t, Success, Iamax(h, x, results))
}

func TestCheckEntryPoints(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())
	h.SetCheckNumerics(numerics.Fail)
	x := uploadVector(t, h, 1, [][]float64{{1, math.Inf(1), 3, 4}})

	assert.Equal(t, CheckNumericsFail, CheckVector(h, "x", numerics.VectorOperand{N: 4, Inc: 1, Data: x}, numerics.Output))
	assert.Equal(t, Success, CheckVector(h, "x", numerics.VectorOperand{N: 1, Inc: 1, Data: x}, numerics.Output))

	// The same storage read as a 2x2 matrix
	a := numerics.MatrixOperand{Rows: 2, Cols: 2, Lda: 2, Data: x}
	assert.Equal(t, CheckNumericsFail, CheckMatrix(h, "A", a, numerics.Trans, numerics.Input))
	a.Lda = 1
	assert.Equal(t, InvalidSize, CheckMatrix(h, "A", a, numerics.NoTrans, numerics.Input))
	assert.Equal(t, InvalidHandle, CheckMatrix(nil, "A", a, numerics.NoTrans, numerics.Input))

	// Degenerate operands return before shape validation
	empty := numerics.MatrixOperand{Rows: 0, Cols: 4, Lda: 0, Data: x}
	assert.Equal(t, Success, CheckMatrix(h, "A", empty, numerics.NoTrans, numerics.Input))
	assert.Equal(t, Success, CheckMatrix(h, "A", numerics.MatrixOperand{Rows: 4, Cols: 4}, numerics.NoTrans, numerics.Input))
	assert.Equal(t, Success, CheckVector(h, "x", numerics.VectorOperand{N: 0, Inc: 0, Data: x}, numerics.Input))
}

func TestHandle_Logging(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())
	var buf bytes.Buffer
	h.SetLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
	x := uploadVector(t, h, 1, [][]float64{{1, 2}})
	results := make([]reduce.Index, 1)

	require.Equal(t, Success, Iamax(h, x, results))
	assert.NotContains(t, buf.String(), `"call":`, "layer logging is off by default")

	h.SetLayerMode(LayerTrace | LayerBench)
	require.Equal(t, Success, Iamax(h, x, results))
	out := buf.String()
	assert.Contains(t, out, `"call":"iamax_batched_f64_r"`)
	assert.Contains(t, out, `"message":"enter"`)
	assert.Contains(t, out, `"message":"bench"`)
	assert.Contains(t, out, `"status":"success"`)
}

func TestHandle_PanicRecovery(t *testing.T) {
	h := newTestHandle(t, DefaultConfig())
	noFields := func(e *zerolog.Event) *zerolog.Event { return e }

	status := h.call("boom", noFields, func() error {
		var p *Handle
		_ = p.kr
		return nil
	})
	assert.Equal(t, InternalError, status)
}
