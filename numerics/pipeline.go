package numerics

import (
	"errors"
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
	"unsafe"
)

// Pipeline runs scan kernels on a runner's device. A Pipeline holds no
// per-scan state; concurrent scans on independent operands are safe.
type Pipeline struct {
	kr          *runner.Runner
	log         zerolog.Logger
	scratchMode memory.AllocMode
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger scan findings are reported to
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithScratchMode sets the allocation mode of the per-scan flag record
func WithScratchMode(m memory.AllocMode) Option {
	return func(p *Pipeline) { p.scratchMode = m }
}

// NewPipeline creates a Pipeline on kr
func NewPipeline(kr *runner.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{kr: kr, log: zerolog.Nop(), scratchMode: memory.Discrete}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ScanMatrix scans every batch element of op. With Trans or ConjTrans the
// logical dimensions are swapped so memory is walked in stored order.
func (p *Pipeline) ScanMatrix(name string, op MatrixOperand, trans Transpose, mode Mode, phase Phase) (ScanResult, error) {
	if mode == NoCheck {
		return ScanResult{}, nil
	}
	rows, cols := op.storedDims(trans)
	if degenerate(op.Data, rows, cols) {
		return ScanResult{}, nil
	}
	if err := op.validate(rows, cols); err != nil {
		return ScanResult{}, err
	}
	if err := op.fits(rows, cols); err != nil {
		return ScanResult{}, err
	}

	cfg := runner.LaunchConfig{
		Grid:  builder.Dim3{X: builder.CeilDiv(rows, CheckDimX), Y: builder.CeilDiv(cols, CheckDimY)},
		Block: builder.Dim3{X: CheckDimX, Y: CheckDimY, Z: 1},
	}
	res, err := p.scan(matrixKernel, "check_numerics_matrix", op.Data, cfg,
		int64(rows), int64(cols), int64(op.Lda), int64(op.Offset))
	if err != nil {
		return res, fmt.Errorf("scan of %s: %w", name, err)
	}
	return res, p.report(name, phase, mode, res, op.Data.BatchCount())
}

// ScanVector scans every batch element of op
func (p *Pipeline) ScanVector(name string, op VectorOperand, mode Mode, phase Phase) (ScanResult, error) {
	if mode == NoCheck {
		return ScanResult{}, nil
	}
	if degenerate(op.Data, op.N) {
		return ScanResult{}, nil
	}
	if err := op.validate(); err != nil {
		return ScanResult{}, err
	}
	if err := op.fits(); err != nil {
		return ScanResult{}, err
	}

	cfg := runner.LaunchConfig{
		Grid:  builder.Dim3{X: builder.CeilDiv(op.N, CheckNB), Y: 1},
		Block: builder.Dim3{X: CheckNB, Y: 1, Z: 1},
	}
	inc := op.Inc
	if inc < 0 {
		inc = -inc
	}
	res, err := p.scan(vectorKernel, "check_numerics_vector", op.Data, cfg,
		int64(op.N), int64(inc), int64(op.Offset))
	if err != nil {
		return res, fmt.Errorf("scan of %s: %w", name, err)
	}
	return res, p.report(name, phase, mode, res, op.Data.BatchCount())
}

// scan zeroes a flag record, launches the kernel once per segment with the
// segment's batch count as grid Z, and reads the record back once
func (p *Pipeline) scan(source, kernelName string, data memory.DeviceOperand, cfg runner.LaunchConfig,
	shape ...int64) (result ScanResult, err error) {

	kernel, err := p.kr.BuildKernel(source, kernelName, data.DataType())
	if err != nil {
		return ScanResult{}, err
	}

	toDevice, toHost := memory.MemcpyHostToDevice, memory.MemcpyDeviceToHost
	if p.scratchMode == memory.Unified {
		toDevice, toHost = memory.MemcpyHostToHost, memory.MemcpyHostToHost
	}

	var flags [numFlags]int64
	const flagBytes = int64(numFlags * 8)
	scratch, err := p.kr.Malloc(flagBytes, p.scratchMode)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scratch allocation: %w", err)
	}
	defer func() {
		if ferr := p.kr.Free(scratch); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()
	if err = p.kr.CopyToDevice(scratch, unsafe.Pointer(&flags[0]), flagBytes, toDevice); err != nil {
		return ScanResult{}, err
	}

	for _, seg := range data.Segments() {
		segCfg := cfg
		segCfg.Grid.Z = seg.Count
		args := make([]interface{}, 0, len(shape)+3)
		for _, v := range shape {
			args = append(args, v)
		}
		args = append(args, int64(seg.Stride), seg.Buffer.KernelArg(), scratch.KernelArg())
		if err = p.kr.Launch(kernel, segCfg, args...); err != nil {
			return ScanResult{}, err
		}
	}

	if p.scratchMode == memory.Unified {
		if err = p.kr.Synchronize(); err != nil {
			return ScanResult{}, err
		}
	}
	if err = p.kr.CopyToHost(unsafe.Pointer(&flags[0]), scratch, flagBytes, toHost); err != nil {
		return ScanResult{}, err
	}
	return resultFromFlags(flags), nil
}

// report logs the result according to mode and returns an
// AbnormalValueError when mode requests failure
func (p *Pipeline) report(name string, phase Phase, mode Mode, res ScanResult, batch int) error {
	event := func(e *zerolog.Event) *zerolog.Event {
		return e.Str("operand", name).
			Stringer("phase", phase).
			Bool("nan", res.HasNaN).
			Bool("inf", res.HasInf).
			Bool("zero", res.HasZero).
			Bool("denormal", res.HasDenormal).
			Int("batch_count", batch)
	}

	if mode&Info != 0 {
		event(p.log.Info()).Msg("check numerics")
	}
	if !res.Abnormal() {
		return nil
	}
	if mode&Warn != 0 {
		event(p.log.Warn()).Msg("abnormal values detected")
	}
	if mode&Fail != 0 {
		event(p.log.Error()).Msg("check numerics failed")
		return &AbnormalValueError{Operand: name, Phase: phase, Result: res}
	}
	return nil
}
