package blas

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/reduce"
	"github.com/notargets/BatchKernel/runner"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/notargets/BatchKernel/utils"
	"github.com/notargets/gocca"
	"github.com/rs/zerolog"
	"os"
	"time"
)

// Handle carries the device and per-library settings used by every entry
// point. A Handle is not safe for concurrent reconfiguration; concurrent
// calls on a configured Handle are.
type Handle struct {
	device     *gocca.OCCADevice
	ownsDevice bool
	kr         *runner.Runner

	check     numerics.Mode
	layer     LayerMode
	scratch   memory.AllocMode
	alignment builder.AlignmentType
	log       zerolog.Logger

	pipeline *numerics.Pipeline
	reducer  *reduce.Reducer
}

// NewHandle opens the device named by cfg.Device and creates a Handle that
// owns it
func NewHandle(cfg Config) (*Handle, error) {
	s, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	device, err := utils.NewDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	h := newHandle(device, s)
	h.ownsDevice = true
	return h, nil
}

// NewHandleOnDevice creates a Handle on a device owned by the caller;
// cfg.Device is ignored
func NewHandleOnDevice(device *gocca.OCCADevice, cfg Config) (*Handle, error) {
	if device == nil {
		return nil, fmt.Errorf("blas: nil device")
	}
	s, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return newHandle(device, s), nil
}

func newHandle(device *gocca.OCCADevice, s settings) *Handle {
	log := zerolog.Nop()
	if s.level != zerolog.Disabled {
		log = zerolog.New(os.Stderr).Level(s.level).With().Timestamp().Logger()
	}
	h := &Handle{
		device:    device,
		kr:        runner.NewRunner(device),
		check:     s.check,
		layer:     s.layer,
		scratch:   s.scratch,
		alignment: s.alignment,
	}
	h.SetLogger(log)
	return h
}

// SetLogger replaces the logger used by the handle and its pipeline
func (h *Handle) SetLogger(l zerolog.Logger) {
	h.log = l
	h.kr.Log = l
	h.pipeline = numerics.NewPipeline(h.kr, numerics.WithLogger(l), numerics.WithScratchMode(h.scratch))
	h.reducer = reduce.NewReducer(h.kr, l)
}

// SetCheckNumerics changes the check-numerics mode
func (h *Handle) SetCheckNumerics(m numerics.Mode) {
	h.check = m
}

// CheckNumerics returns the check-numerics mode
func (h *Handle) CheckNumerics() numerics.Mode {
	return h.check
}

// SetLayerMode changes the layer logging flags
func (h *Handle) SetLayerMode(m LayerMode) {
	h.layer = m
}

// Runtime returns the device runtime containers are allocated from
func (h *Handle) Runtime() *runner.Runner {
	return h.kr
}

// ContainerOptions returns the container options matching the handle's
// configured alignment
func (h *Handle) ContainerOptions() []memory.Option {
	return []memory.Option{memory.WithAlignment(h.alignment)}
}

// DeviceMode returns the OCCA backend name
func (h *Handle) DeviceMode() string {
	return h.device.Mode()
}

// Close releases kernels and scratch and, when owned, the device
func (h *Handle) Close() {
	if h == nil || h.kr == nil {
		return
	}
	h.kr.Close()
	if h.ownsDevice {
		h.device.Free()
	}
	h.kr = nil
}

func (h *Handle) valid() error {
	if h == nil || h.kr == nil {
		return errInvalidHandle
	}
	return nil
}

// call runs fn as an entry point: layer logging around it, panic recovery,
// and translation of the error to a Status
func (h *Handle) call(name string, fields func(*zerolog.Event) *zerolog.Event, fn func() error) (status Status) {
	if h.valid() != nil {
		return InvalidHandle
	}

	start := time.Now()
	if h.layer&LayerTrace != 0 {
		fields(h.log.Trace().Str("call", name)).Msg("enter")
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("call", name).Interface("panic", r).Msg("internal failure")
			status = InternalError
		}
		if h.layer&LayerBench != 0 {
			fields(h.log.Info().Str("call", name)).
				Dur("elapsed", time.Since(start)).
				Stringer("status", status).
				Msg("bench")
		}
	}()

	err := fn()
	status = StatusOf(err)
	if err != nil && status != CheckNumericsFail {
		h.log.Debug().Str("call", name).Err(err).Stringer("status", status).Msg("call failed")
	}
	return status
}
