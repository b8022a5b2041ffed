// Package runner drives an OCCA device on behalf of the batched containers
// and kernels: device allocation, bulk copies, kernel compilation with the
// per-type preamble, and launch.
package runner

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/notargets/gocca"
	"github.com/rs/zerolog"
	"sort"
	"sync"
)

var _ memory.Runtime = (*Runner)(nil)

// Runner owns an OCCA device, the kernels compiled for it and the table of
// live device allocations
type Runner struct {
	Device  *gocca.OCCADevice
	Kernels map[string]*gocca.OCCAKernel
	Log     zerolog.Logger

	mu   sync.Mutex
	live map[*deviceBuffer]struct{}
}

// NewRunner creates a Runner on an open device. The device remains owned by
// the caller.
func NewRunner(device *gocca.OCCADevice) *Runner {
	if device == nil {
		panic("runner: nil device")
	}
	return &Runner{
		Device:  device,
		Kernels: make(map[string]*gocca.OCCAKernel),
		Log:     zerolog.Nop(),
		live:    make(map[*deviceBuffer]struct{}),
	}
}

// kernelKey names a kernel instantiation in the cache
func kernelKey(kernelName string, dt builder.DataType) string {
	return kernelName + "_" + dt.String()
}

// BuildKernel compiles kernelName from kernelSource for element type dt,
// prepending the preamble for that type. Each (name, type) pair is compiled
// once and served from the cache afterwards.
func (kr *Runner) BuildKernel(kernelSource, kernelName string, dt builder.DataType) (*gocca.OCCAKernel, error) {
	key := kernelKey(kernelName, dt)

	kr.mu.Lock()
	defer kr.mu.Unlock()
	if kernel, ok := kr.Kernels[key]; ok {
		return kernel, nil
	}

	preamble, err := builder.Preamble(dt)
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	fullSource := preamble + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	if kr.Device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s for %s: %w", kernelName, dt, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", key)
	}

	kr.Log.Debug().
		Str("kernel", kernelName).
		Stringer("type", dt).
		Str("mode", kr.Device.Mode()).
		Msg("kernel built")
	kr.Kernels[key] = kernel
	return kernel, nil
}

// KernelNames returns the sorted cache keys of compiled kernels
func (kr *Runner) KernelNames() []string {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	names := make([]string, 0, len(kr.Kernels))
	for name := range kr.Kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all kernels and any device memory still live. The device
// itself is left open.
func (kr *Runner) Close() {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	for _, kernel := range kr.Kernels {
		kernel.Free()
	}
	kr.Kernels = make(map[string]*gocca.OCCAKernel)

	if n := len(kr.live); n > 0 {
		kr.Log.Warn().Int("buffers", n).Msg("releasing device memory still live at runner shutdown")
	}
	for buf := range kr.live {
		buf.mem.Free()
	}
	kr.live = make(map[*deviceBuffer]struct{})
}
