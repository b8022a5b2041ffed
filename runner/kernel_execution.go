package runner

import (
	"fmt"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/notargets/gocca"
)

// MaxBlockSize is the largest work-group every supported backend accepts
const MaxBlockSize = 1024

// LaunchConfig describes the shape of a kernel launch. Grid extents are
// passed to the kernel as its first three int_t arguments; block extents are
// compile-time constants of the kernel source and are checked here.
type LaunchConfig struct {
	Grid  builder.Dim3
	Block builder.Dim3
}

// Validate checks that every extent is non-negative and the block fits a
// single work-group
func (c LaunchConfig) Validate() error {
	for _, v := range []int{c.Grid.X, c.Grid.Y, c.Grid.Z} {
		if v < 0 {
			return fmt.Errorf("invalid grid %+v", c.Grid)
		}
	}
	for _, v := range []int{c.Block.X, c.Block.Y, c.Block.Z} {
		if v < 1 {
			return fmt.Errorf("invalid block %+v", c.Block)
		}
	}
	if c.Block.Size() > MaxBlockSize {
		return fmt.Errorf("block %+v exceeds %d work items", c.Block, MaxBlockSize)
	}
	return nil
}

// Empty reports whether the launch has no work groups
func (c LaunchConfig) Empty() bool {
	return c.Grid.Size() == 0
}

// Launch runs kernel over cfg and waits for completion. An empty grid is a
// no-op.
func (kr *Runner) Launch(kernel *gocca.OCCAKernel, cfg LaunchConfig, args ...interface{}) error {
	if kernel == nil {
		return fmt.Errorf("launch of nil kernel")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Empty() {
		return nil
	}

	fullArgs := make([]interface{}, 0, len(args)+3)
	fullArgs = append(fullArgs, int64(cfg.Grid.X), int64(cfg.Grid.Y), int64(cfg.Grid.Z))
	fullArgs = append(fullArgs, args...)

	if err := kernel.RunWithArgs(fullArgs...); err != nil {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	kr.Device.Finish()

	kr.Log.Trace().
		Int("grid_x", cfg.Grid.X).Int("grid_y", cfg.Grid.Y).Int("grid_z", cfg.Grid.Z).
		Int("block", cfg.Block.Size()).
		Msg("kernel launched")
	return nil
}
