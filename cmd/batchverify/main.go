// Command batchverify runs the batched device routines on random operands
// and compares them with the host reference implementations.
//
// Usage:
//
//	batchverify iamax --type f64_c --n 1000 --incx -2 --batch-count 16
//	batchverify scan --m 64 --n 32 --lda 70 --trans T --inject nan
//	batchverify --config batchkernel.yaml iamax --backing strided_batched
package main

import (
	"fmt"
	"github.com/notargets/BatchKernel/blas"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"os"
	"time"
)

type rootOptions struct {
	configPath string
	device     string
	check      string
	layer      string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "batchverify:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "batchverify",
		Short:         "Check batched device routines against host references",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML handle configuration")
	root.PersistentFlags().StringVar(&opts.device, "device", "", `OCCA device properties, e.g. '{"mode": "OpenMP"}'`)
	root.PersistentFlags().StringVar(&opts.check, "check-numerics", "", "check-numerics mode override (info|warn|fail)")
	root.PersistentFlags().StringVar(&opts.layer, "layer", "", "layer logging override (trace|bench)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newIamaxCommand(opts), newScanCommand(opts))
	return root
}

// logger writes human readable output to the command's error stream
func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly, NoColor: true}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// config loads the configuration file, if any, and applies flag overrides
func (o *rootOptions) config() (blas.Config, error) {
	cfg := blas.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = blas.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.device != "" {
		cfg.Device = o.device
	}
	if o.check != "" {
		cfg.CheckNumerics = o.check
	}
	if o.layer != "" {
		cfg.Layer = o.layer
	}
	return cfg, nil
}

// openHandle creates a handle from the resolved configuration and routes its
// logs through log
func (o *rootOptions) openHandle(log zerolog.Logger) (*blas.Handle, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	h, err := blas.NewHandle(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open handle: %w", err)
	}
	h.SetLogger(log)
	log.Debug().Str("device", h.DeviceMode()).Stringer("check_numerics", h.CheckNumerics()).Msg("handle ready")
	return h, nil
}
