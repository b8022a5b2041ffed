package main

import (
	"fmt"
	"github.com/notargets/BatchKernel/blas"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/reduce"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"math/rand"
)

type iamaxParams struct {
	dataType string
	n        int
	inc      int
	batch    int
	backing  string
	min      bool
	seed     int64
}

// maxReported caps the mismatches logged individually
const maxReported = 10

func newIamaxCommand(root *rootOptions) *cobra.Command {
	p := iamaxParams{}
	cmd := &cobra.Command{
		Use:   "iamax",
		Short: "Compare batched iamax/iamin with the host reduction",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger(cmd)
			h, err := root.openHandle(log)
			if err != nil {
				return err
			}
			defer h.Close()

			var mismatches int
			switch p.dataType {
			case "f32_r":
				mismatches, err = verifyIamax[float32](h, p, log)
			case "f64_r":
				mismatches, err = verifyIamax[float64](h, p, log)
			case "f32_c":
				mismatches, err = verifyIamax[complex64](h, p, log)
			case "f64_c":
				mismatches, err = verifyIamax[complex128](h, p, log)
			default:
				err = fmt.Errorf("unknown type %q (f32_r|f64_r|f32_c|f64_c)", p.dataType)
			}
			if err != nil {
				log.Error().Err(err).Msg("iamax verification failed")
				return err
			}
			if mismatches > 0 {
				return fmt.Errorf("%d of %d batch elements differ from the host reduction", mismatches, p.batch)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.dataType, "type", "f64_r", "element type (f32_r|f64_r|f32_c|f64_c)")
	f.IntVar(&p.n, "n", 1000, "vector length")
	f.IntVar(&p.inc, "incx", 1, "element increment, may be negative")
	f.IntVar(&p.batch, "batch-count", 8, "number of batch elements")
	f.StringVar(&p.backing, "backing", memory.PointerArray.String(), "batched|strided_batched")
	f.BoolVar(&p.min, "min", false, "run iamin instead of iamax")
	f.Int64Var(&p.seed, "seed", 1, "random seed")
	return cmd
}

// verifyIamax runs the device reduction on random data and returns the number
// of batch elements whose index differs from reduce.OracleBatch
func verifyIamax[T builder.Element](h *blas.Handle, p iamaxParams, log zerolog.Logger) (int, error) {
	opts, err := backingOptions(p.backing)
	if err != nil {
		return 0, err
	}
	opts = append(h.ContainerOptions(), opts...)
	kind := reduce.Max
	if p.min {
		kind = reduce.Min
	}

	host := memory.NewHostBatchVector[T](p.n, p.inc, p.batch, opts...)
	defer host.Free()
	if err = host.MemoryCheck(); err != nil {
		return 0, err
	}
	rng := rand.New(rand.NewSource(p.seed))
	for b := 0; b < p.batch; b++ {
		v := host.Vector(b)
		for i := 0; i < v.N; i++ {
			v.Set(i, randomValue[T](rng))
		}
	}

	x := memory.NewDeviceBatchVector[T](h.Runtime(), p.n, p.inc, p.batch, opts...)
	defer x.Free()
	if err = x.MemoryCheck(); err != nil {
		return 0, err
	}
	if err = x.TransferFromHost(host); err != nil {
		return 0, err
	}

	results := make([]reduce.Index, p.batch)
	var status blas.Status
	if kind == reduce.Max {
		status = blas.Iamax(h, x, results)
	} else {
		status = blas.Iamin(h, x, results)
	}
	if status != blas.Success {
		return 0, fmt.Errorf("%s returned %s", kind, status)
	}

	want := reduce.OracleBatch(kind, host)
	mismatches := 0
	for b := range want {
		if results[b] == want[b] {
			continue
		}
		if mismatches < maxReported {
			log.Warn().Int("batch", b).Int("device", int(results[b])).Int("host", int(want[b])).Msg("index mismatch")
		}
		mismatches++
	}
	log.Info().
		Stringer("kind", kind).
		Stringer("type", builder.DataTypeOf[T]()).
		Int("n", p.n).Int("incx", p.inc).Int("batch_count", p.batch).
		Str("backing", p.backing).
		Int("mismatches", mismatches).
		Msg("iamax verified")
	return mismatches, nil
}
