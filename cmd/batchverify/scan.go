package main

import (
	"fmt"
	"github.com/notargets/BatchKernel/blas"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/numerics"
	"github.com/notargets/BatchKernel/runner/builder"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"math/rand"
	"strings"
)

type scanParams struct {
	dataType string
	m, n     int
	lda      int
	batch    int
	backing  string
	trans    string
	inject   string
	seed     int64
}

func newScanCommand(root *rootOptions) *cobra.Command {
	p := scanParams{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Compare the device numeric scan with the host classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger(cmd)
			h, err := root.openHandle(log)
			if err != nil {
				return err
			}
			defer h.Close()

			switch p.dataType {
			case "f32_r":
				err = verifyScan[float32](h, p, log)
			case "f64_r":
				err = verifyScan[float64](h, p, log)
			case "f32_c":
				err = verifyScan[complex64](h, p, log)
			case "f64_c":
				err = verifyScan[complex128](h, p, log)
			default:
				err = fmt.Errorf("unknown type %q (f32_r|f64_r|f32_c|f64_c)", p.dataType)
			}
			if err != nil {
				log.Error().Err(err).Msg("scan verification failed")
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.dataType, "type", "f64_r", "element type (f32_r|f64_r|f32_c|f64_c)")
	f.IntVar(&p.m, "m", 64, "stored rows")
	f.IntVar(&p.n, "n", 64, "stored columns")
	f.IntVar(&p.lda, "lda", 0, "leading dimension, defaults to m")
	f.IntVar(&p.batch, "batch-count", 4, "number of batch elements")
	f.StringVar(&p.backing, "backing", memory.PointerArray.String(), "batched|strided_batched")
	f.StringVar(&p.trans, "trans", "N", "operation applied to the matrix (N|T|C)")
	f.StringVar(&p.inject, "inject", "", "value class planted at a random position (nan|inf|zero|denormal)")
	f.Int64Var(&p.seed, "seed", 1, "random seed")
	return cmd
}

func parseTranspose(s string) (numerics.Transpose, error) {
	switch strings.ToUpper(s) {
	case "N":
		return numerics.NoTrans, nil
	case "T":
		return numerics.Trans, nil
	case "C":
		return numerics.ConjTrans, nil
	}
	return numerics.NoTrans, fmt.Errorf("unknown transpose %q (N|T|C)", s)
}

// verifyScan plants an optional special value in random data, scans it on the
// device and compares the flags with numerics.HostScanMatrix. The handle entry
// point is then run in Fail mode and must agree with the flags.
func verifyScan[T builder.Element](h *blas.Handle, p scanParams, log zerolog.Logger) error {
	trans, err := parseTranspose(p.trans)
	if err != nil {
		return err
	}
	opts, err := backingOptions(p.backing)
	if err != nil {
		return err
	}
	opts = append(h.ContainerOptions(), opts...)
	lda := p.lda
	if lda == 0 {
		lda = max(1, p.m)
	}

	host := memory.NewHostBatchMatrix[T](p.m, p.n, lda, p.batch, opts...)
	defer host.Free()
	if err = host.MemoryCheck(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(p.seed))
	for b := 0; b < p.batch; b++ {
		for j := 0; j < p.n; j++ {
			for i := 0; i < p.m; i++ {
				host.Set(b, i, j, randomValue[T](rng))
			}
		}
	}
	if p.inject != "" && p.m*p.n*p.batch > 0 {
		v, err := specialValue[T](p.inject)
		if err != nil {
			return err
		}
		b, i, j := rng.Intn(p.batch), rng.Intn(p.m), rng.Intn(p.n)
		host.Set(b, i, j, v)
		log.Debug().Int("batch", b).Int("row", i).Int("col", j).Str("class", p.inject).Msg("value planted")
	}

	a := memory.NewDeviceBatchMatrix[T](h.Runtime(), p.m, p.n, lda, p.batch, opts...)
	defer a.Free()
	if err = a.MemoryCheck(); err != nil {
		return err
	}
	if err = a.TransferFromHost(host); err != nil {
		return err
	}

	// Logical dimensions of op(A)
	op := numerics.MatrixOperand{Rows: p.m, Cols: p.n, Lda: lda, Data: a}
	if trans != numerics.NoTrans {
		op.Rows, op.Cols = p.n, p.m
	}

	pipeline := numerics.NewPipeline(h.Runtime(), numerics.WithLogger(log))
	got, err := pipeline.ScanMatrix("A", op, trans, numerics.Info, numerics.Input)
	if err != nil {
		return err
	}
	want := numerics.HostScanMatrix(host)
	log.Info().
		Stringer("type", builder.DataTypeOf[T]()).
		Int("m", p.m).Int("n", p.n).Int("lda", lda).Int("batch_count", p.batch).
		Stringer("trans", trans).
		Stringer("device", got).Stringer("host", want).
		Msg("scan verified")
	if got != want {
		return fmt.Errorf("device flags %s differ from host flags %s", got, want)
	}

	saved := h.CheckNumerics()
	h.SetCheckNumerics(numerics.Fail)
	defer h.SetCheckNumerics(saved)
	status := blas.CheckMatrix(h, "A", op, trans, numerics.Input)
	expect := blas.Success
	if want.Abnormal() {
		expect = blas.CheckNumericsFail
	}
	if status != expect {
		return fmt.Errorf("check entry point returned %s, expected %s", status, expect)
	}
	return nil
}
