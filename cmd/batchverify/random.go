package main

import (
	"fmt"
	"github.com/notargets/BatchKernel/memory"
	"github.com/notargets/BatchKernel/runner/builder"
	"math"
	"math/rand"
)

// randomValue draws each component from the standard normal distribution
func randomValue[T builder.Element](rng *rand.Rand) T {
	var v T
	switch p := any(&v).(type) {
	case *float32:
		*p = float32(rng.NormFloat64())
	case *float64:
		*p = rng.NormFloat64()
	case *complex64:
		*p = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
	case *complex128:
		*p = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	return v
}

// specialValue returns the value injected for class. Denormals use the
// smallest subnormal of the element's component precision.
func specialValue[T builder.Element](class string) (T, error) {
	var v T
	single := false
	switch any(v).(type) {
	case float32, complex64:
		single = true
	}

	var x float64
	switch class {
	case "nan":
		x = math.NaN()
	case "inf":
		x = math.Inf(1)
	case "zero":
		x = 0
	case "denormal":
		x = math.SmallestNonzeroFloat64
		if single {
			x = math.SmallestNonzeroFloat32
		}
	default:
		return v, fmt.Errorf("unknown value class %q", class)
	}

	switch p := any(&v).(type) {
	case *float32:
		*p = float32(x)
	case *float64:
		*p = x
	case *complex64:
		*p = complex(float32(x), 0)
	case *complex128:
		*p = complex(x, 0)
	}
	return v, nil
}

// backingOptions maps a backing name to container options
func backingOptions(name string) ([]memory.Option, error) {
	switch name {
	case memory.PointerArray.String():
		return nil, nil
	case memory.FlatStrided.String():
		return []memory.Option{memory.WithStridedBacking()}, nil
	}
	return nil, fmt.Errorf("unknown backing %q (batched|strided_batched)", name)
}
