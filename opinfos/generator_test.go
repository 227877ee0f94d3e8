package opinfos

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/tensors"
)

func collectSamples(op *OpInfo, g GenArgs) []*SampleInput {
	var samples []*SampleInput
	for sample := range op.SampleInputs(g) {
		samples = append(samples, sample)
	}
	return samples
}

func requireLeavesEqual(t require.TestingT, a, b any) {
	switch av := a.(type) {
	case *tensors.Tensor:
		bt, ok := b.(*tensors.Tensor)
		require.True(t, ok)
		require.Equal(t, av.Shape().Dimensions, bt.Shape().Dimensions)
		require.True(t, av.Equal(bt))
	case []any:
		bv, ok := b.([]any)
		require.True(t, ok)
		require.Equal(t, len(av), len(bv))
		for i := range av {
			requireLeavesEqual(t, av[i], bv[i])
		}
	default:
		require.True(t, reflect.DeepEqual(a, b))
	}
}

func requireSamplesEqual(t require.TestingT, a, b []*SampleInput) {
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].NumArgs(), b[i].NumArgs())
		for j := 0; j < a[i].NumArgs(); j++ {
			requireLeavesEqual(t, a[i].Arg(j), b[i].Arg(j))
		}
		for key, value := range a[i].Kwargs() {
			other, present := b[i].Kwarg(key)
			require.True(t, present)
			requireLeavesEqual(t, value, other)
		}
	}
}

func TestSampleDeterminism(t *testing.T) {
	r := NewRegistry()
	names := []string{"add", "softmax", "amax", "take", "var_mean", "masked_fill"}
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		name := rapid.SampledFrom(names).Draw(t, "op")
		op, err := r.Get(name)
		require.NoError(t, err)
		g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: seed}
		requireSamplesEqual(t, collectSamples(op, g), collectSamples(op, g))
	})
}

func TestSampleSequenceRestartable(t *testing.T) {
	op := NewRegistry().ByName("mul")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float64, Seed: 11}
	samples := op.SampleInputs(g)
	first := make([]*SampleInput, 0)
	for sample := range samples {
		first = append(first, sample)
	}
	second := make([]*SampleInput, 0)
	for sample := range samples {
		second = append(second, sample)
	}
	requireSamplesEqual(t, first, second)
}

func forEachTensorValue(sample *SampleInput, visit func(v float64)) {
	sample.transform(func(value any) any {
		if tensor, ok := value.(*tensors.Tensor); ok {
			for indices := range tensor.Shape().Iter() {
				visit(tensor.At(indices...))
			}
		}
		return value
	})
}

func TestDomainBounds(t *testing.T) {
	r := NewRegistry()
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float64, Seed: 3}

	// Open interval (-1, 1).
	for sample := range r.ByName("acos").SampleInputs(g) {
		forEachTensorValue(sample, func(v float64) {
			require.Greater(t, v, -1.0)
			require.Less(t, v, 1.0)
		})
	}

	// [0, inf) with zero excluded.
	for sample := range r.ByName("rsqrt").SampleInputs(g) {
		forEachTensorValue(sample, func(v float64) {
			require.Greater(t, v, 0.0)
		})
	}

	// Unbounded domains still live in the generation window.
	for sample := range r.ByName("exp").SampleInputs(g) {
		forEachTensorValue(sample, func(v float64) {
			require.GreaterOrEqual(t, v, -9.0)
			require.LessOrEqual(t, v, 9.0)
		})
	}
}

func TestSingularityAvoidance(t *testing.T) {
	op := NewRegistry().ByName("tan")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float64, Seed: 5}
	for sample := range op.SampleInputs(g) {
		forEachTensorValue(sample, func(v float64) {
			distance := math.Abs(RoundRemainder(v, math.Pi/2))
			require.GreaterOrEqual(t, distance, eps*(1-1e-9))
		})
	}
}

func TestElementwiseBinaryShapes(t *testing.T) {
	op := NewRegistry().ByName("add")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: 1}
	samples := collectSamples(op, g)
	require.Len(t, samples, 2)

	first := samples[0]
	require.Equal(t, []int{4, 4}, first.Arg(0).(*tensors.Tensor).Shape().Dimensions)
	require.Equal(t, []int{4, 4}, first.Arg(1).(*tensors.Tensor).Shape().Dimensions)

	second := samples[1]
	require.Equal(t, []int{4, 4}, second.Arg(0).(*tensors.Tensor).Shape().Dimensions)
	require.Equal(t, []int{4, 1}, second.Arg(1).(*tensors.Tensor).Shape().Dimensions)
}

func TestElementwiseUnarySampleMix(t *testing.T) {
	op := NewRegistry().ByName("sin")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: 9}
	samples := collectSamples(op, g)
	require.Len(t, samples, 2*len(elementwiseUnaryShapes)+len(elementwiseUnaryStridedCases)+1)

	// Dense shapes first, then their relayouts, then the strided views.
	for i, dims := range elementwiseUnaryShapes {
		tensor := samples[i].Arg(0).(*tensors.Tensor)
		require.Equal(t, dims, append([]int{}, tensor.Shape().Dimensions...))
		require.True(t, tensor.IsContiguous())
	}
	for i, c := range elementwiseUnaryStridedCases {
		tensor := samples[2*len(elementwiseUnaryShapes)+i].Arg(0).(*tensors.Tensor)
		require.Equal(t, c.dimensions, tensor.Shape().Dimensions)
		require.False(t, tensor.IsContiguous())
	}
	_, isNumber := samples[len(samples)-1].Arg(0).(float64)
	require.True(t, isNumber)

	// Complex dtypes never receive bare numbers.
	complexSamples := collectSamples(op, GenArgs{Device: backends.CPU, DType: dtypes.Complex64, Seed: 9})
	require.Len(t, complexSamples, len(samples)-1)
}

func TestVarMeanSampleChoices(t *testing.T) {
	op := NewRegistry().ByName("var_mean")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: 2}
	count := 0
	for sample := range op.SampleInputs(g) {
		count++
		_, hasCorrection := sample.Kwarg("correction")
		// The 4-argument form carries a positional unbiased flag.
		require.False(t, sample.NumArgs() == 4 && hasCorrection,
			"unbiased and correction are mutually exclusive: %s", sample)
		if hasCorrection {
			require.Equal(t, 2, sample.NumArgs())
		}
	}
	require.NotZero(t, count)
}

func TestBenchmarkNames(t *testing.T) {
	op := NewRegistry().ByName("abs")
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: 0}
	names := make([]string, 0, 3)
	for name, sample := range op.Benchmarks(g) {
		require.Equal(t, 1, sample.NumArgs())
		names = append(names, name)
	}
	require.Len(t, names, 3)
	require.Contains(t, names[0], "8x8")
	require.Contains(t, names[2], "1024x1024")
}
