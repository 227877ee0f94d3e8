package tensors

import (
	"math"
	"testing"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFromFlatData(t *testing.T) {
	tensor := FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 2, 3), []float64{1, 2, 3, 4, 5, 6})
	require.Equal(t, 1.0, tensor.At(0, 0))
	require.Equal(t, 6.0, tensor.At(1, 2))
	require.True(t, tensor.IsContiguous())
	require.Panics(t, func() {
		FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 2, 3), []float64{1, 2})
	})
	require.Panics(t, func() { tensor.At(2, 0) })
	require.Panics(t, func() { tensor.At(0) })
}

func TestNoncontiguousLike(t *testing.T) {
	tensor := FromFlatData(backends.CPU, shapes.Make(dtypes.Float64, 2, 2), []float64{1, 2, 3, 4})
	nc := tensor.NoncontiguousLike()
	require.False(t, nc.IsContiguous())
	require.True(t, tensor.Equal(nc), "layout change must preserve values")
	require.Equal(t, 3.0, nc.At(1, 0))

	// The interleaved positions hold NaN sentinels for inexact dtypes.
	require.True(t, math.IsNaN(nc.data[0]))

	// Already-noncontiguous tensors are returned as is.
	require.Same(t, nc, nc.NoncontiguousLike())

	// Bool and integer layouts use non-NaN sentinels.
	pred := FromFlatData(backends.CPU, shapes.Make(dtypes.Bool, 2), []float64{0, 1}).NoncontiguousLike()
	require.Equal(t, 1.0, pred.data[0])
	ints := FromFlatData(backends.CPU, shapes.Make(dtypes.Int32, 2), []float64{7, 8}).NoncontiguousLike()
	require.Equal(t, 12.0, ints.data[0])
}

func TestAsStrided(t *testing.T) {
	backing := make([]float64, 20)
	for position := range backing {
		backing[position] = float64(position)
	}
	base := FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 20), backing)

	view := base.AsStrided([]int{3, 2}, []int{5, 1}, 2)
	require.Equal(t, 2.0, view.At(0, 0))
	require.Equal(t, 13.0, view.At(2, 1))
	require.False(t, view.IsContiguous())

	// Zero strides alias the same element across an axis.
	aliased := base.AsStrided([]int{4, 2}, []int{0, 1}, 3)
	require.Equal(t, aliased.At(0, 0), aliased.At(3, 0))
	require.Equal(t, 4.0, aliased.At(2, 1))

	// Views reaching outside the buffer panic.
	require.Panics(t, func() { base.AsStrided([]int{5, 5}, []int{5, 1}, 2) })
}

func TestContiguous(t *testing.T) {
	base := FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 6), []float64{0, 1, 2, 3, 4, 5})
	view := base.AsStrided([]int{2, 2}, []int{3, 1}, 1)
	dense := view.Contiguous()
	require.True(t, dense.IsContiguous())
	require.True(t, view.Equal(dense))
	require.Equal(t, []float64{1, 2, 4, 5}, dense.data)

	// Contiguous tensors short-circuit.
	require.Same(t, base, base.Contiguous())
}

func TestBroadcastTo(t *testing.T) {
	col := FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 4, 1), []float64{1, 2, 3, 4})
	wide := col.BroadcastTo(4, 3)
	require.Equal(t, []int{4, 3}, wide.Shape().Dimensions)
	require.Equal(t, 2.0, wide.At(1, 0))
	require.Equal(t, 2.0, wide.At(1, 2))

	scalarish := FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 2), []float64{1, 2})
	lifted := scalarish.BroadcastTo(3, 2)
	require.Equal(t, 2.0, lifted.At(2, 1))

	require.Panics(t, func() { col.BroadcastTo(3, 3) })
	require.Panics(t, func() { wide.BroadcastTo(3) })
}

func TestApplyUnary(t *testing.T) {
	tensor := FromFlatData(backends.CPU, shapes.Make(dtypes.Float64, 3), []float64{1, 4, 9})
	root := tensor.ApplyUnary(math.Sqrt)
	require.Equal(t, []float64{1, 2, 3}, root.data)
	require.Equal(t, dtypes.Float64, root.DType())

	// Result dtype override, used by comparison operators.
	mask := tensor.ApplyUnary(func(x float64) float64 {
		if x > 2 {
			return 1
		}
		return 0
	}, dtypes.Bool)
	require.Equal(t, dtypes.Bool, mask.DType())
	require.Equal(t, []float64{0, 1, 1}, mask.data)
}

func TestMakerDeterminism(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		a := NewMaker(backends.CPU, dtypes.Float32, seed).Tensor(3, 4)
		b := NewMaker(backends.CPU, dtypes.Float32, seed).Tensor(3, 4)
		require.True(t, a.Equal(b))
	})
}

func TestMakerBounds(t *testing.T) {
	low, high := -1.0, 1.0
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64} {
		maker := NewMaker(backends.CPU, dtype, 42).WithRange(&low, &high)
		tensor := maker.Tensor(4, 4)
		for indices := range tensor.Shape().Iter() {
			v := tensor.At(indices...)
			require.Greater(t, v, low, "dtype %s", dtype)
			require.Less(t, v, high, "dtype %s", dtype)
		}
	}
}

func TestMakerDTypeRange(t *testing.T) {
	// Comparison and amax/amin generators widen the window well past the
	// narrow integer dtypes; the maker clamps to the representable range.
	low, high := -1000.0, 1000.0
	cases := []struct {
		dtype    dtypes.DType
		min, max float64
	}{
		{dtypes.Int8, -128, 127},
		{dtypes.Uint8, 0, 255},
	}
	for _, c := range cases {
		maker := NewMaker(backends.CPU, c.dtype, 17).WithRange(&low, &high)
		tensor := maker.Tensor(16, 16)
		for indices := range tensor.Shape().Iter() {
			v := tensor.At(indices...)
			require.GreaterOrEqual(t, v, c.min, "dtype %s", c.dtype)
			require.LessOrEqual(t, v, c.max, "dtype %s", c.dtype)
		}
	}

	// Windows entirely below an unsigned dtype collapse onto its lowest
	// value instead of going negative.
	nlow, nhigh := -5.0, -1.0
	tensor := NewMaker(backends.CPU, dtypes.Uint8, 17).WithRange(&nlow, &nhigh).Tensor(8)
	for indices := range tensor.Shape().Iter() {
		require.Zero(t, tensor.At(indices...))
	}
}

func TestMakerExcludeZero(t *testing.T) {
	low, high := 0.0, math.Inf(1)
	maker := NewMaker(backends.CPU, dtypes.Float16, 7).WithRange(&low, &high).WithExcludeZero(true)
	for ii := 0; ii < 100; ii++ {
		require.NotZero(t, maker.Number())
	}

	intMaker := NewMaker(backends.CPU, dtypes.Int8, 7).WithExcludeZero(true)
	tensor := intMaker.Tensor(64)
	for indices := range tensor.Shape().Iter() {
		require.NotZero(t, tensor.At(indices...))
	}
}

func TestMakerDerivation(t *testing.T) {
	base := NewMaker(backends.CPU, dtypes.Float32, 1)
	pred := base.WithDType(dtypes.Bool).WithRequiresGrad(false)

	// Deriving never changes the base maker's configuration.
	tensor := base.Tensor(2, 2)
	require.Equal(t, dtypes.Float32, tensor.DType())
	require.Equal(t, dtypes.Bool, pred.Tensor(2).DType())

	// Derived makers share the base random stream.
	fresh := NewMaker(backends.CPU, dtypes.Float32, 1)
	_ = fresh.WithDType(dtypes.Bool).Tensor(2, 2)
	require.False(t, tensor.Equal(fresh.Tensor(2, 2)))
}

func TestMakerDTypes(t *testing.T) {
	pred := NewMaker(backends.CPU, dtypes.Bool, 3).Tensor(10)
	for indices := range pred.Shape().Iter() {
		v := pred.At(indices...)
		require.True(t, v == 0 || v == 1)
	}

	idx := NewMaker(backends.CPU, dtypes.Int64, 3).WithRange(ptr(0.0), ptr(5.0)).Tensor(32)
	for indices := range idx.Shape().Iter() {
		v := idx.At(indices...)
		require.Equal(t, math.Trunc(v), v)
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 5.0)
	}
}

func ptr(v float64) *float64 { return &v }
