package opinfos

import (
	"math"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

func f64(dims []int, values ...float64) *tensors.Tensor {
	return tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Float64, dims...), values)
}

func i64(dims []int, values ...float64) *tensors.Tensor {
	return tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Int64, dims...), values)
}

func requireTensor(t *testing.T, result any, dims []int, values ...float64) {
	tensor, ok := result.(*tensors.Tensor)
	require.True(t, ok, "expected a tensor, got %T", result)
	require.Equal(t, dims, append([]int{}, tensor.Shape().Dimensions...))
	position := 0
	for indices := range tensor.Shape().Iter() {
		require.InDelta(t, values[position], tensor.At(indices...), 1e-9, "position %v", indices)
		position++
	}
	require.Equal(t, len(values), position)
}

func TestUnaryFns(t *testing.T) {
	r := NewRegistry()
	call := func(name string, sample *SampleInput) any {
		t.Helper()
		result, err := must.M1(r.Get(name)).Call(sample)
		require.NoError(t, err)
		return result
	}

	requireTensor(t, call("sqrt", NewSample(f64([]int{3}, 1, 4, 9))), []int{3}, 1, 2, 3)
	requireTensor(t, call("sign", NewSample(f64([]int{3}, -5, 0, 2))), []int{3}, -1, 0, 1)
	requireTensor(t, call("neg", NewSample(f64([]int{2}, 1.5, -2))), []int{2}, -1.5, 2)

	require.InDelta(t, 0.5, call("sigmoid", NewSample(0.0)).(float64), 1e-12)
	requireTensor(t, call("ndtri", NewSample(f64([]int{1}, 0.5))), []int{1}, 0)

	// Two's complement identity over integer buffers, logical not for bool.
	requireTensor(t, call("bitwise_not", NewSample(i64([]int{3}, 0, 1, -3))), []int{3}, -1, -2, 2)
	pred := tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Bool, 2), []float64{0, 1})
	requireTensor(t, call("bitwise_not", NewSample(pred)), []int{2}, 1, 0)

	finite := call("isfinite", NewSample(f64([]int{3}, 1, math.Inf(1), math.NaN()))).(*tensors.Tensor)
	require.Equal(t, dtypes.Bool, finite.DType())
	requireTensor(t, finite, []int{3}, 1, 0, 0)

	requireTensor(t, call("round", NewSample(f64([]int{4}, 0.5, 1.5, 2.5, -0.5))), []int{4}, 0, 2, 2, 0)
	requireTensor(t, call("trunc", NewSample(f64([]int{2}, 1.7, -1.7))), []int{2}, 1, -1)
}

func TestBinaryFns(t *testing.T) {
	r := NewRegistry()
	call := func(name string, sample *SampleInput) any {
		t.Helper()
		result, err := must.M1(r.Get(name)).Call(sample)
		require.NoError(t, err)
		return result
	}

	a := f64([]int{2, 2}, 1, 2, 3, 4)
	col := f64([]int{2, 1}, 10, 20)
	requireTensor(t, call("add", NewSample(a, col)), []int{2, 2}, 11, 12, 23, 24)
	requireTensor(t, call("sub", NewSample(a, a)), []int{2, 2}, 0, 0, 0, 0)
	requireTensor(t, call("mul", NewSample(f64([]int{2}, 3, -2), f64([]int{2}, 2, 2))), []int{2}, 6, -4)

	// Comparisons produce booleans.
	equal := call("eq", NewSample(a, f64([]int{2, 2}, 1, 0, 3, 0))).(*tensors.Tensor)
	require.Equal(t, dtypes.Bool, equal.DType())
	requireTensor(t, equal, []int{2, 2}, 1, 0, 1, 0)

	// Division always yields an inexact dtype.
	quotient := call("true_divide", NewSample(i64([]int{2}, 7, 9), i64([]int{2}, 2, 3))).(*tensors.Tensor)
	require.Equal(t, dtypes.Float32, quotient.DType())
	requireTensor(t, quotient, []int{2}, 3.5, 3)

	// fmod keeps the dividend's sign, remainder the divisor's.
	requireTensor(t, call("fmod", NewSample(f64([]int{2}, -7, 7), f64([]int{2}, 3, -3))), []int{2}, -1, 1)
	requireTensor(t, call("remainder", NewSample(f64([]int{2}, -7, 7), f64([]int{2}, 3, -3))), []int{2}, 2, -2)

	// Number pairs stay numbers.
	require.InDelta(t, 8.0, call("pow", NewSample(2.0, 3.0)).(float64), 1e-12)
}

func TestTernaryFns(t *testing.T) {
	r := NewRegistry()

	a := f64([]int{2, 2}, 1, 2, 3, 4)
	mask := tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Bool, 2, 2), []float64{1, 0, 0, 1})
	filled, err := r.ByName("masked_fill").Call(NewSample(a, mask, 9.0))
	require.NoError(t, err)
	requireTensor(t, filled, []int{2, 2}, 9, 2, 3, 9)

	chosen, err := r.ByName("where").Call(NewSample(mask, a, f64([]int{2, 2}, -1, -2, -3, -4)))
	require.NoError(t, err)
	requireTensor(t, chosen, []int{2, 2}, 1, -2, -3, 4)
}

func TestReshapeFn(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{2, 3}, 0, 1, 2, 3, 4, 5)

	result, err := r.ByName("reshape").Call(NewSample(a, []int{3, -1}))
	require.NoError(t, err)
	requireTensor(t, result, []int{3, 2}, 0, 1, 2, 3, 4, 5)

	// Row-major order is preserved through a view.
	view := a.NoncontiguousLike()
	result, err = r.ByName("reshape").Call(NewSample(view, []int{6}))
	require.NoError(t, err)
	requireTensor(t, result, []int{6}, 0, 1, 2, 3, 4, 5)

	_, err = r.ByName("reshape").Call(NewSample(a, []int{4, -1}))
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrShapeMismatch, kind)
}

func TestGetitemFn(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{3, 3}, 0, 1, 2, 3, 4, 5, 6, 7, 8)
	call := func(key []Index) any {
		t.Helper()
		result, err := r.ByName("getitem").Call(NewSample(a, key))
		require.NoError(t, err)
		return result
	}

	requireTensor(t, call([]Index{span(0, 2), At(1)}), []int{2}, 1, 4)
	requireTensor(t, call([]Index{At(-1)}), []int{3}, 6, 7, 8)
	requireTensor(t, call([]Index{Ellipsis{}, At(0)}), []int{3}, 0, 3, 6)
	requireTensor(t, call([]Index{NewAxis{}, At(1), spanStep(0, 3, 2)}), []int{1, 2}, 3, 5)
	// Start past stop gives an empty axis.
	requireTensor(t, call([]Index{span(2, 1), fullSpan()}), []int{0, 3})

	_, err := r.ByName("getitem").Call(NewSample(a, []Index{At(5)}))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrShapeMismatch, kind)
}

func TestPadFn(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{3}, 1, 2, 3)

	result, err := r.ByName("pad").Call(NewSample(a, 0.0, []PadConfig{{Low: 1, High: 1, Interior: 1}}))
	require.NoError(t, err)
	requireTensor(t, result, []int{7}, 0, 1, 0, 2, 0, 3, 0)

	// Negative amounts trim.
	result, err = r.ByName("pad").Call(NewSample(a, 0.0, []PadConfig{{Low: -1, High: 0, Interior: 0}}))
	require.NoError(t, err)
	requireTensor(t, result, []int{2}, 2, 3)
}

func TestSliceFns(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{2, 4}, 0, 1, 2, 3, 4, 5, 6, 7)

	result, err := r.ByName("slice").Call(NewSample(a, []int{0, 1}, []int{2, 3}))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2}, 1, 2, 5, 6)

	result, err = r.ByName("slice_in_dim").Call(NewSample(a, 1, -1, 2, 1))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 1}, 1, 5)
}

func TestSplitFns(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{7}, 0, 1, 2, 3, 4, 5, 6)

	result, err := r.ByName("tensor_split").Call(NewSample(a, 3, 0))
	require.NoError(t, err)
	parts := result.([]*tensors.Tensor)
	require.Len(t, parts, 3)
	requireTensor(t, parts[0], []int{3}, 0, 1, 2)
	requireTensor(t, parts[1], []int{2}, 3, 4)
	requireTensor(t, parts[2], []int{2}, 5, 6)

	result, err = r.ByName("split").Call(NewSample(a, 3, 0))
	require.NoError(t, err)
	parts = result.([]*tensors.Tensor)
	require.Len(t, parts, 3)
	requireTensor(t, parts[2], []int{1}, 6)
}

func TestAxisFns(t *testing.T) {
	r := NewRegistry()
	call := func(name string, sample *SampleInput) any {
		t.Helper()
		result, err := must.M1(r.Get(name)).Call(sample)
		require.NoError(t, err)
		return result
	}

	a := f64([]int{2, 3}, 0, 1, 2, 3, 4, 5)
	requireTensor(t, call("transpose", NewSample(a, 0, 1)), []int{3, 2}, 0, 3, 1, 4, 2, 5)
	requireTensor(t, call("permute", NewSample(a, []int{1, 0})), []int{3, 2}, 0, 3, 1, 4, 2, 5)

	unit := f64([]int{1, 2, 1}, 7, 8)
	requireTensor(t, call("squeeze", NewSample(unit, nil)), []int{2}, 7, 8)
	requireTensor(t, call("squeeze", NewSample(unit, 1)), []int{1, 2, 1}, 7, 8)
	requireTensor(t, call("squeeze_dims", NewSample(unit, []int{0})), []int{2, 1}, 7, 8)
	requireTensor(t, call("unsqueeze", NewSample(f64([]int{2}, 7, 8), []int{0, 2})), []int{1, 2, 1}, 7, 8)
}

func TestTakeFns(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{2, 3}, 0, 1, 2, 3, 4, 5)

	result, err := r.ByName("take").Call(NewSample(a, i64([]int{2}, 2, 0), 1))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2}, 2, 0, 5, 3)

	result, err = r.ByName("take_along_axis").Call(NewSample(a, i64([]int{2, 1}, 1, 2), 1))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 1}, 1, 5)
}

func TestConvertElementTypeFn(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{2}, 2, -3)
	result, err := r.ByName("convert_element_type").Call(NewSample(a, dtypes.Int32))
	require.NoError(t, err)
	converted := result.(*tensors.Tensor)
	require.Equal(t, dtypes.Int32, converted.DType())
	requireTensor(t, converted, []int{2}, 2, -3)
}

func TestBroadcastInDimFn(t *testing.T) {
	r := NewRegistry()
	op := r.ByName("broadcast_in_dim")

	result, err := op.Call(NewSample(f64([]int{2}, 1, 2), []int{2, 2}, []int{1}))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2}, 1, 2, 1, 2)

	result, err = op.Call(NewSample(f64([]int{1}, 7), []int{2, 3}, []int{1}))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 3}, 7, 7, 7, 7, 7, 7)

	// Every declared error case provokes exactly the failure it declares.
	g := GenArgs{Device: backends.CPU, DType: dtypes.Float32, Seed: 1}
	count := 0
	for sample, expect := range op.ErrorInputs(g) {
		count++
		_, err := op.Call(sample)
		require.Error(t, err, "sample %s", sample)
		kind, ok := KindOf(err)
		require.True(t, ok)
		require.Equal(t, expect.Kind, kind)
		require.Contains(t, err.Error(), expect.Message)
	}
	require.Equal(t, 5, count)
}

func TestReductionFns(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{2, 2}, 1, 2, 3, 4)

	result, err := r.ByName("sum").Call(NewSample(a))
	require.NoError(t, err)
	requireTensor(t, result, []int{}, 10)

	result, err = r.ByName("amax").Call(NewSample(a, 1, true))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 1}, 2, 4)

	result, err = r.ByName("amin").Call(NewSample(a, []int{0}, false))
	require.NoError(t, err)
	requireTensor(t, result, []int{2}, 1, 2)

	result, err = r.ByName("prod").Call(NewSample(a, nil, false))
	require.NoError(t, err)
	requireTensor(t, result, []int{}, 24)

	result, err = r.ByName("mean").Call(NewSample(a, 0, true))
	require.NoError(t, err)
	requireTensor(t, result, []int{1, 2}, 2, 3)
}

func TestVarMeanFn(t *testing.T) {
	r := NewRegistry()
	a := f64([]int{4}, 1, 2, 3, 4)

	// Default correction of 1.
	result, err := r.ByName("var_mean").Call(NewSample(a, nil))
	require.NoError(t, err)
	pair := result.([]*tensors.Tensor)
	require.Len(t, pair, 2)
	require.InDelta(t, 5.0/3.0, pair[0].At(), 1e-12)
	require.InDelta(t, 2.5, pair[1].At(), 1e-12)

	// unbiased=false switches to the population variance.
	result, err = r.ByName("var_mean").Call(NewSample(a, nil, false, false))
	require.NoError(t, err)
	pair = result.([]*tensors.Tensor)
	require.InDelta(t, 1.25, pair[0].At(), 1e-12)

	// Explicit correction via keyword.
	result, err = r.ByName("var_mean").Call(
		NewSample(a, nil).WithKwarg("keepdim", true).WithKwarg("correction", 0))
	require.NoError(t, err)
	pair = result.([]*tensors.Tensor)
	requireTensor(t, pair[0], []int{1}, 1.25)
}

func TestCreationFns(t *testing.T) {
	r := NewRegistry()
	arange := func(start, end, step float64, dtype dtypes.DType) any {
		t.Helper()
		sample := NewSample().
			WithKwarg("start", start).
			WithKwarg("end", end).
			WithKwarg("step", step).
			WithKwarg("dtype", dtype).
			WithKwarg("device", backends.CPU)
		result, err := r.ByName("arange").Call(sample)
		require.NoError(t, err)
		return result
	}

	requireTensor(t, arange(0, 1, 2, dtypes.Float64), []int{1}, 0)
	requireTensor(t, arange(-5, -8, -1, dtypes.Float64), []int{3}, -5, -6, -7)
	requireTensor(t, arange(-3, 11, 3, dtypes.Int64), []int{5}, -3, 0, 3, 6, 9)

	full, err := r.ByName("full").Call(
		NewSample([]int{2, 2}, 3.0).WithKwarg("dtype", dtypes.Float64).WithKwarg("device", backends.CPU))
	require.NoError(t, err)
	requireTensor(t, full, []int{2, 2}, 3, 3, 3, 3)

	empty, err := r.ByName("empty").Call(
		NewSample([]int{3}).WithKwarg("dtype", dtypes.Float64).WithKwarg("device", backends.CPU))
	require.NoError(t, err)
	requireTensor(t, empty, []int{3}, 0, 0, 0)
}

func TestMatmulFn(t *testing.T) {
	r := NewRegistry()
	op := r.ByName("matmul")

	// Vector dot product collapses to a scalar.
	result, err := op.Call(NewSample(f64([]int{3}, 1, 2, 3), f64([]int{3}, 4, 5, 6)))
	require.NoError(t, err)
	requireTensor(t, result, []int{}, 32)

	a := f64([]int{2, 2}, 1, 2, 3, 4)
	b := f64([]int{2, 2}, 5, 6, 7, 8)
	result, err = op.Call(NewSample(a, b))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2}, 19, 22, 43, 50)

	// Vector operands are promoted and squeezed back.
	result, err = op.Call(NewSample(f64([]int{2}, 1, 1), a))
	require.NoError(t, err)
	requireTensor(t, result, []int{2}, 4, 6)

	result, err = op.Call(NewSample(a, f64([]int{2}, 1, 1)))
	require.NoError(t, err)
	requireTensor(t, result, []int{2}, 3, 7)

	// Batch dimensions broadcast.
	batched := f64([]int{2, 2, 2}, 1, 0, 0, 1, 2, 0, 0, 2)
	result, err = op.Call(NewSample(batched, a))
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2, 2}, 1, 2, 3, 4, 2, 4, 6, 8)

	_, err = op.Call(NewSample(f64([]int{3}, 1, 2, 3), f64([]int{2}, 1, 2)))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrShapeMismatch, kind)
}

func TestLinearFn(t *testing.T) {
	r := NewRegistry()
	op := r.ByName("linear")

	input := f64([]int{1, 2}, 1, 2)
	weight := f64([]int{2, 2}, 1, 0, 0, 1)
	result, err := op.Call(NewSample(input, weight))
	require.NoError(t, err)
	requireTensor(t, result, []int{1, 2}, 1, 2)

	bias := f64([]int{2}, 10, 20)
	result, err = op.Call(NewSample(input, weight, bias))
	require.NoError(t, err)
	requireTensor(t, result, []int{1, 2}, 11, 22)
}

func TestSoftmaxFn(t *testing.T) {
	r := NewRegistry()
	op := r.ByName("softmax")

	result, err := op.Call(NewSample(f64([]int{2}, 0, 0), 0))
	require.NoError(t, err)
	requireTensor(t, result, []int{2}, 0.5, 0.5)

	result, err = op.Call(NewSample(f64([]int{2, 2}, 1, 1, 2, 4), -1))
	require.NoError(t, err)
	row := result.(*tensors.Tensor)
	require.InDelta(t, 1.0, row.At(0, 0)+row.At(0, 1), 1e-12)
	require.InDelta(t, 1.0, row.At(1, 0)+row.At(1, 1), 1e-12)
	require.InDelta(t, 1/(1+math.Exp(2)), row.At(1, 0), 1e-12)

	// Softmax of a scalar is one.
	result, err = op.Call(NewSample(tensors.FromScalar(backends.CPU, dtypes.Float64, 3), 0))
	require.NoError(t, err)
	requireTensor(t, result, []int{}, 1)
}

func TestEmbeddingFn(t *testing.T) {
	r := NewRegistry()
	op := r.ByName("embedding")

	weight := f64([]int{3, 2}, 0, 1, 2, 3, 4, 5)
	sample := NewSample(i64([]int{2}, 2, 0), weight).
		WithKwarg("padding_idx", nil).
		WithKwarg("max_norm", nil).
		WithKwarg("norm_type", 2.0).
		WithKwarg("scale_grad_by_freq", false).
		WithKwarg("sparse", false)
	result, err := op.Call(sample)
	require.NoError(t, err)
	requireTensor(t, result, []int{2, 2}, 4, 5, 0, 1)

	// Rows above max_norm are rescaled onto the norm ball.
	normed := NewSample(i64([]int{1}, 0), f64([]int{1, 2}, 3, 4)).
		WithKwarg("max_norm", 1.0).
		WithKwarg("norm_type", 2.0)
	result, err = op.Call(normed)
	require.NoError(t, err)
	requireTensor(t, result, []int{1, 2}, 0.6, 0.8)

	_, err = op.Call(NewSample(i64([]int{1}, 5), weight))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrShapeMismatch, kind)
}
