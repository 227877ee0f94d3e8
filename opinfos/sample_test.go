package opinfos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

func TestWithKwarg(t *testing.T) {
	base := NewSample(1, 2)
	withKeepdim := base.WithKwarg("keepdim", true)

	// The receiver is untouched.
	_, present := base.Kwarg("keepdim")
	require.False(t, present)
	require.Equal(t, 2, base.NumArgs())

	value, present := withKeepdim.Kwarg("keepdim")
	require.True(t, present)
	require.Equal(t, true, value)

	// Insertion order is preserved; overwriting keeps the original slot.
	s := base.WithKwarg("b", 1).WithKwarg("a", 2).WithKwarg("b", 3)
	var keys []string
	var values []any
	for key, value := range s.Kwargs() {
		keys = append(keys, key)
		values = append(values, value)
	}
	require.Equal(t, []string{"b", "a"}, keys)
	require.Equal(t, []any{3, 2}, values)
}

func TestSampleNoncontiguous(t *testing.T) {
	tensor := tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 2, 2), []float64{1, 2, 3, 4})
	sample := NewSample(tensor, 3).WithKwarg("weight", tensor)

	derived := sample.Noncontiguous()
	first := derived.Arg(0).(*tensors.Tensor)
	require.False(t, first.IsContiguous())
	require.True(t, tensor.Equal(first))
	require.Equal(t, 3, derived.Arg(1))
	kw, _ := derived.Kwarg("weight")
	require.False(t, kw.(*tensors.Tensor).IsContiguous())

	// The original sample still holds the dense tensor.
	require.True(t, sample.Arg(0).(*tensors.Tensor).IsContiguous())
}

func TestSampleReference(t *testing.T) {
	base := tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 6), []float64{0, 1, 2, 3, 4, 5})
	view := base.AsStrided([]int{2, 2}, []int{3, 1}, 1)
	sample := NewSample(view, dtypes.Float16, []any{view, 7})

	reference := sample.Reference()
	dense := reference.Arg(0).(*tensors.Tensor)
	require.True(t, dense.IsContiguous())
	require.True(t, view.Equal(dense))
	require.Equal(t, dtypes.Float16.Tag(), reference.Arg(1))

	// Nested containers are rewritten too.
	nested := reference.Arg(2).([]any)
	require.True(t, nested[0].(*tensors.Tensor).IsContiguous())
	require.Equal(t, 7, nested[1])
}

func TestSampleTagged(t *testing.T) {
	tensor := tensors.FromFlatData(backends.CPU, shapes.Make(dtypes.Float32, 2), []float64{1, 2})
	view := tensor.NoncontiguousLike()
	sample := NewSample(view).WithKwarg("dtype", dtypes.BFloat16)

	tagged := sample.Tagged()
	// Tensors keep their layout, only dtype leaves become tags.
	require.Same(t, view, tagged.Arg(0))
	kw, _ := tagged.Kwarg("dtype")
	require.Equal(t, dtypes.BFloat16.Tag(), kw)
}

func TestSampleString(t *testing.T) {
	s := NewSample(1, "x").WithKwarg("keepdim", false)
	text := s.String()
	require.Contains(t, text, "args=(1, x)")
	require.Contains(t, text, "keepdim=false")
}
