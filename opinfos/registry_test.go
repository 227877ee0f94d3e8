package opinfos

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	wantPerCategory := map[Category]int{
		Unary:     39,
		Binary:    13,
		Ternary:   2,
		Shape:     16,
		Reduction: 6,
		Creation:  3,
		Matmul:    2,
		NN:        2,
	}
	total := 0
	for _, category := range AllCategories() {
		count := 0
		for op := range r.ByCategory(category) {
			require.Equal(t, category, op.Category())
			count++
		}
		require.Equal(t, wantPerCategory[category], count, "category %s", category)
		total += count
	}
	require.Equal(t, total, r.Len())

	seen := make(map[string]bool, r.Len())
	for op := range r.All() {
		require.False(t, seen[op.Name()], "operator %q appears twice", op.Name())
		seen[op.Name()] = true
		require.Same(t, op, r.ByName(op.Name()))
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	abs := r.ByName("abs")
	require.NotNil(t, abs)
	require.Equal(t, Unary, abs.Category())
	require.True(t, abs.HasFn())

	op, err := r.Get("matmul")
	require.NoError(t, err)
	require.Equal(t, Matmul, op.Category())

	_, err = r.Get("no_such_operator")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_operator")
	require.Nil(t, r.ByName("no_such_operator"))
}

func TestRegistryFilter(t *testing.T) {
	r := NewRegistry()
	count := 0
	for op := range r.Filter(func(op *OpInfo) bool { return op.ErrorInputs(GenArgs{}) != nil }) {
		require.Equal(t, "broadcast_in_dim", op.Name())
		count++
	}
	require.Equal(t, 1, count)
}

func TestRegisterValidation(t *testing.T) {
	gen := func(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
		return func(yield func(*SampleInput) bool) {}
	}

	r := NewEmptyRegistry()
	r.Register(Unary, Op{Name: "dummy", SampleGen: gen})
	require.Panics(t, func() {
		r.Register(Binary, Op{Name: "dummy", SampleGen: gen})
	})
	require.Panics(t, func() {
		r.Register(Unary, Op{SampleGen: gen})
	})
	require.Panics(t, func() {
		r.Register(Unary, Op{Name: "no_samples"})
	})
}

func TestOpInfoDefaults(t *testing.T) {
	r := NewEmptyRegistry()
	gen := func(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] { return nil }
	op := r.Register(Unary, Op{
		Name:      "defaulted",
		SampleGen: gen,
	})
	require.True(t, op.SupportedDTypes().Equal(dtypes.Resolve(dtypes.All)))
	require.Equal(t, backends.AllDeviceTypes(), op.SupportedDeviceTypes())
	require.True(t, op.SupportsDeviceType(backends.CUDA))
	require.Nil(t, op.Benchmarks(GenArgs{}))
	require.Nil(t, op.ErrorInputs(GenArgs{}))
	require.Panics(t, func() { op.Call(NewSample()) })

	restricted := r.Register(Unary, Op{
		Name:        "restricted",
		SampleGen:   gen,
		DTypes:      []dtypes.Resolvable{dtypes.Floating},
		DeviceTypes: []backends.DeviceType{backends.CPU},
	})
	require.True(t, restricted.SupportsDType(dtypes.Float32))
	require.False(t, restricted.SupportsDType(dtypes.Int32))
	require.False(t, restricted.SupportsDeviceType(backends.CUDA))
}
