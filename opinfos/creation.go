package opinfos

import (
	"iter"
	"math"

	"github.com/pkg/errors"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

func creationTarget(sample *SampleInput) (backends.DeviceType, dtypes.DType, error) {
	deviceArg, okDevice := sample.Kwarg("device")
	dtypeArg, okDType := sample.Kwarg("dtype")
	if !okDevice || !okDType {
		return 0, dtypes.InvalidDType, errors.Errorf("creation operators require device and dtype keyword arguments")
	}
	return deviceArg.(backends.DeviceType), dtypeArg.(dtypes.DType), nil
}

func arangeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// start, end, step
	cases := [][3]float64{
		{0, 1, 2},
		{-5, -8, -1},
		{-3, 11, 3},
	}
	if g.DType.IsInexact() {
		cases = append(cases,
			[3]float64{5, 11, 0.3},
			[3]float64{3, -4.2, -1},
		)
	}
	return func(yield func(*SampleInput) bool) {
		for _, c := range cases {
			sample := NewSample().
				WithKwarg("start", c[0]).
				WithKwarg("end", c[1]).
				WithKwarg("step", c[2]).
				WithKwarg("dtype", g.DType).
				WithKwarg("device", g.Device)
			if !yield(sample) {
				return
			}
		}
	}
}

func arangeFn(sample *SampleInput) (any, error) {
	device, dtype, err := creationTarget(sample)
	if err != nil {
		return nil, err
	}
	startArg, _ := sample.Kwarg("start")
	endArg, _ := sample.Kwarg("end")
	stepArg, _ := sample.Kwarg("step")
	start := startArg.(float64)
	end := endArg.(float64)
	step := stepArg.(float64)
	if step == 0 {
		return nil, errors.Errorf("arange step must be nonzero")
	}
	length := int(math.Ceil((end - start) / step))
	if length < 0 {
		length = 0
	}
	values := make([]float64, length)
	for i := range values {
		values[i] = dtype.Quantize(start + float64(i)*step)
	}
	return tensors.FromFlatData(device, shapes.Make(dtype, length), values), nil
}

func fullSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, fill value
	cases := []struct {
		dims []int
		fill float64
	}{
		{[]int{4, 4}, 1},
		{[]int{8, 1, 6}, 1},
		{[]int{8, 7, 5, 1}, 1},
	}
	return func(yield func(*SampleInput) bool) {
		for _, c := range cases {
			sample := NewSample(c.dims, c.fill).
				WithKwarg("dtype", g.DType).
				WithKwarg("device", g.Device)
			if !yield(sample) {
				return
			}
		}
	}
}

func fullFn(sample *SampleInput) (any, error) {
	device, dtype, err := creationTarget(sample)
	if err != nil {
		return nil, err
	}
	dims, okDims := sample.Arg(0).([]int)
	fill, okFill := sample.Arg(1).(float64)
	if !okDims || !okFill {
		return nil, errors.Errorf("full expects (dimensions, fill value)")
	}
	result := tensors.FromShape(device, shapes.Make(dtype, dims...))
	quantized := dtype.Quantize(fill)
	for indices := range result.Shape().Iter() {
		result.SetAt(quantized, indices...)
	}
	return result, nil
}

func emptySamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	cases := [][]int{
		{1},
		{4, 4},
		{8, 1, 6},
		{8, 7, 5, 1},
	}
	return func(yield func(*SampleInput) bool) {
		for _, dims := range cases {
			sample := NewSample(dims).
				WithKwarg("dtype", g.DType).
				WithKwarg("device", g.Device)
			if !yield(sample) {
				return
			}
		}
	}
}

// emptyFn zero-fills, so result comparisons stay deterministic.
func emptyFn(sample *SampleInput) (any, error) {
	device, dtype, err := creationTarget(sample)
	if err != nil {
		return nil, err
	}
	dims, ok := sample.Arg(0).([]int)
	if !ok {
		return nil, errors.Errorf("empty expects dimensions")
	}
	return tensors.FromShape(device, shapes.Make(dtype, dims...)), nil
}

func registerCreationOps(r *Registry) {
	r.Register(Creation, Op{
		Name:      "arange",
		Fn:        arangeFn,
		DTypes:    []dtypes.Resolvable{dtypes.SignedInteger, dtypes.UnsignedInteger, dtypes.Floating},
		SampleGen: arangeSamples,
		Decorators: []Decorate{
			xfail("xla half precision arange mismatches", Decorate{
				Backends: []string{"xla"},
				DTypes:   []dtypes.Resolvable{dtypes.BFloat16, dtypes.Float16},
			}),
		},
	})

	r.Register(Creation, Op{
		Name:      "full",
		Fn:        fullFn,
		SampleGen: fullSamples,
	})

	r.Register(Creation, Op{
		Name:      "empty",
		Fn:        emptyFn,
		SampleGen: emptySamples,
	})
}
