package opinfos

import (
	"iter"

	"github.com/pkg/errors"

	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

func maskedFillSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// predicate dimensions, input dimensions
	cases := [][2][]int{
		{{2, 1, 2}, {1, 2, 2}},
		{{4, 6}, {6, 4, 6}},
		{{3}, {3}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		predMaker := m.WithDType(dtypes.Bool).WithRequiresGrad(false)
		for _, c := range cases {
			pred := predMaker.Tensor(c[0]...)
			a := m.Tensor(c[1]...)
			if !yield(NewSample(a, pred, m.Number())) {
				return
			}
		}
	}
}

func maskedFillFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	pred, okPred := sample.Arg(1).(*tensors.Tensor)
	value, okValue := sample.Arg(2).(float64)
	if !okA || !okPred || !okValue {
		return nil, errors.Errorf("masked_fill expects (tensor, bool tensor, number)")
	}
	dims, err := broadcastDims(a.Shape().Dimensions, pred.Shape().Dimensions)
	if err != nil {
		return nil, err
	}
	input := a.BroadcastTo(dims...)
	mask := pred.BroadcastTo(dims...)
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	for indices := range result.Shape().Iter() {
		v := input.At(indices...)
		if mask.At(indices...) != 0 {
			v = a.DType().Quantize(value)
		}
		result.SetAt(v, indices...)
	}
	return result, nil
}

func whereSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// predicate, on-true and on-false dimensions, pairwise broadcastable
	cases := [][3][]int{
		{{5}, {5}, {5}},
		{{2, 1, 2}, {1, 2, 2}, {2, 2, 1}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		predMaker := m.WithDType(dtypes.Bool).WithRequiresGrad(false)
		for _, c := range cases {
			if !yield(NewSample(predMaker.Tensor(c[0]...), m.Tensor(c[1]...), m.Tensor(c[2]...))) {
				return
			}
		}
	}
}

func whereFn(sample *SampleInput) (any, error) {
	pred, okPred := sample.Arg(0).(*tensors.Tensor)
	a, okA := sample.Arg(1).(*tensors.Tensor)
	b, okB := sample.Arg(2).(*tensors.Tensor)
	if !okPred || !okA || !okB {
		return nil, errors.Errorf("where expects (bool tensor, tensor, tensor)")
	}
	dims, err := broadcastDims(pred.Shape().Dimensions, a.Shape().Dimensions)
	if err != nil {
		return nil, err
	}
	dims, err = broadcastDims(dims, b.Shape().Dimensions)
	if err != nil {
		return nil, err
	}
	mask := pred.BroadcastTo(dims...)
	onTrue := a.BroadcastTo(dims...)
	onFalse := b.BroadcastTo(dims...)
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	for indices := range result.Shape().Iter() {
		if mask.At(indices...) != 0 {
			result.SetAt(onTrue.At(indices...), indices...)
		} else {
			result.SetAt(onFalse.At(indices...), indices...)
		}
	}
	return result, nil
}

func registerTernaryOps(r *Registry) {
	r.Register(Ternary, Op{
		Name:      "masked_fill",
		Fn:        maskedFillFn,
		SampleGen: maskedFillSamples,
		Decorators: []Decorate{
			xfail("xla half precision select mismatches", Decorate{
				TestNames: []string{"consistency"},
				Backends:  []string{"xla"},
				DTypes:    []dtypes.Resolvable{dtypes.BFloat16, dtypes.Float16},
			}),
		},
	})

	r.Register(Ternary, Op{
		Name:      "where",
		Fn:        whereFn,
		SampleGen: whereSamples,
		Decorators: []Decorate{
			xfail("xla half precision select mismatches", Decorate{
				TestNames: []string{"consistency"},
				Backends:  []string{"xla"},
				DTypes:    []dtypes.Resolvable{dtypes.BFloat16, dtypes.Float16},
			}),
		},
	})
}
