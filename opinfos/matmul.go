package opinfos

import (
	"iter"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

func gatherValues(t *tensors.Tensor) []float64 {
	values := make([]float64, 0, t.Size())
	for indices := range t.Shape().Iter() {
		values = append(values, t.At(indices...))
	}
	return values
}

func reshapeDense(t *tensors.Tensor, dims ...int) *tensors.Tensor {
	return tensors.FromFlatData(t.Device(), shapes.Make(t.DType(), dims...), gatherValues(t))
}

// matmulTensors multiplies with the usual promotion rules: vectors gain a
// temporary axis, batch dimensions broadcast.
func matmulTensors(a, b *tensors.Tensor) (*tensors.Tensor, error) {
	if a.Rank() == 0 || b.Rank() == 0 {
		return nil, errorOf(ErrRankMismatch, "matmul requires at least rank 1 operands")
	}
	if a.Rank() == 1 && b.Rank() == 1 {
		if a.Size() != b.Size() {
			return nil, errorOf(ErrShapeMismatch, "dot of vectors with %d and %d elements", a.Size(), b.Size())
		}
		dot := floats.Dot(gatherValues(a), gatherValues(b))
		return tensors.FromScalar(a.Device(), a.DType(), a.DType().Quantize(dot)), nil
	}

	left, right := a, b
	if left.Rank() == 1 {
		left = reshapeDense(left, 1, left.Size())
	}
	if right.Rank() == 1 {
		right = reshapeDense(right, right.Size(), 1)
	}

	m := left.Shape().Dim(-2)
	k := left.Shape().Dim(-1)
	if right.Shape().Dim(-2) != k {
		return nil, errorOf(ErrShapeMismatch, "matmul inner dimensions %d and %d differ", k, right.Shape().Dim(-2))
	}
	p := right.Shape().Dim(-1)

	batch, err := broadcastDims(
		left.Shape().Dimensions[:left.Rank()-2],
		right.Shape().Dimensions[:right.Rank()-2])
	if err != nil {
		return nil, err
	}
	leftB := left.BroadcastTo(append(append([]int{}, batch...), m, k)...)
	rightB := right.BroadcastTo(append(append([]int{}, batch...), k, p)...)

	resultDims := append(append([]int{}, batch...), m, p)
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), resultDims...))
	lhs := mat.NewDense(m, k, nil)
	rhs := mat.NewDense(k, p, nil)
	var product mat.Dense
	for batchIndex := range shapes.Make(a.DType(), batch...).Iter() {
		for i := 0; i < m; i++ {
			for j := 0; j < k; j++ {
				lhs.Set(i, j, leftB.At(append(append([]int{}, batchIndex...), i, j)...))
			}
		}
		for i := 0; i < k; i++ {
			for j := 0; j < p; j++ {
				rhs.Set(i, j, rightB.At(append(append([]int{}, batchIndex...), i, j)...))
			}
		}
		product.Mul(lhs, rhs)
		for i := 0; i < m; i++ {
			for j := 0; j < p; j++ {
				result.SetAt(a.DType().Quantize(product.At(i, j)), append(append([]int{}, batchIndex...), i, j)...)
			}
		}
	}

	// Drop the axes vector promotion added.
	if a.Rank() == 1 {
		result, err = squeezeAxes(result, []int{len(batch)})
		if err != nil {
			return nil, err
		}
	}
	if b.Rank() == 1 {
		result, err = squeezeAxes(result, []int{result.Rank() - 1})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func matmulFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	b, okB := sample.Arg(1).(*tensors.Tensor)
	if !okA || !okB {
		return nil, errors.Errorf("matmul expects two tensors")
	}
	return matmulTensors(a, b)
}

func matmulSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	const (
		M = 4
		N = 3
		B = 2
	)
	// left and right dimensions
	cases := [][2][]int{
		{{M}, {M}},
		{{M}, {M, N}},
		{{M, N}, {N}},
		{{M}, {B, M, N}},
		{{B, M, N}, {N}},
		{{M, N}, {N, M}},
		{{B, M, N}, {B, N, M}},
		{{B, B, M, N}, {B, B, N, M}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c[0]...), m.Tensor(c[1]...))) {
				return
			}
		}
	}
}

func linearFn(sample *SampleInput) (any, error) {
	input, okInput := sample.Arg(0).(*tensors.Tensor)
	weight, okWeight := sample.Arg(1).(*tensors.Tensor)
	if !okInput || !okWeight {
		return nil, errors.Errorf("linear expects (input, weight) tensors")
	}
	transposed, err := permute(weight, []int{1, 0})
	if err != nil {
		return nil, err
	}
	result, err := matmulTensors(input, transposed)
	if err != nil {
		return nil, err
	}
	if sample.NumArgs() < 3 {
		return result, nil
	}
	bias, ok := sample.Arg(2).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("linear bias must be a tensor")
	}
	biased := tensors.FromShape(result.Device(), result.Shape().Clone())
	biasB := bias.BroadcastTo(result.Shape().Dimensions...)
	for indices := range result.Shape().Iter() {
		biased.SetAt(result.DType().Quantize(result.At(indices...)+biasB.At(indices...)), indices...)
	}
	return biased, nil
}

func linearSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	const (
		inFeatures  = 3
		outFeatures = 5
		batchSize   = 2
	)
	// input and weight dimensions
	noBias := [][2][]int{
		{{inFeatures}, {outFeatures, inFeatures}},
		{{batchSize, inFeatures}, {outFeatures, inFeatures}},
	}
	// input, weight and bias dimensions
	withBias := [][3][]int{
		{{inFeatures}, {outFeatures, inFeatures}, {outFeatures}},
		{{batchSize, inFeatures}, {outFeatures, inFeatures}, {outFeatures}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range noBias {
			if !yield(NewSample(m.Tensor(c[0]...), m.Tensor(c[1]...))) {
				return
			}
		}
		for _, c := range withBias {
			if !yield(NewSample(m.Tensor(c[0]...), m.Tensor(c[1]...), m.Tensor(c[2]...))) {
				return
			}
		}
	}
}

func registerMatmulOps(r *Registry) {
	r.Register(Matmul, Op{
		Name:      "matmul",
		Fn:        matmulFn,
		DTypes:    []dtypes.Resolvable{dtypes.Floating, dtypes.ComplexFloating},
		SampleGen: matmulSamples,
		References: References{
			Primary: "https://pkg.go.dev/gonum.org/v1/gonum/mat#Dense.Mul",
		},
		Decorators: []Decorate{
			xfail("go backend has no CPU float16 matmul", Decorate{
				DTypes:      []dtypes.Resolvable{dtypes.Float16},
				DeviceTypes: []backends.DeviceType{backends.CPU},
			}),
		},
	})

	r.Register(Matmul, Op{
		Name:      "linear",
		Fn:        linearFn,
		DTypes:    []dtypes.Resolvable{dtypes.Floating, dtypes.ComplexFloating},
		SampleGen: linearSamples,
		Decorators: []Decorate{
			xfail("go backend has no CPU float16 linear", Decorate{
				DTypes:      []dtypes.Resolvable{dtypes.Float16},
				DeviceTypes: []backends.DeviceType{backends.CPU},
			}),
		},
	})
}
