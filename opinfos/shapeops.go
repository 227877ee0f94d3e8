package opinfos

import (
	"iter"
	"slices"

	"github.com/pkg/errors"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
	"github.com/gomlx/opcheck/types/tensors"
)

// Index is one entry of a basic-indexing key: a fixed position, a strided
// span, an ellipsis or a new size-one axis.
type Index interface {
	indexExpr()
}

// At selects a single position and removes the axis. Negative values count
// from the end.
type At int

func (At) indexExpr() {}

// Span is a [start, stop) selection with a positive step. Nil bounds are
// inferred: start defaults to 0, stop to the axis size. Negative bounds
// count from the end; out-of-range bounds are clamped.
type Span struct {
	Start, Stop *int
	Step        int
}

func (Span) indexExpr() {}

// Ellipsis expands to full spans over the axes the rest of the key leaves
// unconsumed.
type Ellipsis struct{}

func (Ellipsis) indexExpr() {}

// NewAxis inserts a size-one axis into the result.
type NewAxis struct{}

func (NewAxis) indexExpr() {}

func span(start, stop int) Span         { return Span{Start: &start, Stop: &stop, Step: 1} }
func spanStep(start, stop, st int) Span { return Span{Start: &start, Stop: &stop, Step: st} }
func spanFrom(start int) Span           { return Span{Start: &start, Step: 1} }
func spanTo(stop int) Span              { return Span{Stop: &stop, Step: 1} }
func fullSpan() Span                    { return Span{Step: 1} }

// normalizeSpan resolves a span against an axis size, returning the start,
// step and result length.
func normalizeSpan(s Span, dim int) (start, step, length int) {
	step = s.Step
	if step < 1 {
		step = 1
	}
	start = 0
	if s.Start != nil {
		start = *s.Start
		if start < 0 {
			start += dim
		}
	}
	start = min(max(start, 0), dim)
	stop := dim
	if s.Stop != nil {
		stop = *s.Stop
		if stop < 0 {
			stop += dim
		}
	}
	stop = min(max(stop, 0), dim)
	if stop > start {
		length = (stop - start + step - 1) / step
	}
	return start, step, length
}

func getitemFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	key, okKey := sample.Arg(1).([]Index)
	if !okA || !okKey {
		return nil, errors.Errorf("getitem expects (tensor, []Index)")
	}

	consumed, ellipses := 0, 0
	for _, entry := range key {
		switch entry.(type) {
		case At, Span:
			consumed++
		case Ellipsis:
			ellipses++
		}
	}
	if ellipses > 1 {
		return nil, errors.Errorf("getitem key has %d ellipses, at most one allowed", ellipses)
	}
	if consumed > a.Rank() {
		return nil, errorOf(ErrRankMismatch, "getitem key consumes %d axes of a rank %d tensor", consumed, a.Rank())
	}

	expanded := make([]Index, 0, len(key)+a.Rank()-consumed)
	for _, entry := range key {
		if _, isEllipsis := entry.(Ellipsis); isEllipsis {
			for i := 0; i < a.Rank()-consumed; i++ {
				expanded = append(expanded, fullSpan())
			}
			continue
		}
		expanded = append(expanded, entry)
	}
	if ellipses == 0 {
		for i := consumed; i < a.Rank(); i++ {
			expanded = append(expanded, fullSpan())
		}
	}

	// Plan one entry per result axis; At entries pin their source axis.
	type resultAxis struct {
		inserted         bool
		src, start, step int
	}
	var plan []resultAxis
	fixed := make(map[int]int)
	var resultDims []int
	src := 0
	for _, entry := range expanded {
		switch v := entry.(type) {
		case NewAxis:
			plan = append(plan, resultAxis{inserted: true})
			resultDims = append(resultDims, 1)
		case At:
			position := int(v)
			dim := a.Shape().Dim(src)
			if position < 0 {
				position += dim
			}
			if position < 0 || position >= dim {
				return nil, errorOf(ErrShapeMismatch, "getitem index %d out of range for axis %d (size %d)", int(v), src, dim)
			}
			fixed[src] = position
			src++
		case Span:
			start, step, length := normalizeSpan(v, a.Shape().Dim(src))
			plan = append(plan, resultAxis{src: src, start: start, step: step})
			resultDims = append(resultDims, length)
			src++
		}
	}

	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), resultDims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		for axis, position := range fixed {
			srcIndex[axis] = position
		}
		for axis, p := range plan {
			if p.inserted {
				continue
			}
			srcIndex[p.src] = p.start + p.step*indices[axis]
		}
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result, nil
}

// inferReshapeDims resolves a single -1 entry against the source size.
func inferReshapeDims(dims []int, size int) ([]int, error) {
	resolved := slices.Clone(dims)
	inferred := -1
	known := 1
	for axis, dim := range resolved {
		if dim == -1 {
			if inferred >= 0 {
				return nil, errors.Errorf("reshape allows at most one inferred dimension, got %v", dims)
			}
			inferred = axis
			continue
		}
		known *= dim
	}
	if inferred >= 0 {
		if known == 0 || size%known != 0 {
			return nil, errorOf(ErrShapeMismatch, "cannot infer dimension: %d elements into %v", size, dims)
		}
		resolved[inferred] = size / known
		known *= resolved[inferred]
	}
	if known != size {
		return nil, errorOf(ErrShapeMismatch, "reshape of %d elements into %v", size, dims)
	}
	return resolved, nil
}

func reshapeFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	dims, okDims := sample.Arg(1).([]int)
	if !okA || !okDims {
		return nil, errors.Errorf("reshape expects (tensor, dimensions)")
	}
	resolved, err := inferReshapeDims(dims, a.Size())
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, a.Size())
	for indices := range a.Shape().Iter() {
		values = append(values, a.At(indices...))
	}
	return tensors.FromFlatData(a.Device(), shapes.Make(a.DType(), resolved...), values), nil
}

// PadConfig holds one axis' padding: amounts before and after the data, and
// interior padding inserted between neighboring elements.
type PadConfig struct {
	Low, High, Interior int
}

func padFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	value, okValue := sample.Arg(1).(float64)
	config, okConfig := sample.Arg(2).([]PadConfig)
	if !okA || !okValue || !okConfig {
		return nil, errors.Errorf("pad expects (tensor, number, []PadConfig)")
	}
	if len(config) != a.Rank() {
		return nil, errorOf(ErrRankMismatch, "pad config has %d entries for a rank %d tensor", len(config), a.Rank())
	}
	dims := make([]int, a.Rank())
	for axis, c := range config {
		dim := a.Shape().Dim(axis)
		dims[axis] = c.Low + c.High + dim + max(dim-1, 0)*c.Interior
		if dims[axis] < 0 {
			return nil, errorOf(ErrShapeMismatch, "pad narrows axis %d below zero", axis)
		}
	}
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	fill := a.DType().Quantize(value)
	for indices := range result.Shape().Iter() {
		result.SetAt(fill, indices...)
	}
	target := make([]int, a.Rank())
	for indices := range a.Shape().Iter() {
		inside := true
		for axis, i := range indices {
			target[axis] = config[axis].Low + i*(1+config[axis].Interior)
			if target[axis] < 0 || target[axis] >= dims[axis] {
				inside = false
				break
			}
		}
		if inside {
			result.SetAt(a.At(indices...), target...)
		}
	}
	return result, nil
}

// sliceTensor copies the [starts, ends) block of a into a dense tensor.
func sliceTensor(a *tensors.Tensor, starts, ends []int) *tensors.Tensor {
	dims := make([]int, a.Rank())
	for axis := range dims {
		dims[axis] = ends[axis] - starts[axis]
	}
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		for axis, i := range indices {
			srcIndex[axis] = starts[axis] + i
		}
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result
}

func normalizeAxis(axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	return axis
}

func sliceInDimFn(sample *SampleInput) (any, error) {
	a, ok := sample.Arg(0).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("slice_in_dim expects a tensor first argument")
	}
	start := sample.Arg(1).(int)
	limit := sample.Arg(2).(int)
	stride := sample.Arg(3).(int)
	axis := normalizeAxis(sample.Arg(4).(int), a.Rank())
	dim := a.Shape().Dim(axis)
	if start < 0 {
		start += dim
	}
	if limit < 0 {
		limit += dim
	}
	dims := make([]int, a.Rank())
	for i := range dims {
		dims[i] = a.Shape().Dim(i)
	}
	length := 0
	if limit > start {
		length = (limit - start + stride - 1) / stride
	}
	dims[axis] = length
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		copy(srcIndex, indices)
		srcIndex[axis] = start + stride*indices[axis]
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result, nil
}

func sliceFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	starts, okStarts := sample.Arg(1).([]int)
	ends, okEnds := sample.Arg(2).([]int)
	if !okA || !okStarts || !okEnds {
		return nil, errors.Errorf("slice expects (tensor, start indices, end indices)")
	}
	if len(starts) != a.Rank() || len(ends) != a.Rank() {
		return nil, errorOf(ErrRankMismatch, "slice indices must have one entry per axis")
	}
	return sliceTensor(a, starts, ends), nil
}

// splitSizes resolves split's size-or-sections argument to chunk sizes.
func splitSizes(arg any, dim int) ([]int, error) {
	switch v := arg.(type) {
	case int:
		if v <= 0 {
			return nil, errors.Errorf("split size must be positive, got %d", v)
		}
		var sizes []int
		for remaining := dim; remaining > 0; remaining -= v {
			sizes = append(sizes, min(v, remaining))
		}
		return sizes, nil
	case []int:
		total := 0
		for _, size := range v {
			total += size
		}
		if total != dim {
			return nil, errorOf(ErrShapeMismatch, "split sections %v do not sum to axis size %d", v, dim)
		}
		return v, nil
	}
	return nil, errors.Errorf("split expects an int or []int, got %T", arg)
}

func splitAlong(a *tensors.Tensor, sizes []int, axis int) []*tensors.Tensor {
	starts := make([]int, a.Rank())
	ends := make([]int, a.Rank())
	for i := range ends {
		ends[i] = a.Shape().Dim(i)
	}
	parts := make([]*tensors.Tensor, 0, len(sizes))
	offset := 0
	for _, size := range sizes {
		starts[axis] = offset
		ends[axis] = offset + size
		parts = append(parts, sliceTensor(a, starts, ends))
		offset += size
	}
	return parts
}

func splitFn(sample *SampleInput) (any, error) {
	a, ok := sample.Arg(0).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("split expects a tensor first argument")
	}
	axis := normalizeAxis(sample.Arg(2).(int), a.Rank())
	sizes, err := splitSizes(sample.Arg(1), a.Shape().Dim(axis))
	if err != nil {
		return nil, err
	}
	return splitAlong(a, sizes, axis), nil
}

func tensorSplitFn(sample *SampleInput) (any, error) {
	a, ok := sample.Arg(0).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("tensor_split expects a tensor first argument")
	}
	axis := normalizeAxis(sample.Arg(2).(int), a.Rank())
	dim := a.Shape().Dim(axis)
	var sizes []int
	switch v := sample.Arg(1).(type) {
	case int:
		// n near-equal parts, the first dim%n of them one longer
		base, extra := dim/v, dim%v
		for i := 0; i < v; i++ {
			size := base
			if i < extra {
				size++
			}
			sizes = append(sizes, size)
		}
	case []int:
		previous := 0
		for _, boundary := range v {
			boundary = min(max(boundary, 0), dim)
			sizes = append(sizes, max(boundary-previous, 0))
			previous = max(boundary, previous)
		}
		sizes = append(sizes, dim-previous)
	default:
		return nil, errors.Errorf("tensor_split expects an int or []int, got %T", sample.Arg(1))
	}
	return splitAlong(a, sizes, axis), nil
}

// squeezeAxes drops the given size-one axes; nil drops every size-one axis.
func squeezeAxes(a *tensors.Tensor, axes []int) (*tensors.Tensor, error) {
	drop := make(map[int]bool)
	if axes == nil {
		for axis := 0; axis < a.Rank(); axis++ {
			if a.Shape().Dim(axis) == 1 {
				drop[axis] = true
			}
		}
	} else {
		for _, axis := range axes {
			axis = normalizeAxis(axis, a.Rank())
			if a.Shape().Dim(axis) != 1 {
				return nil, errorOf(ErrShapeMismatch, "cannot squeeze axis %d of size %d", axis, a.Shape().Dim(axis))
			}
			drop[axis] = true
		}
	}
	var dims []int
	for axis := 0; axis < a.Rank(); axis++ {
		if !drop[axis] {
			dims = append(dims, a.Shape().Dim(axis))
		}
	}
	values := make([]float64, 0, a.Size())
	for indices := range a.Shape().Iter() {
		values = append(values, a.At(indices...))
	}
	return tensors.FromFlatData(a.Device(), shapes.Make(a.DType(), dims...), values), nil
}

func squeezeFn(sample *SampleInput) (any, error) {
	a, ok := sample.Arg(0).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("squeeze expects a tensor first argument")
	}
	switch v := sample.Arg(1).(type) {
	case nil:
		return squeezeAxes(a, nil)
	case int:
		if a.Shape().Dim(normalizeAxis(v, a.Rank())) != 1 {
			// A non-unit axis is left alone.
			return a, nil
		}
		return squeezeAxes(a, []int{v})
	case []int:
		return squeezeAxes(a, v)
	}
	return nil, errors.Errorf("squeeze expects nil, int or []int axes, got %T", sample.Arg(1))
}

func squeezeDimsFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	axes, okAxes := sample.Arg(1).([]int)
	if !okA || !okAxes {
		return nil, errors.Errorf("squeeze_dims expects (tensor, axes)")
	}
	return squeezeAxes(a, axes)
}

func transposeFn(sample *SampleInput) (any, error) {
	a, ok := sample.Arg(0).(*tensors.Tensor)
	if !ok {
		return nil, errors.Errorf("transpose expects a tensor first argument")
	}
	axisA := normalizeAxis(sample.Arg(1).(int), a.Rank())
	axisB := normalizeAxis(sample.Arg(2).(int), a.Rank())
	perm := make([]int, a.Rank())
	for axis := range perm {
		perm[axis] = axis
	}
	perm[axisA], perm[axisB] = perm[axisB], perm[axisA]
	return permute(a, perm)
}

func permute(a *tensors.Tensor, perm []int) (*tensors.Tensor, error) {
	if len(perm) != a.Rank() {
		return nil, errorOf(ErrRankMismatch, "permutation %v for a rank %d tensor", perm, a.Rank())
	}
	normalized := make([]int, len(perm))
	seen := make(map[int]bool)
	dims := make([]int, len(perm))
	for axis, p := range perm {
		p = normalizeAxis(p, a.Rank())
		if p < 0 || p >= a.Rank() || seen[p] {
			return nil, errors.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
		normalized[axis] = p
		dims[axis] = a.Shape().Dim(p)
	}
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		for axis, p := range normalized {
			srcIndex[p] = indices[axis]
		}
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result, nil
}

func permuteFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	perm, okPerm := sample.Arg(1).([]int)
	if !okA || !okPerm {
		return nil, errors.Errorf("permute expects (tensor, permutation)")
	}
	return permute(a, perm)
}

func takeFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	index, okIndex := sample.Arg(1).(*tensors.Tensor)
	if !okA || !okIndex {
		return nil, errors.Errorf("take expects (tensor, index tensor, axis)")
	}
	axis := normalizeAxis(sample.Arg(2).(int), a.Rank())
	dims := make([]int, a.Rank())
	for i := range dims {
		dims[i] = a.Shape().Dim(i)
	}
	dims[axis] = index.Size()
	flatIndex := index.Contiguous()
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		copy(srcIndex, indices)
		srcIndex[axis] = int(flatIndex.At(indices[axis]))
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result, nil
}

func takeAlongAxisFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	index, okIndex := sample.Arg(1).(*tensors.Tensor)
	if !okA || !okIndex {
		return nil, errors.Errorf("take_along_axis expects (tensor, index tensor, axis)")
	}
	axis := normalizeAxis(sample.Arg(2).(int), a.Rank())
	if index.Rank() != a.Rank() && !(a.Rank() == 1 && index.Rank() == 1) {
		return nil, errorOf(ErrRankMismatch, "index rank %d does not match input rank %d", index.Rank(), a.Rank())
	}
	dims := make([]int, a.Rank())
	for i := range dims {
		if i == axis {
			dims[i] = index.Shape().Dim(i)
			continue
		}
		common, err := broadcastDims([]int{a.Shape().Dim(i)}, []int{index.Shape().Dim(i)})
		if err != nil {
			return nil, err
		}
		dims[i] = common[0]
	}
	indexDims := slices.Clone(dims)
	indexDims[axis] = index.Shape().Dim(axis)
	indexB := index.BroadcastTo(indexDims...)
	inputDims := slices.Clone(dims)
	inputDims[axis] = a.Shape().Dim(axis)
	inputB := a.BroadcastTo(inputDims...)
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), dims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		copy(srcIndex, indices)
		srcIndex[axis] = int(indexB.At(indices...))
		result.SetAt(inputB.At(srcIndex...), indices...)
	}
	return result, nil
}

func unsqueezeFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	axes, okAxes := sample.Arg(1).([]int)
	if !okA || !okAxes {
		return nil, errors.Errorf("unsqueeze expects (tensor, axes)")
	}
	rank := a.Rank() + len(axes)
	inserted := make(map[int]bool)
	for _, axis := range axes {
		axis = normalizeAxis(axis, rank)
		if axis < 0 || axis >= rank || inserted[axis] {
			return nil, errors.Errorf("invalid unsqueeze axes %v", axes)
		}
		inserted[axis] = true
	}
	dims := make([]int, 0, rank)
	src := 0
	for axis := 0; axis < rank; axis++ {
		if inserted[axis] {
			dims = append(dims, 1)
			continue
		}
		dims = append(dims, a.Shape().Dim(src))
		src++
	}
	values := make([]float64, 0, a.Size())
	for indices := range a.Shape().Iter() {
		values = append(values, a.At(indices...))
	}
	return tensors.FromFlatData(a.Device(), shapes.Make(a.DType(), dims...), values), nil
}

func convertElementTypeFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	target, okTarget := sample.Arg(1).(dtypes.DType)
	if !okA || !okTarget {
		return nil, errors.Errorf("convert_element_type expects (tensor, dtype)")
	}
	return a.ApplyUnary(func(x float64) float64 { return x }, target), nil
}

func broadcastInDimFn(sample *SampleInput) (any, error) {
	a, okA := sample.Arg(0).(*tensors.Tensor)
	outDims, okOut := sample.Arg(1).([]int)
	axes, okAxes := sample.Arg(2).([]int)
	if !okA || !okOut || !okAxes {
		return nil, errors.Errorf("broadcast_in_dim expects (tensor, out dimensions, broadcast axes)")
	}
	if len(axes) != a.Rank() {
		return nil, errorOf(ErrRankMismatch,
			"broadcast axes %v must have one entry per input axis (rank %d)", axes, a.Rank())
	}
	for i, axis := range axes {
		if i > 0 && axes[i-1] >= axis {
			return nil, errorOf(ErrInvalidBroadcastDims, "broadcast axes %v must be strictly ascending", axes)
		}
		if axis < 0 || axis >= len(outDims) {
			return nil, errorOf(ErrInvalidBroadcastDims, "broadcast axis %d outside output rank %d", axis, len(outDims))
		}
		if dim := a.Shape().Dim(i); dim != outDims[axis] && dim != 1 {
			return nil, errorOf(ErrShapeMismatch,
				"input axis %d (size %d) does not fit output axis %d (size %d)", i, dim, axis, outDims[axis])
		}
	}
	result := tensors.FromShape(a.Device(), shapes.Make(a.DType(), outDims...))
	srcIndex := make([]int, a.Rank())
	for indices := range result.Shape().Iter() {
		for i, axis := range axes {
			if a.Shape().Dim(i) == 1 {
				srcIndex[i] = 0
			} else {
				srcIndex[i] = indices[axis]
			}
		}
		result.SetAt(a.At(srcIndex...), indices...)
	}
	return result, nil
}

func broadcastInDimSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, output dimensions, broadcast axes
	cases := []struct {
		in, out, axes []int
	}{
		{[]int{2}, []int{2, 2}, []int{0}},
		{[]int{2}, []int{2, 2}, []int{1}},
		{[]int{2}, []int{2, 3}, []int{0}},
		{[]int{}, []int{2, 3}, []int{}},
		{[]int{1}, []int{2, 3}, []int{1}},
		{[]int{4, 6, 3, 1}, []int{5, 4, 7, 6, 3, 6, 6}, []int{1, 3, 4, 5}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.in...), c.out, c.axes)) {
				return
			}
		}
	}
}

func broadcastInDimErrors(op *OpInfo, g GenArgs) iter.Seq2[*SampleInput, ErrorCase] {
	cases := []struct {
		in, out, axes []int
		expect        ErrorCase
	}{
		{[]int{2, 2}, []int{2, 2}, []int{1, 0},
			ErrorCase{Kind: ErrInvalidBroadcastDims, Message: "strictly ascending"}},
		{[]int{3, 2, 2}, []int{3, 2, 2}, []int{0, 1},
			ErrorCase{Kind: ErrRankMismatch, Message: "one entry per input axis"}},
		{[]int{3, 2, 2}, []int{3, 2, 2}, []int{0, 1, 2, 3},
			ErrorCase{Kind: ErrRankMismatch, Message: "one entry per input axis"}},
		{[]int{3, 2, 2}, []int{6, 2, 2}, []int{0, 1, 2},
			ErrorCase{Kind: ErrShapeMismatch, Message: "does not fit"}},
		{[]int{3, 2, 2}, []int{3, 1, 2}, []int{0, 1, 2},
			ErrorCase{Kind: ErrShapeMismatch, Message: "does not fit"}},
	}
	return func(yield func(*SampleInput, ErrorCase) bool) {
		m := tensors.NewMaker(g.Device, dtypes.Float32, g.Seed)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.in...), c.out, c.axes), c.expect) {
				return
			}
		}
	}
}

func getitemSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, indexing key
	cases := []struct {
		dims []int
		key  []Index
	}{
		{[]int{5, 5}, []Index{spanStep(1, 3, 1), spanStep(2, 4, 2)}},
		{[]int{11, 23}, []Index{spanStep(4, 9, 6), spanStep(3, 21, 4)}},
		{[]int{11, 23}, []Index{spanStep(4, 9, 33), spanStep(3, 21, 1)}},
		// A start past the stop gives a zero-length axis.
		{[]int{5, 3}, []Index{span(3, 1), span(1, 2)}},
		// Bounds may extend past an axis end.
		{[]int{5, 3}, []Index{span(6, 7), span(0, 2)}},
		{[]int{5, 3}, []Index{span(6, 2), span(0, 2)}},
		{[]int{5, 3}, []Index{span(1, 9), span(0, 2)}},
		// Inferred bounds.
		{[]int{5, 3}, []Index{spanTo(9), span(0, 2)}},
		{[]int{5, 3}, []Index{spanFrom(2), span(0, 2)}},
		{[]int{5, 3}, []Index{fullSpan(), span(0, 2)}},
		// Negative bounds.
		{[]int{5, 3}, []Index{span(-3, -1), span(0, -2)}},
		{[]int{5, 3}, []Index{span(-4, -1), span(-1, -2)}},
		// Partially specified key.
		{[]int{5, 3}, []Index{span(-4, -1)}},
		// Spans mixed with positions.
		{[]int{1, 5, 3}, []Index{At(0), span(2, 3), At(2)}},
		{[]int{1, 5, 3}, []Index{At(-1), span(2, 3), At(-2)}},
		{[]int{1, 5, 3}, []Index{At(-1), At(3), At(-2)}},
		// Ellipses.
		{[]int{1, 5, 3}, []Index{Ellipsis{}, span(1, 2)}},
		{[]int{1, 5, 3}, []Index{At(0), Ellipsis{}, span(1, 2)}},
		// Inserted axes.
		{[]int{1, 5, 3}, []Index{NewAxis{}, NewAxis{}, At(0), NewAxis{}, At(2), Ellipsis{}, NewAxis{}, NewAxis{}}},
		{[]int{7, 9, 5}, []Index{spanStep(2, 6, 2), NewAxis{}, Ellipsis{}, span(3, 7), NewAxis{}, At(2), NewAxis{}}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.key)) {
				return
			}
		}
	}
}

func reshapeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, target dimensions (with inference)
	cases := [][2][]int{
		{{4, 2}, {2, -1, 2}},
		{{4, 7, 9, 1, 1}, {1, 4, 3, -1, 1}},
	}
	// these hold the same element count, so both directions are exercised
	reversible := [][2][]int{
		{{4}, {4}},
		{{2, 2, 2}, {4, 2}},
		{{125}, {25, 5}},
		{{25, 25}, {1, 5, 5, 1, 5, 1, 5, 1}},
		{{16, 32}, {2, 4, 1, 4, 4, 1, 4}},
		{{16, 12}, {12, 16}},
		{{1, 16, 12}, {12, 16}},
		{{1, 5, 1, 5}, {25, 1}},
		{{2, 4, 2}, {4, 4}},
		{{1, 4}, {1, 1, 2, 1, 2}},
		{{3, 5, 7}, {7, 5, 3}},
		{{4, 5, 6}, {4, 5, 6, 1, 1, 1}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c[0]...), c[1])) {
				return
			}
		}
		for _, c := range reversible {
			if !yield(NewSample(m.Tensor(c[0]...), c[1])) {
				return
			}
			if !yield(NewSample(m.Tensor(c[1]...), c[0])) {
				return
			}
		}
	}
}

func padSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, per-axis padding
	cases := []struct {
		dims   []int
		config []PadConfig
	}{
		{[]int{1, 3}, []PadConfig{{0, 0, 0}, {0, 0, 0}}},
		{[]int{3, 7, 5}, []PadConfig{{-2, 1, 0}, {1, 3, 0}, {-1, 2, 0}}},
		{[]int{2, 2}, []PadConfig{{1, 1, 0}, {-1, 2, 0}}},
		{[]int{2, 0, 3}, []PadConfig{{1, 0, 0}, {1, 1, 0}, {0, 0, 0}}},
		{[]int{5, 7}, []PadConfig{{0, 0, 0}, {-6, 2, 0}}},
		// negative padding in all three axes
		{[]int{3, 2, 5}, []PadConfig{{-2, 1, 0}, {1, -1, 0}, {-1, 3, 0}}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), m.Number(), c.config)) {
				return
			}
		}
	}
}

func sliceInDimSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, start, limit, stride, axis
	cases := []struct {
		dims                       []int
		start, limit, stride, axis int
	}{
		{[]int{4, 6, 7}, 1, 3, 2, 1},
		{[]int{4, 6, 7}, 0, -1, 3, 2},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.start, c.limit, c.stride, c.axis)) {
				return
			}
		}
	}
}

func sliceSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, start indices, end indices
	cases := []struct {
		dims, starts, ends []int
	}{
		{[]int{5, 7, 8}, []int{1, 0, 3}, []int{2, 6, 8}},
		{[]int{3}, []int{1}, []int{2}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.starts, c.ends)) {
				return
			}
		}
	}
}

func splitSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, size or sections, axis
	cases := []struct {
		dims []int
		arg  any
		axis int
	}{
		{[]int{4, 6, 7}, 2, 0},
		{[]int{4, 6, 7}, 3, 0},
		{[]int{4, 6, 7}, 3, -1},
		{[]int{4, 6, 7}, 9, 1},
		{[]int{4, 6, 7}, []int{1, 2, 1, 2}, 1},
		{[]int{4, 6, 7}, []int{3, 1, 2, 0, 0, 1}, -1},
		{[]int{4, 4, 12}, 4, 2},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.arg, c.axis)) {
				return
			}
		}
	}
}

func squeezeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, axes (nil squeezes everything, int a single axis)
	cases := []struct {
		dims []int
		axes any
	}{
		{[]int{1, 2, 1, 1, 3, 1}, nil},
		{[]int{}, nil},
		{[]int{1, 1, 1}, nil},
		{[]int{1, 2, 1, 1, 3, 1}, 0},
		{[]int{1, 2, 1, 1, 3, 1}, 2},
		{[]int{1, 2, 1, 1, 3, 1}, 5},
		{[]int{1, 2, 1, 1, 3, 1}, []int{2, 3}},
		{[]int{1, 1, 1}, []int{0, 1, 2}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.axes)) {
				return
			}
		}
	}
}

func squeezeDimsSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	cases := []struct {
		dims, axes []int
	}{
		{[]int{1, 2, 1, 1, 3, 1}, []int{2, 3}},
		{[]int{1, 1, 1}, []int{0, 1, 2}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.axes)) {
				return
			}
		}
	}
}

func tensorSplitSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, count or boundaries, axis
	cases := []struct {
		dims []int
		arg  any
		axis int
	}{
		{[]int{4, 6, 7}, 2, 1},
		{[]int{4, 6, 7}, 2, 2},
		{[]int{4, 6, 7}, 3, 0},
		{[]int{4, 6, 7}, 5, -1},
		{[]int{4, 6, 7}, []int{0, 1}, 1},
		{[]int{4, 6, 7}, []int{1, 5, 6}, 2},
		// boundaries may repeat or run past the axis end
		{[]int{4, 6, 7}, []int{1, 5, 9, 9}, 2},
		{[]int{4, 6, 7}, []int{1, 5, 6, 7}, 2},
		{[]int{4, 6, 7}, []int{0, 0, 1, 1, 2}, -2},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.arg, c.axis)) {
				return
			}
		}
	}
}

func transposeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, first and second axis to swap
	cases := []struct {
		dims         []int
		axisA, axisB int
	}{
		{[]int{2, 12, 1024, 64}, 1, 2},
		{[]int{4, 3, 2}, 0, -1},
		{[]int{4, 3, 2}, 0, -2},
		{[]int{4, 3, 2}, 1, 2},
		{[]int{1, 2}, 0, -1},
		{[]int{5}, 0, 0},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c.dims...), c.axisA, c.axisB)) {
				return
			}
		}
	}
}

func permuteSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, permutation
	cases := [][2][]int{
		{{4, 7, 8}, {0, 1, 2}},
		{{4, 7, 8}, {1, 2, 0}},
		{{4, 7, 8}, {2, 1, 0}},
		{{4, 7, 8}, {0, 2, 1}},
		{{4, 7, 8}, {0, -1, 1}},
		{{4, 7}, {1, 0}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c[0]...), c[1])) {
				return
			}
		}
	}
}

func takeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, axis, index dimensions
	cases := []struct {
		dims      []int
		axis      int
		indexDims []int
	}{
		{[]int{4, 2, 3}, 0, []int{8}},
		{[]int{4, 2, 3}, 1, []int{7}},
		{[]int{4, 2, 3}, 2, []int{2}},
		{[]int{4}, 0, []int{8}},
		{[]int{4}, 0, []int{1}},
		{[]int{4, 1}, 0, []int{3}},
		{[]int{4, 1}, 1, []int{5}},
		{[]int{1, 0, 3}, 0, []int{8}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			for _, indexDType := range []dtypes.DType{dtypes.Int32, dtypes.Int64} {
				low, high := 0.0, float64(c.dims[c.axis])
				indexMaker := m.WithDType(indexDType).WithRequiresGrad(false).WithRange(&low, &high)
				if !yield(NewSample(m.Tensor(c.dims...), indexMaker.Tensor(c.indexDims...), c.axis)) {
					return
				}
			}
		}
	}
}

func takeAlongAxisSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// input dimensions, axis, index dimensions
	cases := []struct {
		dims      []int
		axis      int
		indexDims []int
	}{
		{[]int{4, 2, 3}, 0, []int{8, 2, 3}},
		{[]int{4, 2, 3}, 1, []int{4, 1, 3}},
		{[]int{4, 2, 3}, 2, []int{4, 2, 5}},
		{[]int{4}, 0, []int{8}},
		{[]int{4}, 0, []int{1}},
		{[]int{4, 1}, 0, []int{3, 1}},
		{[]int{4, 1}, 1, []int{4, 5}},
		// index broadcasts against the input off the take axis
		{[]int{4, 2, 3}, 2, []int{1, 2, 7}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			low, high := 0.0, float64(c.dims[c.axis])
			indexMaker := m.WithDType(dtypes.Int64).WithRequiresGrad(false).WithRange(&low, &high)
			if !yield(NewSample(m.Tensor(c.dims...), indexMaker.Tensor(c.indexDims...), c.axis)) {
				return
			}
		}
	}
}

func unsqueezeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	// dimensions, axes to insert
	cases := [][2][]int{
		{{4, 2}, {0, 1, 4}},
		{{2, 1, 3}, {}},
		{{2, 1, 3}, {-1}},
		{{2, 1, 3}, {-1, 1, 2, -2}},
		{{}, {0, -1}},
		{{2, 2}, {1}},
	}
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		for _, c := range cases {
			if !yield(NewSample(m.Tensor(c[0]...), c[1])) {
				return
			}
		}
	}
}

func convertElementTypeSamples(op *OpInfo, g GenArgs) iter.Seq[*SampleInput] {
	return func(yield func(*SampleInput) bool) {
		m := op.maker(g)
		yield(NewSample(m.Tensor(2, 3, 4), dtypes.Float32))
	}
}

func registerShapeOps(r *Registry) {
	r.Register(Shape, Op{
		Name:      "broadcast_in_dim",
		Fn:        broadcastInDimFn,
		SampleGen: broadcastInDimSamples,
		ErrorGen:  broadcastInDimErrors,
		References: References{
			Primary: "https://jax.readthedocs.io/en/latest/_autosummary/jax.lax.broadcast_in_dim.html",
		},
		Decorators: []Decorate{
			skip("xla gradients of broadcast_in_dim are broken", Decorate{
				TestNames: []string{"jvp"},
				Backends:  []string{"xla"},
			}),
			skip("xla gradients of broadcast_in_dim are broken", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "getitem",
		Fn:        getitemFn,
		SampleGen: getitemSamples,
		Decorators: []Decorate{
			xfail("backward of squeeze is not implemented", Decorate{
				TestNames: []string{"vjp"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "reshape",
		Fn:        reshapeFn,
		SampleGen: reshapeSamples,
	})

	r.Register(Shape, Op{
		Name:      "pad",
		Fn:        padFn,
		SampleGen: padSamples,
		References: References{
			Primary: "https://jax.readthedocs.io/en/latest/_autosummary/jax.lax.pad.html",
		},
		Decorators: []Decorate{
			xfail("pad lowering landed in xla 0.0.6", Decorate{
				Backends: []string{"xla"},
				ActiveIf: backends.VersionBefore("xla", "0.0.6"),
			}),
			xfail("go backend has no complex padding values", Decorate{
				Backends: []string{"go"},
				DTypes:   []dtypes.Resolvable{dtypes.ComplexFloating},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "slice_in_dim",
		Fn:        sliceInDimFn,
		SampleGen: sliceInDimSamples,
		Decorators: []Decorate{
			xfail("xla gradient of slice_in_dim pads incorrectly", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "slice",
		Fn:        sliceFn,
		SampleGen: sliceSamples,
		Decorators: []Decorate{
			xfail("xla gradient of slice pads incorrectly", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "split",
		Fn:        splitFn,
		SampleGen: splitSamples,
		Decorators: []Decorate{
			xfail("xla gradient of split pads incorrectly", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "squeeze",
		Fn:        squeezeFn,
		SampleGen: squeezeSamples,
	})

	r.Register(Shape, Op{
		Name:      "squeeze_dims",
		Fn:        squeezeDimsFn,
		SampleGen: squeezeDimsSamples,
		References: References{
			Primary: "https://jax.readthedocs.io/en/latest/_autosummary/jax.lax.squeeze.html",
		},
	})

	r.Register(Shape, Op{
		Name:      "tensor_split",
		Fn:        tensorSplitFn,
		SampleGen: tensorSplitSamples,
		Decorators: []Decorate{
			xfail("xla gradient of tensor_split pads incorrectly", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "transpose",
		Fn:        transposeFn,
		SampleGen: transposeSamples,
	})

	r.Register(Shape, Op{
		Name:      "permute",
		Fn:        permuteFn,
		SampleGen: permuteSamples,
	})

	r.Register(Shape, Op{
		Name:      "take",
		Fn:        takeFn,
		SampleGen: takeSamples,
		Decorators: []Decorate{
			xfail("take lowering landed in xla 0.0.3", Decorate{
				Backends: []string{"xla"},
				ActiveIf: backends.VersionBefore("xla", "0.0.3"),
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "take_along_axis",
		Fn:        takeAlongAxisFn,
		SampleGen: takeAlongAxisSamples,
	})

	r.Register(Shape, Op{
		Name:      "unsqueeze",
		Fn:        unsqueezeFn,
		SampleGen: unsqueezeSamples,
		References: References{
			Primary: "https://jax.readthedocs.io/en/latest/_autosummary/jax.lax.expand_dims.html",
		},
		Decorators: []Decorate{
			skip("xla gradients of unsqueeze are broken", Decorate{
				TestNames: []string{"jvp"},
				Backends:  []string{"xla"},
			}),
			skip("xla gradients of unsqueeze are broken", Decorate{
				TestNames: []string{"vjp"},
				Backends:  []string{"xla"},
			}),
		},
	})

	r.Register(Shape, Op{
		Name:      "convert_element_type",
		Fn:        convertElementTypeFn,
		SampleGen: convertElementTypeSamples,
		Decorators: []Decorate{
			skip("conversion tolerances are too tight for the gradient check", Decorate{
				TestNames: []string{"vjp"},
			}),
		},
	})
}
