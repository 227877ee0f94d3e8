// Package tensors implements the host-side strided tensor that carries
// sample values for the operator test matrix.
//
// This is not the tensor runtime under test -- that one lives behind the
// backends being validated. The tensors here only exist so the engine can
// construct, transform and compare sample inputs: they keep a flat float64
// backing buffer, a dtype tag, explicit strides and an offset, which is
// enough to express the contiguous, interleaved and aliased memory layouts
// the sample generators need.
//
// Values are stored as float64 regardless of the tagged dtype; Maker
// quantizes every generated value through the dtype (see
// dtypes.DType.Quantize) so the stored value is exactly representable by it.
// Complex dtypes tag samples whose imaginary part is zero.
//
// Tensors are treated as immutable once a sample is published: SetAt exists
// for construction only.
package tensors

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
)

// Tensor is a strided view over a flat backing buffer.
type Tensor struct {
	shape   shapes.Shape
	data    []float64
	strides []int
	offset  int

	device       backends.DeviceType
	requiresGrad bool
}

// rowMajorStrides returns the contiguous (row-major) strides for the given
// dimensions, in elements.
func rowMajorStrides(dimensions []int) []int {
	strides := make([]int, len(dimensions))
	stride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= dimensions[axis]
	}
	return strides
}

// FromShape returns a zero-initialized contiguous tensor with the given
// shape, placed on the given device type.
func FromShape(device backends.DeviceType, shape shapes.Shape) *Tensor {
	return &Tensor{
		shape:   shape,
		data:    make([]float64, shape.Size()),
		strides: rowMajorStrides(shape.Dimensions),
		device:  device,
	}
}

// FromFlatData returns a contiguous tensor wrapping the given row-major
// values. It panics if len(data) doesn't match the shape size.
func FromFlatData(device backends.DeviceType, shape shapes.Shape, data []float64) *Tensor {
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatData: shape %s needs %d values, got %d", shape, shape.Size(), len(data))
	}
	return &Tensor{
		shape:   shape,
		data:    data,
		strides: rowMajorStrides(shape.Dimensions),
		device:  device,
	}
}

// FromScalar returns a scalar tensor holding the given value, quantized to
// the dtype.
func FromScalar(device backends.DeviceType, dtype dtypes.DType, value float64) *Tensor {
	t := FromShape(device, shapes.Scalar(dtype))
	t.data[0] = dtype.Quantize(value)
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Device type the sample is destined for.
func (t *Tensor) Device() backends.DeviceType { return t.device }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of addressable elements: the product of the dimensions.
func (t *Tensor) Size() int { return t.shape.Size() }

// RequiresGrad reports whether gradients should be tracked for this input by
// the runner.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// WithRequiresGrad returns a view of the tensor with the requires-grad flag
// set as given. The backing buffer is shared.
func (t *Tensor) WithRequiresGrad(requiresGrad bool) *Tensor {
	view := *t
	view.requiresGrad = requiresGrad
	return &view
}

// Strides returns the tensor's strides in elements. The returned slice is
// owned by the tensor, don't modify it.
func (t *Tensor) Strides() []int { return t.strides }

// IsContiguous reports whether the tensor is a dense row-major view starting
// at the beginning of its backing buffer.
func (t *Tensor) IsContiguous() bool {
	return t.offset == 0 && slices.Equal(t.strides, rowMajorStrides(t.shape.Dimensions))
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != t.Rank() {
		exceptions.Panicf("tensor %s indexed with %d indices", t.shape, len(indices))
	}
	flat := t.offset
	for axis, index := range indices {
		if index < 0 || index >= t.shape.Dimensions[axis] {
			exceptions.Panicf("tensor %s index %v out-of-bounds on axis %d", t.shape, indices, axis)
		}
		flat += index * t.strides[axis]
	}
	return flat
}

// At returns the element at the given indices. A scalar takes no indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// SetAt sets the element at the given indices. It is meant for tensor
// construction; published samples must not be mutated.
func (t *Tensor) SetAt(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

// AsStrided returns a view over the same backing buffer with arbitrary
// dimensions, strides and offset. Strides may repeat or skip elements, and a
// zero stride aliases one element across a whole axis. It panics if the view
// would reach outside the buffer.
func (t *Tensor) AsStrided(dimensions, strides []int, offset int) *Tensor {
	if len(dimensions) != len(strides) {
		exceptions.Panicf("tensors.AsStrided: %d dimensions but %d strides", len(dimensions), len(strides))
	}
	maxIndex := offset
	for axis, dim := range dimensions {
		if dim < 0 || strides[axis] < 0 {
			exceptions.Panicf("tensors.AsStrided: invalid dimension/stride (%d, %d) on axis %d", dim, strides[axis], axis)
		}
		if dim > 0 {
			maxIndex += (dim - 1) * strides[axis]
		}
	}
	if offset < 0 || maxIndex >= len(t.data) {
		exceptions.Panicf("tensors.AsStrided: view reaches index %d, buffer has %d elements", maxIndex, len(t.data))
	}
	return &Tensor{
		shape:        shapes.Make(t.shape.DType, dimensions...),
		data:         t.data,
		strides:      slices.Clone(strides),
		offset:       offset,
		device:       t.device,
		requiresGrad: t.requiresGrad,
	}
}

// Contiguous returns a dense row-major copy of the tensor with a fresh
// backing buffer. If the tensor is already contiguous it is returned
// unchanged.
func (t *Tensor) Contiguous() *Tensor {
	if t.IsContiguous() {
		return t
	}
	result := FromShape(t.device, t.shape.Clone())
	result.requiresGrad = t.requiresGrad
	position := 0
	for indices := range t.shape.Iter() {
		result.data[position] = t.At(indices...)
		position++
	}
	return result
}

// sentinelValue is stored in the positions of a noncontiguous layout that
// real elements skip over: a value that would be noticed if an operator
// were to read it by mistake.
func sentinelValue(dtype dtypes.DType) float64 {
	if dtype.IsInexact() {
		return math.NaN()
	}
	if dtype == dtypes.Bool {
		return 1
	}
	return 12
}

// NoncontiguousLike returns a tensor with the same shape and values whose
// elements on the innermost axis are separated by sentinel values. If the
// tensor is already noncontiguous it is returned as is.
func (t *Tensor) NoncontiguousLike() *Tensor {
	if !t.IsContiguous() {
		return t
	}
	size := t.Size()
	backing := make([]float64, 2*size)
	sentinel := sentinelValue(t.DType())
	for position := 0; position < size; position++ {
		backing[2*position] = sentinel
		backing[2*position+1] = t.data[position]
	}
	strides := rowMajorStrides(t.shape.Dimensions)
	for axis := range strides {
		strides[axis] *= 2
	}
	return &Tensor{
		shape:        t.shape.Clone(),
		data:         backing,
		strides:      strides,
		offset:       1,
		device:       t.device,
		requiresGrad: t.requiresGrad,
	}
}

// BroadcastTo returns a view of the tensor broadcast to the given
// dimensions, following the usual right-aligned broadcasting rules: missing
// leading axes are added, and size-1 axes are expanded with a zero stride.
func (t *Tensor) BroadcastTo(dimensions ...int) *Tensor {
	rank := len(dimensions)
	if rank < t.Rank() {
		exceptions.Panicf("tensors.BroadcastTo: cannot broadcast %s to lower rank %v", t.shape, dimensions)
	}
	strides := make([]int, rank)
	leading := rank - t.Rank()
	for axis := leading; axis < rank; axis++ {
		fromDim := t.shape.Dimensions[axis-leading]
		switch {
		case fromDim == dimensions[axis]:
			strides[axis] = t.strides[axis-leading]
		case fromDim == 1:
			strides[axis] = 0
		default:
			exceptions.Panicf("tensors.BroadcastTo: cannot broadcast %s to %v", t.shape, dimensions)
		}
	}
	return &Tensor{
		shape:        shapes.Make(t.shape.DType, dimensions...),
		data:         t.data,
		strides:      strides,
		offset:       t.offset,
		device:       t.device,
		requiresGrad: t.requiresGrad,
	}
}

// ApplyUnary returns a fresh contiguous tensor with fn applied elementwise.
// The result keeps the dtype unless a resultDType override is given.
func (t *Tensor) ApplyUnary(fn func(float64) float64, resultDType ...dtypes.DType) *Tensor {
	dtype := t.DType()
	if len(resultDType) > 0 {
		dtype = resultDType[0]
	}
	result := FromShape(t.device, shapes.Make(dtype, t.shape.Dimensions...))
	result.requiresGrad = t.requiresGrad
	position := 0
	for indices := range t.shape.Iter() {
		result.data[position] = dtype.Quantize(fn(t.At(indices...)))
		position++
	}
	return result
}

// equalValues compares float64 elements treating NaN as equal to NaN, so
// sentinel-free comparison of noncontiguous layouts works on inexact dtypes.
func equalValues(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

// Equal reports whether two tensors have the same dtype, the same dimensions
// and elementwise-equal values at every real (addressable) position.
// Sentinel or skipped positions of the backing buffers don't participate.
func (t *Tensor) Equal(other *Tensor) bool {
	if other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	for indices := range t.shape.Iter() {
		if !equalValues(t.At(indices...), other.At(indices...)) {
			return false
		}
	}
	return true
}

const maxValuesInString = 8

// String pretty-prints the shape and the first few values.
func (t *Tensor) String() string {
	var b strings.Builder
	b.WriteString(t.shape.String())
	b.WriteString("{")
	count := 0
	for indices := range t.shape.Iter() {
		if count > 0 {
			b.WriteString(", ")
		}
		if count >= maxValuesInString {
			b.WriteString("...")
			break
		}
		fmt.Fprintf(&b, "%v", t.At(indices...))
		count++
	}
	b.WriteString("}")
	return b.String()
}
