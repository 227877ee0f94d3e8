package tensors

import (
	"math"
	"math/rand"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/shapes"
)

// Default generation window for sample values, when neither the operator's
// domain nor the caller constrain them.
const (
	defaultLow  = -9.0
	defaultHigh = 9.0
)

// boundaryMargin keeps generated values away from the exact interval bounds:
// quantization to a low-precision dtype could otherwise round a value onto a
// bound, and for most operator domains the bounds sit on singularities.
const boundaryMargin = 1e-2

// Maker builds random tensors with a fixed device, dtype and value range.
// It is the engine's tensor-construction utility: sample generators create
// one Maker per invocation, configured with the operator's effective domain,
// and call it once per tensor argument.
//
// A Maker is deterministic: two Makers created with the same seed and
// configuration produce the same sequence of tensors.
type Maker struct {
	device       backends.DeviceType
	dtype        dtypes.DType
	low, high    *float64
	requiresGrad bool
	excludeZero  bool
	rng          *rand.Rand
}

// NewMaker returns a Maker for the given device and dtype, with its own
// random stream seeded with seed.
func NewMaker(device backends.DeviceType, dtype dtypes.DType, seed int64) *Maker {
	return &Maker{
		device: device,
		dtype:  dtype,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// derive returns a copy sharing the receiver's random stream, so derived
// Makers (e.g. for index or predicate arguments) draw from the same
// deterministic sequence.
func (m *Maker) derive() *Maker {
	derived := *m
	return &derived
}

// WithRange returns a derived Maker limiting generated values to [low, high).
// A nil bound defers to the default generation window. Non-finite bounds are
// treated as absent.
func (m *Maker) WithRange(low, high *float64) *Maker {
	derived := m.derive()
	derived.low, derived.high = low, high
	return derived
}

// WithRequiresGrad returns a derived Maker setting the requires-grad flag on
// generated tensors.
func (m *Maker) WithRequiresGrad(requiresGrad bool) *Maker {
	derived := m.derive()
	derived.requiresGrad = requiresGrad
	return derived
}

// WithExcludeZero returns a derived Maker replacing generated zeros with a
// small nonzero value.
func (m *Maker) WithExcludeZero(excludeZero bool) *Maker {
	derived := m.derive()
	derived.excludeZero = excludeZero
	return derived
}

// WithDType returns a derived Maker switching the dtype of subsequently
// generated tensors -- used for predicate (Bool) and index (Int*) arguments.
func (m *Maker) WithDType(dtype dtypes.DType) *Maker {
	derived := m.derive()
	derived.dtype = dtype
	return derived
}

// bounds returns the effective finite generation bounds, intersected with
// the dtype's representable range: a window wider than the dtype (e.g. a
// comparison operator's widened window over Int8) must never ask for values
// the dtype cannot store.
func (m *Maker) bounds() (low, high float64) {
	low, high = defaultLow, defaultHigh
	if m.low != nil && !math.IsInf(*m.low, 0) {
		low = *m.low
	}
	if m.high != nil && !math.IsInf(*m.high, 0) {
		high = *m.high
	}
	if lowest := m.dtype.LowestValue(); low < lowest {
		low = lowest
	}
	if highest := m.dtype.HighestValue(); !math.IsInf(highest, 1) && high > highest+1 {
		// high is exclusive; highest itself stays drawable.
		high = highest + 1
	}
	if high < low {
		high = low
	}
	return
}

// value draws one quantized value in the effective bounds.
func (m *Maker) value() float64 {
	if m.dtype == dtypes.Bool {
		return float64(m.rng.Intn(2))
	}
	low, high := m.bounds()
	if m.dtype.IsExact() {
		// Integer dtypes draw whole values in [low, high).
		v := math.Floor(low + m.rng.Float64()*(high-low))
		return m.maybeExcludeZero(m.dtype.Quantize(v))
	}

	margin := boundaryMargin
	if high-low < 4*margin {
		margin = (high - low) / 4
	}
	v := m.dtype.Quantize(low + margin + m.rng.Float64()*(high-low-2*margin))
	// Quantization may still round onto a bound for very wide, very
	// low-precision ranges; fall back to the interval midpoint.
	if v <= low || v >= high {
		v = m.dtype.Quantize(low + (high-low)/2)
	}
	return m.maybeExcludeZero(v)
}

func (m *Maker) maybeExcludeZero(v float64) float64 {
	if !m.excludeZero || v != 0 {
		return v
	}
	if m.dtype.IsExact() {
		return 1
	}
	return m.dtype.Quantize(boundaryMargin)
}

// Tensor returns a fresh contiguous random tensor with the given dimensions.
func (m *Maker) Tensor(dimensions ...int) *Tensor {
	t := FromShape(m.device, shapes.Make(m.dtype, dimensions...))
	t.requiresGrad = m.requiresGrad
	for position := range t.data {
		t.data[position] = m.value()
	}
	return t
}

// Noncontiguous returns a fresh random tensor with the given dimensions laid
// out noncontiguously (see Tensor.NoncontiguousLike).
func (m *Maker) Noncontiguous(dimensions ...int) *Tensor {
	return m.Tensor(dimensions...).NoncontiguousLike()
}

// Number returns one bare (non-tensor) random value, for operators that
// accept plain numbers.
func (m *Maker) Number() float64 {
	return m.value()
}
