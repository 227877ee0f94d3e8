// Package opinfos implements the operator conformance test matrix: one
// record per operator with its supported dtypes and devices, deterministic
// sample-input generators, reference implementations and the condition
// matchers that switch individual test cases on and off per (test, backend,
// device type, dtype).
//
// Everything in this package is built once -- see NewRegistry -- and is
// immutable afterwards: parallel test workers can share a Registry without
// coordination. Generators return fresh iterators on every call and seed
// their own random streams, so two concurrently consumed sequences never
// interfere and two sequences requested with the same arguments are
// identical.
package opinfos

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/opcheck/types/tensors"
)

// eps is the margin used by operator domains that must stay clear of an open
// boundary (e.g. log1p just above -1).
//
// It is big enough that -1+eps != -1 in BFloat16.
const eps = 1e-2

// Generation window: sample values are kept within [-9, 9] regardless of how
// wide the operator's mathematical domain is, to avoid overflow in
// low-precision dtypes.
const (
	genFloor   = -9.0
	genCeiling = 9.0
)

// Domain is the closed-open interval [Low, High) an operator's inputs are
// drawn from. A nil bound means that side is unrestricted, as does a
// non-finite one.
type Domain struct {
	Low, High *float64
}

// NewDomain returns the domain [low, high). Use math.Inf for an unbounded
// side. It panics if low > high: malformed domains are configuration errors
// and fail fast.
func NewDomain(low, high float64) Domain {
	if low > high {
		exceptions.Panicf("opinfos.NewDomain: low (%g) > high (%g)", low, high)
	}
	d := Domain{}
	if !math.IsInf(low, 0) {
		d.Low = &low
	}
	if !math.IsInf(high, 0) {
		d.High = &high
	}
	return d
}

// Clamp intersects the domain with the window [floor, ceiling]. An absent
// domain bound stays absent: the tensor constructor then applies its own
// default window.
func (d Domain) Clamp(floor, ceiling float64) (low, high *float64) {
	if d.Low != nil && !math.IsInf(*d.Low, 0) {
		v := math.Max(floor, *d.Low)
		low = &v
	}
	if d.High != nil && !math.IsInf(*d.High, 0) {
		v := math.Min(ceiling, *d.High)
		high = &v
	}
	return
}

// ClampDefault intersects the domain with the standard generation window.
func (d Domain) ClampDefault() (low, high *float64) {
	return d.Clamp(genFloor, genCeiling)
}

// RoundRemainder returns x - round(x/y)*y, the signed distance from x to the
// nearest multiple of y. It is the typical singularity-distance function for
// periodic singularities (e.g. tan's poles at odd multiples of pi/2).
func RoundRemainder(x, y float64) float64 {
	return x - math.Round(x/y)*y
}

// PushAwayFromSingularities moves individual values of t away from
// singularities in eps increments, until they are further than eps away from
// them. singularityFn returns the signed distance from a value to the
// nearest singularity.
//
// This is a single-pass, best-effort repulsion, not an iterative solver:
// callers must pick eps large enough relative to the dtype's precision that
// one push suffices.
func PushAwayFromSingularities(t *tensors.Tensor, singularityFn func(float64) float64, eps float64) *tensors.Tensor {
	return t.ApplyUnary(func(x float64) float64 {
		distance := singularityFn(x)
		if distance > 0 && distance < eps {
			return x + eps
		}
		if distance < 0 && distance > -eps {
			return x - eps
		}
		return x
	})
}
