// Package dtypes enumerates the element types an operator under test may be
// instantiated with, and implements the category algebra used to declare an
// operator's supported dtypes.
//
// A dtype set in an operator record can mix concrete DType values (Float32)
// and Category values (Floating, Exact); Resolve expands the mix into a
// concrete, deduplicated Set. Category membership is a static table resolved
// once at startup, there is no runtime reflection involved.
//
// Float16 values are quantized through github.com/x448/float16 so that sample
// values tagged Float16 are exactly representable; BFloat16 uses the usual
// truncation of the upper 16 bits of a float32.
package dtypes

import (
	"math"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is the element type of a tensor (or of its representation inside the
// backend under test).
type DType int

//go:generate stringer -type=DType

const (
	InvalidDType DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	BFloat16
	Float32
	Float64
	Complex64
	Complex128
)

// List returns every valid DType, in enumeration order.
func List() []DType {
	all := make([]DType, 0, int(Complex128))
	for dtype := Bool; dtype <= Complex128; dtype++ {
		all = append(all, dtype)
	}
	return all
}

// Ok reports whether dtype is one of the enumerated element types.
func (dtype DType) Ok() bool {
	return dtype > InvalidDType && dtype <= Complex128
}

// IsFloat reports whether dtype is a (real) floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == BFloat16 || dtype == Float32 || dtype == Float64
}

// IsComplex reports whether dtype is a complex type.
func (dtype DType) IsComplex() bool {
	return dtype == Complex64 || dtype == Complex128
}

// IsInexact reports whether dtype is floating point or complex.
func (dtype DType) IsInexact() bool {
	return dtype.IsFloat() || dtype.IsComplex()
}

// IsSignedInt reports whether dtype is a signed integer type.
func (dtype DType) IsSignedInt() bool {
	return dtype == Int8 || dtype == Int16 || dtype == Int32 || dtype == Int64
}

// IsUnsignedInt reports whether dtype is an unsigned integer type.
func (dtype DType) IsUnsignedInt() bool {
	return dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// IsExact reports whether dtype represents values exactly: booleans and
// integers.
func (dtype DType) IsExact() bool {
	return dtype == Bool || dtype.IsSignedInt() || dtype.IsUnsignedInt()
}

// LowestValue returns the smallest value dtype can represent, in the
// package's float64 value model. Inexact dtypes report -Inf: their finite
// range dwarfs any generation window.
func (dtype DType) LowestValue() float64 {
	switch dtype {
	case Bool, Uint8, Uint16, Uint32, Uint64:
		return 0
	case Int8:
		return math.MinInt8
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Int64:
		return math.MinInt64
	}
	return math.Inf(-1)
}

// HighestValue returns the largest value dtype can represent. Inexact dtypes
// report +Inf.
func (dtype DType) HighestValue() float64 {
	switch dtype {
	case Bool:
		return 1
	case Int8:
		return math.MaxInt8
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	case Int64:
		return math.MaxInt64
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Uint32:
		return math.MaxUint32
	case Uint64:
		return math.MaxUint64
	}
	return math.Inf(1)
}

// Memory returns the number of bytes used to store one element of dtype.
func (dtype DType) Memory() uintptr {
	switch dtype {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16, BFloat16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	}
	return 0
}

// Quantize rounds v to the nearest value representable by dtype. Sample
// values are generated as float64 and quantized so that a sample tagged with
// a low-precision dtype holds exactly the value the backend will see.
//
// Complex dtypes quantize to their component precision: sample values carry a
// zero imaginary part (see the opinfos package documentation).
func (dtype DType) Quantize(v float64) float64 {
	switch dtype {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case BFloat16:
		return float64(truncateToBFloat16(float32(v)))
	case Float32, Complex64:
		return float64(float32(v))
	case Float64, Complex128:
		return v
	case InvalidDType:
		return v
	}
	// Integer types.
	return math.Round(v)
}

func truncateToBFloat16(v float32) float32 {
	bits := math.Float32bits(v)
	// Round to nearest even on the dropped 16 bits.
	bits += 0x7FFF + (bits>>16)&1
	return math.Float32frombits(bits &^ 0xFFFF)
}

var dtypeTags = map[DType]string{
	Bool:       "bool",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	Uint8:      "uint8",
	Uint16:     "uint16",
	Uint32:     "uint32",
	Uint64:     "uint64",
	Float16:    "float16",
	BFloat16:   "bfloat16",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
}

var tagsToDType = func() map[string]DType {
	m := make(map[string]DType, len(dtypeTags))
	for dtype, tag := range dtypeTags {
		m[tag] = dtype
	}
	return m
}()

// Tag returns the canonical lower-case identifier for dtype, the form used by
// backends that take dtypes as string identifiers. It returns "" for
// InvalidDType.
func (dtype DType) Tag() string {
	return dtypeTags[dtype]
}

// FromTag converts a canonical dtype identifier (see Tag) back to a DType.
func FromTag(tag string) (DType, error) {
	dtype, found := tagsToDType[tag]
	if !found {
		return InvalidDType, errors.Errorf("unknown dtype tag %q", tag)
	}
	return dtype, nil
}
