package dtypes

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Category names a fixed grouping of concrete dtypes. Categories are how
// operator records declare their supported dtypes without enumerating every
// member: "floating" covers every float precision, "exact" covers booleans
// and integers, and so on.
type Category int

//go:generate stringer -type=Category

const (
	Boolean Category = iota
	SignedInteger
	UnsignedInteger
	Exact
	Floating
	ComplexFloating
	Inexact
	All
)

// categoryMembers is the static category table. Resolution never consults
// runtime type information, only this table.
var categoryMembers = map[Category][]DType{
	Boolean:         {Bool},
	SignedInteger:   {Int8, Int16, Int32, Int64},
	UnsignedInteger: {Uint8, Uint16, Uint32, Uint64},
	Exact:           {Bool, Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64},
	Floating:        {Float16, BFloat16, Float32, Float64},
	ComplexFloating: {Complex64, Complex128},
	Inexact:         {Float16, BFloat16, Float32, Float64, Complex64, Complex128},
	All:             List(),
}

// Resolvable is anything that expands to a set of concrete dtypes: a DType
// expands to itself, a Category to its members and a Set to its elements.
type Resolvable interface {
	expandDTypes(into map[DType]bool)
}

func (dtype DType) expandDTypes(into map[DType]bool) {
	if !dtype.Ok() {
		exceptions.Panicf("dtypes: cannot resolve invalid dtype %d", int(dtype))
	}
	into[dtype] = true
}

func (c Category) expandDTypes(into map[DType]bool) {
	members, found := categoryMembers[c]
	if !found {
		exceptions.Panicf("dtypes: cannot resolve unknown category %d", int(c))
	}
	for _, dtype := range members {
		into[dtype] = true
	}
}

// Set is a concrete, deduplicated set of dtypes, sorted in enumeration order.
type Set []DType

func (s Set) expandDTypes(into map[DType]bool) {
	for _, dtype := range s {
		dtype.expandDTypes(into)
	}
}

// Resolve expands a mix of concrete dtypes, categories and sets into a
// concrete Set. Resolution is pure and idempotent: resolving an
// already-concrete Set returns it unchanged.
//
// It panics on an unresolvable entry -- an invalid dtype or an unknown
// category. Callers resolve at registration time so malformed records fail
// fast.
func Resolve(items ...Resolvable) Set {
	if len(items) == 1 {
		if s, ok := items[0].(Set); ok && isSortedUnique(s) {
			return s
		}
	}
	expanded := make(map[DType]bool)
	for _, item := range items {
		item.expandDTypes(expanded)
	}
	s := make(Set, 0, len(expanded))
	for dtype := range expanded {
		s = append(s, dtype)
	}
	slices.Sort(s)
	return s
}

func isSortedUnique(s Set) bool {
	for ii := 1; ii < len(s); ii++ {
		if s[ii] <= s[ii-1] {
			return false
		}
	}
	return true
}

// Has reports whether dtype is an element of the set.
func (s Set) Has(dtype DType) bool {
	_, found := slices.BinarySearch(s, dtype)
	return found
}

// Union returns the set union of s and the given items.
func (s Set) Union(items ...Resolvable) Set {
	return Resolve(append([]Resolvable{s}, items...)...)
}

// Except returns s minus every dtype the given items expand to.
func (s Set) Except(items ...Resolvable) Set {
	removed := Resolve(items...)
	result := make(Set, 0, len(s))
	for _, dtype := range s {
		if !removed.Has(dtype) {
			result = append(result, dtype)
		}
	}
	return result
}

// Equal reports whether two sets have the same elements.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s, other)
}
