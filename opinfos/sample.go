package opinfos

import (
	"fmt"
	"iter"
	"strings"

	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/tensors"
)

// SampleInput is one immutable bundle of positional and keyword arguments
// for an operator under test.
//
// Keyword arguments keep their insertion order for display, but the order is
// irrelevant for anything behavioral.
type SampleInput struct {
	args      []any
	kwargKeys []string
	kwargs    map[string]any
}

// NewSample returns a sample with the given positional arguments.
func NewSample(args ...any) *SampleInput {
	return &SampleInput{args: args}
}

// WithKwarg returns a copy of the sample with the given keyword argument
// appended. Setting the same key twice overwrites the value and keeps the
// original position.
func (s *SampleInput) WithKwarg(key string, value any) *SampleInput {
	result := s.clone()
	if _, present := result.kwargs[key]; !present {
		result.kwargKeys = append(result.kwargKeys, key)
	}
	result.kwargs[key] = value
	return result
}

func (s *SampleInput) clone() *SampleInput {
	result := &SampleInput{
		args:      append([]any{}, s.args...),
		kwargKeys: append([]string{}, s.kwargKeys...),
		kwargs:    make(map[string]any, len(s.kwargs)),
	}
	for key, value := range s.kwargs {
		result.kwargs[key] = value
	}
	return result
}

// NumArgs returns the number of positional arguments.
func (s *SampleInput) NumArgs() int { return len(s.args) }

// Arg returns the i-th positional argument.
func (s *SampleInput) Arg(i int) any { return s.args[i] }

// Args returns the positional arguments. The returned slice is owned by the
// sample, don't modify it.
func (s *SampleInput) Args() []any { return s.args }

// Kwarg returns the keyword argument with the given key, if set.
func (s *SampleInput) Kwarg(key string) (any, bool) {
	value, present := s.kwargs[key]
	return value, present
}

// Kwargs iterates over the keyword arguments in insertion order.
func (s *SampleInput) Kwargs() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range s.kwargKeys {
			if !yield(key, s.kwargs[key]) {
				return
			}
		}
	}
}

// transform returns a copy of the sample with leaf applied to every argument
// leaf, recursing only into []any containers. Leaves the function returns
// unchanged are shared with the original sample.
func (s *SampleInput) transform(leaf func(any) any) *SampleInput {
	result := &SampleInput{
		args:      transformSlice(s.args, leaf),
		kwargKeys: s.kwargKeys,
		kwargs:    make(map[string]any, len(s.kwargs)),
	}
	for key, value := range s.kwargs {
		result.kwargs[key] = transformLeaf(value, leaf)
	}
	return result
}

func transformSlice(values []any, leaf func(any) any) []any {
	result := make([]any, len(values))
	for position, value := range values {
		result[position] = transformLeaf(value, leaf)
	}
	return result
}

func transformLeaf(value any, leaf func(any) any) any {
	if nested, ok := value.([]any); ok {
		return transformSlice(nested, leaf)
	}
	return leaf(value)
}

// Noncontiguous returns the derived sample whose tensor arguments use a
// noncontiguous (sentinel-interleaved) memory layout. All other leaves are
// unchanged; the derived sample is observationally equal in value to the
// original.
func (s *SampleInput) Noncontiguous() *SampleInput {
	return s.transform(func(value any) any {
		if t, ok := value.(*tensors.Tensor); ok {
			return t.NoncontiguousLike()
		}
		return value
	})
}

// Reference returns the derived sample a reference implementation consumes:
// every tensor is materialized into a dense contiguous copy (no aliasing or
// exotic strides), and dtype leaves are replaced with their canonical string
// tags.
func (s *SampleInput) Reference() *SampleInput {
	return s.transform(func(value any) any {
		switch v := value.(type) {
		case *tensors.Tensor:
			return v.Contiguous()
		case dtypes.DType:
			return v.Tag()
		}
		return value
	})
}

// Tagged returns the derived sample for backends that take dtypes as string
// identifiers: only dtype leaves are rewritten, to their canonical tags.
func (s *SampleInput) Tagged() *SampleInput {
	return s.transform(func(value any) any {
		if dtype, ok := value.(dtypes.DType); ok {
			return dtype.Tag()
		}
		return value
	})
}

// String implements stringer.
func (s *SampleInput) String() string {
	var b strings.Builder
	b.WriteString("[SampleInput args=(")
	for position, arg := range s.args {
		if position > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v", arg)
	}
	b.WriteString(")")
	for key, value := range s.Kwargs() {
		fmt.Fprintf(&b, " %s=%v", key, value)
	}
	b.WriteString("]")
	return b.String()
}
