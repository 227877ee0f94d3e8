package opinfos

import (
	"iter"
	"slices"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
	"github.com/gomlx/opcheck/types/tensors"
)

// Fn is the host-side callable of an operator: it consumes a sample and
// produces the operator's result. Test harnesses compare it against the
// backends under test.
type Fn func(sample *SampleInput) (any, error)

// References point to external documentation of an operator's semantics. All
// fields are optional.
type References struct {
	Primary   string
	Secondary string
	Tertiary  string
}

// GenArgs parameterizes one run of a generator: where the tensors live,
// which dtype they carry and the seed driving random fills. Each generator
// call builds its own random stream, so runs with equal GenArgs produce
// equal samples.
type GenArgs struct {
	Device       backends.DeviceType
	DType        dtypes.DType
	RequiresGrad bool
	Seed         int64
}

// Maker returns a tensor maker configured from the generator arguments.
func (g GenArgs) Maker() *tensors.Maker {
	return tensors.NewMaker(g.Device, g.DType, g.Seed).WithRequiresGrad(g.RequiresGrad)
}

// SampleGenerator produces the finite sequence of valid samples for an
// operator. It receives the operator record so it can draw tensors from the
// operator's domain. Every call returns a fresh, restartable sequence.
type SampleGenerator func(op *OpInfo, g GenArgs) iter.Seq[*SampleInput]

// ErrorKind classifies the failure an invalid sample must provoke.
type ErrorKind int

//go:generate stringer -type=ErrorKind

const (
	ErrInvalidBroadcastDims ErrorKind = iota
	ErrRankMismatch
	ErrShapeMismatch
)

// ErrorCase is the expected outcome of feeding an invalid sample to an
// operator: the failure class, plus a substring the error message must
// contain (empty means any message).
type ErrorCase struct {
	Kind    ErrorKind
	Message string
}

// ErrorGenerator produces invalid samples paired with the failure each one
// must provoke.
type ErrorGenerator func(op *OpInfo, g GenArgs) iter.Seq2[*SampleInput, ErrorCase]

// BenchmarkGenerator produces named samples sized for performance
// measurement rather than correctness.
type BenchmarkGenerator func(op *OpInfo, g GenArgs) iter.Seq2[string, *SampleInput]

// Op configures one operator record for registration. Name, Fn and
// SampleGen are required; everything else has a permissive default.
type Op struct {
	Name string
	Fn   Fn

	SampleGen    SampleGenerator
	ErrorGen     ErrorGenerator
	BenchmarkGen BenchmarkGenerator

	// DTypes the operator supports. Defaults to every dtype.
	DTypes []dtypes.Resolvable

	// DeviceTypes the operator supports. Defaults to every device type.
	DeviceTypes []backends.DeviceType

	// Domain is the half-open interval valid inputs are drawn from.
	Domain Domain

	// ExcludeZero removes zero from generated inputs, for operators with a
	// singularity there.
	ExcludeZero bool

	// SingularityFn maps an input to its distance from the nearest
	// singularity; generated inputs are pushed away from its zeros.
	SingularityFn func(x float64) float64

	// Decorators are the operator's condition matchers, applied in
	// declaration order.
	Decorators []Decorate

	References References
}

// OpInfo is one resolved operator record. Immutable after registration;
// sharing across goroutines is safe.
type OpInfo struct {
	name          string
	fn            Fn
	sampleGen     SampleGenerator
	errorGen      ErrorGenerator
	benchmarkGen  BenchmarkGenerator
	dtypeSet      dtypes.Set
	deviceTypes   []backends.DeviceType
	domain        Domain
	excludeZero   bool
	singularityFn func(x float64) float64
	matchers      []*DecorateInfo
	references    References
	category      Category
}

func newOpInfo(category Category, cfg Op) *OpInfo {
	if cfg.Name == "" {
		exceptions.Panicf("opinfos: operator record requires a name")
	}
	if cfg.SampleGen == nil {
		exceptions.Panicf("opinfos: operator %q requires a sample generator", cfg.Name)
	}
	op := &OpInfo{
		name:          cfg.Name,
		fn:            cfg.Fn,
		sampleGen:     cfg.SampleGen,
		errorGen:      cfg.ErrorGen,
		benchmarkGen:  cfg.BenchmarkGen,
		deviceTypes:   cfg.DeviceTypes,
		domain:        cfg.Domain,
		excludeZero:   cfg.ExcludeZero,
		singularityFn: cfg.SingularityFn,
		references:    cfg.References,
		category:      category,
	}
	if len(cfg.DTypes) > 0 {
		op.dtypeSet = dtypes.Resolve(cfg.DTypes...)
	} else {
		op.dtypeSet = dtypes.Resolve(dtypes.All)
	}
	if len(op.deviceTypes) == 0 {
		op.deviceTypes = backends.AllDeviceTypes()
	}
	op.matchers = make([]*DecorateInfo, 0, len(cfg.Decorators))
	for _, decorator := range cfg.Decorators {
		op.matchers = append(op.matchers, newDecorateInfo(decorator))
	}
	return op
}

// Name returns the operator's unique name.
func (op *OpInfo) Name() string { return op.name }

// Category returns the operator family the record was registered under.
func (op *OpInfo) Category() Category { return op.category }

// Domain returns the half-open interval valid inputs are drawn from.
func (op *OpInfo) Domain() Domain { return op.domain }

// References returns the operator's documentation pointers.
func (op *OpInfo) References() References { return op.references }

// Call invokes the operator's host callable on the sample.
func (op *OpInfo) Call(sample *SampleInput) (any, error) {
	if op.fn == nil {
		exceptions.Panicf("opinfos: operator %q has no host callable", op.name)
	}
	return op.fn(sample)
}

// HasFn reports whether the operator carries a host callable.
func (op *OpInfo) HasFn() bool { return op.fn != nil }

// maker builds the tensor maker sample generators draw from: the operator's
// domain, clamped to the default generation window, plus its zero-exclusion
// flag.
func (op *OpInfo) maker(g GenArgs) *tensors.Maker {
	low, high := op.domain.ClampDefault()
	m := g.Maker().WithRange(low, high)
	if op.excludeZero {
		m = m.WithExcludeZero(true)
	}
	return m
}

// SampleInputs returns a fresh, restartable sequence of valid samples for
// the given generation arguments. Tensor values respect the operator's
// domain and zero-exclusion, and when a singularity function is set they are
// pushed away from its zeros.
func (op *OpInfo) SampleInputs(g GenArgs) iter.Seq[*SampleInput] {
	samples := op.sampleGen(op, g)
	if op.singularityFn == nil {
		return samples
	}
	return func(yield func(*SampleInput) bool) {
		for sample := range samples {
			adjusted := sample.transform(func(value any) any {
				if t, ok := value.(*tensors.Tensor); ok {
					return PushAwayFromSingularities(t, op.singularityFn, eps)
				}
				return value
			})
			if !yield(adjusted) {
				return
			}
		}
	}
}

// ErrorInputs returns the operator's invalid samples with their expected
// failures. Nil when the operator declares no error cases.
func (op *OpInfo) ErrorInputs(g GenArgs) iter.Seq2[*SampleInput, ErrorCase] {
	if op.errorGen == nil {
		return nil
	}
	return op.errorGen(op, g)
}

// Benchmarks returns the operator's named benchmark samples. Nil when the
// operator declares none.
func (op *OpInfo) Benchmarks(g GenArgs) iter.Seq2[string, *SampleInput] {
	if op.benchmarkGen == nil {
		return nil
	}
	return op.benchmarkGen(op, g)
}

// SupportedDTypes returns the operator's resolved dtype set. The returned
// set is owned by the record, don't modify it.
func (op *OpInfo) SupportedDTypes() dtypes.Set { return op.dtypeSet }

// SupportsDType reports whether the operator supports the dtype.
func (op *OpInfo) SupportsDType(dtype dtypes.DType) bool {
	return op.dtypeSet.Has(dtype)
}

// SupportedDeviceTypes returns the device types the operator runs on.
func (op *OpInfo) SupportedDeviceTypes() []backends.DeviceType {
	return op.deviceTypes
}

// SupportsDeviceType reports whether the operator runs on the device type.
func (op *OpInfo) SupportsDeviceType(deviceType backends.DeviceType) bool {
	return slices.Contains(op.deviceTypes, deviceType)
}

// TestDecorators returns the condition matchers active for the given test
// case coordinates, in declaration order. Harnesses apply them in that
// order, so a later tolerance override wins over an earlier one.
func (op *OpInfo) TestDecorators(testName, backend string, deviceType backends.DeviceType, dtype dtypes.DType) []*DecorateInfo {
	var active []*DecorateInfo
	for _, matcher := range op.matchers {
		if matcher.IsActive(testName, backend, deviceType, dtype) {
			active = append(active, matcher)
		}
	}
	return active
}
