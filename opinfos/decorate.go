package opinfos

import (
	"slices"
	"strings"

	"k8s.io/klog/v2"

	"github.com/gomlx/opcheck/backends"
	"github.com/gomlx/opcheck/types/dtypes"
)

// EffectKind says what an active condition matcher does to the matched test
// case.
type EffectKind int

//go:generate stringer -type=EffectKind

const (
	// ExpectFailure marks the case as a known failure: it runs, and passing
	// is reported as an error.
	ExpectFailure EffectKind = iota

	// Skip excludes the case from execution entirely.
	Skip

	// ToleranceOverride relaxes the numerical comparison tolerances for the
	// case.
	ToleranceOverride
)

// Effect is the declarative outcome a matcher applies. Rtol and Atol are only
// meaningful for ToleranceOverride.
type Effect struct {
	Kind   EffectKind
	Reason string
	Rtol   float64
	Atol   float64
}

// Decorate configures one condition matcher. A nil or empty field matches
// every value of that dimension; the populated fields are combined with AND.
type Decorate struct {
	Effect Effect

	// TestNames restricts the matcher to the named test templates, e.g.
	// "consistency" or "vjp".
	TestNames []string

	// Backends restricts the matcher to the named backends, e.g. "go" or
	// "xla".
	Backends []string

	// DeviceTypes restricts the matcher to the given device types.
	DeviceTypes []backends.DeviceType

	// DTypes restricts the matcher to the resolved dtype set.
	DTypes []dtypes.Resolvable

	// ActiveIf, if set, is evaluated at match time; the matcher is inert
	// while it reports false. Use backends.VersionBefore for version gates.
	ActiveIf func() bool
}

// DecorateInfo is a resolved condition matcher attached to an operator
// record. It is immutable after construction.
type DecorateInfo struct {
	effect      Effect
	testNames   []string
	backendSet  []string
	deviceTypes []backends.DeviceType
	dtypeSet    dtypes.Set
	activeIf    func() bool
}

// newDecorateInfo resolves a matcher configuration. Backend names not (yet)
// registered are kept and warned about, never rejected: the matcher simply
// won't fire for them.
func newDecorateInfo(cfg Decorate) *DecorateInfo {
	for _, name := range cfg.Backends {
		if !backends.IsRegistered(name) {
			klog.Warningf("condition matcher names unknown backend %q (registered: %s)",
				name, strings.Join(backends.Names(), ", "))
		}
	}
	info := &DecorateInfo{
		effect:      cfg.Effect,
		testNames:   cfg.TestNames,
		backendSet:  cfg.Backends,
		deviceTypes: cfg.DeviceTypes,
		activeIf:    cfg.ActiveIf,
	}
	if len(cfg.DTypes) > 0 {
		info.dtypeSet = dtypes.Resolve(cfg.DTypes...)
	}
	return info
}

// Effect returns the outcome this matcher applies when active.
func (d *DecorateInfo) Effect() Effect { return d.effect }

// IsActive reports whether the matcher fires for the given test case
// coordinates. Every unset dimension matches; set dimensions must all match.
func (d *DecorateInfo) IsActive(testName, backend string, deviceType backends.DeviceType, dtype dtypes.DType) bool {
	if len(d.testNames) > 0 && !slices.Contains(d.testNames, testName) {
		return false
	}
	if len(d.backendSet) > 0 && !slices.Contains(d.backendSet, backend) {
		return false
	}
	if len(d.deviceTypes) > 0 && !slices.Contains(d.deviceTypes, deviceType) {
		return false
	}
	if d.dtypeSet != nil && !d.dtypeSet.Has(dtype) {
		return false
	}
	if d.activeIf != nil && !d.activeIf() {
		return false
	}
	return true
}

// Registration table shorthands.

func xfail(reason string, cfg Decorate) Decorate {
	cfg.Effect = Effect{Kind: ExpectFailure, Reason: reason}
	return cfg
}

func skip(reason string, cfg Decorate) Decorate {
	cfg.Effect = Effect{Kind: Skip, Reason: reason}
	return cfg
}

func tolerance(rtol, atol float64, cfg Decorate) Decorate {
	cfg.Effect = Effect{Kind: ToleranceOverride, Rtol: rtol, Atol: atol}
	return cfg
}
