// Package backends describes the identity of the execution backends the
// test matrix is evaluated against, and the device types they run on.
//
// The backends themselves -- the executors compiling and running the
// operators under test -- live outside this module; here they appear only as
// (name, version) identities that condition matchers filter on. Backends
// register themselves by name during initialization, which lets registration
// tables express deferred, version-dependent activation conditions without
// holding a reference to the backend instance.
package backends

import (
	"slices"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/mod/semver"
)

// DeviceType is the class of hardware an operation runs on.
type DeviceType int

//go:generate stringer -type=DeviceType

const (
	CPU DeviceType = iota
	CUDA
)

// AllDeviceTypes returns every known device type. Operator records that
// don't restrict their device types default to this set.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{CPU, CUDA}
}

// Backend identifies one concrete implementation pathway an operator call is
// dispatched to.
type Backend interface {
	// Name returns the short name of the backend, e.g. "go" or "xla".
	Name() string

	// Version returns the backend's version, e.g. "0.0.6". Used by
	// version-gated condition matchers.
	Version() string
}

type namedBackend struct {
	name, version string
}

func (b namedBackend) Name() string    { return b.name }
func (b namedBackend) Version() string { return b.version }

// New returns a plain Backend identity with the given name and version.
func New(name, version string) Backend {
	return namedBackend{name: name, version: version}
}

// registered maps backend name to its identity. Registration happens during
// process initialization; afterwards the map is only read, so no locking is
// needed (same contract as the rest of the engine, see the opinfos package
// documentation).
var registered = make(map[string]Backend)

// Register makes a backend identity known to the engine. Call it during
// initialization, before any matcher is evaluated. Re-registering a name
// replaces the previous identity.
func Register(b Backend) {
	registered[b.Name()] = b
}

// Get returns the registered backend with the given name.
func Get(name string) (Backend, bool) {
	b, found := registered[name]
	return b, found
}

// IsRegistered reports whether a backend with the given name was registered.
func IsRegistered(name string) bool {
	_, found := registered[name]
	return found
}

// Names returns the names of all registered backends, sorted.
func Names() []string {
	names := maps.Keys(registered)
	slices.Sort(names)
	return names
}

func canonicalVersion(version string) string {
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}

// VersionBefore returns a deferred condition reporting whether the
// registered backend with the given name has a version strictly below max.
// If no such backend is registered when the condition is evaluated, it
// reports false.
//
// The comparison follows semantic versioning (golang.org/x/mod/semver); a
// leading "v" in either version is optional.
func VersionBefore(name, max string) func() bool {
	return func() bool {
		b, found := Get(name)
		if !found {
			return false
		}
		return semver.Compare(canonicalVersion(b.Version()), canonicalVersion(max)) < 0
	}
}
