package opinfos

import (
	"iter"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Category is the family an operator record is registered under. Iterating a
// registry visits the categories in declaration order, operators in
// registration order within each.
type Category int

//go:generate stringer -type=Category

const (
	Unary Category = iota
	Binary
	Ternary
	Shape
	Reduction
	Creation
	Matmul
	NN
)

// AllCategories returns every operator family, in registry order.
func AllCategories() []Category {
	return []Category{Unary, Binary, Ternary, Shape, Reduction, Creation, Matmul, NN}
}

// Registry is an ordered collection of operator records. Build it once with
// NewRegistry (or assemble a custom one with Register) and then share it
// freely: after construction it is only read.
type Registry struct {
	ops    []*OpInfo
	byName map[string]*OpInfo
}

// NewRegistry builds the full built-in operator matrix, category by
// category.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*OpInfo)}
	registerUnaryOps(r)
	registerBinaryOps(r)
	registerTernaryOps(r)
	registerShapeOps(r)
	registerReductionOps(r)
	registerCreationOps(r)
	registerMatmulOps(r)
	registerNNOps(r)
	return r
}

// NewEmptyRegistry returns a registry with no records, for callers
// assembling their own matrix.
func NewEmptyRegistry() *Registry {
	return &Registry{byName: make(map[string]*OpInfo)}
}

// Register resolves the operator configuration and adds it under the given
// category. Panics on a duplicate name or an invalid configuration.
func (r *Registry) Register(category Category, cfg Op) *OpInfo {
	if _, duplicate := r.byName[cfg.Name]; duplicate {
		exceptions.Panicf("opinfos: operator %q registered twice", cfg.Name)
	}
	op := newOpInfo(category, cfg)
	r.ops = append(r.ops, op)
	r.byName[op.name] = op
	klog.V(1).Infof("registered operator %q (%s)", op.name, category)
	return op
}

// Len returns the number of registered operators.
func (r *Registry) Len() int { return len(r.ops) }

// All iterates over every record in registration order.
func (r *Registry) All() iter.Seq[*OpInfo] {
	return func(yield func(*OpInfo) bool) {
		for _, op := range r.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// ByName returns the record with the given name, or nil.
func (r *Registry) ByName(name string) *OpInfo {
	return r.byName[name]
}

// Get returns the record with the given name, or an error naming it.
func (r *Registry) Get(name string) (*OpInfo, error) {
	op, found := r.byName[name]
	if !found {
		return nil, errors.Errorf("opinfos: no operator registered under %q", name)
	}
	return op, nil
}

// ByCategory iterates over the records of one family, in registration order.
func (r *Registry) ByCategory(category Category) iter.Seq[*OpInfo] {
	return r.Filter(func(op *OpInfo) bool { return op.category == category })
}

// Filter iterates over the records the predicate accepts, in registration
// order.
func (r *Registry) Filter(pred func(*OpInfo) bool) iter.Seq[*OpInfo] {
	return func(yield func(*OpInfo) bool) {
		for _, op := range r.ops {
			if pred(op) && !yield(op) {
				return
			}
		}
	}
}
