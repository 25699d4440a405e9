package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownType No builder is registered for the record type
	ErrUnknownType = errors.New("unknown component type")
	// ErrDuplicate Builder is already registered for the type
	ErrDuplicate = errors.New("component type already registered")
)

// Builder Creates a component from its declarative record.
type Builder[T any] func(rec Record) (T, error)

// Registry Named table of component builders keyed by type string.
//
// name - registry name used in error messages ("transform", "hook", ...)
// builders - type string to builder
//
type Registry[T any] struct {
	name     string
	mu       sync.RWMutex
	builders map[string]Builder[T]
}

// New Creates empty registry
func New[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:     name,
		builders: make(map[string]Builder[T]),
	}
}

// Name Returns registry name
func (r *Registry[T]) Name() string {
	return r.name
}

// Register Adds builder under the given type name.
func (r *Registry[T]) Register(typ string, b Builder[T]) error {
	if typ == "" {
		return errors.Wrapf(ErrMissingType, "[%s registry] can't register builder", r.name)
	}
	if b == nil {
		return errors.Errorf("[%s registry] builder for '%s' is nil", r.name, typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[typ]; ok {
		return errors.Wrapf(ErrDuplicate, "[%s registry] '%s'", r.name, typ)
	}
	r.builders[typ] = b
	return nil
}

// MustRegister Same as Register but panics on error. Intended for init().
func (r *Registry[T]) MustRegister(typ string, b Builder[T]) {
	if err := r.Register(typ, b); err != nil {
		panic(err)
	}
}

// Has Reports whether type is registered
func (r *Registry[T]) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[typ]
	return ok
}

// Types Returns sorted registered type names
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for k := range r.builders {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Build Resolves the record's type and invokes its builder.
func (r *Registry[T]) Build(rec Record) (T, error) {
	var zero T
	typ, err := rec.Type()
	if err != nil {
		return zero, errors.Wrapf(err, "[%s registry] can't build", r.name)
	}
	r.mu.RLock()
	b, ok := r.builders[typ]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.Wrapf(ErrUnknownType, "[%s registry] '%s'", r.name, typ)
	}
	component, err := b(rec)
	if err != nil {
		return zero, errors.Wrapf(err, "[%s registry] can't build '%s'", r.name, typ)
	}
	return component, nil
}

// BuildAll Builds every record in order
func (r *Registry[T]) BuildAll(recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for i, rec := range recs {
		component, err := r.Build(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "record #%d", i)
		}
		out = append(out, component)
	}
	return out, nil
}
