package buildx

import "reflect"

// Resolver is the dependency-resolution capability consumed during
// constructor ranking and argument binding. It is always consulted only
// after configuration-key matching fails for a parameter.
//
// Implementations answer by parameter type and, optionally, by name.
// The builder wraps resolvers in SafeResolver, which attempts the named
// lookup first and retries type-only (empty name) when it fails, so an
// implementation only needs to answer the queries it understands.
type Resolver interface {
	// CanResolve reports whether the resolver can supply a value for a
	// parameter of the given type and name.
	CanResolve(t reflect.Type, name string) bool

	// TryResolve supplies the value. A false return means the resolver
	// cannot supply it; implementations never report failures any
	// other way.
	TryResolve(t reflect.Type, name string) (any, bool)
}

// ResolverFuncs adapts two functions to the Resolver interface.
type ResolverFuncs struct {
	CanResolveFunc func(t reflect.Type, name string) bool
	TryResolveFunc func(t reflect.Type, name string) (any, bool)
}

// CanResolve implements Resolver.
func (r ResolverFuncs) CanResolve(t reflect.Type, name string) bool {
	if r.CanResolveFunc == nil {
		return false
	}
	return r.CanResolveFunc(t, name)
}

// TryResolve implements Resolver.
func (r ResolverFuncs) TryResolve(t reflect.Type, name string) (any, bool) {
	if r.TryResolveFunc == nil {
		return nil, false
	}
	return r.TryResolveFunc(t, name)
}

// SafeResolver wraps a resolver with the lookup discipline the builder
// applies to container adapters: a named lookup runs first and falls
// back to a type-only lookup (empty name) when it fails, and panics
// from the underlying adapter are treated as "cannot resolve" instead
// of propagating. Adapter failures are swallowed locally, never fatal.
func SafeResolver(r Resolver) Resolver {
	if r == nil {
		return nil
	}
	return &safeResolver{inner: r}
}

type safeResolver struct {
	inner Resolver
}

func (s *safeResolver) CanResolve(t reflect.Type, name string) bool {
	if s.canResolve(t, name) {
		return true
	}
	return name != "" && s.canResolve(t, "")
}

func (s *safeResolver) TryResolve(t reflect.Type, name string) (any, bool) {
	if v, ok := s.tryResolve(t, name); ok {
		return v, true
	}
	if name == "" {
		return nil, false
	}
	return s.tryResolve(t, "")
}

func (s *safeResolver) canResolve(t reflect.Type, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return s.inner.CanResolve(t, name)
}

func (s *safeResolver) tryResolve(t reflect.Type, name string) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	return s.inner.TryResolve(t, name)
}
