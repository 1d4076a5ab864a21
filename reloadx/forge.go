package reloadx

import (
	"reflect"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/molt-dev/molt/buildx"
	"github.com/molt-dev/molt/core/errors"
)

// Forge is the explicit registry of forwarding adapters, one per proxied
// interface. Go cannot emit a forwarding implementation of an arbitrary
// interface at runtime, so the caller supplies one adapter function per
// interface: given a getter for the current instance, it returns a value
// implementing the interface that forwards every call through the getter.
//
// A Forge is created once per process or application context and passed
// explicitly to anything that creates proxies. Shape validation runs at
// most once per interface, race-free under concurrent first use.
type Forge struct {
	mu       sync.RWMutex
	adapters map[reflect.Type]any
	checked  map[reflect.Type]error
	sf       singleflight.Group
}

// NewForge creates an empty adapter registry.
func NewForge() *Forge {
	return &Forge{
		adapters: map[reflect.Type]any{},
		checked:  map[reflect.Type]error{},
	}
}

// RegisterAdapter registers the forwarding adapter for interface T.
// Registering a second adapter for the same interface is an error.
func RegisterAdapter[T any](f *Forge, adapt func(current func() T) T) error {
	if adapt == nil {
		return errors.New(errors.CodeInvalidArgument, "adapter function is required")
	}
	t := buildx.TypeOf[T]()

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.adapters[t]; exists {
		return errors.Newf(errors.CodeInvalidArgument, "adapter for %s already registered", t)
	}
	f.adapters[t] = adapt
	return nil
}

// adapterFor returns the validated adapter for interface T. The target
// shape check runs once per interface; concurrent first uses share one
// validation via singleflight.
func adapterFor[T any](f *Forge) (func(current func() T) T, error) {
	t := buildx.TypeOf[T]()

	// The flight is keyed by the type's identity, not its display
	// string: two pkg.Greeter interfaces from different module paths
	// render identically but are distinct targets.
	key := strconv.FormatUint(uint64(reflect.ValueOf(t).Pointer()), 16)
	_, err, _ := f.sf.Do(key, func() (any, error) {
		f.mu.RLock()
		err, done := f.checked[t]
		f.mu.RUnlock()
		if done {
			return nil, err
		}
		err = validateTarget(t)
		f.mu.Lock()
		f.checked[t] = err
		f.mu.Unlock()
		return nil, err
	})
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	raw, ok := f.adapters[t]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidArgument, "no adapter registered for %s", t)
	}
	return raw.(func(current func() T) T), nil
}

// validateTarget rejects shapes whose forwarding semantics cannot be
// preserved across a swap: non-interfaces and bare sequence capabilities.
func validateTarget(t reflect.Type) error {
	if isSequenceShaped(t) {
		return errors.Newf(errors.CodeUnsupportedShape,
			"%s is a bare sequence capability; iteration cannot be forwarded across a swap", t)
	}
	if t.Kind() != reflect.Interface {
		return errors.Newf(errors.CodeUnsupportedShape, "proxy target %s is not an interface", t)
	}
	if t.NumMethod() == 0 {
		return errors.Newf(errors.CodeUnsupportedShape, "proxy target %s has no methods to forward", t)
	}
	return nil
}

// isSequenceShaped reports whether a type is a bare enumerable: an
// iter.Seq-style func, or an interface whose whole surface is a single
// iteration method (an iter.Seq-returning accessor or a Next-style
// pull method).
func isSequenceShaped(t reflect.Type) bool {
	if isSeqFunc(t) {
		return true
	}
	if t.Kind() != reflect.Interface || t.NumMethod() != 1 {
		return false
	}
	m := t.Method(0).Type
	if m.NumIn() == 0 && m.NumOut() == 1 && isSeqFunc(m.Out(0)) {
		return true
	}
	// Next() (V, bool) pull-iterator shape.
	if m.NumIn() == 0 && m.NumOut() == 2 && m.Out(1).Kind() == reflect.Bool {
		return true
	}
	return isSeqFunc(m)
}

// isSeqFunc matches the iter.Seq and iter.Seq2 signatures:
// func(yield func(...) bool).
func isSeqFunc(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	yield := t.In(0)
	return yield.Kind() == reflect.Func &&
		yield.NumOut() == 1 &&
		yield.Out(0).Kind() == reflect.Bool &&
		yield.NumIn() >= 1 && yield.NumIn() <= 2
}
