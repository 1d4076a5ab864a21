package buildx

import (
	"reflect"
	"strings"
	"sync"

	"github.com/molt-dev/molt/core/errors"
)

// TypeOf returns the reflect.Type of T. It works for interface types,
// unlike reflect.TypeOf on a value.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Param describes one constructor parameter.
type Param struct {
	Name       string
	Type       reflect.Type
	Default    reflect.Value
	HasDefault bool
}

// Constructor is a compiled constructor of a registered type.
type Constructor struct {
	fn         reflect.Value
	params     []Param
	index      int
	returnsErr bool
}

// Params returns the constructor's parameters in declaration order.
func (c *Constructor) Params() []Param {
	return c.params
}

// consumes reports whether the constructor has a parameter with the
// given name, matched case-insensitively.
func (c *Constructor) consumes(name string) bool {
	for _, p := range c.params {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// ConstructorSpec declares a constructor during registration. Go
// reflection carries no parameter names, so they are supplied here,
// positionally matching the function's inputs.
type ConstructorSpec struct {
	fn       any
	names    []string
	defaults map[string]any
}

// NewConstructor declares a constructor function and its parameter
// names. The function may return (T) or (T, error).
func NewConstructor(fn any, paramNames ...string) *ConstructorSpec {
	return &ConstructorSpec{
		fn:       fn,
		names:    paramNames,
		defaults: map[string]any{},
	}
}

// WithDefault declares a default value for a named parameter, making it
// optional during constructor ranking.
func (s *ConstructorSpec) WithDefault(name string, value any) *ConstructorSpec {
	s.defaults[name] = value
	return s
}

// entry holds the compiled registration of one concrete type.
type entry struct {
	name  string
	typ   reflect.Type
	ctors []*Constructor
}

// defaultRule maps an interface type to a concrete type, optionally
// narrowed to a declaring type and member name.
type defaultRule struct {
	iface     reflect.Type
	declaring reflect.Type
	member    string
	concrete  reflect.Type
}

// DefaultTypeOption narrows a default-type rule.
type DefaultTypeOption func(*defaultRule)

// ForDeclaring restricts the rule to members declared by the given type.
func ForDeclaring(t reflect.Type) DefaultTypeOption {
	return func(r *defaultRule) {
		r.declaring = t
	}
}

// ForMember restricts the rule to members with the given name.
func ForMember(name string) DefaultTypeOption {
	return func(r *defaultRule) {
		r.member = name
	}
}

// ConvertFunc converts a scalar configuration string to a value of a
// registered target type.
type ConvertFunc func(s string) (any, error)

// Registry holds the concrete types that configuration may name, their
// constructors, the default-type table, and custom scalar converters.
// Registration is expected during startup; lookups are safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*entry
	byType     map[reflect.Type]*entry
	defaults   []defaultRule
	converters map[reflect.Type]ConvertFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     map[string]*entry{},
		byType:     map[reflect.Type]*entry{},
		converters: map[reflect.Type]ConvertFunc{},
	}
}

// RegisterType registers a concrete type under a configuration name
// together with its constructors. If no constructor is declared and the
// type is a struct or pointer to struct, an implicit zero-parameter
// constructor is synthesized.
func (r *Registry) RegisterType(name string, typ reflect.Type, specs ...*ConstructorSpec) error {
	if name == "" {
		return errors.New(errors.CodeInvalidArgument, "type name is required")
	}
	if typ == nil {
		return errors.New(errors.CodeInvalidArgument, "type is required")
	}

	e := &entry{name: name, typ: typ}
	for i, spec := range specs {
		ctor, err := compileConstructor(typ, spec, i)
		if err != nil {
			return err
		}
		e.ctors = append(e.ctors, ctor)
	}

	if len(e.ctors) == 0 {
		ctor, err := zeroConstructor(typ)
		if err != nil {
			return err
		}
		e.ctors = append(e.ctors, ctor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return errors.Newf(errors.CodeInvalidArgument, "type %q already registered", name)
	}
	r.byName[name] = e
	r.byType[typ] = e
	return nil
}

// TypeByName resolves a configuration type name to the registered type.
func (r *Registry) TypeByName(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.typ, true
}

// SetDefaultType maps an interface type to the concrete type
// constructed when configuration declares no explicit type. Options
// narrow the rule to a declaring type or member name; the most specific
// matching rule wins at lookup.
func (r *Registry) SetDefaultType(iface, concrete reflect.Type, opts ...DefaultTypeOption) {
	rule := defaultRule{iface: iface, concrete: concrete}
	for _, opt := range opts {
		opt(&rule)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = append(r.defaults, rule)
}

// DefaultTypeFor looks up the concrete type for a target interface in
// the context of a declaring type and member name. Member-narrowed
// rules outrank declaring-narrowed ones; rules narrowed by both outrank
// everything. Among equally specific rules the later registration wins.
func (r *Registry) DefaultTypeFor(iface, declaring reflect.Type, member string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := -1
	var found reflect.Type
	for _, rule := range r.defaults {
		if rule.iface != iface {
			continue
		}
		score := 0
		if rule.declaring != nil {
			if rule.declaring != declaring {
				continue
			}
			score += 1
		}
		if rule.member != "" {
			if !strings.EqualFold(rule.member, member) {
				continue
			}
			score += 2
		}
		if score >= best {
			best = score
			found = rule.concrete
		}
	}
	if best < 0 {
		return nil, false
	}
	return found, true
}

// RegisterConverter registers a scalar converter for a target type,
// consulted before the built-in primitive conversions.
func (r *Registry) RegisterConverter(typ reflect.Type, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[typ] = fn
}

// constructorsFor returns the constructors of a type. Unregistered
// struct shapes get a synthesized zero-parameter constructor so nested
// plain structs can be built without registration.
func (r *Registry) constructorsFor(typ reflect.Type) ([]*Constructor, error) {
	r.mu.RLock()
	e, ok := r.byType[typ]
	r.mu.RUnlock()
	if ok {
		return e.ctors, nil
	}

	ctor, err := zeroConstructor(typ)
	if err != nil {
		return nil, err
	}
	return []*Constructor{ctor}, nil
}

// converterFor returns the custom converter for a type, if registered.
func (r *Registry) converterFor(typ reflect.Type) (ConvertFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.converters[typ]
	return fn, ok
}

// compileConstructor validates a ConstructorSpec against the registered
// type and compiles it for invocation.
func compileConstructor(typ reflect.Type, spec *ConstructorSpec, index int) (*Constructor, error) {
	if spec == nil || spec.fn == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "constructor function is required")
	}

	fv := reflect.ValueOf(spec.fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, errors.Newf(errors.CodeInvalidArgument, "constructor for %s is not a function", typ)
	}
	if ft.IsVariadic() {
		return nil, errors.Newf(errors.CodeInvalidArgument, "constructor for %s must not be variadic", typ)
	}
	if ft.NumIn() != len(spec.names) {
		return nil, errors.Newf(errors.CodeInvalidArgument,
			"constructor for %s takes %d parameters but %d names were declared", typ, ft.NumIn(), len(spec.names))
	}

	returnsErr := false
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != TypeOf[error]() {
			return nil, errors.Newf(errors.CodeInvalidArgument, "constructor for %s second return must be error", typ)
		}
		returnsErr = true
	default:
		return nil, errors.Newf(errors.CodeInvalidArgument, "constructor for %s must return (T) or (T, error)", typ)
	}
	if !ft.Out(0).AssignableTo(typ) {
		return nil, errors.Newf(errors.CodeInvalidArgument,
			"constructor for %s returns %s", typ, ft.Out(0))
	}

	ctor := &Constructor{fn: fv, index: index, returnsErr: returnsErr}
	seenDefaults := 0
	for i, name := range spec.names {
		p := Param{Name: name, Type: ft.In(i)}
		if dv, ok := spec.defaults[name]; ok {
			val, err := defaultValue(dv, p.Type)
			if err != nil {
				return nil, errors.Wrapf(errors.CodeInvalidArgument, "buildx.compileConstructor", err,
					"default for parameter %q of %s", name, typ)
			}
			p.Default = val
			p.HasDefault = true
			seenDefaults++
		}
		ctor.params = append(ctor.params, p)
	}
	if seenDefaults != len(spec.defaults) {
		return nil, errors.Newf(errors.CodeInvalidArgument,
			"constructor for %s declares a default for an unknown parameter", typ)
	}
	return ctor, nil
}

// zeroConstructor synthesizes a parameterless constructor for struct
// shapes, producing the zero value (or a pointer to it).
func zeroConstructor(typ reflect.Type) (*Constructor, error) {
	switch {
	case typ.Kind() == reflect.Struct:
	case typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct:
	default:
		return nil, errors.Newf(errors.CodeInvalidConfiguration,
			"type %s has no constructors and is not a struct shape", typ)
	}

	fn := reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{typ}, false),
		func([]reflect.Value) []reflect.Value {
			if typ.Kind() == reflect.Pointer {
				return []reflect.Value{reflect.New(typ.Elem())}
			}
			return []reflect.Value{reflect.New(typ).Elem()}
		})
	return &Constructor{fn: fn}, nil
}

// defaultValue coerces a declared default to the parameter type.
func defaultValue(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(typ), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(typ) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ), nil
	}
	return reflect.Value{}, errors.Newf(errors.CodeInvalidArgument,
		"value of type %T is not assignable to %s", v, typ)
}
