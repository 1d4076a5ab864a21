package buildx

import (
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/molt-dev/molt/core/errors"
	"github.com/molt-dev/molt/core/log"
	"github.com/molt-dev/molt/treex"
)

// Builder constructs object graphs from configuration nodes. It holds
// no mutable state and is safe to call from any goroutine.
type Builder struct {
	reg      *Registry
	logger   log.Logger
	resolver Resolver
	validate *validator.Validate
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for construction diagnostics.
func WithLogger(l log.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithResolver sets the dependency-resolution capability. The resolver
// is wrapped so that panics from the adapter are treated as "cannot
// resolve" rather than propagated.
func WithResolver(r Resolver) Option {
	return func(b *Builder) {
		b.resolver = SafeResolver(r)
	}
}

// WithValidation enables post-build validation of constructed structs
// against their validate tags. A nil argument uses a fresh validator.
func WithValidation(v *validator.Validate) Option {
	return func(b *Builder) {
		if v == nil {
			v = validator.New()
		}
		b.validate = v
	}
}

// NewBuilder creates a Builder over a registry.
func NewBuilder(reg *Registry, opts ...Option) *Builder {
	b := &Builder{
		reg:    reg,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Materialize builds a value of type T from a configuration node.
func Materialize[T any](b *Builder, node treex.Node) (T, error) {
	var zero T
	v, err := b.Build(node, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Newf(errors.CodeInternal, "built %T, want %s", v, TypeOf[T]())
	}
	return typed, nil
}

// Build constructs a value assignable to the target type from a node.
func (b *Builder) Build(node treex.Node, target reflect.Type) (any, error) {
	return b.BuildMember(node, target, nil, "")
}

// BuildMember constructs a value assignable to the target type in the
// context of a declaring type and member name, which scope the
// default-type table lookup. All failures abort the whole subtree
// build; no partial objects are returned.
func (b *Builder) BuildMember(node treex.Node, target, declaring reflect.Type, member string) (any, error) {
	if node == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "node is required")
	}
	if target == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "target type is required")
	}

	concrete, binding, err := b.resolveConcrete(node, target, declaring, member)
	if err != nil {
		return nil, err
	}

	ctors, err := b.reg.constructorsFor(concrete)
	if err != nil {
		return nil, err
	}

	keys := treex.ChildNames(binding)
	cands := Rank(ctors, keys, b.resolver)
	best := cands[0]
	if !best.InvokableWithDefaults {
		return nil, errors.NewWithDetails(errors.CodeConstructionFailure,
			"no invokable constructor for "+concrete.String()+" at "+node.Path(),
			best.MissingParams)
	}
	b.logger.Debug("constructor selected",
		log.Str("type", concrete.String()),
		log.Int("parameters", best.TotalParams),
		log.Int("matched", best.MatchedParams))

	args := make([]reflect.Value, 0, len(best.Ctor.params))
	for _, p := range best.Ctor.params {
		arg, err := b.bindParam(binding, concrete, p)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	outs := best.Ctor.fn.Call(args)
	if best.Ctor.returnsErr && !outs[1].IsNil() {
		return nil, errors.Wrapf(errors.CodeConstructionFailure, "buildx.Build",
			outs[1].Interface().(error), "constructor of %s at %s", concrete, node.Path())
	}

	result, err := b.bindFields(binding, concrete, best.Ctor, outs[0])
	if err != nil {
		return nil, err
	}

	if b.validate != nil {
		if err := b.runValidation(result); err != nil {
			return nil, err
		}
	}
	return result.Interface(), nil
}

// MissingParams extracts the missing constructor parameter names from a
// CONSTRUCTION_FAILURE error.
func MissingParams(err error) []string {
	for _, d := range errors.DetailsOf(err) {
		if names, ok := d.([]string); ok {
			return names
		}
	}
	return nil
}

// resolveConcrete determines the concrete type to construct and the
// subtree to bind from. A declared type key wins; otherwise a concrete
// target is built as-is and interface targets fall back to the
// default-type table.
func (b *Builder) resolveConcrete(node treex.Node, target, declaring reflect.Type, member string) (reflect.Type, treex.Node, error) {
	if tn, ok := node.Child(treex.KeyType); ok {
		if name, has := tn.Value(); has {
			typ, ok := b.reg.TypeByName(name)
			if !ok {
				return nil, nil, errors.Newf(errors.CodeInvalidConfiguration,
					"unresolvable type %q at %s", name, node.Path())
			}
			if !assignable(typ, target) {
				return nil, nil, errors.Newf(errors.CodeInvalidConfiguration,
					"declared type %s (%q) is not assignable to %s", typ, name, target)
			}
			if vn, ok := node.Child(treex.KeyValue); ok {
				return typ, vn, nil
			}
			// No value subtree: constructor parameters must come
			// entirely from defaults or the resolver.
			return typ, emptyNode{path: node.Path()}, nil
		}
	}

	if target.Kind() != reflect.Interface && structTypeOf(target) != nil {
		return target, node, nil
	}

	if dt, ok := b.reg.DefaultTypeFor(target, declaring, member); ok {
		if !assignable(dt, target) {
			return nil, nil, errors.Newf(errors.CodeInvalidConfiguration,
				"default type %s is not assignable to %s", dt, target)
		}
		return dt, node, nil
	}

	return nil, nil, errors.Newf(errors.CodeInvalidConfiguration,
		"no concrete type known for %s at %s", target, node.Path())
}

// bindParam binds one constructor parameter: configuration key first,
// then the resolver, then the declared default.
func (b *Builder) bindParam(binding treex.Node, concrete reflect.Type, p Param) (reflect.Value, error) {
	if child, ok := binding.Child(p.Name); ok {
		return b.convertNode(child, p.Type, concrete, p.Name)
	}
	if b.resolver != nil {
		if v, ok := b.resolver.TryResolve(p.Type, p.Name); ok {
			if rv, ok := coerce(v, p.Type); ok {
				return rv, nil
			}
		}
	}
	if p.HasDefault {
		return p.Default, nil
	}
	return reflect.Value{}, errors.NewWithDetails(errors.CodeConstructionFailure,
		"parameter "+p.Name+" of "+concrete.String()+" cannot be satisfied",
		[]string{p.Name})
}

// convertNode converts a configuration node to the requested type:
// scalars through the converter, collections element-wise, and complex
// shapes recursively through the builder.
func (b *Builder) convertNode(node treex.Node, typ reflect.Type, declaring reflect.Type, member string) (reflect.Value, error) {
	if s, ok := node.Value(); ok && b.reg.canConvertScalar(typ) {
		return b.reg.convertScalar(s, typ)
	}

	switch {
	case isCollection(typ):
		return b.buildCollection(node, typ, declaring, member)
	case typ.Kind() == reflect.Interface || structTypeOf(typ) != nil:
		v, err := b.BuildMember(node, typ, declaring, member)
		if err != nil {
			return reflect.Value{}, err
		}
		rv, ok := coerce(v, typ)
		if !ok {
			return reflect.Value{}, errors.Newf(errors.CodeConversionFailure,
				"built %T for %s at %s", v, typ, node.Path())
		}
		return rv, nil
	default:
		return reflect.Value{}, errors.Newf(errors.CodeConversionFailure,
			"cannot convert node %s to %s", node.Path(), typ)
	}
}

// buildCollection materializes a fresh slice or map from a node's
// children, used for collection-typed constructor parameters.
func (b *Builder) buildCollection(node treex.Node, typ reflect.Type, declaring reflect.Type, member string) (reflect.Value, error) {
	switch typ.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(typ, 0, len(node.Children()))
		for _, c := range node.Children() {
			item, err := b.convertNode(c, typ.Elem(), declaring, member)
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, item)
		}
		return out, nil
	case reflect.Map:
		out := reflect.MakeMapWithSize(typ, len(node.Children()))
		for _, c := range node.Children() {
			key, err := b.reg.convertScalar(c.Name(), typ.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			item, err := b.convertNode(c, typ.Elem(), declaring, member)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(key, item)
		}
		return out, nil
	default:
		return reflect.Value{}, errors.Newf(errors.CodeInternal, "not a collection: %s", typ)
	}
}

// bindFields assigns remaining fields from the binding subtree: fields
// already consumed by the chosen constructor are skipped, collection
// fields are populated in place, everything else is assigned.
func (b *Builder) bindFields(binding treex.Node, concrete reflect.Type, ctor *Constructor, result reflect.Value) (reflect.Value, error) {
	sv, result := addressableStruct(result)
	if !sv.IsValid() {
		return result, nil
	}

	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() || ctor.consumes(f.Name) {
			continue
		}
		child, ok := binding.Child(f.Name)
		if !ok {
			continue
		}

		fv := sv.Field(i)
		switch f.Type.Kind() {
		case reflect.Slice:
			for _, c := range child.Children() {
				item, err := b.convertNode(c, f.Type.Elem(), concrete, f.Name)
				if err != nil {
					return reflect.Value{}, err
				}
				fv.Set(reflect.Append(fv, item))
			}
		case reflect.Map:
			if fv.IsNil() {
				fv.Set(reflect.MakeMapWithSize(f.Type, len(child.Children())))
			}
			for _, c := range child.Children() {
				key, err := b.reg.convertScalar(c.Name(), f.Type.Key())
				if err != nil {
					return reflect.Value{}, err
				}
				item, err := b.convertNode(c, f.Type.Elem(), concrete, f.Name)
				if err != nil {
					return reflect.Value{}, err
				}
				fv.SetMapIndex(key, item)
			}
		default:
			item, err := b.convertNode(child, f.Type, concrete, f.Name)
			if err != nil {
				return reflect.Value{}, err
			}
			fv.Set(item)
		}
	}
	return result, nil
}

// runValidation validates the constructed struct against its validate tags.
func (b *Builder) runValidation(result reflect.Value) error {
	v := result
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if err := b.validate.Struct(v.Interface()); err != nil {
		return errors.Wrap(errors.CodeInvalidConfiguration, "buildx.validate", err)
	}
	return nil
}

// addressableStruct returns an addressable struct view of a constructed
// value, together with the value to return once fields are bound.
func addressableStruct(result reflect.Value) (reflect.Value, reflect.Value) {
	v := result
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch {
	case v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Struct:
		return v.Elem(), result
	case v.Kind() == reflect.Struct:
		// Struct results (including struct values boxed in an
		// interface) are copied to an addressable location first.
		addr := reflect.New(v.Type())
		addr.Elem().Set(v)
		return addr.Elem(), addr.Elem()
	default:
		return reflect.Value{}, result
	}
}

// coerce adapts an arbitrary value to the requested type.
func coerce(v any, typ reflect.Type) (reflect.Value, bool) {
	if v == nil {
		return reflect.Zero(typ), true
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(typ) {
		return rv, true
	}
	if rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ), true
	}
	return reflect.Value{}, false
}

// assignable reports whether a concrete type may satisfy the target.
func assignable(typ, target reflect.Type) bool {
	if target.Kind() == reflect.Interface {
		return typ.Implements(target)
	}
	return typ.AssignableTo(target)
}

// emptyNode is the binding subtree used when a node declares a type but
// carries no value child.
type emptyNode struct {
	path string
}

func (e emptyNode) Name() string                       { return "" }
func (e emptyNode) Path() string                       { return e.path }
func (e emptyNode) Value() (string, bool)              { return "", false }
func (e emptyNode) Children() []treex.Node             { return nil }
func (e emptyNode) Child(string) (treex.Node, bool)    { return nil, false }
func (e emptyNode) Subscribe(func()) (cancel func())   { return func() {} }

var _ treex.Node = emptyNode{}
