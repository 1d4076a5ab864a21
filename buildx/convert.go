package buildx

import (
	"reflect"
	"strconv"
	"time"

	"github.com/molt-dev/molt/core/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// convertScalar converts a configuration string to the target type.
// Custom converters registered for the exact target type take
// precedence over the built-in primitive conversions.
func (r *Registry) convertScalar(s string, typ reflect.Type) (reflect.Value, error) {
	if fn, ok := r.converterFor(typ); ok {
		v, err := fn(s)
		if err != nil {
			return reflect.Value{}, errors.Wrapf(errors.CodeConversionFailure, "buildx.convertScalar", err,
				"convert %q to %s", s, typ)
		}
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			return reflect.Zero(typ), nil
		}
		if !rv.Type().AssignableTo(typ) {
			return reflect.Value{}, errors.Newf(errors.CodeConversionFailure,
				"converter for %s returned %T", typ, v)
		}
		return rv, nil
	}

	if typ.Kind() == reflect.Pointer {
		elem, err := r.convertScalar(s, typ.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(typ.Elem())
		out.Elem().Set(elem)
		return out, nil
	}

	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if typ == durationType {
			d, err := time.ParseDuration(s)
			if err != nil {
				return reflect.Value{}, conversionErr(s, typ, err)
			}
			out.SetInt(int64(d))
			break
		}
		n, err := strconv.ParseInt(s, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, conversionErr(s, typ, err)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, conversionErr(s, typ, err)
		}
		out.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, conversionErr(s, typ, err)
		}
		out.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, typ.Bits())
		if err != nil {
			return reflect.Value{}, conversionErr(s, typ, err)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, errors.Newf(errors.CodeConversionFailure,
			"no conversion from scalar to %s", typ)
	}
	return out, nil
}

// canConvertScalar reports whether a scalar string can become the
// target type without recursing into the object builder.
func (r *Registry) canConvertScalar(typ reflect.Type) bool {
	if _, ok := r.converterFor(typ); ok {
		return true
	}
	if typ.Kind() == reflect.Pointer {
		return r.canConvertScalar(typ.Elem())
	}
	switch typ.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func conversionErr(s string, typ reflect.Type, err error) error {
	return errors.Wrapf(errors.CodeConversionFailure, "buildx.convertScalar", err,
		"convert %q to %s", s, typ)
}
