package reloadx

import "reflect"

// referenceKind reports whether a field holds a reference that a caller
// may have set at runtime, as opposed to a value rebuilt from
// configuration.
func referenceKind(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

// transferState copies caller-set reference fields from the outgoing
// instance to its replacement: for every exported reference-kind field
// that is nil on the new instance and non-nil on the old one, the old
// value is copied. A field the new build populated is never overwritten.
// This is deliberately the whole contract; value-kind fields and
// already-populated fields are left alone.
//
// Both instances must be pointers to the same struct type; anything else
// is left untouched.
func transferState(old, fresh any) {
	ov := reflect.ValueOf(old)
	nv := reflect.ValueOf(fresh)
	if ov.Kind() != reflect.Pointer || nv.Kind() != reflect.Pointer {
		return
	}
	if ov.IsNil() || nv.IsNil() || ov.Type() != nv.Type() {
		return
	}
	ov = ov.Elem()
	nv = nv.Elem()
	if ov.Kind() != reflect.Struct {
		return
	}

	st := ov.Type()
	for i := 0; i < st.NumField(); i++ {
		if !st.Field(i).IsExported() || !referenceKind(st.Field(i).Type.Kind()) {
			continue
		}
		of := ov.Field(i)
		nf := nv.Field(i)
		if nf.IsNil() && !of.IsNil() {
			nf.Set(of)
		}
	}
}
