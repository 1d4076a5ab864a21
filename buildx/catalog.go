package buildx

import (
	"reflect"
	"strings"
)

// MemberKind classifies a bindable member of a concrete type.
type MemberKind int

const (
	// KindConstructorParameter is a named parameter of a registered
	// constructor.
	KindConstructorParameter MemberKind = iota
	// KindField is an exported struct field, assigned after
	// construction. Collection-shaped fields (slices and maps) are
	// populated in place rather than replaced.
	KindField
)

// Member is a bindable member discovered by the catalog. Members are
// immutable values; they carry no reference to the type they came from.
type Member struct {
	Name string
	Type reflect.Type
	Kind MemberKind
}

// Members enumerates every constructor parameter and exported struct
// field of typ whose name matches memberName case-insensitively.
// Collection-shaped fields are omitted when a constructor parameter of
// the same name exists, because the constructor already owns that
// logical value. Returns nil when either input is absent.
func (r *Registry) Members(typ reflect.Type, memberName string) []Member {
	if typ == nil || memberName == "" {
		return nil
	}

	ctors, err := r.constructorsFor(typ)
	if err != nil {
		ctors = nil
	}

	var out []Member
	paramMatched := false
	for _, c := range ctors {
		for _, p := range c.params {
			if strings.EqualFold(p.Name, memberName) {
				out = append(out, Member{Name: p.Name, Type: p.Type, Kind: KindConstructorParameter})
				paramMatched = true
			}
		}
	}

	st := structTypeOf(typ)
	if st == nil {
		return out
	}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() || !strings.EqualFold(f.Name, memberName) {
			continue
		}
		if isCollection(f.Type) && paramMatched {
			continue
		}
		out = append(out, Member{Name: f.Name, Type: f.Type, Kind: KindField})
	}
	return out
}

// structTypeOf unwraps a struct or pointer-to-struct type, returning
// nil for anything else.
func structTypeOf(typ reflect.Type) reflect.Type {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}
	return typ
}

// isCollection reports whether a type is bound by populating it in
// place (appending elements or inserting entries).
func isCollection(typ reflect.Type) bool {
	return typ.Kind() == reflect.Slice || typ.Kind() == reflect.Map
}
