package buildx

import (
	"testing"

	"github.com/molt-dev/molt/core/errors"
)

func TestRegisterType_RejectsBadConstructors(t *testing.T) {
	cases := []struct {
		name string
		spec *ConstructorSpec
	}{
		{"not a function", NewConstructor(42)},
		{"variadic", NewConstructor(func(sizes ...int) *widget { return nil }, "sizes")},
		{"name count mismatch", NewConstructor(newWidget)},
		{"wrong return type", NewConstructor(func(size int) int { return size }, "size")},
		{"second return not error", NewConstructor(func(size int) (*widget, bool) { return nil, false }, "size")},
		{"default for unknown parameter", NewConstructor(newWidget, "size").WithDefault("label", "x")},
		{"default not coercible", NewConstructor(newWidget, "size").WithDefault("size", "big")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.RegisterType("widget", TypeOf[*widget](), tc.spec)
			if !errors.IsCode(err, errors.CodeInvalidArgument) {
				t.Errorf("RegisterType() error = %v, want invalid argument", err)
			}
		})
	}
}

func TestRegisterType_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("widget", TypeOf[*widget]()); err != nil {
		t.Fatalf("first RegisterType() error = %v", err)
	}
	if err := reg.RegisterType("widget", TypeOf[*widget]()); err == nil {
		t.Error("second RegisterType() error = nil, want duplicate rejection")
	}
}

func TestRegisterType_SynthesizesZeroConstructor(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("widget", TypeOf[*widget]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	ctors, err := reg.constructorsFor(TypeOf[*widget]())
	if err != nil {
		t.Fatalf("constructorsFor() error = %v", err)
	}
	if len(ctors) != 1 || len(ctors[0].Params()) != 0 {
		t.Fatalf("ctors = %v, want one zero-parameter constructor", ctors)
	}
}

func TestRegisterType_NonStructWithoutConstructor(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterType("port", TypeOf[int]())
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Errorf("RegisterType() error = %v, want unsatisfiable shape rejection", err)
	}
}

func TestDefaultTypeFor_SpecificityAndTies(t *testing.T) {
	reg := NewRegistry()
	iface := TypeOf[notifier]()
	declaring := TypeOf[*alerting]()

	reg.SetDefaultType(iface, TypeOf[*emailNotifier]())
	reg.SetDefaultType(iface, TypeOf[*smsNotifier]())

	// Equal specificity: the later registration wins.
	got, ok := reg.DefaultTypeFor(iface, declaring, "Primary")
	if !ok || got != TypeOf[*smsNotifier]() {
		t.Errorf("DefaultTypeFor() = %v, want later-registered *smsNotifier", got)
	}

	// A narrowed rule beats later unnarrowed ones regardless of order.
	reg2 := NewRegistry()
	reg2.SetDefaultType(iface, TypeOf[*emailNotifier](), ForMember("Primary"))
	reg2.SetDefaultType(iface, TypeOf[*smsNotifier]())
	got, ok = reg2.DefaultTypeFor(iface, declaring, "Primary")
	if !ok || got != TypeOf[*emailNotifier]() {
		t.Errorf("DefaultTypeFor() = %v, want member-narrowed *emailNotifier", got)
	}

	// Outside the narrowed member only the unnarrowed rule matches.
	got, ok = reg2.DefaultTypeFor(iface, declaring, "Fallback")
	if !ok || got != TypeOf[*smsNotifier]() {
		t.Errorf("DefaultTypeFor() = %v, want *smsNotifier", got)
	}
}

func TestTypeByName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("widget", TypeOf[*widget]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	typ, ok := reg.TypeByName("widget")
	if !ok || typ != TypeOf[*widget]() {
		t.Errorf("TypeByName() = %v, %v", typ, ok)
	}
	if _, ok := reg.TypeByName("gadget"); ok {
		t.Error("TypeByName() found an unregistered name")
	}
}
