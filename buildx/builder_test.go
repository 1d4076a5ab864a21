package buildx

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/molt-dev/molt/core/errors"
	"github.com/molt-dev/molt/treex"
)

type widget struct {
	Size  int
	Label string
	Tags  []string
}

func newWidget(size int) *widget {
	return &widget{Size: size}
}

func newWidgetFull(size int, label string) *widget {
	return &widget{Size: size, Label: label}
}

type notifier interface {
	Notify(msg string) error
}

type emailNotifier struct {
	Address string
}

func (n *emailNotifier) Notify(string) error { return nil }

type smsNotifier struct {
	Number string
}

func (n *smsNotifier) Notify(string) error { return nil }

type alerting struct {
	Primary  notifier
	Fallback notifier
}

func widgetBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	reg := NewRegistry()
	err := reg.RegisterType("widget", TypeOf[*widget](),
		NewConstructor(newWidgetFull, "size", "label").WithDefault("label", "x"))
	if err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	return NewBuilder(reg, opts...)
}

func TestBuild_SelectsConstructorMatchingKeys(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterType("widget", TypeOf[*widget](),
		NewConstructor(newWidget, "size"),
		NewConstructor(newWidgetFull, "size", "label"))
	if err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	// Only "size" present: the single-parameter constructor is the only
	// strictly invokable one.
	w, err := Materialize[*widget](b, treex.FromMap(map[string]any{"size": 2}))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Size != 2 || w.Label != "" {
		t.Errorf("built %+v, want Size=2 Label=\"\"", w)
	}

	// Both keys present: the two-parameter constructor consumes more
	// information and wins.
	w, err = Materialize[*widget](b, treex.FromMap(map[string]any{"size": 2, "label": "big"}))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Label != "big" {
		t.Errorf("Label = %q, want %q", w.Label, "big")
	}
}

func TestBuild_DefaultFillsUnmatchedParameter(t *testing.T) {
	b := widgetBuilder(t)
	node := treex.FromMap(map[string]any{"size": 5})

	w, err := Materialize[*widget](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Size != 5 {
		t.Errorf("Size = %d, want 5", w.Size)
	}
	if w.Label != "x" {
		t.Errorf("Label = %q, want %q", w.Label, "x")
	}
}

func TestBuild_ExplicitKeyBeatsDefault(t *testing.T) {
	b := widgetBuilder(t)
	node := treex.FromMap(map[string]any{"size": 5, "label": "big"})

	w, err := Materialize[*widget](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Label != "big" {
		t.Errorf("Label = %q, want %q", w.Label, "big")
	}
}

func TestBuild_MissingParameterFailsWithNames(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("widget", TypeOf[*widget](),
		NewConstructor(newWidget, "size")); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	_, err := Materialize[*widget](b, treex.NewTree())
	if err == nil {
		t.Fatal("Materialize() error = nil, want construction failure")
	}
	if !errors.IsCode(err, errors.CodeConstructionFailure) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeConstructionFailure)
	}
	if got := MissingParams(err); !reflect.DeepEqual(got, []string{"size"}) {
		t.Errorf("MissingParams(err) = %v, want [size]", got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := widgetBuilder(t)
	node := treex.FromMap(map[string]any{"size": 7, "tags": []any{"a", "b"}})

	first, err := Materialize[*widget](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	second, err := Materialize[*widget](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("builds differ: %+v vs %+v", first, second)
	}
}

func TestBuild_SliceFieldPopulated(t *testing.T) {
	b := widgetBuilder(t)
	node := treex.FromMap(map[string]any{"size": 1, "tags": []any{"a", "b"}})

	w, err := Materialize[*widget](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(w.Tags, want) {
		t.Errorf("Tags = %v, want %v", w.Tags, want)
	}
}

func TestBuild_ExplicitTypeAndValueSubtree(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("email", TypeOf[*emailNotifier]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	node := treex.FromMap(map[string]any{
		"type":  "email",
		"value": map[string]any{"address": "ops@example.com"},
	})
	n, err := Materialize[notifier](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	e, ok := n.(*emailNotifier)
	if !ok {
		t.Fatalf("built %T, want *emailNotifier", n)
	}
	if e.Address != "ops@example.com" {
		t.Errorf("Address = %q", e.Address)
	}
}

func TestBuild_ExplicitTypeWithoutValueSubtree(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("email", TypeOf[*emailNotifier]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	node := treex.FromMap(map[string]any{"type": "email"})
	n, err := Materialize[notifier](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if _, ok := n.(*emailNotifier); !ok {
		t.Fatalf("built %T, want *emailNotifier", n)
	}
}

func TestBuild_UnresolvableTypeName(t *testing.T) {
	b := NewBuilder(NewRegistry())
	node := treex.FromMap(map[string]any{"type": "nope"})

	_, err := Materialize[notifier](b, node)
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidConfiguration)
	}
}

func TestBuild_DeclaredTypeNotAssignable(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("widget", TypeOf[*widget]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	node := treex.FromMap(map[string]any{"type": "widget"})
	_, err := Materialize[notifier](b, node)
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidConfiguration)
	}
}

func TestBuild_InterfaceWithoutTypeOrDefault(t *testing.T) {
	b := NewBuilder(NewRegistry())

	_, err := Materialize[notifier](b, treex.NewTree())
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidConfiguration)
	}
}

func TestBuild_DefaultTypeTable(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterType("email", TypeOf[*emailNotifier]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	if err := reg.RegisterType("sms", TypeOf[*smsNotifier]()); err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	reg.SetDefaultType(TypeOf[notifier](), TypeOf[*emailNotifier]())
	reg.SetDefaultType(TypeOf[notifier](), TypeOf[*smsNotifier](),
		ForDeclaring(TypeOf[*alerting]()), ForMember("Fallback"))
	b := NewBuilder(reg)

	node := treex.FromMap(map[string]any{
		"primary":  map[string]any{"address": "ops@example.com"},
		"fallback": map[string]any{"number": "555"},
	})
	a, err := Materialize[*alerting](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if _, ok := a.Primary.(*emailNotifier); !ok {
		t.Errorf("Primary = %T, want *emailNotifier from the unnarrowed rule", a.Primary)
	}
	sms, ok := a.Fallback.(*smsNotifier)
	if !ok {
		t.Fatalf("Fallback = %T, want *smsNotifier from the member-narrowed rule", a.Fallback)
	}
	if sms.Number != "555" {
		t.Errorf("Number = %q, want %q", sms.Number, "555")
	}
}

func TestBuild_NestedStructMember(t *testing.T) {
	type inner struct {
		Port int
	}
	type outer struct {
		Name   string
		Server inner
	}
	b := NewBuilder(NewRegistry())

	node := treex.FromMap(map[string]any{
		"name":   "svc",
		"server": map[string]any{"port": 8080},
	})
	o, err := Materialize[*outer](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if o.Name != "svc" || o.Server.Port != 8080 {
		t.Errorf("built %+v", o)
	}
}

func TestBuild_MapField(t *testing.T) {
	type limits struct {
		PerHost map[string]int
	}
	b := NewBuilder(NewRegistry())

	node := treex.FromMap(map[string]any{
		"perHost": map[string]any{"a": 1, "b": 2},
	})
	l, err := Materialize[*limits](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	want := map[string]int{"a": 1, "b": 2}
	if !reflect.DeepEqual(l.PerHost, want) {
		t.Errorf("PerHost = %v, want %v", l.PerHost, want)
	}
}

func TestBuild_DurationScalar(t *testing.T) {
	type timeouts struct {
		Read time.Duration
	}
	b := NewBuilder(NewRegistry())

	node := treex.FromMap(map[string]any{"read": "1m30s"})
	tt, err := Materialize[*timeouts](b, node)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if tt.Read != 90*time.Second {
		t.Errorf("Read = %v, want 1m30s", tt.Read)
	}
}

func TestBuild_ConversionFailure(t *testing.T) {
	b := widgetBuilder(t)
	node := treex.FromMap(map[string]any{"size": "abc"})

	_, err := Materialize[*widget](b, node)
	if !errors.IsCode(err, errors.CodeConversionFailure) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeConversionFailure)
	}
}

func TestBuild_CustomConverter(t *testing.T) {
	type level int
	type app struct {
		Verbosity level
	}
	reg := NewRegistry()
	reg.RegisterConverter(TypeOf[level](), func(s string) (any, error) {
		switch s {
		case "quiet":
			return level(0), nil
		case "loud":
			return level(9), nil
		}
		return nil, fmt.Errorf("unknown level %q", s)
	})
	b := NewBuilder(reg)

	a, err := Materialize[*app](b, treex.FromMap(map[string]any{"verbosity": "loud"}))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if a.Verbosity != 9 {
		t.Errorf("Verbosity = %d, want 9", a.Verbosity)
	}

	_, err = Materialize[*app](b, treex.FromMap(map[string]any{"verbosity": "medium"}))
	if !errors.IsCode(err, errors.CodeConversionFailure) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeConversionFailure)
	}
}

func TestBuild_ResolverSuppliesParameter(t *testing.T) {
	b := widgetBuilder(t, WithResolver(ResolverFuncs{
		CanResolveFunc: func(rt reflect.Type, name string) bool {
			return strings.EqualFold(name, "size")
		},
		TryResolveFunc: func(rt reflect.Type, name string) (any, bool) {
			if strings.EqualFold(name, "size") {
				return 42, true
			}
			return nil, false
		},
	}))

	w, err := Materialize[*widget](b, treex.NewTree())
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Size != 42 {
		t.Errorf("Size = %d, want 42 from resolver", w.Size)
	}
}

func TestBuild_TypeOnlyResolverFallback(t *testing.T) {
	// The adapter answers only type-only queries (empty name); the named
	// lookup misses and the builder retries without the name.
	b := widgetBuilder(t, WithResolver(ResolverFuncs{
		CanResolveFunc: func(rt reflect.Type, name string) bool {
			return name == "" && rt.Kind() == reflect.Int
		},
		TryResolveFunc: func(rt reflect.Type, name string) (any, bool) {
			if name == "" && rt.Kind() == reflect.Int {
				return 42, true
			}
			return nil, false
		},
	}))

	w, err := Materialize[*widget](b, treex.NewTree())
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Size != 42 {
		t.Errorf("Size = %d, want 42 from the type-only lookup", w.Size)
	}
	if w.Label != "x" {
		t.Errorf("Label = %q, want %q", w.Label, "x")
	}
}

func TestBuild_PanickingResolverIsNotFatal(t *testing.T) {
	b := widgetBuilder(t, WithResolver(ResolverFuncs{
		CanResolveFunc: func(reflect.Type, string) bool { panic("adapter broke") },
	}))

	w, err := Materialize[*widget](b, treex.FromMap(map[string]any{"size": 3}))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if w.Size != 3 {
		t.Errorf("Size = %d, want 3", w.Size)
	}
}

func TestBuild_ConstructorErrorIsConstructionFailure(t *testing.T) {
	type guarded struct {
		N int
	}
	reg := NewRegistry()
	err := reg.RegisterType("guarded", TypeOf[*guarded](),
		NewConstructor(func(n int) (*guarded, error) {
			if n < 0 {
				return nil, fmt.Errorf("n must be non-negative, got %d", n)
			}
			return &guarded{N: n}, nil
		}, "n"))
	if err != nil {
		t.Fatalf("RegisterType() error = %v", err)
	}
	b := NewBuilder(reg)

	_, err = Materialize[*guarded](b, treex.FromMap(map[string]any{"n": -1}))
	if !errors.IsCode(err, errors.CodeConstructionFailure) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeConstructionFailure)
	}
}

func TestBuild_ValidationOption(t *testing.T) {
	type server struct {
		Addr string `validate:"required"`
	}
	b := NewBuilder(NewRegistry(), WithValidation(validator.New()))

	if _, err := Materialize[*server](b, treex.NewTree()); !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Errorf("code = %v, want %v", errors.CodeOf(err), errors.CodeInvalidConfiguration)
	}

	s, err := Materialize[*server](b, treex.FromMap(map[string]any{"addr": ":8080"}))
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if s.Addr != ":8080" {
		t.Errorf("Addr = %q", s.Addr)
	}
}
