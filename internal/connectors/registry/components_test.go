package registry

import (
	"context"
	"errors"
	"testing"
)

type otherService struct{ name string }

func (s otherService) Name() string { return s.name }

func TestMatchComponents(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Identifiers: []string{"caldera", "executor"}, Value: 1},
		{Identifiers: []string{"vault"}, Value: 2},
		{Identifiers: []string{"executor"}, Value: 3},
	}

	tests := []struct {
		name    string
		request ComponentRequest
		want    []int
	}{
		{name: "single", request: "vault", want: []int{2}},
		{name: "multiple", request: "executor", want: []int{1, 3}},
		{name: "padded", request: " caldera ", want: nil},
		{name: "trailing newline", request: "caldera\n", want: nil},
		{name: "no match", request: "tanium", want: nil},
		{name: "empty", request: "", want: nil},
		{name: "case sensitive", request: "Vault", want: nil},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := MatchComponents(test.request, candidates)
			if len(got) != len(test.want) {
				t.Fatalf("MatchComponents() = %d matches, want %d", len(got), len(test.want))
			}
			for i, c := range got {
				if c.Value.(int) != test.want[i] {
					t.Fatalf("match %d = %v, want %d", i, c.Value, test.want[i])
				}
			}
		})
	}
}

func TestComponentsRegisterValidation(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(nil, "x"); err == nil {
		t.Fatalf("expected error for nil value")
	}
	var nilPtr *fakeServiceImpl
	if err := c.Register(nilPtr, "x"); err == nil {
		t.Fatalf("expected error for typed nil value")
	}
	if err := c.Register(&fakeServiceImpl{}, " ", ""); !errors.Is(err, ErrNoIdentifier) {
		t.Fatalf("Register() error = %v, want ErrNoIdentifier", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestComponentsRegisterDuplicate(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(&fakeServiceImpl{name: "a"}, "svc"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register(&fakeServiceImpl{name: "b"}, "other", "svc"); !errors.Is(err, ErrDuplicateComponent) {
		t.Fatalf("Register() error = %v, want ErrDuplicateComponent", err)
	}
	// A different concrete type may reuse the identifier.
	if err := c.Register(otherService{name: "c"}, "svc"); err != nil {
		t.Fatalf("Register() different type error = %v", err)
	}
	if got := c.Identifiers(); len(got) != 1 || got[0] != "svc" {
		t.Fatalf("Identifiers() = %v, want [svc]", got)
	}
}

func TestLookupComponentsMatchesExactly(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(&fakeServiceImpl{name: "impl"}, "caldera", " padded "); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := LookupComponents[*fakeServiceImpl](c, " caldera\n")
	if err != nil || len(got) != 0 {
		t.Fatalf("LookupComponents(padded request) = %v, %v; want no match", got, err)
	}
	if got, _ := LookupComponents[*fakeServiceImpl](c, "caldera"); len(got) != 1 {
		t.Fatalf("LookupComponents(caldera) = %v, want one match", got)
	}
	if got, _ := LookupComponents[*fakeServiceImpl](c, "padded"); len(got) != 0 {
		t.Fatalf("identifiers must be stored as registered, got %v", got)
	}
	if got, _ := LookupComponents[*fakeServiceImpl](c, " padded "); len(got) != 1 {
		t.Fatalf("LookupComponents(\" padded \") = %v, want one match", got)
	}
}

func TestLookupComponentsFiltersByType(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(&fakeServiceImpl{name: "impl"}, "exec"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register("just a string", "exec"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := LookupComponents[*fakeServiceImpl](c, "exec")
	if err != nil {
		t.Fatalf("LookupComponents() error = %v", err)
	}
	if len(got) != 1 || got[0].name != "impl" {
		t.Fatalf("LookupComponents() = %v", got)
	}

	strs, err := LookupComponents[string](c, "exec")
	if err != nil {
		t.Fatalf("LookupComponents() error = %v", err)
	}
	if len(strs) != 1 || strs[0] != "just a string" {
		t.Fatalf("LookupComponents[string]() = %v", strs)
	}

	none, err := LookupComponents[SecretResolver](c, "exec")
	if err != nil || len(none) != 0 {
		t.Fatalf("LookupComponents[SecretResolver]() = %v, %v; want empty", none, err)
	}
}

func TestLookupComponentsAmbiguous(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(&fakeServiceImpl{name: "a"}, "exec"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register(otherService{name: "b"}, "exec"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := LookupComponents[fakeService](c, "exec"); !errors.Is(err, ErrAmbiguousComponent) {
		t.Fatalf("LookupComponents() error = %v, want ErrAmbiguousComponent", err)
	}
}

func TestComponentsReset(t *testing.T) {
	t.Parallel()

	c := NewComponents()
	if err := c.Register(&fakeServiceImpl{}, "a", "b"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	c.Reset()
	if c.Len() != 0 || len(c.Identifiers()) != 0 {
		t.Fatalf("expected empty components after Reset")
	}
	if got, _ := LookupComponents[fakeService](c, "a"); len(got) != 0 {
		t.Fatalf("expected no components after Reset")
	}
}

func startedIntegration(t *testing.T, ids ...string) *Integration {
	t.Helper()
	store := NewMemoryStore()
	inst := seedInstance(t, store, RequestStarting, `{}`)
	i := newTestIntegration(t, store, inst, &fakeRuntime{identifiers: ids})
	if err := i.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	return i
}

type staticDirectory []*Integration

func (d staticDirectory) StartedIntegrations() []*Integration { return d }

func TestRequestStarted(t *testing.T) {
	t.Parallel()

	a := startedIntegration(t, "caldera")
	b := startedIntegration(t, "vault")

	stopped := NewMemoryStore()
	inst := seedInstance(t, stopped, RequestNone, `{}`)
	idle := newTestIntegration(t, stopped, inst, &fakeRuntime{identifiers: []string{"tanium"}})

	all := []*Integration{a, idle, b}

	got, err := RequestStarted[fakeService](all, "vault")
	if err != nil {
		t.Fatalf("RequestStarted() error = %v", err)
	}
	if got.Name() != "vault" {
		t.Fatalf("RequestStarted() = %q, want vault", got.Name())
	}

	if _, err := RequestStarted[fakeService](all, "tanium"); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("RequestStarted(tanium) error = %v, want ErrComponentNotFound", err)
	}

	via, err := RequestFromDirectory[fakeService](staticDirectory(all), "caldera")
	if err != nil || via.Name() != "caldera" {
		t.Fatalf("RequestFromDirectory() = %v, %v", via, err)
	}
	if _, err := RequestFromDirectory[fakeService](nil, "caldera"); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("RequestFromDirectory(nil) error = %v, want ErrComponentNotFound", err)
	}
}

func TestRequestStartedFirstMatchAcrossIntegrations(t *testing.T) {
	t.Parallel()

	a := startedIntegration(t, "executor")
	b := startedIntegration(t, "executor")

	got, err := RequestStarted[fakeService]([]*Integration{a, b}, "executor")
	if err != nil {
		t.Fatalf("RequestStarted() error = %v", err)
	}
	if got == nil {
		t.Fatalf("RequestStarted() returned nil")
	}
}
