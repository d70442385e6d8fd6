package builtin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/open-bas/open-bas/internal/connectors/registry"
)

func TestBuiltinsAutostart(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry()
	if err := reg.Register(Manual()); err != nil {
		t.Fatalf("Register(Manual) error = %v", err)
	}
	if err := reg.Register(Channel()); err != nil {
		t.Fatalf("Register(Channel) error = %v", err)
	}

	catalog := registry.NewMemoryStore()
	factories, err := reg.Factories(registry.NewMemoryStore(), catalog, nil, nil)
	if err != nil {
		t.Fatalf("Factories() error = %v", err)
	}
	if len(factories) != 2 {
		t.Fatalf("len(factories) = %d, want 2", len(factories))
	}

	var started []*registry.Integration
	for _, f := range factories {
		if err := f.Initialise(context.Background()); err != nil {
			t.Fatalf("Initialise() error = %v", err)
		}
		instances, err := f.FindRelatedInstances(context.Background())
		if err != nil {
			t.Fatalf("FindRelatedInstances() error = %v", err)
		}
		if len(instances) != 1 {
			t.Fatalf("len(instances) = %d, want 1", len(instances))
		}
		if instances[0].Source != registry.SourceAutostart {
			t.Fatalf("Source = %q, want %q", instances[0].Source, registry.SourceAutostart)
		}

		spawned, err := f.Sync(context.Background(), instances)
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		started = append(started, spawned...)
	}
	if got := len(catalog.CatalogEntries()); got != 2 {
		t.Fatalf("catalog entries = %d, want 2", got)
	}

	for _, capability := range []registry.ComponentRequest{CapabilityManual, CapabilityChannel} {
		injector, err := registry.RequestStarted[registry.Injector](started, capability)
		if err != nil {
			t.Fatalf("RequestStarted(%s) error = %v", capability, err)
		}
		if err := injector.Inject(context.Background(), registry.Stimulus{Inject: string(capability)}); err != nil {
			t.Fatalf("Inject(%s) error = %v", capability, err)
		}

		inbox, ok := injector.(*Inbox)
		if !ok {
			t.Fatalf("injector for %s is %T, want *Inbox", capability, injector)
		}
		if got := len(inbox.Recent()); got != 1 {
			t.Fatalf("Recent() for %s = %d, want 1", capability, got)
		}
	}
}

func TestInboxKeepsMostRecent(t *testing.T) {
	t.Parallel()

	inbox := newInbox(3, slog.Default())
	for i := 0; i < 5; i++ {
		if err := inbox.Inject(context.Background(), registry.Stimulus{Inject: fmt.Sprintf("inject-%d", i)}); err != nil {
			t.Fatalf("Inject(%d) error = %v", i, err)
		}
	}
	recent := inbox.Recent()
	if len(recent) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3", len(recent))
	}
	if recent[0].Inject != "inject-2" || recent[2].Inject != "inject-4" {
		t.Fatalf("Recent() = %q..%q, want inject-2..inject-4", recent[0].Inject, recent[2].Inject)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := inbox.Inject(ctx, registry.Stimulus{Inject: "late"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Inject() on canceled context error = %v, want context.Canceled", err)
	}
}
