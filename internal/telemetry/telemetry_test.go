package telemetry

import (
	"context"
	"testing"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/storage/sqlite"
)

func TestEnabledGate(t *testing.T) {
	t.Setenv(envEnabled, "")
	if Enabled() {
		t.Fatal("telemetry should be off by default")
	}
	t.Setenv(envEnabled, "1")
	if Enabled() {
		t.Fatal("only the literal \"true\" enables telemetry")
	}
	t.Setenv(envEnabled, "true")
	if !Enabled() {
		t.Fatal("CONDUCTOR_OTEL_ENABLED=true should enable telemetry")
	}
}

func TestInitDisabledIsInert(t *testing.T) {
	t.Setenv(envEnabled, "")
	ctx := context.Background()
	if err := Init(ctx, "conductor-test", "dev"); err != nil {
		t.Fatalf("Init with telemetry off: %v", err)
	}
	if Tracer("") == nil || Meter("") == nil {
		t.Fatal("noop providers should still hand out instruments")
	}
	// No providers were installed, so there is nothing to flush.
	Shutdown(ctx)
}

func TestWrapStorageDisabledPassesThrough(t *testing.T) {
	t.Setenv(envEnabled, "")
	store, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var s storage.Storage = store
	if got := WrapStorage(s); got != s {
		t.Fatalf("disabled wrap returned %T, want the store unchanged", got)
	}
}
