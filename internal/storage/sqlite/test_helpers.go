package sqlite

import (
	"context"
	"testing"

	"github.com/cityops/conductor/internal/types"
)

// newTestStore creates a Store backed by a throwaway database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return store
}

// mustCreateStage creates a stage or fails the test.
func mustCreateStage(t *testing.T, store *Store, name string) *types.Stage {
	t.Helper()
	stage := &types.Stage{Name: name}
	if err := store.CreateStage(context.Background(), stage); err != nil {
		t.Fatalf("failed to create stage %s: %v", name, err)
	}
	return stage
}

// mustCreateFlow creates a flow over the named stages or fails the test.
func mustCreateFlow(t *testing.T, store *Store, name string, stageNames ...string) *types.Flow {
	t.Helper()
	var order []int64
	for _, sn := range stageNames {
		order = append(order, mustCreateStage(t, store, sn).ID)
	}
	flow := &types.Flow{Name: name, StageOrder: order}
	if err := store.CreateFlow(context.Background(), flow); err != nil {
		t.Fatalf("failed to create flow %s: %v", name, err)
	}
	return flow
}

// mustCreateRecord creates a record or fails the test.
func mustCreateRecord(t *testing.T, store *Store, description string) *types.Record {
	t.Helper()
	rec := &types.Record{Description: description, IsVisible: true}
	if err := store.CreateRecord(context.Background(), rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	return rec
}
