package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityops/conductor/internal/engine"
	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/storage/sqlite"
	"github.com/cityops/conductor/internal/types"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedFlow(t *testing.T, store storage.Storage) *types.Flow {
	t.Helper()
	ctx := context.Background()
	var order []int64
	for _, name := range []string{"intake", "review"} {
		stage := &types.Stage{Name: name}
		require.NoError(t, store.CreateStage(ctx, stage))
		order = append(order, stage.ID)
	}
	flow := &types.Flow{Name: "standard", StageOrder: order}
	require.NoError(t, store.CreateFlow(ctx, flow))
	return flow
}

func seedRecord(t *testing.T, store storage.Storage) *types.Record {
	t.Helper()
	rec := &types.Record{
		Description: "janitorial services",
		SpecNumber:  "22-493",
		AssignedTo:  "amartin",
		IsVisible:   true,
	}
	require.NoError(t, store.CreateRecord(context.Background(), rec))
	return rec
}

func TestCompleteAndBranchFansOut(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	parent := seedRecord(t, store)

	mgr := New(store)
	children, err := mgr.CompleteAndBranch(ctx, parent.ID, []Group{
		{Description: "janitorial services - north", SpecNumber: "22-493A"},
		{Description: "janitorial services - south", SpecNumber: "22-493B"},
	})
	require.NoError(t, err)
	require.Len(t, children, 2)

	for _, child := range children {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)
		assert.True(t, child.IsVisible)
		assert.False(t, child.IsArchived)
		assert.Equal(t, "amartin", child.AssignedTo)
		assert.Nil(t, child.FlowID)
	}
	assert.Equal(t, "janitorial services - north", children[0].Description)
	assert.Equal(t, "22-493B", children[1].SpecNumber)

	got, err := store.GetRecord(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
	assert.False(t, got.IsVisible)
	assert.Equal(t, "janitorial services [Archived]", got.Description)

	kids, err := store.GetChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, kids, 2)
}

func TestCompleteAndBranchInheritsBaseFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	parent := seedRecord(t, store)

	mgr := New(store)
	children, err := mgr.CompleteAndBranch(ctx, parent.ID, []Group{{}})
	require.NoError(t, err)
	require.Len(t, children, 1)

	assert.Equal(t, parent.Description, children[0].Description)
	assert.Equal(t, parent.SpecNumber, children[0].SpecNumber)
}

func TestCompleteAndBranchAlreadyArchived(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	parent := seedRecord(t, store)

	mgr := New(store)
	_, err := mgr.CompleteAndBranch(ctx, parent.ID, []Group{{}})
	require.NoError(t, err)

	_, err = mgr.CompleteAndBranch(ctx, parent.ID, []Group{{}})
	assert.ErrorIs(t, err, ErrAlreadyArchived)
}

func TestCompleteAndBranchRequiresGroups(t *testing.T) {
	store := newTestStore(t)
	parent := seedRecord(t, store)

	_, err := New(store).CompleteAndBranch(context.Background(), parent.ID, nil)
	assert.Error(t, err)
}

func TestExtendRequiresArchivedParent(t *testing.T) {
	store := newTestStore(t)
	rec := seedRecord(t, store)

	_, err := New(store).Extend(context.Background(), rec.ID, false)
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestExtendCreatesOneCloneAndLogsOnOpenBranch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	flow := seedFlow(t, store)
	parent := seedRecord(t, store)

	mgr := New(store)
	children, err := mgr.CompleteAndBranch(ctx, parent.ID, []Group{{}})
	require.NoError(t, err)
	branch := children[0]

	// Put the surviving branch mid-flow so the extension has an open
	// stage instance to anchor to.
	eng := engine.New(store)
	_, err = eng.Assign(ctx, branch.ID, flow.ID, "amartin", time.Time{})
	require.NoError(t, err)

	clone, err := mgr.Extend(ctx, parent.ID, false)
	require.NoError(t, err)
	require.NotNil(t, clone.ParentID)
	assert.Equal(t, parent.ID, *clone.ParentID)
	assert.True(t, clone.IsVisible)
	assert.Equal(t, "janitorial services", clone.Description)

	// Parent flags are untouched by extension.
	got, err := store.GetRecord(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
	assert.False(t, got.IsVisible)

	kids, err := store.GetChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	// Exactly one extension entry, logged on the open branch.
	actions, err := store.ListActions(ctx, branch.ID)
	require.NoError(t, err)
	var extensions []*types.ActionItem
	for _, a := range actions {
		if a.Kind == types.ActionExtension {
			extensions = append(extensions, a)
		}
	}
	require.Len(t, extensions, 1)
	assert.Equal(t, parent.ID, extensions[0].Detail["parent_id"])
}

func TestExtendDiscardsUneditedChildren(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	parent := seedRecord(t, store)

	mgr := New(store)
	children, err := mgr.CompleteAndBranch(ctx, parent.ID, []Group{{}})
	require.NoError(t, err)
	stale := children[0]

	clone, err := mgr.Extend(ctx, parent.ID, true)
	require.NoError(t, err)

	_, err = store.GetRecord(ctx, stale.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	kids, err := store.GetChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, clone.ID, kids[0].ID)
}
