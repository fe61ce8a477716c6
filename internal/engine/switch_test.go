package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityops/conductor/internal/types"
)

func TestAssignOpensFirstStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	flow := seedFlow(t, store, "one", "two", "three")
	rec := seedRecord(t, store)

	rec, err := eng.Assign(ctx, rec.ID, flow.ID, "amartin", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, rec.FlowID)
	assert.Equal(t, flow.ID, *rec.FlowID)
	require.NotNil(t, rec.CurrentStageID)
	assert.Equal(t, flow.FirstStageID(), *rec.CurrentStageID)
	assert.Equal(t, "amartin", rec.AssignedTo)

	// Instances exist for every stage; only the first is open.
	instances, err := store.ListStageInstances(ctx, rec.ID, flow.ID)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.True(t, instances[0].Open())
	assert.False(t, instances[1].Started())
	assert.False(t, instances[2].Started())

	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionEntered, actions[0].Kind)
}

func TestReassignSameFlowOnlyUpdatesAssignee(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, _ := assignedRecord(t, store, eng)
	before := *rec.CurrentStageID

	rec, err := eng.Assign(ctx, rec.ID, *rec.FlowID, "bchen", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "bchen", rec.AssignedTo)
	assert.Equal(t, before, *rec.CurrentStageID)

	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestReassignAcrossFlowsClearsPreviousFlow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flowA := assignedRecord(t, store, eng)

	// Progress on A so its instances carry timestamps to clear.
	rec, _, err := eng.Advance(ctx, rec.ID, "amartin", time.Time{})
	require.NoError(t, err)

	flowB := seedFlow(t, store, "alpha", "beta")
	rec, err = eng.Assign(ctx, rec.ID, flowB.ID, "bchen", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, flowB.ID, *rec.FlowID)
	assert.Equal(t, flowB.FirstStageID(), *rec.CurrentStageID)
	assert.Equal(t, "bchen", rec.AssignedTo)

	// The previous flow's instances go inert; only flow B carries progress.
	oldInstances, err := store.ListStageInstances(ctx, rec.ID, flowA.ID)
	require.NoError(t, err)
	require.Len(t, oldInstances, 3)
	for _, si := range oldInstances {
		assert.Nil(t, si.Entered)
		assert.Nil(t, si.Exited)
	}
	newFirst, err := store.GetStageInstance(ctx, rec.ID, flowB.FirstStageID(), flowB.ID)
	require.NoError(t, err)
	assert.True(t, newFirst.Open())

	// Unlike SwitchFlow, a plain re-assign logs no flow_switch entry.
	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	counts := countByKind(actions)
	assert.Equal(t, 0, counts[types.ActionFlowSwitch])
	assert.Equal(t, 3, counts[types.ActionEntered])
}

func TestSwitchFlowResetsProgressAndLogsOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flowA := assignedRecord(t, store, eng)

	// Make some progress on A before switching.
	rec, _, err := eng.Advance(ctx, rec.ID, "amartin", time.Time{})
	require.NoError(t, err)

	flowB := seedFlow(t, store, "alpha", "beta")
	rec, err = eng.SwitchFlow(ctx, rec.ID, flowB.ID, "amartin", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, flowB.ID, *rec.FlowID)
	assert.Equal(t, flowB.FirstStageID(), *rec.CurrentStageID)

	// Old flow instances survive with timestamps cleared.
	oldInstances, err := store.ListStageInstances(ctx, rec.ID, flowA.ID)
	require.NoError(t, err)
	require.Len(t, oldInstances, 3)
	for _, si := range oldInstances {
		assert.Nil(t, si.Entered)
		assert.Nil(t, si.Exited)
	}

	newFirst, err := store.GetStageInstance(ctx, rec.ID, flowB.FirstStageID(), flowB.ID)
	require.NoError(t, err)
	assert.True(t, newFirst.Open())

	// The old flow's actions are retained; exactly one flow_switch added.
	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	counts := countByKind(actions)
	assert.Equal(t, 1, counts[types.ActionFlowSwitch])
	switchItem := actions[3]
	assert.Equal(t, newFirst.ID, switchItem.StageInstanceID)
	assert.Equal(t, "flow-one", switchItem.Detail["old_flow"])
	assert.Equal(t, "flow-alpha", switchItem.Detail["new_flow"])
}

func TestSwitchFlowBackReusesInstances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flowA := assignedRecord(t, store, eng)
	flowB := seedFlow(t, store, "alpha", "beta")

	rec, err := eng.SwitchFlow(ctx, rec.ID, flowB.ID, "amartin", time.Time{})
	require.NoError(t, err)
	rec, err = eng.SwitchFlow(ctx, rec.ID, flowA.ID, "amartin", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, flowA.ID, *rec.FlowID)
	assert.Equal(t, flowA.FirstStageID(), *rec.CurrentStageID)

	// Round trip does not duplicate instance rows.
	aInstances, err := store.ListStageInstances(ctx, rec.ID, flowA.ID)
	require.NoError(t, err)
	assert.Len(t, aInstances, 3)
	bInstances, err := store.ListStageInstances(ctx, rec.ID, flowB.ID)
	require.NoError(t, err)
	assert.Len(t, bInstances, 2)
	for _, si := range bInstances {
		assert.Nil(t, si.Entered)
		assert.Nil(t, si.Exited)
	}
}

func TestSwitchFlowToSameFlowIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flow := assignedRecord(t, store, eng)

	rec, err := eng.SwitchFlow(ctx, rec.ID, flow.ID, "amartin", time.Time{})
	require.NoError(t, err)

	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestSwitchFlowUnassigned(t *testing.T) {
	store := newTestStore(t)
	eng := New(store)
	flow := seedFlow(t, store, "one")
	rec := seedRecord(t, store)

	_, err := eng.SwitchFlow(context.Background(), rec.ID, flow.ID, "amartin", time.Time{})
	assert.ErrorIs(t, err, ErrUnassigned)
}
