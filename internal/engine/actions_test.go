package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

func TestRecordActionOnStartedStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flow := assignedRecord(t, store, eng)

	si, err := store.GetStageInstance(ctx, rec.ID, flow.FirstStageID(), flow.ID)
	require.NoError(t, err)

	action, err := eng.RecordAction(ctx, rec.ID, si.ID, types.ActionUpdate, "amartin",
		types.UpdateDetail("vendors@example.gov", "Bid opening moved", "Rescheduled to Friday."), time.Time{})
	require.NoError(t, err)
	assert.NotZero(t, action.ID)
	assert.Equal(t, "Bid opening moved", action.Detail["subject"])

	actions, err := store.ListStageActions(ctx, si.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}

func TestRecordActionRejectsReservedKinds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flow := assignedRecord(t, store, eng)

	si, err := store.GetStageInstance(ctx, rec.ID, flow.FirstStageID(), flow.ID)
	require.NoError(t, err)

	for _, kind := range []types.ActionKind{
		types.ActionEntered, types.ActionExited, types.ActionReversion,
		types.ActionRestarted, types.ActionFlowSwitch, types.ActionExtension,
	} {
		_, err := eng.RecordAction(ctx, rec.ID, si.ID, kind, "amartin", nil, time.Time{})
		assert.Error(t, err, "kind %s should be reserved", kind)
	}
}

func TestRecordActionOnNeverEnteredStage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flow := assignedRecord(t, store, eng)

	// The second stage exists but has never been entered.
	si, err := store.GetStageInstance(ctx, rec.ID, flow.StageOrder[1], flow.ID)
	require.NoError(t, err)

	_, err = eng.RecordAction(ctx, rec.ID, si.ID, types.ActionNote, "amartin",
		types.NoteDetail("too early"), time.Time{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordActionWrongRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, flow := assignedRecord(t, store, eng)
	other := seedRecord(t, store)

	si, err := store.GetStageInstance(ctx, rec.ID, flow.FirstStageID(), flow.ID)
	require.NoError(t, err)

	_, err = eng.RecordAction(ctx, other.ID, si.ID, types.ActionNote, "amartin",
		types.NoteDetail("crossed wires"), time.Time{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddAndDeleteNote(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eng := New(store)
	rec, _ := assignedRecord(t, store, eng)

	note, err := eng.AddNote(ctx, rec.ID, "amartin", "vendor asked for an extension", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "vendor asked for an extension", note.Detail.Note())

	actions, err := store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	require.NoError(t, eng.DeleteNote(ctx, note.ID))
	actions, err = store.ListActions(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 1)

	// Only notes are deletable; the entered action survives a delete call.
	require.Error(t, eng.DeleteNote(ctx, actions[0].ID))
}

func TestAddNoteWithoutOpenStage(t *testing.T) {
	store := newTestStore(t)
	eng := New(store)
	rec := seedRecord(t, store)

	_, err := eng.AddNote(context.Background(), rec.ID, "amartin", "dangling", time.Time{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
