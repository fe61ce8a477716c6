package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// userActionKinds are the kinds collaborators may log directly. Transition
// kinds (entered, exited, reversion, restarted, flow_switch, extension) are
// reserved for engine and lifecycle operations.
var userActionKinds = map[types.ActionKind]bool{
	types.ActionNote:   true,
	types.ActionUpdate: true,
	types.ActionPost:   true,
	types.ActionEdit:   true,
}

// RecordAction appends a collaborator action (note, update, post, edit) to a
// started stage instance of the record. Acting on an instance that has never
// been opened is rejected as not found: there is nothing active to act on.
func (e *Engine) RecordAction(ctx context.Context, recordID string, stageInstanceID int64, kind types.ActionKind, actor string, detail types.Detail, when time.Time) (*types.ActionItem, error) {
	if !userActionKinds[kind] {
		return nil, fmt.Errorf("record action: kind %q is reserved for engine operations", kind)
	}
	si, err := e.store.GetStageInstanceByID(ctx, stageInstanceID)
	if err != nil {
		return nil, err
	}
	if si.RecordID != recordID {
		return nil, fmt.Errorf("record action: stage instance %d does not belong to record %s: %w",
			stageInstanceID, recordID, storage.ErrNotFound)
	}
	if !si.Started() {
		return nil, fmt.Errorf("record action: stage instance %d never entered: %w",
			stageInstanceID, storage.ErrNotFound)
	}

	action := &types.ActionItem{
		StageInstanceID: si.ID,
		Kind:            kind,
		Actor:           actor,
		TakenAt:         e.at(when),
		Detail:          detail,
	}
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.AppendAction(ctx, action)
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// AddNote logs a user note on the record's current stage instance.
func (e *Engine) AddNote(ctx context.Context, recordID, actor, note string, when time.Time) (*types.ActionItem, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.Assigned() || record.CurrentStageID == nil {
		return nil, fmt.Errorf("add note: record %s has no open stage: %w", recordID, storage.ErrNotFound)
	}
	si, err := e.store.GetStageInstance(ctx, recordID, *record.CurrentStageID, *record.FlowID)
	if err != nil {
		return nil, err
	}
	return e.RecordAction(ctx, recordID, si.ID, types.ActionNote, actor, types.NoteDetail(note), when)
}

// DeleteNote removes a note from the log. This is the one administrative
// deletion the otherwise append-only log permits.
func (e *Engine) DeleteNote(ctx context.Context, actionID int64) error {
	return e.store.DeleteNote(ctx, actionID)
}
