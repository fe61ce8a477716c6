package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// Assign puts a record onto a flow and opens the flow's first stage. Stage
// instances are created lazily for every stage in the flow's order.
// Re-assigning a record already progressing through the same flow only
// updates the assignee; it never duplicates instances or log entries.
// Assigning a record that was on a different flow clears that flow's
// instance timestamps, so only the active flow ever carries progress.
// The old flow's log entries are retained.
func (e *Engine) Assign(ctx context.Context, recordID string, flowID int64, assignee string, when time.Time) (*types.Record, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	flow, err := e.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if record.FlowID != nil && *record.FlowID == flowID && record.CurrentStageID != nil {
		if err := e.store.UpdateRecord(ctx, record.ID, map[string]interface{}{
			"assigned_to": assignee,
		}); err != nil {
			return nil, err
		}
		return e.store.GetRecord(ctx, recordID)
	}

	first, err := e.store.GetStage(ctx, flow.FirstStageID())
	if err != nil {
		return nil, err
	}
	now := e.at(when)

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if record.FlowID != nil && *record.FlowID != flow.ID {
			if err := tx.ClearFlowInstances(ctx, record.ID, *record.FlowID); err != nil {
				return err
			}
		}
		for _, stageID := range flow.StageOrder {
			if _, err := tx.GetOrCreateStageInstance(ctx, record.ID, stageID, flow.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateRecord(ctx, record.ID, map[string]interface{}{
			"flow_id":     flow.ID,
			"assigned_to": assignee,
		}); err != nil {
			return err
		}
		return openStage(ctx, tx, record, flow, first, assignee, now)
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	e.notifyEntered(updated, first)
	return updated, nil
}

// SwitchFlow reassigns a record to a different flow template. Instances for
// the new flow are created (or reused when the record has used the flow
// before), every instance of the previous flow has its timestamps cleared,
// and the first stage of the new flow opens. A single flow_switch entry is
// logged, anchored on the newly opened instance.
//
// Switching to the flow the record is already on is a no-op.
func (e *Engine) SwitchFlow(ctx context.Context, recordID string, newFlowID int64, actor string, when time.Time) (*types.Record, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.Assigned() {
		return nil, fmt.Errorf("switch flow %s: %w", recordID, ErrUnassigned)
	}
	if *record.FlowID == newFlowID {
		return record, nil
	}
	oldFlow, err := e.store.GetFlow(ctx, *record.FlowID)
	if err != nil {
		return nil, err
	}
	newFlow, err := e.store.GetFlow(ctx, newFlowID)
	if err != nil {
		return nil, err
	}
	first, err := e.store.GetStage(ctx, newFlow.FirstStageID())
	if err != nil {
		return nil, err
	}
	now := e.at(when)

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var firstInstance *types.StageInstance
		for _, stageID := range newFlow.StageOrder {
			si, err := tx.GetOrCreateStageInstance(ctx, record.ID, stageID, newFlow.ID)
			if err != nil {
				return err
			}
			if stageID == newFlow.FirstStageID() {
				firstInstance = si
			}
		}
		if err := tx.ClearFlowInstances(ctx, record.ID, oldFlow.ID); err != nil {
			return err
		}
		if err := tx.SetStageTimes(ctx, firstInstance.ID, &now, nil); err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, record.ID, map[string]interface{}{
			"flow_id":          newFlow.ID,
			"current_stage_id": newFlow.FirstStageID(),
		}); err != nil {
			return err
		}
		return tx.AppendAction(ctx, &types.ActionItem{
			StageInstanceID: firstInstance.ID,
			Kind:            types.ActionFlowSwitch,
			Actor:           actor,
			TakenAt:         now,
			Detail:          types.FlowSwitchDetail(oldFlow.Name, newFlow.Name, now),
		})
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	e.notifyEntered(updated, first)
	return updated, nil
}
