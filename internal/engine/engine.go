// Package engine implements the stage transition state machine: advancing a
// record through its flow, reverting it to an earlier stage, and switching it
// between flows. Every mutating operation is a single all-or-nothing
// transaction spanning the record, its stage instances, and the action log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cityops/conductor/internal/notify"
	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// ErrForwardJump is returned when TransitionTo targets a stage ahead of the
// current one. Forward jumps are rejected until their semantics are defined.
var ErrForwardJump = errors.New("cannot transition forward to a future stage")

// ErrStageNotInFlow is returned when a stage id is not part of the record's
// active flow.
var ErrStageNotInFlow = errors.New("stage is not part of the record's flow")

// ErrUnassigned is returned when an operation requires the record to have a
// flow assigned.
var ErrUnassigned = errors.New("record has not been assigned a flow")

// Engine advances records through their flows.
type Engine struct {
	store      storage.Storage
	dispatcher notify.Dispatcher
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatcher sets the notification dispatcher used after commits.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine backed by store.
func New(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		dispatcher: notify.Nop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// at resolves a caller-supplied timestamp, defaulting to the engine clock.
// Persisted times are always UTC.
func (e *Engine) at(t time.Time) time.Time {
	if t.IsZero() {
		t = e.now()
	}
	return t.UTC()
}

// Advance moves a record one step through its flow.
//
// With no current stage it opens the first stage of the flow (or does nothing
// when the record already completed its flow). On the final stage it closes
// the stage and reports completed=true so the caller can hand the record to
// the lifecycle manager. Otherwise it closes the current stage and opens the
// next one.
func (e *Engine) Advance(ctx context.Context, recordID, actor string, when time.Time) (*types.Record, bool, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	if !record.Assigned() {
		return nil, false, fmt.Errorf("advance %s: %w", recordID, ErrUnassigned)
	}
	flow, err := e.store.GetFlow(ctx, *record.FlowID)
	if err != nil {
		return nil, false, err
	}
	now := e.at(when)

	var (
		completed    bool
		enteredStage *types.Stage
	)

	switch {
	case record.CurrentStageID == nil:
		// Either never started or fully completed. A completed final stage
		// means the flow already ran its course: advancing again is a no-op.
		last, err := e.store.GetStageInstance(ctx, record.ID, flow.LastStageID(), flow.ID)
		if err == nil && last.Completed() {
			return record, false, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, false, err
		}
		stage, err := e.store.GetStage(ctx, flow.FirstStageID())
		if err != nil {
			return nil, false, err
		}
		err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			return openStage(ctx, tx, record, flow, stage, actor, now)
		})
		if err != nil {
			return nil, false, err
		}
		enteredStage = stage

	case *record.CurrentStageID == flow.LastStageID():
		stage, err := e.store.GetStage(ctx, *record.CurrentStageID)
		if err != nil {
			return nil, false, err
		}
		err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := closeStage(ctx, tx, record, flow, stage, actor, now); err != nil {
				return err
			}
			return tx.UpdateRecord(ctx, record.ID, map[string]interface{}{
				"current_stage_id": nil,
			})
		})
		if err != nil {
			return nil, false, err
		}
		completed = true

	default:
		idx := flow.StageIndex(*record.CurrentStageID)
		if idx < 0 {
			return nil, false, fmt.Errorf("advance %s: stage %d: %w", recordID, *record.CurrentStageID, ErrStageNotInFlow)
		}
		current, err := e.store.GetStage(ctx, *record.CurrentStageID)
		if err != nil {
			return nil, false, err
		}
		next, err := e.store.GetStage(ctx, flow.StageOrder[idx+1])
		if err != nil {
			return nil, false, err
		}
		err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := closeStage(ctx, tx, record, flow, current, actor, now); err != nil {
				return err
			}
			return openStage(ctx, tx, record, flow, next, actor, now)
		})
		if err != nil {
			return nil, false, err
		}
		enteredStage = next
	}

	updated, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	if enteredStage != nil {
		e.notifyEntered(updated, enteredStage)
	}
	return updated, completed, nil
}

// TransitionTo reverts a record to an earlier stage of its flow. The
// destination must lie at or before the current stage; the stage being left
// and every stage strictly between return to not-started, and a single
// reversion marker is logged on the destination instance as the compile
// pivot.
func (e *Engine) TransitionTo(ctx context.Context, recordID string, destStageID int64, actor string, when time.Time) (*types.Record, error) {
	record, err := e.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.Assigned() {
		return nil, fmt.Errorf("transition %s: %w", recordID, ErrUnassigned)
	}
	if record.CurrentStageID == nil {
		return nil, fmt.Errorf("transition %s: no open stage: %w", recordID, storage.ErrNotFound)
	}
	flow, err := e.store.GetFlow(ctx, *record.FlowID)
	if err != nil {
		return nil, err
	}
	destIdx := flow.StageIndex(destStageID)
	if destIdx < 0 {
		return nil, fmt.Errorf("transition %s: stage %d: %w", recordID, destStageID, ErrStageNotInFlow)
	}
	curIdx := flow.StageIndex(*record.CurrentStageID)
	if curIdx < 0 {
		return nil, fmt.Errorf("transition %s: stage %d: %w", recordID, *record.CurrentStageID, ErrStageNotInFlow)
	}
	if destIdx > curIdx {
		return nil, fmt.Errorf("transition %s to stage %d: %w", recordID, destStageID, ErrForwardJump)
	}

	destStage, err := e.store.GetStage(ctx, destStageID)
	if err != nil {
		return nil, err
	}
	currentStage, err := e.store.GetStage(ctx, *record.CurrentStageID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, curIdx-destIdx+1)
	for _, stageID := range flow.StageOrder[destIdx : curIdx+1] {
		stage, err := e.store.GetStage(ctx, stageID)
		if err != nil {
			return nil, err
		}
		names[stageID] = stage.Name
	}
	now := e.at(when)

	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		dest, err := tx.GetStageInstance(ctx, record.ID, destStageID, flow.ID)
		if err != nil {
			return err
		}
		if !dest.Started() && destIdx != curIdx {
			return fmt.Errorf("transition %s: destination stage never started: %w", recordID, storage.ErrNotFound)
		}

		// The reversion marker is the first item of the batch so that the
		// compiled timeline pivots on it and shows the bookkeeping entries
		// that follow.
		if err := tx.AppendAction(ctx, &types.ActionItem{
			StageInstanceID: dest.ID,
			Kind:            types.ActionReversion,
			Actor:           actor,
			TakenAt:         now,
			Detail:          types.ReversionDetail(destStage.Name, currentStage.Name, now),
		}); err != nil {
			return err
		}

		if destIdx < curIdx {
			// Stage being left: log its exit, then return it to not-started.
			cur, err := tx.GetStageInstance(ctx, record.ID, *record.CurrentStageID, flow.ID)
			if err != nil {
				return err
			}
			if err := tx.AppendAction(ctx, &types.ActionItem{
				StageInstanceID: cur.ID,
				Kind:            types.ActionExited,
				Actor:           actor,
				TakenAt:         now,
				Detail:          types.ExitedDetail(currentStage.Name, now),
			}); err != nil {
				return err
			}
			if err := tx.SetStageTimes(ctx, cur.ID, nil, nil); err != nil {
				return err
			}
		}

		// Stages strictly between destination and the prior current stage
		// also return to not-started, each with one bookkeeping entry. When
		// destination and current coincide the range is empty but the slice
		// bounds would be inverted, so clamp the lower bound.
		for _, stageID := range flow.StageOrder[min(destIdx+1, curIdx):curIdx] {
			si, err := tx.GetStageInstance(ctx, record.ID, stageID, flow.ID)
			if err != nil {
				return err
			}
			if err := tx.AppendAction(ctx, &types.ActionItem{
				StageInstanceID: si.ID,
				Kind:            types.ActionRestarted,
				Actor:           actor,
				TakenAt:         now,
				Detail:          types.RestartedDetail(names[stageID], now),
			}); err != nil {
				return err
			}
			if err := tx.SetStageTimes(ctx, si.ID, nil, nil); err != nil {
				return err
			}
		}

		// Destination reopens: entered is preserved when already set, exited
		// is always cleared.
		entered := dest.Entered
		if entered == nil {
			entered = &now
		}
		if err := tx.SetStageTimes(ctx, dest.ID, entered, nil); err != nil {
			return err
		}
		return tx.UpdateRecord(ctx, record.ID, map[string]interface{}{
			"current_stage_id": destStageID,
		})
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetRecord(ctx, recordID)
}

// openStage enters a stage: timestamps, record pointer, and the entered
// action, all within the caller's transaction.
func openStage(ctx context.Context, tx storage.Transaction, record *types.Record, flow *types.Flow, stage *types.Stage, actor string, now time.Time) error {
	si, err := tx.GetOrCreateStageInstance(ctx, record.ID, stage.ID, flow.ID)
	if err != nil {
		return err
	}
	if err := tx.SetStageTimes(ctx, si.ID, &now, nil); err != nil {
		return err
	}
	if err := tx.UpdateRecord(ctx, record.ID, map[string]interface{}{
		"current_stage_id": stage.ID,
	}); err != nil {
		return err
	}
	return tx.AppendAction(ctx, &types.ActionItem{
		StageInstanceID: si.ID,
		Kind:            types.ActionEntered,
		Actor:           actor,
		TakenAt:         now,
		Detail:          types.EnteredDetail(stage.Name, now),
	})
}

// closeStage exits the record's current stage and logs the exit.
func closeStage(ctx context.Context, tx storage.Transaction, record *types.Record, flow *types.Flow, stage *types.Stage, actor string, now time.Time) error {
	si, err := tx.GetStageInstance(ctx, record.ID, stage.ID, flow.ID)
	if err != nil {
		return err
	}
	if !si.Started() {
		return fmt.Errorf("close stage %d: never entered: %w", stage.ID, storage.ErrNotFound)
	}
	if err := tx.SetStageTimes(ctx, si.ID, si.Entered, &now); err != nil {
		return err
	}
	return tx.AppendAction(ctx, &types.ActionItem{
		StageInstanceID: si.ID,
		Kind:            types.ActionExited,
		Actor:           actor,
		TakenAt:         now,
		Detail:          types.ExitedDetail(stage.Name, now),
	})
}

// notifyEntered fires the stage-entry notification after the owning
// transaction has committed. Dispatch is asynchronous and best-effort;
// failures never affect the transition.
func (e *Engine) notifyEntered(record *types.Record, stage *types.Stage) {
	if !stage.NotifiesOnEntry {
		return
	}
	d := e.dispatcher
	rec, st := *record, *stage
	go func() {
		d.StageEntered(context.Background(), &rec, &st)
	}()
}
