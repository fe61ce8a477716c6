// Package types defines core data structures for the conductor stage tracker.
package types

import (
	"fmt"
	"time"
)

// Flow is a named, ordered template of stages a record progresses through.
// The stage order is immutable once the flow is created; edits go through
// admin tooling that creates a replacement flow.
type Flow struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	StageOrder []int64   `json:"stage_order"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks that the flow is well formed.
func (f *Flow) Validate() error {
	if len(f.Name) == 0 {
		return fmt.Errorf("flow name is required")
	}
	if len(f.StageOrder) == 0 {
		return fmt.Errorf("flow must contain at least one stage")
	}
	seen := make(map[int64]bool, len(f.StageOrder))
	for _, id := range f.StageOrder {
		if seen[id] {
			return fmt.Errorf("duplicate stage %d in stage order", id)
		}
		seen[id] = true
	}
	return nil
}

// StageIndex returns the position of stageID in the flow's stage order,
// or -1 when the stage is not part of the flow.
func (f *Flow) StageIndex(stageID int64) int {
	for i, id := range f.StageOrder {
		if id == stageID {
			return i
		}
	}
	return -1
}

// FirstStageID returns the id of the first stage in the flow.
func (f *Flow) FirstStageID() int64 {
	return f.StageOrder[0]
}

// LastStageID returns the id of the final stage in the flow.
func (f *Flow) LastStageID() int64 {
	return f.StageOrder[len(f.StageOrder)-1]
}

// Stage is a named step in a flow.
type Stage struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	NotifiesOnEntry bool   `json:"notifies_on_entry"`
	PostsListing    bool   `json:"posts_listing"`
	DefaultMessage  string `json:"default_message,omitempty"`
}

// Validate checks that the stage is well formed.
func (s *Stage) Validate() error {
	if len(s.Name) == 0 {
		return fmt.Errorf("stage name is required")
	}
	if len(s.Name) > 255 {
		return fmt.Errorf("stage name must be 255 characters or less (got %d)", len(s.Name))
	}
	return nil
}

// Record is a tracked business record (a contract) moving through a flow.
//
// CurrentStageID mirrors the open stage instance: it is set exactly when one
// stage instance for the record's active flow has entered set and exited
// unset, and nil otherwise (never started, or fully completed).
type Record struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	CurrentStageID *int64     `json:"current_stage_id,omitempty"`
	FlowID         *int64     `json:"flow_id,omitempty"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	IsVisible      bool       `json:"is_visible"`
	IsArchived     bool       `json:"is_archived"`
	ParentID       *string    `json:"parent_id,omitempty"`
	HasMetrics     bool       `json:"has_metrics,omitempty"`
	SpecNumber     string     `json:"spec_number,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks that the record has valid field values.
func (r *Record) Validate() error {
	if len(r.Description) == 0 {
		return fmt.Errorf("description is required")
	}
	if len(r.Description) > 500 {
		return fmt.Errorf("description must be 500 characters or less (got %d)", len(r.Description))
	}
	if r.CurrentStageID != nil && r.FlowID == nil {
		return fmt.Errorf("record with a current stage must belong to a flow")
	}
	return nil
}

// Assigned reports whether the record has been assigned a flow.
func (r *Record) Assigned() bool {
	return r.FlowID != nil
}

// StageInstance is a record's progress state for one stage within one flow.
// Rows are unique on (record, stage, flow) and are never deleted when a
// record changes flows; instances from previous flows persist with zeroed
// timestamps.
type StageInstance struct {
	ID       int64      `json:"id"`
	RecordID string     `json:"record_id"`
	StageID  int64      `json:"stage_id"`
	FlowID   int64      `json:"flow_id"`
	Entered  *time.Time `json:"entered,omitempty"`
	Exited   *time.Time `json:"exited,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// Validate enforces the timestamp invariant: exited implies entered.
func (si *StageInstance) Validate() error {
	if si.Exited != nil && si.Entered == nil {
		return fmt.Errorf("stage instance cannot be exited without being entered")
	}
	return nil
}

// Started reports whether the stage has ever been entered.
func (si *StageInstance) Started() bool {
	return si.Entered != nil
}

// Open reports whether the stage is currently active.
func (si *StageInstance) Open() bool {
	return si.Entered != nil && si.Exited == nil
}

// Completed reports whether the stage has been entered and exited.
func (si *StageInstance) Completed() bool {
	return si.Entered != nil && si.Exited != nil
}

// ActionKind categorizes audit trail entries.
type ActionKind string

// Action kinds recorded in the append-only log.
const (
	ActionEntered    ActionKind = "entered"
	ActionExited     ActionKind = "exited"
	ActionReversion  ActionKind = "reversion"
	ActionRestarted  ActionKind = "restarted"
	ActionFlowSwitch ActionKind = "flow_switch"
	ActionNote       ActionKind = "note"
	ActionUpdate     ActionKind = "update"
	ActionPost       ActionKind = "post"
	ActionEdit       ActionKind = "edit"
	ActionExtension  ActionKind = "extension"
)

// IsValid reports whether k is a known action kind.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionEntered, ActionExited, ActionReversion, ActionRestarted,
		ActionFlowSwitch, ActionNote, ActionUpdate, ActionPost,
		ActionEdit, ActionExtension:
		return true
	}
	return false
}

// ActionItem is one immutable audit-log entry tied to a stage instance.
// The AUTOINCREMENT id doubles as the insertion-sequence tiebreaker when
// two items share the same TakenAt.
type ActionItem struct {
	ID              int64      `json:"id"`
	StageInstanceID int64      `json:"stage_instance_id"`
	Kind            ActionKind `json:"kind"`
	Actor           string     `json:"actor"`
	TakenAt         time.Time  `json:"taken_at"`
	Detail          Detail     `json:"detail,omitempty"`
}

// Validate checks that the action item has valid field values.
func (a *ActionItem) Validate() error {
	if a.StageInstanceID == 0 {
		return fmt.Errorf("action must be anchored to a stage instance")
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("invalid action kind: %s", a.Kind)
	}
	if a.TakenAt.IsZero() {
		return fmt.Errorf("taken_at is required")
	}
	return nil
}
