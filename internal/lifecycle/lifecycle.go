// Package lifecycle handles what happens to a record after its stage chain
// ends: completion fan-out into successor records, and extension of an
// already archived record.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// archivedSuffix is appended to a record's description when completion
// archives it, so listings distinguish the retired parent from its
// successors at a glance.
const archivedSuffix = " [Archived]"

// ErrNotArchived is returned by Extend when the target record has not been
// archived by a prior completion.
var ErrNotArchived = errors.New("record is not archived")

// ErrAlreadyArchived is returned by CompleteAndBranch when the record has
// already been completed and archived.
var ErrAlreadyArchived = errors.New("record is already archived")

// Group carries the metadata overrides for one successor record created on
// completion. Zero-valued fields inherit the parent's value.
type Group struct {
	Description    string
	SpecNumber     string
	AssignedTo     string
	HasMetrics     bool
	ExpirationDate *time.Time
}

// Manager performs completion fan-out and extension.
type Manager struct {
	store storage.Storage
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New returns a Manager backed by store.
func New(store storage.Storage, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CompleteAndBranch archives a record whose stage chain has finished and
// creates one successor child per group. Each child copies the parent's base
// fields, applies the group's overrides, points back at the parent, and
// starts visible with no flow assigned. More than one group fans the parent
// out into multiple independent successors.
//
// All children and the parent's archive flags commit in a single
// transaction.
func (m *Manager) CompleteAndBranch(ctx context.Context, recordID string, groups []Group) ([]*types.Record, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("at least one group is required")
	}

	var children []*types.Record
	err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		parent, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if parent.IsArchived {
			return ErrAlreadyArchived
		}

		children = make([]*types.Record, 0, len(groups))
		for _, g := range groups {
			child := cloneFromParent(parent, g)
			if err := tx.CreateRecord(ctx, child); err != nil {
				return fmt.Errorf("creating successor record: %w", err)
			}
			children = append(children, child)
		}

		desc := parent.Description
		if !strings.HasSuffix(desc, archivedSuffix) {
			desc += archivedSuffix
		}
		return tx.UpdateRecord(ctx, parent.ID, map[string]interface{}{
			"description": desc,
			"is_archived": true,
			"is_visible":  false,
		})
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// Extend creates exactly one new child clone of an archived record without
// re-running completion, and logs one extension action on the current stage
// instance of whichever child branch is still open. The parent's archived
// and visibility flags are left untouched.
//
// When discardUnedited is true, previously auto-created children that were
// never touched after creation are deleted before the new clone is made.
func (m *Manager) Extend(ctx context.Context, recordID string, discardUnedited bool) (*types.Record, error) {
	var child *types.Record
	err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		parent, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if !parent.IsArchived {
			return ErrNotArchived
		}

		siblings, err := tx.GetChildren(ctx, parent.ID)
		if err != nil {
			return err
		}

		if discardUnedited {
			kept := siblings[:0]
			for _, sib := range siblings {
				if sib.UpdatedAt.Equal(sib.CreatedAt) && !sib.Assigned() {
					if err := tx.DeleteRecord(ctx, sib.ID); err != nil {
						return err
					}
					continue
				}
				kept = append(kept, sib)
			}
			siblings = kept
		}

		child = cloneFromParent(parent, Group{})
		if err := tx.CreateRecord(ctx, child); err != nil {
			return fmt.Errorf("creating extension record: %w", err)
		}

		// The extension shows up in the activity stream of the branch
		// still working its flow, if one exists.
		open := openBranch(siblings)
		if open == nil {
			return nil
		}
		inst, err := tx.GetStageInstance(ctx, open.ID, *open.CurrentStageID, *open.FlowID)
		if err != nil {
			return err
		}
		now := m.now().UTC()
		return tx.AppendAction(ctx, &types.ActionItem{
			StageInstanceID: inst.ID,
			Kind:            types.ActionExtension,
			Actor:           parent.AssignedTo,
			TakenAt:         now,
			Detail:          types.ExtensionDetail(parent.ID, now),
		})
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// openBranch returns the first sibling with an open stage, or nil.
func openBranch(siblings []*types.Record) *types.Record {
	for _, sib := range siblings {
		if sib.CurrentStageID != nil && sib.FlowID != nil {
			return sib
		}
	}
	return nil
}

// cloneFromParent builds a successor record from the parent's base fields
// with the group's overrides applied. The clone starts with no flow and no
// current stage; its lifecycle begins fresh when a flow is assigned.
func cloneFromParent(parent *types.Record, g Group) *types.Record {
	child := &types.Record{
		Description:    strings.TrimSuffix(parent.Description, archivedSuffix),
		AssignedTo:     parent.AssignedTo,
		IsVisible:      true,
		ParentID:       &parent.ID,
		HasMetrics:     parent.HasMetrics,
		SpecNumber:     parent.SpecNumber,
		ExpirationDate: parent.ExpirationDate,
	}
	if g.Description != "" {
		child.Description = g.Description
	}
	if g.SpecNumber != "" {
		child.SpecNumber = g.SpecNumber
	}
	if g.AssignedTo != "" {
		child.AssignedTo = g.AssignedTo
	}
	if g.HasMetrics {
		child.HasMetrics = true
	}
	if g.ExpirationDate != nil {
		child.ExpirationDate = g.ExpirationDate
	}
	return child
}
