// Package storage provides shared types for conductor persistence.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds the interface and sentinel errors referenced by both the sqlite
// implementation and its consumers (engine, timeline, lifecycle, cmd).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cityops/conductor/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist, or when an
// operation targets a stage instance that has never been opened.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing row.
// Get-or-create paths treat it as benign and return the existing row.
var ErrDuplicate = errors.New("already exists")

// RecordFilter narrows ListRecords results.
type RecordFilter struct {
	Visible    *bool
	Archived   *bool
	AssignedTo string
	FlowID     *int64
}

// Storage is the interface satisfied by *sqlite.Store.
// Consumers depend on this interface rather than on the concrete type so that
// alternative implementations (mocks, instrumented wrappers) can be
// substituted.
type Storage interface {
	// Flow catalog
	CreateFlow(ctx context.Context, flow *types.Flow) error
	GetFlow(ctx context.Context, id int64) (*types.Flow, error)
	GetFlowByName(ctx context.Context, name string) (*types.Flow, error)
	ListFlows(ctx context.Context) ([]*types.Flow, error)

	// Stages
	CreateStage(ctx context.Context, stage *types.Stage) error
	GetStage(ctx context.Context, id int64) (*types.Stage, error)
	ListStages(ctx context.Context) ([]*types.Stage, error)

	// Records
	CreateRecord(ctx context.Context, record *types.Record) error
	GetRecord(ctx context.Context, id string) (*types.Record, error)
	UpdateRecord(ctx context.Context, id string, updates map[string]interface{}) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]*types.Record, error)
	GetChildren(ctx context.Context, parentID string) ([]*types.Record, error)

	// Stage instances
	GetStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error)
	GetStageInstanceByID(ctx context.Context, id int64) (*types.StageInstance, error)
	ListStageInstances(ctx context.Context, recordID string, flowID int64) ([]*types.StageInstance, error)

	// Action log
	ListActions(ctx context.Context, recordID string) ([]*types.ActionItem, error)
	ListStageActions(ctx context.Context, stageInstanceID int64) ([]*types.ActionItem, error)
	DeleteNote(ctx context.Context, actionID int64) error

	// Transactions
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Lifecycle
	Close() error
}

// Transaction exposes the subset of storage operations that execute within a
// single database transaction. All mutating engine operations (advance,
// revert, flow switch, completion, extension) are built on it: either every
// row change and every logged action commits, or none does.
//
// If the callback passed to RunInTransaction returns an error or panics, the
// transaction is rolled back; on normal return it is committed.
type Transaction interface {
	// Flow catalog. Used by flow definition import so a partially applied
	// document never becomes visible.
	CreateFlow(ctx context.Context, flow *types.Flow) error
	CreateStage(ctx context.Context, stage *types.Stage) error
	GetFlowByName(ctx context.Context, name string) (*types.Flow, error)

	// Records
	GetRecord(ctx context.Context, id string) (*types.Record, error)
	CreateRecord(ctx context.Context, record *types.Record) error
	UpdateRecord(ctx context.Context, id string, updates map[string]interface{}) error
	GetChildren(ctx context.Context, parentID string) ([]*types.Record, error)
	DeleteRecord(ctx context.Context, id string) error

	// Stage instances. SetStageTimes overwrites both timestamp columns with
	// the given values; nil writes NULL.
	GetStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error)
	GetOrCreateStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error)
	SetStageTimes(ctx context.Context, id int64, entered, exited *time.Time) error
	ClearFlowInstances(ctx context.Context, recordID string, flowID int64) error

	// Action log
	AppendAction(ctx context.Context, action *types.ActionItem) error
}
