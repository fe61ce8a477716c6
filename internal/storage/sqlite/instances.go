package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

const instanceColumns = "id, record_id, stage_id, flow_id, entered, exited, notes"

// GetStageInstance returns the progress row for (record, stage, flow).
func (s *Store) GetStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	return getStageInstance(ctx, s.db, recordID, stageID, flowID)
}

// GetStageInstanceByID returns a progress row by primary key.
func (s *Store) GetStageInstanceByID(ctx context.Context, id int64) (*types.StageInstance, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM stage_instances WHERE id = ?", id)
	si, err := scanInstance(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get stage instance %d", id), err)
	}
	return si, nil
}

// ListStageInstances returns the record's progress rows for a flow in the
// flow's stage order. This is the export surface for metrics consumers.
func (s *Store) ListStageInstances(ctx context.Context, recordID string, flowID int64) ([]*types.StageInstance, error) {
	flow, err := s.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+instanceColumns+" FROM stage_instances WHERE record_id = ? AND flow_id = ?",
		recordID, flowID)
	if err != nil {
		return nil, wrapDBError("list stage instances", err)
	}
	defer func() { _ = rows.Close() }()

	var instances []*types.StageInstance
	for rows.Next() {
		si, err := scanInstance(rows)
		if err != nil {
			return nil, wrapDBError("scan stage instance", err)
		}
		instances = append(instances, si)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(instances, func(i, j int) bool {
		return flow.StageIndex(instances[i].StageID) < flow.StageIndex(instances[j].StageID)
	})
	return instances, nil
}

func getStageInstance(ctx context.Context, q querier, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM stage_instances WHERE record_id = ? AND stage_id = ? AND flow_id = ?",
		recordID, stageID, flowID)
	si, err := scanInstance(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get stage instance (%s, %d, %d)", recordID, stageID, flowID), err)
	}
	return si, nil
}

// getOrCreateStageInstance inserts the (record, stage, flow) row if absent.
// A UNIQUE constraint failure means a concurrent caller won the race; the
// existing row is returned instead of an error.
func getOrCreateStageInstance(ctx context.Context, q querier, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	si := &types.StageInstance{
		RecordID: recordID,
		StageID:  stageID,
		FlowID:   flowID,
	}
	err := q.QueryRowContext(ctx,
		"INSERT INTO stage_instances (record_id, stage_id, flow_id) VALUES (?, ?, ?) RETURNING id",
		recordID, stageID, flowID,
	).Scan(&si.ID)
	if err == nil {
		return si, nil
	}
	if IsUniqueConstraintError(err) {
		return getStageInstance(ctx, q, recordID, stageID, flowID)
	}
	return nil, wrapDBError("create stage instance", err)
}

// setStageTimes overwrites both timestamp columns; nil writes NULL.
func setStageTimes(ctx context.Context, q querier, id int64, entered, exited *time.Time) error {
	res, err := q.ExecContext(ctx,
		"UPDATE stage_instances SET entered = ?, exited = ? WHERE id = ?",
		entered, exited, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("set stage times %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("set stage times", err)
	}
	if n == 0 {
		return fmt.Errorf("set stage times %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// clearFlowInstances zeroes the timestamps on every progress row the record
// holds for the given flow. Rows are retained, never deleted.
func clearFlowInstances(ctx context.Context, q querier, recordID string, flowID int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE stage_instances SET entered = NULL, exited = NULL WHERE record_id = ? AND flow_id = ?",
		recordID, flowID)
	return wrapDBError("clear flow instances", err)
}

func scanInstance(row interface{ Scan(...interface{}) error }) (*types.StageInstance, error) {
	var (
		si      types.StageInstance
		entered sql.NullTime
		exited  sql.NullTime
	)
	err := row.Scan(&si.ID, &si.RecordID, &si.StageID, &si.FlowID, &entered, &exited, &si.Notes)
	if err != nil {
		return nil, err
	}
	if entered.Valid {
		si.Entered = &entered.Time
	}
	if exited.Valid {
		si.Exited = &exited.Time
	}
	return &si, nil
}
