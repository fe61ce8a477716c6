package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// ListActions returns the record's full chronological action history across
// every stage instance it has ever held, for any flow. Ordered by
// (taken_at, id) ascending; the id tiebreak keeps same-timestamp batches in
// insertion order.
func (s *Store) ListActions(ctx context.Context, recordID string) ([]*types.ActionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.stage_instance_id, a.kind, a.actor, a.taken_at, a.detail
		 FROM actions a
		 JOIN stage_instances si ON si.id = a.stage_instance_id
		 WHERE si.record_id = ?
		 ORDER BY a.taken_at ASC, a.id ASC`, recordID)
	if err != nil {
		return nil, wrapDBError("list actions", err)
	}
	defer func() { _ = rows.Close() }()
	return collectActions(rows)
}

// ListStageActions returns the actions anchored to one stage instance,
// oldest first.
func (s *Store) ListStageActions(ctx context.Context, stageInstanceID int64) ([]*types.ActionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage_instance_id, kind, actor, taken_at, detail
		 FROM actions WHERE stage_instance_id = ?
		 ORDER BY taken_at ASC, id ASC`, stageInstanceID)
	if err != nil {
		return nil, wrapDBError("list stage actions", err)
	}
	defer func() { _ = rows.Close() }()
	return collectActions(rows)
}

// DeleteNote removes a user note from the log. Notes are the only action
// kind that may be deleted; every other kind is immutable history.
func (s *Store) DeleteNote(ctx context.Context, actionID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM actions WHERE id = ? AND kind = ?", actionID, types.ActionNote)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete note %d", actionID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("delete note", err)
	}
	if n == 0 {
		return fmt.Errorf("delete note %d: %w", actionID, storage.ErrNotFound)
	}
	return nil
}

func appendAction(ctx context.Context, q querier, action *types.ActionItem) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}
	detail, err := types.MarshalDetail(action.Detail)
	if err != nil {
		return fmt.Errorf("marshal action detail: %w", err)
	}
	err = q.QueryRowContext(ctx,
		`INSERT INTO actions (stage_instance_id, kind, actor, taken_at, detail)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		action.StageInstanceID, action.Kind, action.Actor, action.TakenAt.UTC(), string(detail),
	).Scan(&action.ID)
	return wrapDBError("append action", err)
}

func collectActions(rows *sql.Rows) ([]*types.ActionItem, error) {
	var actions []*types.ActionItem
	for rows.Next() {
		var (
			a      types.ActionItem
			detail string
		)
		if err := rows.Scan(&a.ID, &a.StageInstanceID, &a.Kind, &a.Actor, &a.TakenAt, &detail); err != nil {
			return nil, wrapDBError("scan action", err)
		}
		d, err := types.UnmarshalDetail([]byte(detail))
		if err != nil {
			return nil, fmt.Errorf("unmarshal detail for action %d: %w", a.ID, err)
		}
		a.Detail = d
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}
