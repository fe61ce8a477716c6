package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

const recordColumns = `id, description, current_stage_id, flow_id, assigned_to,
	is_visible, is_archived, parent_id, has_metrics, spec_number,
	expiration_date, created_at, updated_at`

// CreateRecord inserts a new record. A missing id is assigned a fresh UUID.
func (s *Store) CreateRecord(ctx context.Context, record *types.Record) error {
	return insertRecord(ctx, s.db, record)
}

// GetRecord returns the record with the given id.
func (s *Store) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	return getRecord(ctx, s.db, id)
}

// UpdateRecord applies a column-keyed update map to a record.
func (s *Store) UpdateRecord(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateRecord(ctx, s.db, id, updates)
}

// ListRecords returns records matching the filter, newest first.
func (s *Store) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]*types.Record, error) {
	query := "SELECT " + recordColumns + " FROM records"
	var (
		conds []string
		args  []interface{}
	)
	if filter.Visible != nil {
		conds = append(conds, "is_visible = ?")
		args = append(args, *filter.Visible)
	}
	if filter.Archived != nil {
		conds = append(conds, "is_archived = ?")
		args = append(args, *filter.Archived)
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.FlowID != nil {
		conds = append(conds, "flow_id = ?")
		args = append(args, *filter.FlowID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list records", err)
	}
	defer func() { _ = rows.Close() }()
	return collectRecords(rows)
}

// GetChildren returns the records cloned from parentID, oldest first.
func (s *Store) GetChildren(ctx context.Context, parentID string) ([]*types.Record, error) {
	return getChildren(ctx, s.db, parentID)
}

func insertRecord(ctx context.Context, q querier, record *types.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO records (id, description, current_stage_id, flow_id, assigned_to,
			is_visible, is_archived, parent_id, has_metrics, spec_number, expiration_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING created_at, updated_at`,
		record.ID, record.Description, record.CurrentStageID, record.FlowID,
		record.AssignedTo, record.IsVisible, record.IsArchived, record.ParentID,
		record.HasMetrics, record.SpecNumber, record.ExpirationDate,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	return wrapDBError("create record", err)
}

func getRecord(ctx context.Context, q querier, id string) (*types.Record, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ?", id)
	record, err := scanRecord(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get record %s", id), err)
	}
	return record, nil
}

// recordUpdateColumns is the set of columns UpdateRecord accepts. Anything
// else is a programming error and is rejected loudly.
var recordUpdateColumns = map[string]bool{
	"description":      true,
	"current_stage_id": true,
	"flow_id":          true,
	"assigned_to":      true,
	"is_visible":       true,
	"is_archived":      true,
	"parent_id":        true,
	"has_metrics":      true,
	"spec_number":      true,
	"expiration_date":  true,
}

func updateRecord(ctx context.Context, q querier, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	for col, val := range updates {
		if !recordUpdateColumns[col] {
			return fmt.Errorf("update record: unknown column %q", col)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	res, err := q.ExecContext(ctx,
		"UPDATE records SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return wrapDBError(fmt.Sprintf("update record %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update record", err)
	}
	if n == 0 {
		return fmt.Errorf("update record %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func getChildren(ctx context.Context, q querier, parentID string) ([]*types.Record, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE parent_id = ? ORDER BY created_at, id", parentID)
	if err != nil {
		return nil, wrapDBError("get children", err)
	}
	defer func() { _ = rows.Close() }()
	return collectRecords(rows)
}

func deleteRecord(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete record %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("delete record", err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func collectRecords(rows *sql.Rows) ([]*types.Record, error) {
	var records []*types.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, wrapDBError("scan record", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*types.Record, error) {
	var (
		r            types.Record
		currentStage sql.NullInt64
		flowID       sql.NullInt64
		parentID     sql.NullString
		expiration   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Description, &currentStage, &flowID, &r.AssignedTo,
		&r.IsVisible, &r.IsArchived, &parentID, &r.HasMetrics, &r.SpecNumber,
		&expiration, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if currentStage.Valid {
		r.CurrentStageID = &currentStage.Int64
	}
	if flowID.Valid {
		r.FlowID = &flowID.Int64
	}
	if parentID.Valid {
		r.ParentID = &parentID.String
	}
	if expiration.Valid {
		r.ExpirationDate = &expiration.Time
	}
	return &r, nil
}
