package sqlite

import (
	"context"
	"fmt"

	"github.com/cityops/conductor/internal/types"
)

// CreateStage inserts a new stage definition.
func (s *Store) CreateStage(ctx context.Context, stage *types.Stage) error {
	return insertStage(ctx, s.db, stage)
}

// GetStage returns the stage with the given id.
func (s *Store) GetStage(ctx context.Context, id int64) (*types.Stage, error) {
	return getStage(ctx, s.db, id)
}

// ListStages returns all stage definitions ordered by id.
func (s *Store) ListStages(ctx context.Context) ([]*types.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, notifies_on_entry, posts_listing, default_message
		 FROM stages ORDER BY id`)
	if err != nil {
		return nil, wrapDBError("list stages", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []*types.Stage
	for rows.Next() {
		var st types.Stage
		if err := rows.Scan(&st.ID, &st.Name, &st.NotifiesOnEntry, &st.PostsListing, &st.DefaultMessage); err != nil {
			return nil, wrapDBError("scan stage", err)
		}
		stages = append(stages, &st)
	}
	return stages, rows.Err()
}

func insertStage(ctx context.Context, q querier, stage *types.Stage) error {
	if err := stage.Validate(); err != nil {
		return fmt.Errorf("invalid stage: %w", err)
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO stages (name, notifies_on_entry, posts_listing, default_message)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		stage.Name, stage.NotifiesOnEntry, stage.PostsListing, stage.DefaultMessage,
	).Scan(&stage.ID)
	return wrapDBError("create stage", err)
}

func getStage(ctx context.Context, q querier, id int64) (*types.Stage, error) {
	var st types.Stage
	err := q.QueryRowContext(ctx,
		`SELECT id, name, notifies_on_entry, posts_listing, default_message
		 FROM stages WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.NotifiesOnEntry, &st.PostsListing, &st.DefaultMessage)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get stage %d", id), err)
	}
	return &st, nil
}
