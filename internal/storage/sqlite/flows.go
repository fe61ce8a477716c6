package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cityops/conductor/internal/types"
)

// CreateFlow inserts a new flow template. The stage order is frozen at
// creation time.
func (s *Store) CreateFlow(ctx context.Context, flow *types.Flow) error {
	return insertFlow(ctx, s.db, flow)
}

// GetFlow returns the flow with the given id.
func (s *Store) GetFlow(ctx context.Context, id int64) (*types.Flow, error) {
	return getFlow(ctx, s.db, "SELECT id, name, stage_order, created_at FROM flows WHERE id = ?", id)
}

// GetFlowByName returns the flow with the given name.
func (s *Store) GetFlowByName(ctx context.Context, name string) (*types.Flow, error) {
	return getFlow(ctx, s.db, "SELECT id, name, stage_order, created_at FROM flows WHERE name = ?", name)
}

// ListFlows returns all flows ordered by id.
func (s *Store) ListFlows(ctx context.Context) ([]*types.Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, stage_order, created_at FROM flows ORDER BY id")
	if err != nil {
		return nil, wrapDBError("list flows", err)
	}
	defer func() { _ = rows.Close() }()

	var flows []*types.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

func insertFlow(ctx context.Context, q querier, flow *types.Flow) error {
	if err := flow.Validate(); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}
	order, err := json.Marshal(flow.StageOrder)
	if err != nil {
		return fmt.Errorf("marshal stage order: %w", err)
	}
	err = q.QueryRowContext(ctx,
		"INSERT INTO flows (name, stage_order) VALUES (?, ?) RETURNING id, created_at",
		flow.Name, string(order),
	).Scan(&flow.ID, &flow.CreatedAt)
	return wrapDBError("create flow", err)
}

func getFlow(ctx context.Context, q querier, query string, arg interface{}) (*types.Flow, error) {
	var (
		flow  types.Flow
		order string
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(&flow.ID, &flow.Name, &order, &flow.CreatedAt)
	if err != nil {
		return nil, wrapDBError("get flow", err)
	}
	if err := json.Unmarshal([]byte(order), &flow.StageOrder); err != nil {
		return nil, fmt.Errorf("unmarshal stage order for flow %d: %w", flow.ID, err)
	}
	return &flow, nil
}

func scanFlow(rows interface{ Scan(...interface{}) error }) (*types.Flow, error) {
	var (
		flow  types.Flow
		order string
	)
	if err := rows.Scan(&flow.ID, &flow.Name, &order, &flow.CreatedAt); err != nil {
		return nil, wrapDBError("scan flow", err)
	}
	if err := json.Unmarshal([]byte(order), &flow.StageOrder); err != nil {
		return nil, fmt.Errorf("unmarshal stage order for flow %d: %w", flow.ID, err)
	}
	return &flow, nil
}
