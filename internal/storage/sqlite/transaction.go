package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// Verify txStore implements storage.Transaction at compile time.
var _ storage.Transaction = (*txStore)(nil)

// txStore implements the storage.Transaction interface. It wraps a dedicated
// database connection with an active transaction so every operation in the
// callback shares one connection.
type txStore struct {
	conn *sql.Conn
}

// RunInTransaction executes fn within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to acquire the write lock up front,
// retrying with exponential backoff while the database is busy. On error or
// panic the transaction is rolled back and the panic re-raised; on normal
// return it is committed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is done.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&txStore{conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// beginImmediate starts an IMMEDIATE transaction, retrying on SQLITE_BUSY
// with exponential backoff up to a few seconds.
func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (t *txStore) CreateFlow(ctx context.Context, flow *types.Flow) error {
	return insertFlow(ctx, t.conn, flow)
}

func (t *txStore) CreateStage(ctx context.Context, stage *types.Stage) error {
	return insertStage(ctx, t.conn, stage)
}

func (t *txStore) GetFlowByName(ctx context.Context, name string) (*types.Flow, error) {
	return getFlow(ctx, t.conn, "SELECT id, name, stage_order, created_at FROM flows WHERE name = ?", name)
}

func (t *txStore) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	return getRecord(ctx, t.conn, id)
}

func (t *txStore) CreateRecord(ctx context.Context, record *types.Record) error {
	return insertRecord(ctx, t.conn, record)
}

func (t *txStore) UpdateRecord(ctx context.Context, id string, updates map[string]interface{}) error {
	return updateRecord(ctx, t.conn, id, updates)
}

func (t *txStore) GetChildren(ctx context.Context, parentID string) ([]*types.Record, error) {
	return getChildren(ctx, t.conn, parentID)
}

func (t *txStore) DeleteRecord(ctx context.Context, id string) error {
	return deleteRecord(ctx, t.conn, id)
}

func (t *txStore) GetStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	return getStageInstance(ctx, t.conn, recordID, stageID, flowID)
}

func (t *txStore) GetOrCreateStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	return getOrCreateStageInstance(ctx, t.conn, recordID, stageID, flowID)
}

func (t *txStore) SetStageTimes(ctx context.Context, id int64, entered, exited *time.Time) error {
	return setStageTimes(ctx, t.conn, id, entered, exited)
}

func (t *txStore) ClearFlowInstances(ctx context.Context, recordID string, flowID int64) error {
	return clearFlowInstances(ctx, t.conn, recordID, flowID)
}

func (t *txStore) AppendAction(ctx context.Context, action *types.ActionItem) error {
	return appendAction(ctx, t.conn, action)
}
