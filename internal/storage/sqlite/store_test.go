package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

func TestFlowRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	flow := mustCreateFlow(t, store, "standard", "Intake", "Review", "Award")
	if flow.ID == 0 {
		t.Fatal("expected flow id to be set")
	}
	if flow.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := store.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if got.Name != "standard" {
		t.Errorf("name = %q", got.Name)
	}
	if len(got.StageOrder) != 3 {
		t.Fatalf("stage order length = %d, want 3", len(got.StageOrder))
	}
	for i, id := range flow.StageOrder {
		if got.StageOrder[i] != id {
			t.Errorf("stage order [%d] = %d, want %d", i, got.StageOrder[i], id)
		}
	}

	byName, err := store.GetFlowByName(ctx, "standard")
	if err != nil {
		t.Fatalf("GetFlowByName: %v", err)
	}
	if byName.ID != flow.ID {
		t.Errorf("id = %d, want %d", byName.ID, flow.ID)
	}
}

func TestGetFlowNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetFlow(context.Background(), 999)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateFlowDuplicateName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustCreateFlow(t, store, "standard", "Intake")

	stage := mustCreateStage(t, store, "Other")
	err := store.CreateFlow(ctx, &types.Flow{Name: "standard", StageOrder: []int64{stage.ID}})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	if !IsUniqueConstraintError(err) {
		t.Errorf("expected unique constraint error, got %v", err)
	}
}

func TestCreateFlowValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateFlow(ctx, &types.Flow{Name: "", StageOrder: []int64{1}}); err == nil {
		t.Error("expected error for unnamed flow")
	}
	if err := store.CreateFlow(ctx, &types.Flow{Name: "empty"}); err == nil {
		t.Error("expected error for flow with no stages")
	}
	if err := store.CreateFlow(ctx, &types.Flow{Name: "dup", StageOrder: []int64{1, 1}}); err == nil {
		t.Error("expected error for duplicated stage")
	}
}

func TestStageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stage := &types.Stage{
		Name:            "Bid Opening",
		NotifiesOnEntry: true,
		PostsListing:    true,
		DefaultMessage:  "Bids are now being opened.",
	}
	if err := store.CreateStage(ctx, stage); err != nil {
		t.Fatalf("CreateStage: %v", err)
	}

	got, err := store.GetStage(ctx, stage.ID)
	if err != nil {
		t.Fatalf("GetStage: %v", err)
	}
	if !got.NotifiesOnEntry || !got.PostsListing {
		t.Error("flags did not round trip")
	}
	if got.DefaultMessage != stage.DefaultMessage {
		t.Errorf("default message = %q", got.DefaultMessage)
	}

	stages, err := store.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	if len(stages) != 1 {
		t.Errorf("len(stages) = %d, want 1", len(stages))
	}
}

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exp := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	rec := &types.Record{
		Description:    "road salt supply",
		SpecNumber:     "23-107",
		AssignedTo:     "amartin",
		IsVisible:      true,
		HasMetrics:     true,
		ExpirationDate: &exp,
	}
	if err := store.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated uuid")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Description != rec.Description || got.SpecNumber != rec.SpecNumber {
		t.Error("fields did not round trip")
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(exp) {
		t.Errorf("expiration = %v, want %v", got.ExpirationDate, exp)
	}
	if !got.HasMetrics {
		t.Error("has_metrics did not round trip")
	}
	if got.CurrentStageID != nil || got.FlowID != nil || got.ParentID != nil {
		t.Error("nullable fields should be nil")
	}
}

func TestRecordValidation(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateRecord(context.Background(), &types.Record{}); err == nil {
		t.Error("expected error for empty description")
	}
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := mustCreateRecord(t, store, "salt supply")

	err := store.UpdateRecord(ctx, rec.ID, map[string]interface{}{
		"description": "salt and sand supply",
		"is_archived": true,
		"is_visible":  false,
	})
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}

	got, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Description != "salt and sand supply" {
		t.Errorf("description = %q", got.Description)
	}
	if !got.IsArchived || got.IsVisible {
		t.Error("flags not updated")
	}
}

func TestUpdateRecordUnknownColumn(t *testing.T) {
	store := newTestStore(t)
	rec := mustCreateRecord(t, store, "salt supply")

	err := store.UpdateRecord(context.Background(), rec.ID, map[string]interface{}{
		"no_such_column": 1,
	})
	if err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestUpdateRecordNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateRecord(context.Background(), "missing", map[string]interface{}{
		"description": "x",
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecordsFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	visible := mustCreateRecord(t, store, "visible one")
	hidden := &types.Record{Description: "hidden one", IsVisible: false, AssignedTo: "bchen"}
	if err := store.CreateRecord(ctx, hidden); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	vTrue := true
	got, err := store.ListRecords(ctx, storage.RecordFilter{Visible: &vTrue})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 1 || got[0].ID != visible.ID {
		t.Errorf("visible filter returned %d records", len(got))
	}

	got, err = store.ListRecords(ctx, storage.RecordFilter{AssignedTo: "bchen"})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 1 || got[0].ID != hidden.ID {
		t.Errorf("assignee filter returned %d records", len(got))
	}

	got, err = store.ListRecords(ctx, storage.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unfiltered list returned %d records", len(got))
	}
}

func TestGetChildren(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	parent := mustCreateRecord(t, store, "parent")

	for _, desc := range []string{"child a", "child b"} {
		child := &types.Record{Description: desc, IsVisible: true, ParentID: &parent.ID}
		if err := store.CreateRecord(ctx, child); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}

	kids, err := store.GetChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(kids) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(kids))
	}
	if kids[0].Description != "child a" {
		t.Errorf("children out of order: %q first", kids[0].Description)
	}
}
