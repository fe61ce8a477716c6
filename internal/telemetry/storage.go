package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

const storageScopeName = "github.com/cityops/conductor/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in conductor.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged
// when telemetry is disabled.
type InstrumentedStorage struct {
	inner  storage.Storage
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("conductor.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("conductor.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("conductor.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	return &InstrumentedStorage{
		inner:  s,
		tracer: Tracer(storageScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStorage) CreateFlow(ctx context.Context, flow *types.Flow) error {
	attrs := []attribute.KeyValue{attribute.String("conductor.flow.name", flow.Name)}
	ctx, span, t := s.op(ctx, "CreateFlow", attrs...)
	err := s.inner.CreateFlow(ctx, flow)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetFlow(ctx context.Context, id int64) (*types.Flow, error) {
	attrs := []attribute.KeyValue{attribute.Int64("conductor.flow.id", id)}
	ctx, span, t := s.op(ctx, "GetFlow", attrs...)
	v, err := s.inner.GetFlow(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetFlowByName(ctx context.Context, name string) (*types.Flow, error) {
	attrs := []attribute.KeyValue{attribute.String("conductor.flow.name", name)}
	ctx, span, t := s.op(ctx, "GetFlowByName", attrs...)
	v, err := s.inner.GetFlowByName(ctx, name)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListFlows(ctx context.Context) ([]*types.Flow, error) {
	ctx, span, t := s.op(ctx, "ListFlows")
	v, err := s.inner.ListFlows(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) CreateStage(ctx context.Context, stage *types.Stage) error {
	attrs := []attribute.KeyValue{attribute.String("conductor.stage.name", stage.Name)}
	ctx, span, t := s.op(ctx, "CreateStage", attrs...)
	err := s.inner.CreateStage(ctx, stage)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) GetStage(ctx context.Context, id int64) (*types.Stage, error) {
	attrs := []attribute.KeyValue{attribute.Int64("conductor.stage.id", id)}
	ctx, span, t := s.op(ctx, "GetStage", attrs...)
	v, err := s.inner.GetStage(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListStages(ctx context.Context) ([]*types.Stage, error) {
	ctx, span, t := s.op(ctx, "ListStages")
	v, err := s.inner.ListStages(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) CreateRecord(ctx context.Context, record *types.Record) error {
	ctx, span, t := s.op(ctx, "CreateRecord")
	err := s.inner.CreateRecord(ctx, record)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	attrs := []attribute.KeyValue{attribute.String("conductor.record.id", id)}
	ctx, span, t := s.op(ctx, "GetRecord", attrs...)
	v, err := s.inner.GetRecord(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) UpdateRecord(ctx context.Context, id string, updates map[string]interface{}) error {
	attrs := []attribute.KeyValue{
		attribute.String("conductor.record.id", id),
		attribute.Int("conductor.update.fields", len(updates)),
	}
	ctx, span, t := s.op(ctx, "UpdateRecord", attrs...)
	err := s.inner.UpdateRecord(ctx, id, updates)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) ListRecords(ctx context.Context, filter storage.RecordFilter) ([]*types.Record, error) {
	ctx, span, t := s.op(ctx, "ListRecords")
	v, err := s.inner.ListRecords(ctx, filter)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) GetChildren(ctx context.Context, parentID string) ([]*types.Record, error) {
	attrs := []attribute.KeyValue{attribute.String("conductor.record.id", parentID)}
	ctx, span, t := s.op(ctx, "GetChildren", attrs...)
	v, err := s.inner.GetChildren(ctx, parentID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetStageInstance(ctx context.Context, recordID string, stageID, flowID int64) (*types.StageInstance, error) {
	attrs := []attribute.KeyValue{
		attribute.String("conductor.record.id", recordID),
		attribute.Int64("conductor.stage.id", stageID),
	}
	ctx, span, t := s.op(ctx, "GetStageInstance", attrs...)
	v, err := s.inner.GetStageInstance(ctx, recordID, stageID, flowID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetStageInstanceByID(ctx context.Context, id int64) (*types.StageInstance, error) {
	ctx, span, t := s.op(ctx, "GetStageInstanceByID")
	v, err := s.inner.GetStageInstanceByID(ctx, id)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) ListStageInstances(ctx context.Context, recordID string, flowID int64) ([]*types.StageInstance, error) {
	attrs := []attribute.KeyValue{attribute.String("conductor.record.id", recordID)}
	ctx, span, t := s.op(ctx, "ListStageInstances", attrs...)
	v, err := s.inner.ListStageInstances(ctx, recordID, flowID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListActions(ctx context.Context, recordID string) ([]*types.ActionItem, error) {
	attrs := []attribute.KeyValue{attribute.String("conductor.record.id", recordID)}
	ctx, span, t := s.op(ctx, "ListActions", attrs...)
	v, err := s.inner.ListActions(ctx, recordID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListStageActions(ctx context.Context, stageInstanceID int64) ([]*types.ActionItem, error) {
	ctx, span, t := s.op(ctx, "ListStageActions")
	v, err := s.inner.ListStageActions(ctx, stageInstanceID)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) DeleteNote(ctx context.Context, actionID int64) error {
	ctx, span, t := s.op(ctx, "DeleteNote")
	err := s.inner.DeleteNote(ctx, actionID)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, fn)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
