// Package process implements spec.md §4.7's process application: a
// downstream consumer that reads an upstream ApplicationRecorder's
// notifications in order, transforms each into zero or more new events via
// a Policy, and commits the new events together with a tracking record in
// one atomic step (recorder.ProcessRecorder.InsertWithTracking) — the
// "exactly-once effective processing" guarantee from spec.md §3/§7.
//
// The split between Application.processOne (pure: no I/O beyond the
// recorder) and Application.ProcessBatch (the batch loop that retries each
// item with backoff) mirrors the
// teacher's separation of AuditConsumer.processEvent from
// AuditConsumer.processMessage/Start — the former is what gets
// unit-tested, the latter is wiring.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/internal/telemetry"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
)

// causalDepsKey is the reserved Metadata key under which WithCausalDeps
// records the upstream notification ids a Policy consulted while producing
// new events; CausalDeps reads them back. No runner in this module reads
// the key. Grounded in the teacher's trace_id/span_id
// payload-smuggling idiom (audit-service's extractTraceContext),
// generalized from trace correlation to causal-dependency correlation.
const causalDepsKey = "__causal_deps__"

// Policy transforms one upstream notification into the events a process
// application should append downstream. A Policy must be safe to call more
// than once for the same notification (it may be retried from scratch on
// a SequenceConflict); it must not perform side effects other than
// returning events to be committed by the Application.
type Policy interface {
	Handle(ctx context.Context, event mapper.DomainEvent) ([]mapper.DomainEvent, error)
}

// PolicyFunc adapts a function to a Policy.
type PolicyFunc func(ctx context.Context, event mapper.DomainEvent) ([]mapper.DomainEvent, error)

func (f PolicyFunc) Handle(ctx context.Context, event mapper.DomainEvent) ([]mapper.DomainEvent, error) {
	return f(ctx, event)
}

// Application is a named process application consuming a single upstream
// notification log and committing downstream events through a
// ProcessRecorder.
type Application struct {
	Name       string
	Upstream   string
	PipelineID int

	Mapper   *mapper.EventMapper
	Policy   Policy
	Recorder recorder.ProcessRecorder
	Reader   func(ctx context.Context, gt uint64, limit uint64) ([]notification.Item, error)

	// Backoff configures the retry schedule for OperationalErrors. Nil uses
	// backoff.NewExponentialBackOff() capped at MaxElapsed.
	Backoff    backoff.BackOff
	MaxElapsed time.Duration

	Logger  *zap.Logger
	Metrics *telemetry.Counters
	tracer  trace.Tracer
}

// NewApplication constructs an Application with sane defaults for Backoff,
// MaxElapsed and Logger. Reader defaults to reading upstream straight off
// rec's SelectByNotification; callers wanting the Redis-cached or
// prompt-driven path can replace Reader after construction.
func NewApplication(name, upstream string, pipelineID int, m *mapper.EventMapper, policy Policy, rec recorder.ProcessRecorder) *Application {
	a := &Application{
		Name:       name,
		Upstream:   upstream,
		PipelineID: pipelineID,
		Mapper:     m,
		Policy:     policy,
		Recorder:   rec,
		MaxElapsed: 30 * time.Second,
		Logger:     zap.NewNop(),
		tracer:     otel.Tracer("eventcore/process"),
	}
	a.Reader = func(ctx context.Context, gt uint64, limit uint64) ([]notification.Item, error) {
		stored, err := rec.SelectByNotification(ctx, pipelineID, gt, limit)
		if err != nil {
			return nil, err
		}
		items := make([]notification.Item, len(stored))
		for i, s := range stored {
			items[i] = notification.Item{
				NotificationID: s.NotificationID,
				SequenceID:     s.SequenceID,
				Position:       s.Position,
				Topic:          s.Topic,
				State:          s.State,
				PipelineID:     s.PipelineID,
			}
		}
		return items, nil
	}
	return a
}

// TrackingRepository reports how far an Application has progressed
// consuming its upstream, used both to resume after a restart and to infer
// causal dependencies between pipelines (if application B has processed
// notification N from A, any process reading B's output can infer it is
// causally after A's notification N).
type TrackingRepository interface {
	MaxTracking(ctx context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error)
}

var _ TrackingRepository = (recorder.ProcessRecorder)(nil)

// Cursor returns the highest upstream notification id this application has
// already processed, for resuming a Reader after a restart.
func (a *Application) Cursor(ctx context.Context) (uint64, error) {
	return a.Recorder.MaxTracking(ctx, a.Name, a.Upstream, a.PipelineID)
}

// ProcessBatch reads up to limit upstream notifications strictly after gt
// and applies each in turn, per spec.md §4.7/§7:
//   - SequenceConflict: retried from scratch (the Policy may read
//     different downstream state on retry).
//   - TrackingConflict: swallowed silently — already processed.
//   - OperationalError: retried with bounded exponential backoff.
//
// A single notification's exhausted retries stop the whole batch (as
// opposed to the teacher's ScanPoller, which logs-and-continues per job):
// process applications must preserve upstream order, so skipping ahead
// past a stuck notification would violate I5/I6.
func (a *Application) ProcessBatch(ctx context.Context, gt uint64, limit uint64) (uint64, error) {
	items, err := a.Reader(ctx, gt, limit)
	if err != nil {
		return gt, fmt.Errorf("process: %s: reading upstream: %w", a.Name, err)
	}

	cursor := gt
	for _, item := range items {
		if err := a.processOne(ctx, item); err != nil {
			return cursor, fmt.Errorf("process: %s: notification %d: %w", a.Name, item.NotificationID, err)
		}
		cursor = item.NotificationID
	}
	return cursor, nil
}

func (a *Application) processOne(ctx context.Context, item notification.Item) error {
	event, err := a.Mapper.ToEvent(mapper.Record{
		SequenceID: item.SequenceID,
		Position:   item.Position,
		Topic:      item.Topic,
		State:      item.State,
		PipelineID: item.PipelineID,
	})
	if err != nil {
		return fmt.Errorf("decoding notification: %w", err)
	}

	ctx = extractTraceContext(ctx, event.Metadata)
	ctx, span := a.tracer.Start(ctx, "process."+a.Name)
	defer span.End()

	op := func() error {
		return a.attempt(ctx, item, event)
	}

	bo := a.Backoff
	if bo == nil {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = a.MaxElapsed
		bo = eb
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// attempt runs the policy once and commits the result, returning a
// permanent (non-retried) nil on TrackingConflict and re-running the
// Policy from scratch if the commit hits a SequenceConflict (the
// surrounding backoff.Retry drives the re-attempt).
func (a *Application) attempt(ctx context.Context, item notification.Item, event mapper.DomainEvent) error {
	newEvents, err := a.Policy.Handle(ctx, event)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("policy: %w", err))
	}

	records := make([]recorder.StoredRecord, len(newEvents))
	for i, ev := range newEvents {
		rec, err := a.Mapper.ToRecord(ev)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encoding policy output: %w", err))
		}
		records[i] = recorder.StoredRecord{
			SequenceID: rec.SequenceID,
			Position:   rec.Position,
			Topic:      rec.Topic,
			State:      rec.State,
			PipelineID: rec.PipelineID,
		}
	}

	tracking := recorder.Tracking{
		ApplicationName: a.Name,
		UpstreamName:    a.Upstream,
		NotificationID:  item.NotificationID,
		PipelineID:      a.PipelineID,
	}

	err = a.Recorder.InsertWithTracking(ctx, records, tracking)
	switch {
	case err == nil:
		a.Metrics.AddNotificationsAppended(ctx, int64(len(records)))
		return nil
	case recorder.IsTrackingConflict(err):
		a.Metrics.AddTrackingConflict(ctx)
		a.Logger.Debug("process: notification already processed, skipping",
			zap.String("application", a.Name), zap.Uint64("notification_id", item.NotificationID))
		return nil
	case recorder.IsSequenceConflict(err):
		// Retried from scratch by the enclosing backoff.Retry call — the
		// Policy will re-run against fresh state on the next attempt.
		return err
	case recorder.IsOperational(err):
		a.Metrics.AddRetry(ctx)
		return err
	default:
		return backoff.Permanent(err)
	}
}

// extractTraceContext reconstructs a remote span context from an event's
// metadata trace_id/span_id fields, directly grounded in audit-service's
// AuditConsumer.extractTraceContext.
func extractTraceContext(ctx context.Context, meta map[string]any) context.Context {
	traceIDStr, _ := meta["trace_id"].(string)
	spanIDStr, _ := meta["span_id"].(string)
	if traceIDStr == "" || spanIDStr == "" {
		return ctx
	}

	traceID, err := trace.TraceIDFromHex(traceIDStr)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(spanIDStr)
	if err != nil {
		return ctx
	}

	remote := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, remote)
}

// WithCausalDeps returns a copy of meta with causalDepsKey set to deps —
// used by a Policy to record which upstream notification ids it consulted
// (beyond the one it is directly handling) while producing its output.
func WithCausalDeps(meta map[string]any, deps []uint64) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[causalDepsKey] = deps
	return out
}

// CausalDeps extracts the causal-dependency notification ids a Policy
// recorded on an event's metadata via WithCausalDeps, or nil if unset.
func CausalDeps(meta map[string]any) []uint64 {
	raw, ok := meta[causalDepsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []uint64:
		return v
	case []any:
		out := make([]uint64, 0, len(v))
		for _, x := range v {
			switch n := x.(type) {
			case int64:
				out = append(out, uint64(n))
			case float64:
				out = append(out, uint64(n))
			}
		}
		return out
	default:
		return nil
	}
}
