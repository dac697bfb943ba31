// Package eventstore is the thin facade spec.md §4.5 describes over a
// mapper.EventMapper and a recorder.ApplicationRecorder (required, since
// IterNotifications reads through it): Append,
// ListEvents, and IterNotifications in terms of DomainEvents rather than
// the lower-level Record/StoredRecord envelopes. It is the layer domain
// code is written against.
package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/recorder"
)

// EventStore composes a mapper and an ApplicationRecorder. Construct it
// directly; both fields are required.
type EventStore struct {
	Mapper   *mapper.EventMapper
	Recorder recorder.ApplicationRecorder
}

// New is a convenience constructor.
func New(m *mapper.EventMapper, r recorder.ApplicationRecorder) *EventStore {
	return &EventStore{Mapper: m, Recorder: r}
}

// Append maps and atomically inserts events for a single sequence,
// collapsing a SequenceConflictError to recorder.ErrOptimisticConcurrency
// per spec.md §4.5/§7 so callers can errors.Is-check for "reload and
// retry" without depending on the recorder package's conflict type.
func (s *EventStore) Append(ctx context.Context, events []mapper.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]recorder.StoredRecord, len(events))
	for i, ev := range events {
		rec, err := s.Mapper.ToRecord(ev)
		if err != nil {
			return fmt.Errorf("eventstore: append: %w", err)
		}
		records[i] = recorder.StoredRecord{
			SequenceID: rec.SequenceID,
			Position:   rec.Position,
			Topic:      rec.Topic,
			State:      rec.State,
			PipelineID: rec.PipelineID,
		}
	}

	if err := s.Recorder.Insert(ctx, records); err != nil {
		if recorder.IsSequenceConflict(err) {
			return fmt.Errorf("eventstore: append: %w", recorder.ErrOptimisticConcurrency)
		}
		return err
	}
	return nil
}

// ListEvents replays a single sequence's events in position order,
// decoding each stored record back through the mapper. opts is passed
// through to the recorder unchanged, so callers can bound the read with
// Gt/Lt/Limit/Descending exactly as spec.md §4.4 describes.
func (s *EventStore) ListEvents(ctx context.Context, sequenceID uuid.UUID, opts recorder.SelectOptions) ([]mapper.DomainEvent, error) {
	stored, err := s.Recorder.SelectBySequence(ctx, sequenceID, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll(s.Mapper, stored)
}

// IterNotifications reads a page of the global (per-pipeline) notification
// order, strictly after gt, decoding each record. A deleted (tombstoned)
// record decodes to a DomainEvent with an empty Attributes map and the
// reserved topic "_deleted_"; callers filtering event streams for domain
// processing should skip those rather than erroring.
func (s *EventStore) IterNotifications(ctx context.Context, pipelineID int, gt uint64, limit uint64) ([]mapper.DomainEvent, error) {
	stored, err := s.Recorder.SelectByNotification(ctx, pipelineID, gt, limit)
	if err != nil {
		return nil, err
	}
	return decodeAll(s.Mapper, stored)
}

func decodeAll(m *mapper.EventMapper, stored []recorder.StoredRecord) ([]mapper.DomainEvent, error) {
	events := make([]mapper.DomainEvent, len(stored))
	for i, rec := range stored {
		if rec.Topic == "_deleted_" {
			events[i] = mapper.DomainEvent{
				SequenceID: rec.SequenceID,
				Position:   rec.Position,
				Topic:      rec.Topic,
				Attributes: map[string]any{},
				Metadata:   map[string]any{},
			}
			continue
		}
		ev, err := m.ToEvent(mapper.Record{
			SequenceID: rec.SequenceID,
			Position:   rec.Position,
			Topic:      rec.Topic,
			State:      rec.State,
			PipelineID: rec.PipelineID,
		})
		if err != nil {
			var dataErr *recorder.DataIntegrityError
			if errors.As(err, &dataErr) {
				return nil, err
			}
			return nil, &recorder.DataIntegrityError{SequenceID: rec.SequenceID, Position: rec.Position, Err: err}
		}
		events[i] = ev
	}
	return events, nil
}
