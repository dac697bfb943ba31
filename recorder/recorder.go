// Package recorder defines the database-facing contract event stores and
// process applications are built on: the three layered recorder flavors
// from spec.md §4.4 (aggregate, application, process), their shared
// envelope types, and the error classification every implementation must
// honor. recorder/postgres provides the reference Postgres implementation;
// other backends only need to satisfy these interfaces.
package recorder

import (
	"context"

	"github.com/google/uuid"
)

// StoredRecord is an event record as the recorder layer sees it: the
// mapper's Record plus the NotificationID the recorder assigns at insert
// time (zero/unset on records not yet committed through an application or
// process recorder).
type StoredRecord struct {
	SequenceID     uuid.UUID
	Position       uint64
	Topic          string
	State          []byte
	NotificationID uint64
	PipelineID     int
}

// SelectOptions filters and bounds a per-sequence read. Zero value means
// "no filter on this field." Gt/Gte/Lt/Lte are positions (spec.md §4.4);
// at most one of Gt/Gte and one of Lt/Lte should be set. The zero value of
// Descending (false) reads in ascending position order, the normal case
// for replaying an aggregate's history.
type SelectOptions struct {
	Gt, Gte, Lt, Lte *uint64
	Limit            *uint64
	Descending       bool
}

// Tracking is the three-tuple a process recorder commits atomically with
// the new event records its policy produced.
type Tracking struct {
	ApplicationName string
	UpstreamName    string
	NotificationID  uint64
	PipelineID      int
}

// AggregateRecorder is the minimum contract: atomic multi-record insert
// with optimistic concurrency on (sequence_id, position), and ordered
// per-sequence reads.
type AggregateRecorder interface {
	// Insert atomically appends records, none of which yet carry a
	// NotificationID (the recorder assigns it, if it implements
	// ApplicationRecorder). Fails with a SequenceConflict error if any
	// (sequence_id, position) pair already exists.
	Insert(ctx context.Context, records []StoredRecord) error

	// SelectBySequence returns the records for sequenceID matching opts,
	// ordered by position (ascending unless opts.Descending is true).
	SelectBySequence(ctx context.Context, sequenceID uuid.UUID, opts SelectOptions) ([]StoredRecord, error)

	// Delete removes a single stored record (PII erasure). Per spec.md's
	// resolved open question, deleting an event record never removes or
	// renumbers its notification id; the recorder instead rewrites the
	// notification row as a tombstone (see recorder/postgres).
	Delete(ctx context.Context, sequenceID uuid.UUID, position uint64) error
}

// ApplicationRecorder extends AggregateRecorder: insertion additionally
// assigns each record a globally unique, contiguous NotificationID
// (spec.md §4.4's "the critical algorithm"), and records can be read back
// in that global order.
type ApplicationRecorder interface {
	AggregateRecorder

	// SelectByNotification reads across all sequences in NotificationID
	// order, strictly greater than gt (0 to read from the start), up to
	// limit records, restricted to pipelineID.
	SelectByNotification(ctx context.Context, pipelineID int, gt uint64, limit uint64) ([]StoredRecord, error)

	// MaxNotificationID returns the highest NotificationID committed for
	// pipelineID, or 0 if none.
	MaxNotificationID(ctx context.Context, pipelineID int) (uint64, error)
}

// ProcessRecorder extends ApplicationRecorder with the atomic
// tracking-record-plus-event-records commit that makes process application
// processing exactly-once.
type ProcessRecorder interface {
	ApplicationRecorder

	// InsertWithTracking atomically commits both tracking and records (with
	// freshly assigned NotificationIDs) in one transaction. Fails with a
	// TrackingConflict error if tracking's (application_name, upstream_name,
	// notification_id, pipeline_id) key already exists — in which case the
	// notification has already been processed and records must be
	// discarded, not retried.
	InsertWithTracking(ctx context.Context, records []StoredRecord, tracking Tracking) error

	// MaxTracking returns the highest upstream NotificationID already
	// processed by applicationName consuming upstreamName/pipelineID, or 0
	// if none.
	MaxTracking(ctx context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error)
}
