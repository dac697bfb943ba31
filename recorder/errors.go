package recorder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrOptimisticConcurrency is the domain-visible error the event store
// surfaces to callers on a SequenceConflict (spec.md §4.5/§7): the caller
// should reload the aggregate and retry.
var ErrOptimisticConcurrency = errors.New("recorder: optimistic concurrency violation")

// SequenceConflictError reports that an insert collided with an existing
// (sequence_id, position) pair — I2's uniqueness constraint.
type SequenceConflictError struct {
	SequenceID uuid.UUID
	Position   uint64
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("recorder: sequence conflict at (%s, %d)", e.SequenceID, e.Position)
}

func (e *SequenceConflictError) Unwrap() error { return ErrOptimisticConcurrency }

// TrackingConflictError reports that an insert_with_tracking collided with
// an existing tracking row — the notification has already been processed.
// Per spec.md §4.7/§7, the process application swallows this silently and
// advances its cursor.
type TrackingConflictError struct {
	ApplicationName string
	UpstreamName    string
	NotificationID  uint64
	PipelineID      int
}

func (e *TrackingConflictError) Error() string {
	return fmt.Sprintf("recorder: tracking conflict for application=%q upstream=%q notification_id=%d pipeline=%d",
		e.ApplicationName, e.UpstreamName, e.NotificationID, e.PipelineID)
}

// OperationalError wraps a transient backend fault (connectivity, timeout).
// Callers should retry with bounded exponential backoff.
type OperationalError struct {
	Op  string
	Err error
}

func (e *OperationalError) Error() string {
	return fmt.Sprintf("recorder: operational error during %s: %v", e.Op, e.Err)
}

func (e *OperationalError) Unwrap() error { return e.Err }

// DataIntegrityError reports that a stored record could not be decoded or
// decrypted. Fatal for that record; never swallowed silently.
type DataIntegrityError struct {
	SequenceID uuid.UUID
	Position   uint64
	Err        error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("recorder: data integrity error at (%s, %d): %v", e.SequenceID, e.Position, e.Err)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// IsSequenceConflict reports whether err is (or wraps) a SequenceConflictError.
func IsSequenceConflict(err error) bool {
	var target *SequenceConflictError
	return errors.As(err, &target)
}

// IsTrackingConflict reports whether err is (or wraps) a TrackingConflictError.
func IsTrackingConflict(err error) bool {
	var target *TrackingConflictError
	return errors.As(err, &target)
}

// IsOperational reports whether err is (or wraps) an OperationalError.
func IsOperational(err error) bool {
	var target *OperationalError
	return errors.As(err, &target)
}
