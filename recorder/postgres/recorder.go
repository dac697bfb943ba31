// Package postgres implements recorder.ProcessRecorder on Postgres,
// solving spec.md §4.4's "critical algorithm" — contiguous notification
// ids — via a durable counter row (notification_counter) locked by an
// INSERT ... ON CONFLICT DO UPDATE upsert inside the same transaction as
// the row insert and
// advanced by exactly the number of rows being inserted. This is the
// teacher's transactional-outbox shape (trm-service's CreateVendor/
// CreateDPA: pool.Begin -> write domain row(s) + outbox row -> tx.Commit)
// generalized from "1 domain row + 1 outbox row" to "N event rows + 1
// advanced counter + an optional tracking row."
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arc-self/eventcore/recorder"
)

// uniqueViolation is Postgres's SQLSTATE for a unique-constraint violation.
const uniqueViolation = "23505"

// Recorder implements recorder.ProcessRecorder on a pgxpool.Pool.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder wraps an already-open, already-migrated pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)

// Insert implements recorder.ApplicationRecorder (and, by embedding,
// AggregateRecorder): Recorder always assigns NotificationIDs on insert,
// since every Recorder is also an ApplicationRecorder — there is no
// Aggregate-only variant of this backend. It runs the same
// insertRecordsWithNotification counter algorithm InsertWithTracking uses,
// just without a tracking row, so a root/pipeline-origin writer going
// through eventstore.EventStore.Append (which has no tracking record to
// attach) still gets its events into the notification log, per spec.md
// §4.5's worked scenario. Records are grouped by PipelineID (ordinarily
// all the same, one sequence per pipeline) so each group's ids stay
// contiguous within its own pipeline.
func (r *Recorder) Insert(ctx context.Context, records []recorder.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return operationalErr("begin", err)
	}
	defer tx.Rollback(ctx)

	for _, group := range groupByPipeline(records) {
		if err := insertRecordsWithNotification(ctx, tx, group.pipelineID, group.records); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return operationalErr("commit", err)
	}
	return nil
}

// SelectBySequence implements recorder.AggregateRecorder.
func (r *Recorder) SelectBySequence(ctx context.Context, sequenceID uuid.UUID, opts recorder.SelectOptions) ([]recorder.StoredRecord, error) {
	query, args := buildSelectBySequenceQuery(sequenceID, opts)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, operationalErr("select_by_sequence", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete implements recorder.AggregateRecorder. Per the resolved open
// question in SPEC_FULL.md §9, it rewrites the row as a tombstone rather
// than deleting it outright, preserving I3 contiguity of notification ids.
func (r *Recorder) Delete(ctx context.Context, sequenceID uuid.UUID, position uint64) error {
	const q = `UPDATE event_records SET state = '\x', topic = '_deleted_' WHERE sequence_id = $1 AND position = $2`
	if _, err := r.pool.Exec(ctx, q, sequenceID, position); err != nil {
		return operationalErr("delete", err)
	}
	return nil
}

// SelectByNotification implements recorder.ApplicationRecorder.
func (r *Recorder) SelectByNotification(ctx context.Context, pipelineID int, gt uint64, limit uint64) ([]recorder.StoredRecord, error) {
	const q = `
SELECT sequence_id, position, topic, state, notification_id, pipeline_id
FROM event_records
WHERE pipeline_id = $1 AND notification_id > $2
ORDER BY notification_id ASC
LIMIT $3`
	rows, err := r.pool.Query(ctx, q, pipelineID, gt, limit)
	if err != nil {
		return nil, operationalErr("select_by_notification", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// MaxNotificationID implements recorder.ApplicationRecorder.
func (r *Recorder) MaxNotificationID(ctx context.Context, pipelineID int) (uint64, error) {
	const q = `SELECT max_notification_id FROM notification_counter WHERE pipeline_id = $1`
	var max uint64
	err := r.pool.QueryRow(ctx, q, pipelineID).Scan(&max)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, operationalErr("max_notification_id", err)
	}
	return max, nil
}

// InsertWithTracking implements recorder.ProcessRecorder.
func (r *Recorder) InsertWithTracking(ctx context.Context, records []recorder.StoredRecord, tracking recorder.Tracking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return operationalErr("begin", err)
	}
	defer tx.Rollback(ctx)

	insertTracking := `
INSERT INTO tracking_records (application_name, upstream_name, notification_id, pipeline_id)
VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertTracking,
		tracking.ApplicationName, tracking.UpstreamName, tracking.NotificationID, tracking.PipelineID,
	); err != nil {
		if isUniqueViolation(err) {
			return &recorder.TrackingConflictError{
				ApplicationName: tracking.ApplicationName,
				UpstreamName:    tracking.UpstreamName,
				NotificationID:  tracking.NotificationID,
				PipelineID:      tracking.PipelineID,
			}
		}
		return operationalErr("insert_tracking", err)
	}

	if err := insertRecordsWithNotification(ctx, tx, tracking.PipelineID, records); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return operationalErr("commit", err)
	}
	return nil
}

// MaxTracking implements recorder.ProcessRecorder.
func (r *Recorder) MaxTracking(ctx context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error) {
	const q = `
SELECT COALESCE(MAX(notification_id), 0)
FROM tracking_records
WHERE application_name = $1 AND upstream_name = $2 AND pipeline_id = $3`
	var max uint64
	if err := r.pool.QueryRow(ctx, q, applicationName, upstreamName, pipelineID).Scan(&max); err != nil {
		return 0, operationalErr("max_tracking", err)
	}
	return max, nil
}

// PruneTrackingBefore deletes tracking rows for applicationName/pipelineID
// with notification_id <= horizon. Used by a maintenance scheduler to keep
// tracking_records from growing without bound once every downstream
// consumer has passed a given point — it is never safe to call with a
// horizon higher than every consumer's actual progress, so callers must
// derive horizon from MaxTracking across the full consumer set, not guess
// it.
func (r *Recorder) PruneTrackingBefore(ctx context.Context, applicationName string, pipelineID int, horizon uint64) (int64, error) {
	const q = `
DELETE FROM tracking_records
WHERE application_name = $1 AND pipeline_id = $2 AND notification_id <= $3`
	tag, err := r.pool.Exec(ctx, q, applicationName, pipelineID, horizon)
	if err != nil {
		return 0, operationalErr("prune_tracking", err)
	}
	return tag.RowsAffected(), nil
}

// ── shared transactional helpers ─────────────────────────────────────────

// dbtx is the subset of pgx.Tx the insert helpers need, so they can be
// exercised with any transaction handle.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pipelineGroup is a contiguous run of records sharing one PipelineID.
type pipelineGroup struct {
	pipelineID int
	records    []recorder.StoredRecord
}

// groupByPipeline splits records into pipelineGroups, preserving each
// record's relative order within its group.
func groupByPipeline(records []recorder.StoredRecord) []pipelineGroup {
	var groups []pipelineGroup
	for _, rec := range records {
		if n := len(groups); n > 0 && groups[n-1].pipelineID == rec.PipelineID {
			groups[n-1].records = append(groups[n-1].records, rec)
			continue
		}
		groups = append(groups, pipelineGroup{pipelineID: rec.PipelineID, records: []recorder.StoredRecord{rec}})
	}
	return groups
}

// insertRecordsWithNotification is the critical-path helper implementing
// spec.md §4.4's contiguous-id algorithm: lock the counter row for
// pipelineID, read its current max, assign max+1..max+len(records) to the
// new rows in order, write the rows, then advance the counter by
// len(records) — all inside the caller's transaction.
func insertRecordsWithNotification(ctx context.Context, tx dbtx, pipelineID int, records []recorder.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	const lockCounter = `
INSERT INTO notification_counter (pipeline_id, max_notification_id)
VALUES ($1, 0)
ON CONFLICT (pipeline_id) DO UPDATE SET pipeline_id = EXCLUDED.pipeline_id
RETURNING max_notification_id`
	// The ON CONFLICT DO UPDATE is a no-op write that still takes the row
	// lock pgx needs for a subsequent UPDATE in the same statement's
	// implicit SELECT ... FOR UPDATE semantics would otherwise require a
	// separate round trip; RETURNING gives us the pre-advance value in one
	// statement, avoiding a second query.
	var current uint64
	if err := tx.QueryRow(ctx, lockCounter, pipelineID).Scan(&current); err != nil {
		return operationalErr("lock_notification_counter", err)
	}

	const insertEvent = `
INSERT INTO event_records (sequence_id, position, topic, state, notification_id, pipeline_id)
VALUES ($1, $2, $3, $4, $5, $6)`
	next := current
	for _, rec := range records {
		next++
		if _, err := tx.Exec(ctx, insertEvent, rec.SequenceID, rec.Position, rec.Topic, rec.State, next, pipelineID); err != nil {
			if isUniqueViolation(err) {
				return &recorder.SequenceConflictError{SequenceID: rec.SequenceID, Position: rec.Position}
			}
			return operationalErr("insert", err)
		}
	}

	const advanceCounter = `UPDATE notification_counter SET max_notification_id = $2 WHERE pipeline_id = $1`
	if _, err := tx.Exec(ctx, advanceCounter, pipelineID, next); err != nil {
		return operationalErr("advance_notification_counter", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func operationalErr(op string, err error) error {
	return &recorder.OperationalError{Op: op, Err: err}
}

// rowsScanner is the subset of pgx.Rows scanRecords needs.
type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowsScanner) ([]recorder.StoredRecord, error) {
	var out []recorder.StoredRecord
	for rows.Next() {
		var rec recorder.StoredRecord
		var notifID *uint64
		if err := rows.Scan(&rec.SequenceID, &rec.Position, &rec.Topic, &rec.State, &notifID, &rec.PipelineID); err != nil {
			return nil, operationalErr("scan", err)
		}
		if notifID != nil {
			rec.NotificationID = *notifID
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, operationalErr("rows", err)
	}
	return out, nil
}

func buildSelectBySequenceQuery(sequenceID uuid.UUID, opts recorder.SelectOptions) (string, []any) {
	q := `SELECT sequence_id, position, topic, state, notification_id, pipeline_id FROM event_records WHERE sequence_id = $1`
	args := []any{sequenceID}

	addFilter := func(op string, v *uint64) {
		if v == nil {
			return
		}
		args = append(args, *v)
		q += fmt.Sprintf(" AND position %s $%d", op, len(args))
	}
	addFilter(">", opts.Gt)
	addFilter(">=", opts.Gte)
	addFilter("<", opts.Lt)
	addFilter("<=", opts.Lte)

	if opts.Descending {
		q += " ORDER BY position DESC"
	} else {
		q += " ORDER BY position ASC"
	}
	if opts.Limit != nil {
		args = append(args, *opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args
}
