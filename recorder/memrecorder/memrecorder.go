// Package memrecorder is an in-memory recorder.ProcessRecorder used by this
// module's own tests (and usable by callers' tests) so that the rest of the
// core can be exercised without a live Postgres instance — the same
// separation the teacher applies when it keeps a consumer's pure
// processEvent logic testable independent of its NATS/DB wiring
// (audit-service's audit_test.go, global_audit_consumer_test.go).
//
// It implements the exact same contiguous-notification-id algorithm as
// recorder/postgres (a locked counter per pipeline, advanced atomically
// with the insert) so that tests written against it validate real
// behavior, not a simplified stand-in.
package memrecorder

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/arc-self/eventcore/recorder"
)

type sequenceKey struct {
	seq uuid.UUID
	pos uint64
}

type trackingKey struct {
	app, upstream string
	notifID       uint64
	pipelineID    int
}

// Recorder is a mutex-guarded in-memory ProcessRecorder. Construct it with
// New: the zero value's maps are nil, so inserting into it panics.
type Recorder struct {
	mu              sync.Mutex
	bySequence      map[sequenceKey]recorder.StoredRecord
	byPipelineNotif map[int]map[uint64]recorder.StoredRecord
	maxNotifByPipe  map[int]uint64
	tracking        map[trackingKey]struct{}
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		bySequence:      make(map[sequenceKey]recorder.StoredRecord),
		byPipelineNotif: make(map[int]map[uint64]recorder.StoredRecord),
		maxNotifByPipe:  make(map[int]uint64),
		tracking:        make(map[trackingKey]struct{}),
	}
}

var _ recorder.ProcessRecorder = (*Recorder)(nil)

// Insert implements recorder.ApplicationRecorder: it always assigns
// NotificationIDs, the same counter algorithm InsertWithTracking uses, just
// without a tracking row — so a root/pipeline-origin writer going through
// eventstore.EventStore.Append (which has no tracking record to attach)
// still gets its events into the notification log. Records are grouped by
// PipelineID (ordinarily all the same) so each group's ids stay contiguous
// within its own pipeline.
func (r *Recorder) Insert(_ context.Context, records []recorder.StoredRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(records)
}

func (r *Recorder) insertLocked(records []recorder.StoredRecord) error {
	// Validate before mutating, so a conflict leaves the store unchanged
	// (B1: "leaves the database unchanged").
	for _, rec := range records {
		key := sequenceKey{rec.SequenceID, rec.Position}
		if _, exists := r.bySequence[key]; exists {
			return &recorder.SequenceConflictError{SequenceID: rec.SequenceID, Position: rec.Position}
		}
	}

	for _, group := range groupByPipeline(records) {
		next := r.maxNotifByPipe[group.pipelineID]
		for _, rec := range group.records {
			next++
			rec.NotificationID = next
			key := sequenceKey{rec.SequenceID, rec.Position}
			r.bySequence[key] = rec
			if r.byPipelineNotif[group.pipelineID] == nil {
				r.byPipelineNotif[group.pipelineID] = make(map[uint64]recorder.StoredRecord)
			}
			r.byPipelineNotif[group.pipelineID][rec.NotificationID] = rec
		}
		r.maxNotifByPipe[group.pipelineID] = next
	}
	return nil
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

func (r *Recorder) SelectBySequence(_ context.Context, sequenceID uuid.UUID, opts recorder.SelectOptions) ([]recorder.StoredRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []recorder.StoredRecord
	for key, rec := range r.bySequence {
		if key.seq != sequenceID {
			continue
		}
		if !passesFilter(key.pos, opts) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if opts.Descending {
			return out[i].Position > out[j].Position
		}
		return out[i].Position < out[j].Position
	})
	if opts.Limit != nil && uint64(len(out)) > *opts.Limit {
		out = out[:*opts.Limit]
	}
	return out, nil
}

func passesFilter(pos uint64, opts recorder.SelectOptions) bool {
	if opts.Gt != nil && !(pos > *opts.Gt) {
		return false
	}
	if opts.Gte != nil && !(pos >= *opts.Gte) {
		return false
	}
	if opts.Lt != nil && !(pos < *opts.Lt) {
		return false
	}
	if opts.Lte != nil && !(pos <= *opts.Lte) {
		return false
	}
	return true
}

func (r *Recorder) Delete(_ context.Context, sequenceID uuid.UUID, position uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sequenceKey{sequenceID, position}
	rec, ok := r.bySequence[key]
	if !ok {
		return nil
	}
	rec.Topic = "_deleted_"
	rec.State = nil
	r.bySequence[key] = rec
	if rec.NotificationID != 0 {
		if byNotif, ok := r.byPipelineNotif[rec.PipelineID]; ok {
			byNotif[rec.NotificationID] = rec
		}
	}
	return nil
}

func (r *Recorder) SelectByNotification(_ context.Context, pipelineID int, gt uint64, limit uint64) ([]recorder.StoredRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byNotif := r.byPipelineNotif[pipelineID]
	var ids []uint64
	for id := range byNotif {
		if id > gt {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if uint64(len(ids)) > limit {
		ids = ids[:limit]
	}
	out := make([]recorder.StoredRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, byNotif[id])
	}
	return out, nil
}

func (r *Recorder) MaxNotificationID(_ context.Context, pipelineID int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxNotifByPipe[pipelineID], nil
}

func (r *Recorder) InsertWithTracking(_ context.Context, records []recorder.StoredRecord, tracking recorder.Tracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tkey := trackingKey{tracking.ApplicationName, tracking.UpstreamName, tracking.NotificationID, tracking.PipelineID}
	if _, exists := r.tracking[tkey]; exists {
		return &recorder.TrackingConflictError{
			ApplicationName: tracking.ApplicationName,
			UpstreamName:    tracking.UpstreamName,
			NotificationID:  tracking.NotificationID,
			PipelineID:      tracking.PipelineID,
		}
	}

	// Validate sequence uniqueness up front (same as Insert).
	for _, rec := range records {
		key := sequenceKey{rec.SequenceID, rec.Position}
		if _, exists := r.bySequence[key]; exists {
			return &recorder.SequenceConflictError{SequenceID: rec.SequenceID, Position: rec.Position}
		}
	}

	next := r.maxNotifByPipe[tracking.PipelineID]
	assigned := make([]recorder.StoredRecord, len(records))
	for i, rec := range records {
		next++
		rec.NotificationID = next
		rec.PipelineID = tracking.PipelineID
		assigned[i] = rec
	}

	for _, rec := range assigned {
		key := sequenceKey{rec.SequenceID, rec.Position}
		r.bySequence[key] = rec
		if r.byPipelineNotif[tracking.PipelineID] == nil {
			r.byPipelineNotif[tracking.PipelineID] = make(map[uint64]recorder.StoredRecord)
		}
		r.byPipelineNotif[tracking.PipelineID][rec.NotificationID] = rec
	}
	r.maxNotifByPipe[tracking.PipelineID] = next
	r.tracking[tkey] = struct{}{}
	return nil
}

func (r *Recorder) MaxTracking(_ context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var max uint64
	for k := range r.tracking {
		if k.app == applicationName && k.upstream == upstreamName && k.pipelineID == pipelineID {
			if k.notifID > max {
				max = k.notifID
			}
		}
	}
	return max, nil
}

