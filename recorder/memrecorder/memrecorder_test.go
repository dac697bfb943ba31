package memrecorder_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/memrecorder"
)

func newRecord(seq uuid.UUID, pos uint64) recorder.StoredRecord {
	return recorder.StoredRecord{SequenceID: seq, Position: pos, Topic: "t", State: []byte("{}")}
}

func TestInsertRejectsDuplicateSequencePosition(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()
	seq := uuid.New()

	require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{newRecord(seq, 0)}))
	err := r.Insert(ctx, []recorder.StoredRecord{newRecord(seq, 0)})
	require.True(t, recorder.IsSequenceConflict(err))
}

func TestInsertLeavesStoreUnchangedOnConflict(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()
	seq := uuid.New()
	require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{newRecord(seq, 0)}))

	err := r.Insert(ctx, []recorder.StoredRecord{newRecord(seq, 1), newRecord(seq, 0)})
	require.True(t, recorder.IsSequenceConflict(err))

	got, err := r.SelectBySequence(ctx, seq, recorder.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1, "position 1 must not have been committed alongside the conflicting position 0")
}

func TestSelectBySequenceOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()
	seq := uuid.New()
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{newRecord(seq, i)}))
	}

	gt := uint64(1)
	got, err := r.SelectBySequence(ctx, seq, recorder.SelectOptions{Gt: &gt})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		require.Equal(t, uint64(2+i), rec.Position)
	}

	desc, err := r.SelectBySequence(ctx, seq, recorder.SelectOptions{Descending: true})
	require.NoError(t, err)
	require.Equal(t, uint64(4), desc[0].Position)
	require.Equal(t, uint64(0), desc[len(desc)-1].Position)
}

func TestInsertWithTrackingAssignsContiguousNotificationIDs(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()

	for i := 0; i < 3; i++ {
		seq := uuid.New()
		tr := recorder.Tracking{ApplicationName: "app", UpstreamName: "up", NotificationID: uint64(i + 1)}
		err := r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(seq, 0)}, tr)
		require.NoError(t, err)
	}

	max, err := r.MaxNotificationID(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), max)

	recs, err := r.SelectByNotification(ctx, 0, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, uint64(1), recs[0].NotificationID)
	require.Equal(t, uint64(2), recs[1].NotificationID)
	require.Equal(t, uint64(3), recs[2].NotificationID)
}

func TestInsertWithTrackingConflictIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()
	tr := recorder.Tracking{ApplicationName: "app", UpstreamName: "up", NotificationID: 1}

	require.NoError(t, r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(uuid.New(), 0)}, tr))

	err := r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(uuid.New(), 0)}, tr)
	require.True(t, recorder.IsTrackingConflict(err))

	max, err := r.MaxNotificationID(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), max, "a rejected duplicate tracking record must not advance the counter")
}

func TestMaxTrackingReflectsHighestCommitted(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()

	for i := uint64(1); i <= 5; i++ {
		tr := recorder.Tracking{ApplicationName: "app", UpstreamName: "up", NotificationID: i}
		require.NoError(t, r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(uuid.New(), 0)}, tr))
	}

	max, err := r.MaxTracking(ctx, "app", "up", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(5), max)

	maxOther, err := r.MaxTracking(ctx, "other-app", "up", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), maxOther)
}

func TestDeleteTombstonesButPreservesNotificationID(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()
	seq := uuid.New()
	tr := recorder.Tracking{ApplicationName: "app", UpstreamName: "up", NotificationID: 1}
	require.NoError(t, r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(seq, 0)}, tr))

	require.NoError(t, r.Delete(ctx, seq, 0))

	got, err := r.SelectBySequence(ctx, seq, recorder.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "_deleted_", got[0].Topic)
	require.Nil(t, got[0].State)

	recs, err := r.SelectByNotification(ctx, 0, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1, "tombstoning must not remove the notification id slot")
	require.Equal(t, uint64(1), recs[0].NotificationID)
}

// TestConcurrentAppendersProduceGaplessNotificationIDs simulates spec.md's
// concurrency scenario 5: many goroutines each committing single-record
// batches via InsertWithTracking must together produce exactly the
// contiguous set {1..n}, with no gaps and no duplicates, despite racing for
// the same pipeline's counter.
func TestConcurrentAppendersProduceGaplessNotificationIDs(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()

	const appenders = 10
	const perAppender = 100
	const total = appenders * perAppender

	var wg sync.WaitGroup
	wg.Add(appenders)
	for a := 0; a < appenders; a++ {
		go func(a int) {
			defer wg.Done()
			for i := 0; i < perAppender; i++ {
				seq := uuid.New()
				tr := recorder.Tracking{
					ApplicationName: "app",
					UpstreamName:    "up",
					NotificationID:  uint64(a*perAppender + i + 1),
				}
				if err := r.InsertWithTracking(ctx, []recorder.StoredRecord{newRecord(seq, 0)}, tr); err != nil {
					panic(err)
				}
			}
		}(a)
	}
	wg.Wait()

	recs, err := r.SelectByNotification(ctx, 0, 0, total+1)
	require.NoError(t, err)
	require.Len(t, recs, total)

	ids := make([]uint64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.NotificationID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		require.Equal(t, uint64(i+1), id, "notification ids must form the contiguous set {1..n} with no gaps or duplicates")
	}

	max, err := r.MaxNotificationID(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(total), max)
}

func TestPipelinesHaveIndependentCounters(t *testing.T) {
	ctx := context.Background()
	r := memrecorder.New()

	rec0a := newRecord(uuid.New(), 0)
	rec0a.PipelineID = 0
	rec1 := newRecord(uuid.New(), 0)
	rec1.PipelineID = 1
	rec0b := newRecord(uuid.New(), 0)
	rec0b.PipelineID = 0

	require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{rec0a}))
	require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{rec1}))
	require.NoError(t, r.Insert(ctx, []recorder.StoredRecord{rec0b}))

	max0, err := r.MaxNotificationID(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), max0)

	max1, err := r.MaxNotificationID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), max1)
}
