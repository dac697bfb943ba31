package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/memrecorder"
)

func seedRecords(t *testing.T, rec *memrecorder.Recorder, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := rec.Insert(ctx, []recorder.StoredRecord{
			{SequenceID: uuid.New(), Position: 0, Topic: "t", State: []byte("{}")},
		})
		require.NoError(t, err)
	}
}

func TestSectionReturnsExactRangeAndHeadDetection(t *testing.T) {
	ctx := context.Background()
	rec := memrecorder.New()
	seedRecords(t, rec, 10)

	log := &notification.Log{Recorder: rec, PipelineID: 0}

	archived, err := log.Section(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, archived.Items, 5)
	require.NotNil(t, archived.NextSectionID)
	require.Equal(t, uint64(6), *archived.NextSectionID)

	head, err := log.Section(ctx, 6, 10)
	require.NoError(t, err)
	require.Len(t, head.Items, 5)
	require.Nil(t, head.NextSectionID, "the section containing the current max notification id is the head and must not advertise a next section")
}

func TestSectionEmptyRangeReturnsEmptyItems(t *testing.T) {
	ctx := context.Background()
	rec := memrecorder.New()
	log := &notification.Log{Recorder: rec, PipelineID: 0}

	sec, err := log.Section(ctx, 1, 10)
	require.NoError(t, err)
	require.Empty(t, sec.Items)
	require.Nil(t, sec.NextSectionID)
}

func TestReaderConsumesInOrderAndIsResumable(t *testing.T) {
	ctx := context.Background()
	rec := memrecorder.New()
	seedRecords(t, rec, 3)

	log := &notification.Log{Recorder: rec, PipelineID: 0}
	reader := notification.NewReader(log)
	reader.PromptTimeout = 10 * time.Millisecond

	var seen []uint64
	for i := 0; i < 3; i++ {
		timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		item, err := reader.Next(timeoutCtx)
		cancel()
		require.NoError(t, err)
		seen = append(seen, item.NotificationID)
	}
	require.Equal(t, []uint64{1, 2, 3}, seen)

	// A fresh reader seeked to the same position reproduces the remainder
	// of the sequence exactly.
	resumed := notification.NewReader(log)
	resumed.Seek(1)
	resumed.PromptTimeout = 10 * time.Millisecond
	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	item, err := resumed.Next(timeoutCtx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), item.NotificationID)
}

func TestReaderNextBlocksThenReturnsContextErrorWhenExhausted(t *testing.T) {
	rec := memrecorder.New()
	log := &notification.Log{Recorder: rec, PipelineID: 0}
	reader := notification.NewReader(log)
	reader.PromptTimeout = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := reader.Next(ctx)
	require.Error(t, err)
}

func TestReaderWakeSignalShortCircuitsPolling(t *testing.T) {
	ctx := context.Background()
	rec := memrecorder.New()
	log := &notification.Log{Recorder: rec, PipelineID: 0}

	wake := make(chan struct{}, 1)
	reader := notification.NewReader(log)
	reader.Wake = wake
	reader.PromptTimeout = time.Second

	done := make(chan struct{})
	go func() {
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_, _ = reader.Next(timeoutCtx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, rec.Insert(ctx, []recorder.StoredRecord{
		{SequenceID: uuid.New(), Position: 0, Topic: "t", State: []byte("{}")},
	}))
	wake <- struct{}{}

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("reader did not wake promptly on signal")
	}
}
