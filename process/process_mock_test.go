package process_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/process"
	"github.com/arc-self/eventcore/process/processmock"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/recordermock"
)

func TestProcessBatchSwallowsTrackingConflictFromMockRecorder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	m := newMapper(t)

	seqID := uuid.New()
	rec, err := m.ToRecord(mapper.DomainEvent{SequenceID: seqID, Position: 0, Topic: "order.created", Attributes: map[string]any{}})
	require.NoError(t, err)

	item := notification.Item{NotificationID: 1, SequenceID: rec.SequenceID, Position: rec.Position, Topic: rec.Topic, State: rec.State}

	policy := processmock.NewMockPolicy(ctrl)
	policy.EXPECT().Handle(gomock.Any(), gomock.Any()).Return([]mapper.DomainEvent{
		{SequenceID: seqID, Position: 1, Topic: "order.created", Attributes: map[string]any{}},
	}, nil)

	mockRec := recordermock.NewMockProcessRecorder(ctrl)
	mockRec.EXPECT().InsertWithTracking(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&recorder.TrackingConflictError{ApplicationName: "confirmer", UpstreamName: "orders", NotificationID: 1, PipelineID: 0})

	app := process.NewApplication("confirmer", "orders", 0, m, policy, mockRec)
	app.Reader = func(context.Context, uint64, uint64) ([]notification.Item, error) {
		return []notification.Item{item}, nil
	}

	cursor, err := app.ProcessBatch(ctx, 0, 10)
	require.NoError(t, err, "a tracking conflict must be swallowed, not surfaced as a batch error")
	require.Equal(t, uint64(1), cursor)
}

func TestProcessBatchSurfacesPermanentPolicyErrorFromMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	m := newMapper(t)

	seqID := uuid.New()
	rec, err := m.ToRecord(mapper.DomainEvent{SequenceID: seqID, Position: 0, Topic: "order.created", Attributes: map[string]any{}})
	require.NoError(t, err)
	item := notification.Item{NotificationID: 1, SequenceID: rec.SequenceID, Position: rec.Position, Topic: rec.Topic, State: rec.State}

	policy := processmock.NewMockPolicy(ctrl)
	policy.EXPECT().Handle(gomock.Any(), gomock.Any()).Return(nil, assertError("policy exploded"))

	mockRec := recordermock.NewMockProcessRecorder(ctrl)

	app := process.NewApplication("confirmer", "orders", 0, m, policy, mockRec)
	app.Reader = func(context.Context, uint64, uint64) ([]notification.Item, error) {
		return []notification.Item{item}, nil
	}

	_, err = app.ProcessBatch(ctx, 0, 10)
	require.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
