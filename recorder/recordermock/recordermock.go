// Package recordermock is a hand-written gomock-style mock of
// recorder.ProcessRecorder, in the same MockX/MockXRecorder/EXPECT() shape
// the teacher writes inline in its handler tests (e.g.
// abc-service/internal/handler/handler_test.go's MockItemService) rather
// than generating one with mockgen.
package recordermock

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"github.com/arc-self/eventcore/recorder"
)

// MockProcessRecorder is a mock of recorder.ProcessRecorder.
type MockProcessRecorder struct {
	ctrl     *gomock.Controller
	recorder *MockProcessRecorderRecorder
}

// MockProcessRecorderRecorder is the EXPECT() helper for MockProcessRecorder.
type MockProcessRecorderRecorder struct {
	mock *MockProcessRecorder
}

// NewMockProcessRecorder constructs a MockProcessRecorder.
func NewMockProcessRecorder(ctrl *gomock.Controller) *MockProcessRecorder {
	m := &MockProcessRecorder{ctrl: ctrl}
	m.recorder = &MockProcessRecorderRecorder{mock: m}
	return m
}

func (m *MockProcessRecorder) EXPECT() *MockProcessRecorderRecorder {
	return m.recorder
}

func toError(v any) error {
	if v == nil {
		return nil
	}
	return v.(error)
}

// Insert

func (m *MockProcessRecorder) Insert(ctx context.Context, records []recorder.StoredRecord) error {
	ret := m.ctrl.Call(m, "Insert", ctx, records)
	return toError(ret[0])
}
func (mr *MockProcessRecorderRecorder) Insert(ctx, records any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "Insert", ctx, records)
}

// SelectBySequence

func (m *MockProcessRecorder) SelectBySequence(ctx context.Context, sequenceID uuid.UUID, opts recorder.SelectOptions) ([]recorder.StoredRecord, error) {
	ret := m.ctrl.Call(m, "SelectBySequence", ctx, sequenceID, opts)
	ret0, _ := ret[0].([]recorder.StoredRecord)
	return ret0, toError(ret[1])
}
func (mr *MockProcessRecorderRecorder) SelectBySequence(ctx, sequenceID, opts any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "SelectBySequence", ctx, sequenceID, opts)
}

// Delete

func (m *MockProcessRecorder) Delete(ctx context.Context, sequenceID uuid.UUID, position uint64) error {
	ret := m.ctrl.Call(m, "Delete", ctx, sequenceID, position)
	return toError(ret[0])
}
func (mr *MockProcessRecorderRecorder) Delete(ctx, sequenceID, position any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "Delete", ctx, sequenceID, position)
}

// SelectByNotification

func (m *MockProcessRecorder) SelectByNotification(ctx context.Context, pipelineID int, gt uint64, limit uint64) ([]recorder.StoredRecord, error) {
	ret := m.ctrl.Call(m, "SelectByNotification", ctx, pipelineID, gt, limit)
	ret0, _ := ret[0].([]recorder.StoredRecord)
	return ret0, toError(ret[1])
}
func (mr *MockProcessRecorderRecorder) SelectByNotification(ctx, pipelineID, gt, limit any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "SelectByNotification", ctx, pipelineID, gt, limit)
}

// MaxNotificationID

func (m *MockProcessRecorder) MaxNotificationID(ctx context.Context, pipelineID int) (uint64, error) {
	ret := m.ctrl.Call(m, "MaxNotificationID", ctx, pipelineID)
	ret0, _ := ret[0].(uint64)
	return ret0, toError(ret[1])
}
func (mr *MockProcessRecorderRecorder) MaxNotificationID(ctx, pipelineID any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "MaxNotificationID", ctx, pipelineID)
}

// InsertWithTracking

func (m *MockProcessRecorder) InsertWithTracking(ctx context.Context, records []recorder.StoredRecord, tracking recorder.Tracking) error {
	ret := m.ctrl.Call(m, "InsertWithTracking", ctx, records, tracking)
	return toError(ret[0])
}
func (mr *MockProcessRecorderRecorder) InsertWithTracking(ctx, records, tracking any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "InsertWithTracking", ctx, records, tracking)
}

// MaxTracking

func (m *MockProcessRecorder) MaxTracking(ctx context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error) {
	ret := m.ctrl.Call(m, "MaxTracking", ctx, applicationName, upstreamName, pipelineID)
	ret0, _ := ret[0].(uint64)
	return ret0, toError(ret[1])
}
func (mr *MockProcessRecorderRecorder) MaxTracking(ctx, applicationName, upstreamName, pipelineID any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "MaxTracking", ctx, applicationName, upstreamName, pipelineID)
}

var _ recorder.ProcessRecorder = (*MockProcessRecorder)(nil)
