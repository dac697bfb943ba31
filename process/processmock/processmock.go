// Package processmock is a hand-written gomock-style mock of process.Policy,
// in the same MockX/MockXRecorder/EXPECT() shape the teacher writes inline
// in its handler tests rather than generating one with mockgen.
package processmock

import (
	"context"

	"go.uber.org/mock/gomock"

	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/process"
)

// MockPolicy is a mock of process.Policy.
type MockPolicy struct {
	ctrl     *gomock.Controller
	recorder *MockPolicyRecorder
}

// MockPolicyRecorder is the EXPECT() helper for MockPolicy.
type MockPolicyRecorder struct {
	mock *MockPolicy
}

// NewMockPolicy constructs a MockPolicy.
func NewMockPolicy(ctrl *gomock.Controller) *MockPolicy {
	m := &MockPolicy{ctrl: ctrl}
	m.recorder = &MockPolicyRecorder{mock: m}
	return m
}

func (m *MockPolicy) EXPECT() *MockPolicyRecorder {
	return m.recorder
}

func toError(v any) error {
	if v == nil {
		return nil
	}
	return v.(error)
}

// Handle

func (m *MockPolicy) Handle(ctx context.Context, event mapper.DomainEvent) ([]mapper.DomainEvent, error) {
	ret := m.ctrl.Call(m, "Handle", ctx, event)
	ret0, _ := ret[0].([]mapper.DomainEvent)
	return ret0, toError(ret[1])
}
func (mr *MockPolicyRecorder) Handle(ctx, event any) *gomock.Call {
	return mr.mock.ctrl.RecordCall(mr.mock, "Handle", ctx, event)
}

var _ process.Policy = (*MockPolicy)(nil)
