package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/internal/httpapi"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/notification"
	"github.com/arc-self/eventcore/recorder"
	"github.com/arc-self/eventcore/recorder/memrecorder"
	"github.com/arc-self/eventcore/transcoding"
)

func newEchoWithHandler(t *testing.T) (*echo.Echo, *memrecorder.Recorder) {
	t.Helper()
	rec := memrecorder.New()
	tc := transcoding.NewTranscoder()
	transcoding.RegisterBuiltins(tc)
	topics := mapper.NewTopicRegistry()
	topics.Register("order.created", mapper.EventTypeInfo{})
	m := &mapper.EventMapper{Transcoder: tc, Topics: topics}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ev := mapper.DomainEvent{SequenceID: uuid.New(), Position: 0, Topic: "order.created", Attributes: map[string]any{}}
		r, err := m.ToRecord(ev)
		require.NoError(t, err)
		require.NoError(t, rec.Insert(ctx, []recorder.StoredRecord{
			{SequenceID: r.SequenceID, Position: r.Position, Topic: r.Topic, State: r.State},
		}))
	}
	require.NoError(t, rec.InsertWithTracking(ctx, nil, recorder.Tracking{
		ApplicationName: "confirmer", UpstreamName: "orders", NotificationID: 1, PipelineID: 0,
	}))

	h := httpapi.New(nil)
	h.Logs["orders"] = &notification.Log{Recorder: rec, PipelineID: 0}
	h.Trackers["confirmer"] = rec

	e := echo.New()
	h.Register(e)
	return e, rec
}

func TestHealthzReturnsOK(t *testing.T) {
	e, _ := newEchoWithHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSectionReturnsNotifications(t *testing.T) {
	e, _ := newEchoWithHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/notifications/orders/section?first=1&last=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "\"First\":1")
}

func TestGetSectionUnknownApplicationIs404(t *testing.T) {
	e, _ := newEchoWithHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/notifications/nobody/section?first=1&last=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrackingReturnsCursor(t *testing.T) {
	e, _ := newEchoWithHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/tracking/confirmer/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "\"notification_id\":1")
}
