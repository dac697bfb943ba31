package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/arc-self/eventcore/internal/telemetry"
)

func TestNewCountersAndNilSafety(t *testing.T) {
	meter := otel.GetMeterProvider().Meter("eventcore-test")
	counters, err := telemetry.NewCounters(meter)
	require.NoError(t, err)

	ctx := context.Background()
	counters.AddNotificationsAppended(ctx, 3)
	counters.AddTrackingConflict(ctx)
	counters.AddRetry(ctx)

	var nilCounters *telemetry.Counters
	nilCounters.AddNotificationsAppended(ctx, 1)
	nilCounters.AddTrackingConflict(ctx)
	nilCounters.AddRetry(ctx)
}
