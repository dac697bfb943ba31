package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Counters holds the instruments process applications and the event store
// report against, all created from the metric.Meter passed to NewCounters,
// so a caller only has to construct this once per binary.
type Counters struct {
	NotificationsAppended metric.Int64Counter
	TrackingConflicts     metric.Int64Counter
	Retries               metric.Int64Counter
}

// NewCounters creates the three instruments this module reports from
// meter.
func NewCounters(meter metric.Meter) (*Counters, error) {
	appended, err := meter.Int64Counter("eventcore.notifications_appended",
		metric.WithDescription("Number of notifications committed to an ApplicationRecorder"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("eventcore.tracking_conflicts_swallowed",
		metric.WithDescription("Number of TrackingConflict errors silently discarded as already-processed"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("eventcore.operational_retries",
		metric.WithDescription("Number of OperationalError retries attempted by a process application"))
	if err != nil {
		return nil, err
	}
	return &Counters{NotificationsAppended: appended, TrackingConflicts: conflicts, Retries: retries}, nil
}

// AddNotificationsAppended records n newly committed notifications.
func (c *Counters) AddNotificationsAppended(ctx context.Context, n int64) {
	if c == nil {
		return
	}
	c.NotificationsAppended.Add(ctx, n)
}

// AddTrackingConflict records one swallowed TrackingConflict.
func (c *Counters) AddTrackingConflict(ctx context.Context) {
	if c == nil {
		return
	}
	c.TrackingConflicts.Add(ctx, 1)
}

// AddRetry records one OperationalError retry attempt.
func (c *Counters) AddRetry(ctx context.Context) {
	if c == nil {
		return
	}
	c.Retries.Add(ctx, 1)
}
