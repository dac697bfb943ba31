package system

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TrackingPruner deletes tracking rows for applicationName/pipelineID at
// or below horizon and reports how many rows were removed. Satisfied by
// recorder/postgres.Recorder.PruneTrackingBefore.
type TrackingPruner interface {
	PruneTrackingBefore(ctx context.Context, applicationName string, pipelineID int, horizon uint64) (int64, error)
}

// GCTarget names one process application's tracking rows to garbage
// collect, plus a Horizon function bounding how far pruning may go — a
// tracking row for notification N is only safe to delete once every
// downstream reader of that application's own output has itself passed N
// (otherwise a downstream reader resuming after a restart would silently
// skip notifications whose tracking row was already reclaimed).
type GCTarget struct {
	ApplicationName string
	PipelineID      int
	Pruner          TrackingPruner
	// Horizon returns the highest notification_id it is currently safe to
	// prune up to and including, typically the minimum MaxTracking across
	// every downstream consumer of ApplicationName.
	Horizon func(ctx context.Context) (uint64, error)
}

// Maintainer runs periodic upkeep — tracking-record GC and
// cache-invalidation nudges — on a robfig/cron schedule, generalized from
// the teacher's notification-service CronScheduler (which runs its own
// periodic publishes on the same library with the same start/stop
// lifecycle).
type Maintainer struct {
	cron    *cron.Cron
	targets []GCTarget
	nudges  []func(ctx context.Context) error
	logger  *zap.Logger
}

// NewMaintainer constructs a Maintainer; call AddGCTarget/AddCacheNudge to
// register work, then Start.
func NewMaintainer(logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintainer{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddGCTarget registers a tracking-GC job to run on spec (a standard
// five-field cron expression, e.g. "@hourly" or "0 */6 * * *").
func (m *Maintainer) AddGCTarget(spec string, target GCTarget) error {
	_, err := m.cron.AddFunc(spec, func() {
		ctx := context.Background()
		horizon, err := target.Horizon(ctx)
		if err != nil {
			m.logger.Error("maintainer: resolving gc horizon failed",
				zap.String("application", target.ApplicationName), zap.Error(err))
			return
		}
		n, err := target.Pruner.PruneTrackingBefore(ctx, target.ApplicationName, target.PipelineID, horizon)
		if err != nil {
			m.logger.Error("maintainer: tracking prune failed",
				zap.String("application", target.ApplicationName), zap.Error(err))
			return
		}
		m.logger.Info("maintainer: tracking pruned",
			zap.String("application", target.ApplicationName),
			zap.Int("pipeline_id", target.PipelineID),
			zap.Uint64("horizon", horizon),
			zap.Int64("rows_deleted", n))
	})
	if err != nil {
		return err
	}
	m.targets = append(m.targets, target)
	return nil
}

// AddCacheNudge registers a function to run on spec, intended for
// notification-log cache-invalidation sweeps (e.g. notification/
// rediscache pre-warming for a section that just became immutable).
func (m *Maintainer) AddCacheNudge(spec string, nudge func(ctx context.Context) error) error {
	_, err := m.cron.AddFunc(spec, func() {
		if err := nudge(context.Background()); err != nil {
			m.logger.Error("maintainer: cache nudge failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	m.nudges = append(m.nudges, nudge)
	return nil
}

// Start begins running registered jobs in the background.
func (m *Maintainer) Start() {
	m.cron.Start()
	m.logger.Info("maintainer: started", zap.Int("jobs", len(m.cron.Entries())))
}

// Stop waits for any in-flight job to finish and stops the scheduler.
func (m *Maintainer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("maintainer: stopped")
}
