package system

import (
	"context"
	"fmt"
	"time"
)

// SingleThreadedRunner drives every process class for one pipeline_id
// synchronously in a single goroutine — the simplest runner variant from
// spec.md §4.8, suitable for tests and small deployments.
type SingleThreadedRunner struct {
	System     *System
	PipelineID int
	BatchSize  uint64
}

// NewSingleThreadedRunner constructs a runner with DefaultBatchSize.
func NewSingleThreadedRunner(sys *System, pipelineID int) *SingleThreadedRunner {
	return &SingleThreadedRunner{System: sys, PipelineID: pipelineID, BatchSize: DefaultBatchSize}
}

// Step processes one batch on every class once, in graph class order, and
// reports whether any class made progress (advanced its cursor). Because
// classes run in order, a downstream class that comes after its upstream
// in Graph.Classes already reads what that upstream committed earlier in
// the same Step; one that comes before it (e.g. across a cycle's back
// edge) catches up on the next Step, so cyclic graphs never need
// special-casing here. Step builds fresh Application instances through
// the System on every call.
func (r *SingleThreadedRunner) Step(ctx context.Context) (bool, error) {
	names, apps, err := r.System.instances(r.PipelineID)
	if err != nil {
		return false, err
	}

	progressed := false
	for _, name := range names {
		app := apps[name]
		start, err := app.Cursor(ctx)
		if err != nil {
			return progressed, fmt.Errorf("system: %s: reading cursor: %w", name, err)
		}
		end, err := app.ProcessBatch(ctx, start, r.BatchSize)
		if err != nil {
			return progressed, fmt.Errorf("system: %s: %w", name, err)
		}
		if end != start {
			progressed = true
		}
	}
	return progressed, nil
}

// Run repeatedly calls Step until ctx is done, sleeping pollInterval
// whenever a pass makes no progress at all (so a fully caught-up system
// idles instead of busy-looping).
func (r *SingleThreadedRunner) Run(ctx context.Context, pollInterval time.Duration) error {
	for {
		if ctxDone(ctx) {
			return ctx.Err()
		}
		progressed, err := r.Step(ctx)
		if err != nil {
			return err
		}
		if progressed {
			continue
		}
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
