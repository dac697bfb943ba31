package system

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/eventcore/process"
)

// MultiThreadedRunner runs one goroutine per process instance within the
// same OS process, each woken by its upstream's Prompter channel (falling
// back to PollInterval if a prompt is lost) — spec.md §4.8's
// "multi-threaded runner."
type MultiThreadedRunner struct {
	System       *System
	PipelineID   int
	Prompter     Prompter
	BatchSize    uint64
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewMultiThreadedRunner constructs a runner with an InProcessPrompter and
// sane defaults; callers wanting an external broker should replace
// Prompter after construction.
func NewMultiThreadedRunner(sys *System, pipelineID int) *MultiThreadedRunner {
	return &MultiThreadedRunner{
		System:       sys,
		PipelineID:   pipelineID,
		Prompter:     NewInProcessPrompter(),
		BatchSize:    DefaultBatchSize,
		PollInterval: 5 * time.Second,
		Logger:       zap.NewNop(),
	}
}

// Run starts one goroutine per process class and blocks until ctx is
// done or any goroutine returns a non-context error, whichever comes
// first.
func (r *MultiThreadedRunner) Run(ctx context.Context) error {
	names, apps, err := r.System.instances(r.PipelineID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, app *process.Application) {
			defer wg.Done()
			if err := r.runOne(ctx, name, app); err != nil && ctx.Err() == nil {
				errCh <- err
				cancel()
			}
		}(name, apps[name])
	}

	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	return ctx.Err()
}

// runOne drives a single process instance: wake on its upstream's
// Prompter channel (publishing is the producer's job — the event store or
// an upstream process application calls Prompter.Publish after every
// commit), poll-fallback on PollInterval, and loop ProcessBatch calls
// until caught up before waiting again.
func (r *MultiThreadedRunner) runOne(ctx context.Context, name string, app *process.Application) error {
	wake := r.Prompter.Subscribe(app.Upstream, r.PipelineID)
	timer := time.NewTimer(r.PollInterval)
	defer timer.Stop()

	for {
		for {
			cursor, err := app.Cursor(ctx)
			if err != nil {
				return err
			}
			end, err := app.ProcessBatch(ctx, cursor, r.BatchSize)
			if err != nil {
				r.Logger.Error("system: process batch failed", zap.String("process", name), zap.Error(err))
				return err
			}
			if end == cursor {
				break
			}
			// Wake anything downstream of name immediately rather than
			// leaving it to discover the new notifications on its own next
			// PollInterval tick — a lost Publish (no current subscriber,
			// e.g. a downstream instance not yet started) is harmless,
			// since that subscriber will still catch up on its own poll.
			if err := r.Prompter.Publish(ctx, name, r.PipelineID); err != nil {
				r.Logger.Warn("system: prompt publish failed", zap.String("process", name), zap.Error(err))
			}
		}

		if !timer.Stop() {
			// timer may already have fired and had its value drained by the
			// select below (case <-timer.C) on the previous iteration, in
			// which case a second receive here would block forever — drain
			// only if a value is actually waiting.
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.PollInterval)

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-timer.C:
		}
	}
}
