package system

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WorkerSpec names one (process class, pipeline_id) instance to be driven
// by its own OS process — spec.md §4.8's "multi-process runner." Unlike
// SingleThreadedRunner and MultiThreadedRunner, a MultiProcessRunner does
// not itself spawn processes: orchestrating OS processes is deployment
// concern, not library code. Instead it gives a worker binary (see
// cmd/eventcore-worker) the pieces to plan which instances exist and run
// exactly one of them for the life of that process.
type WorkerSpec struct {
	ProcessName string
	PipelineID  int
}

// Plan enumerates every (class, pipelineID) instance a system is
// responsible for across pipelineIDs, in Graph.Classes order within each
// pipeline — the full worker fleet a deployment needs to start one
// process per entry for.
func (s *System) Plan(pipelineIDs []int) []WorkerSpec {
	var specs []WorkerSpec
	for _, pipelineID := range pipelineIDs {
		for _, name := range s.Graph.Classes {
			specs = append(specs, WorkerSpec{ProcessName: name, PipelineID: pipelineID})
		}
	}
	return specs
}

// MultiProcessRunner drives a single WorkerSpec for the lifetime of the
// calling OS process, exactly the loop MultiThreadedRunner.runOne runs
// per goroutine but here occupying the whole process — so a crash in one
// worker can never take down another instance the way a panic in one
// goroutine of a MultiThreadedRunner would.
type MultiProcessRunner struct {
	System       *System
	Spec         WorkerSpec
	Prompter     Prompter
	BatchSize    uint64
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewMultiProcessRunner constructs a runner for one WorkerSpec with sane
// defaults. Prompter should be an externally-shared transport (e.g.
// system/prompt/nats) — an InProcessPrompter is useless across OS
// processes and is never assigned here.
func NewMultiProcessRunner(sys *System, spec WorkerSpec, prompter Prompter) *MultiProcessRunner {
	return &MultiProcessRunner{
		System:       sys,
		Spec:         spec,
		Prompter:     prompter,
		BatchSize:    DefaultBatchSize,
		PollInterval: 5 * time.Second,
		Logger:       zap.NewNop(),
	}
}

// Run drives Spec's process application until ctx is done or an
// unrecoverable error occurs.
func (r *MultiProcessRunner) Run(ctx context.Context) error {
	app, err := r.System.Application(r.Spec.ProcessName, r.Spec.PipelineID)
	if err != nil {
		return fmt.Errorf("system: worker %s/%d: %w", r.Spec.ProcessName, r.Spec.PipelineID, err)
	}

	mt := &MultiThreadedRunner{
		System:       r.System,
		PipelineID:   r.Spec.PipelineID,
		Prompter:     r.Prompter,
		BatchSize:    r.BatchSize,
		PollInterval: r.PollInterval,
		Logger:       r.Logger,
	}
	return mt.runOne(ctx, r.Spec.ProcessName, app)
}
