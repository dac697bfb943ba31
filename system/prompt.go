package system

import (
	"context"
	"strconv"
	"sync"
)

// Prompter publishes and subscribes to fire-and-forget wakeup signals for
// "new work on upstreamName/pipelineID" (spec.md §4.8). Loss of a prompt
// is harmless — a subscriber falls back to its own poll interval;
// duplication is harmless — a wakeup just triggers a no-op poll that finds
// nothing new.
type Prompter interface {
	Publish(ctx context.Context, upstreamName string, pipelineID int) error
	Subscribe(upstreamName string, pipelineID int) <-chan struct{}
}

// InProcessPrompter is a Prompter backed by in-memory channels, used by
// MultiThreadedRunner when no external broker is configured
// (SingleThreadedRunner uses no Prompter). Each Subscribe call gets its own 1-buffered channel so a
// slow consumer never blocks the publisher — a buffered channel already
// pending a wakeup simply absorbs a second Publish (duplication-tolerant
// by construction).
type InProcessPrompter struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// NewInProcessPrompter returns a ready-to-use InProcessPrompter.
func NewInProcessPrompter() *InProcessPrompter {
	return &InProcessPrompter{subs: make(map[string][]chan struct{})}
}

func promptKey(upstreamName string, pipelineID int) string {
	return upstreamName + "\x00" + strconv.Itoa(pipelineID)
}

// Publish wakes every current subscriber for upstreamName/pipelineID.
// Non-blocking: a subscriber whose channel is already pending a wakeup
// simply misses this one, which is fine — the next poll will catch up.
func (p *InProcessPrompter) Publish(_ context.Context, upstreamName string, pipelineID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[promptKey(upstreamName, pipelineID)] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives a value on every Publish for
// upstreamName/pipelineID made after this call.
func (p *InProcessPrompter) Subscribe(upstreamName string, pipelineID int) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{}, 1)
	key := promptKey(upstreamName, pipelineID)
	p.subs[key] = append(p.subs[key], ch)
	return ch
}
