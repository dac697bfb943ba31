// Package nats provides an external, cross-process Prompter backed by
// plain (non-JetStream) NATS pub/sub — the transport spec.md §4.8 calls
// for between a MultiProcessRunner's worker instances, which cannot share
// system.InProcessPrompter's in-memory channels.
//
// Grounded in the teacher's notification-service CronScheduler, which
// publishes ephemeral tick events over the plain nats.Conn rather than
// JetStream precisely because ticks are fire-and-forget signals that
// tolerate loss and duplication — exactly the contract spec.md §4.8
// requires of a prompt.
package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "EVENTCORE.prompt"

// Prompter implements system.Prompter over a shared *nats.Conn. It never
// uses JetStream: prompts are wakeup signals, not data to replay, so
// ordinary publish/subscribe with no durability is the correct transport.
type Prompter struct {
	Conn   *nats.Conn
	Logger *zap.Logger
}

// New wraps an already-connected NATS connection.
func New(conn *nats.Conn, logger *zap.Logger) *Prompter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prompter{Conn: conn, Logger: logger}
}

func subject(upstreamName string, pipelineID int) string {
	safe := strings.ReplaceAll(upstreamName, " ", "_")
	return fmt.Sprintf("%s.%s.%d", subjectPrefix, safe, pipelineID)
}

// Publish sends an empty wakeup message to every live subscriber for
// upstreamName/pipelineID. A publish with no subscribers is simply
// dropped by NATS, which is fine — prompts are best-effort.
func (p *Prompter) Publish(_ context.Context, upstreamName string, pipelineID int) error {
	if err := p.Conn.Publish(subject(upstreamName, pipelineID), nil); err != nil {
		return fmt.Errorf("nats prompter: publish: %w", err)
	}
	return nil
}

// Subscribe registers a NATS subscription and relays every message
// (content discarded — the mere arrival is the signal) onto a
// 1-buffered channel, so a burst of prompts collapses to a single
// pending wakeup exactly like system.InProcessPrompter.
func (p *Prompter) Subscribe(upstreamName string, pipelineID int) <-chan struct{} {
	ch := make(chan struct{}, 1)
	subj := subject(upstreamName, pipelineID)

	sub, err := p.Conn.Subscribe(subj, func(*nats.Msg) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	if err != nil {
		p.Logger.Error("nats prompter: subscribe failed, wakeups for this subject will never fire",
			zap.String("subject", subj), zap.Error(err))
		return ch
	}

	p.Logger.Debug("nats prompter: subscribed", zap.String("subject", subj))
	_ = sub
	return ch
}
