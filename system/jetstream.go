package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/notification"
)

// StreamDomainEvents is the durable JetStream stream every JetStreamPublisher
// republishes onto, directly grounded in go-core/natsclient/stream.go's
// DOMAIN_EVENTS stream.
const StreamDomainEvents = "DOMAIN_EVENTS"

// SubjectDomainEvents is the wildcard subject filter provisioned on
// StreamDomainEvents.
const SubjectDomainEvents = "DOMAIN_EVENTS.>"

// jetStreamEvent is the wire shape published for each notification — enough
// for a push-based observer to locate and re-fetch the authoritative record
// through the recorder, never a substitute for it.
type jetStreamEvent struct {
	ApplicationName string    `json:"application_name"`
	NotificationID  uint64    `json:"notification_id"`
	SequenceID      uuid.UUID `json:"sequence_id"`
	Position        uint64    `json:"position"`
	Topic           string    `json:"topic"`
	PipelineID      int       `json:"pipeline_id"`
}

// JetStreamPublisher republishes committed notifications onto
// DOMAIN_EVENTS.<application_name>.<topic> subjects, directly adapted from
// cdc-worker's natsClient.JS.Publish("outbox.abc", ...) call. This is
// explicitly a latency optimization for push-based observers — the
// recorder's pull-based polling path is always correct on its own, with or
// without a JetStreamPublisher wired in, so a publish failure here is
// logged and returned, and a caller may ignore it without losing events.
type JetStreamPublisher struct {
	JS     nats.JetStreamContext
	Logger *zap.Logger
}

// NewJetStreamPublisher constructs a publisher over an already-connected
// JetStream context.
func NewJetStreamPublisher(js nats.JetStreamContext, logger *zap.Logger) *JetStreamPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JetStreamPublisher{JS: js, Logger: logger}
}

// ProvisionStream idempotently ensures StreamDomainEvents exists, directly
// grounded in go-core/natsclient/stream.go's ProvisionStreams.
func (p *JetStreamPublisher) ProvisionStream() error {
	_, err := p.JS.StreamInfo(StreamDomainEvents)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("system: jetstream stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamDomainEvents,
		Subjects:  []string{SubjectDomainEvents},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}
	if _, err := p.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("system: jetstream create stream: %w", err)
	}
	p.Logger.Info("system: jetstream stream provisioned", zap.String("stream", StreamDomainEvents))
	return nil
}

// Publish republishes one notification onto
// DOMAIN_EVENTS.<applicationName>.<topic>. A failure is logged and returned
// to the caller to decide whether to ignore it — callers on the
// correctness-critical recorder path must never let this block committing.
func (p *JetStreamPublisher) Publish(ctx context.Context, applicationName string, item notification.Item) error {
	payload, err := json.Marshal(jetStreamEvent{
		ApplicationName: applicationName,
		NotificationID:  item.NotificationID,
		SequenceID:      item.SequenceID,
		Position:        item.Position,
		Topic:           item.Topic,
		PipelineID:      item.PipelineID,
	})
	if err != nil {
		return fmt.Errorf("system: marshal jetstream event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", StreamDomainEvents, applicationName, item.Topic)
	if _, err := p.JS.Publish(subject, payload, nats.Context(ctx)); err != nil {
		p.Logger.Warn("system: jetstream publish failed",
			zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("system: jetstream publish: %w", err)
	}
	return nil
}

// PublishBatch publishes every item in items, stopping at the first error.
func (p *JetStreamPublisher) PublishBatch(ctx context.Context, applicationName string, items []notification.Item) error {
	for _, item := range items {
		if err := p.Publish(ctx, applicationName, item); err != nil {
			return err
		}
	}
	return nil
}
