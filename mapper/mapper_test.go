package mapper_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/cryptcodec"
	"github.com/arc-self/eventcore/mapper"
	"github.com/arc-self/eventcore/transcoding"
)

func newMapper(t *testing.T) (*mapper.EventMapper, *mapper.TopicRegistry) {
	t.Helper()
	tc := transcoding.NewTranscoder()
	transcoding.RegisterBuiltins(tc)
	topics := mapper.NewTopicRegistry()
	topics.Register("order.created", mapper.EventTypeInfo{ClassVersion: 0})

	return &mapper.EventMapper{
		Transcoder: tc,
		Topics:     topics,
	}, topics
}

func TestToRecordToEventRoundTrip(t *testing.T) {
	m, _ := newMapper(t)

	seqID := uuid.New()
	event := mapper.DomainEvent{
		SequenceID: seqID,
		Position:   0,
		Topic:      "order.created",
		Attributes: map[string]any{
			"customer_id": uuid.New(),
			"total":       transcoding.Decimal("42.50"),
		},
		Metadata: map[string]any{"origin": "checkout-service"},
	}

	rec, err := m.ToRecord(event)
	require.NoError(t, err)
	require.Equal(t, seqID, rec.SequenceID)
	require.Equal(t, "order.created", rec.Topic)
	require.NotEmpty(t, rec.State)

	got, err := m.ToEvent(rec)
	require.NoError(t, err)
	require.Equal(t, event.SequenceID, got.SequenceID)
	require.Equal(t, event.Position, got.Position)
	require.Equal(t, event.Topic, got.Topic)
	require.Equal(t, event.Attributes["customer_id"], got.Attributes["customer_id"])
	require.Equal(t, event.Attributes["total"], got.Attributes["total"])
	require.Equal(t, "checkout-service", got.Metadata["origin"])
}

func TestToRecordUnknownTopicFails(t *testing.T) {
	m, _ := newMapper(t)
	_, err := m.ToRecord(mapper.DomainEvent{Topic: "does.not.exist"})
	require.ErrorIs(t, err, mapper.ErrTopicResolution)
}

func TestTopicSubstitution(t *testing.T) {
	m, topics := newMapper(t)
	topics.Register("order.created.v2", mapper.EventTypeInfo{ClassVersion: 0})
	topics.Substitute("order.created", "order.created.v2")

	event := mapper.DomainEvent{
		SequenceID: uuid.New(),
		Topic:      "order.created.v2",
		Attributes: map[string]any{"x": int64(1)},
	}
	rec, err := m.ToRecord(event)
	require.NoError(t, err)

	// Simulate an old record stored under the pre-rename topic.
	rec.Topic = "order.created"

	got, err := m.ToEvent(rec)
	require.NoError(t, err)
	require.Equal(t, "order.created.v2", got.Topic)
}

func TestUpcastingChain(t *testing.T) {
	tc := transcoding.NewTranscoder()
	transcoding.RegisterBuiltins(tc)
	topics := mapper.NewTopicRegistry()

	upcastCalls := 0
	topics.Register("widget.resized", mapper.EventTypeInfo{
		ClassVersion: 2,
		Upcaster: mapper.UpcasterFunc(func(state map[string]any, fromVersion int) (map[string]any, error) {
			upcastCalls++
			attrs := state["attributes"].(map[string]any)
			switch fromVersion {
			case 0:
				attrs["unit"] = "px" // added at v1
			case 1:
				attrs["dpi_aware"] = false // added at v2
			}
			return state, nil
		}),
	})

	m := &mapper.EventMapper{Transcoder: tc, Topics: topics}

	// Hand-construct a v0 stored record (no __class_version__ field, as
	// produced by a mapper instance from "before" the schema changes).
	rec := mapper.Record{
		SequenceID: uuid.New(),
		Topic:      "widget.resized",
		State:      []byte(`{"attributes":{"width":100},"metadata":{}}`),
	}

	got, err := m.ToEvent(rec)
	require.NoError(t, err)
	require.Equal(t, 2, upcastCalls)
	require.Equal(t, int64(100), got.Attributes["width"])
	require.Equal(t, "px", got.Attributes["unit"])
	require.Equal(t, false, got.Attributes["dpi_aware"])
}

func TestEncryptedAndCompressedStateHidesPlaintext(t *testing.T) {
	tc := transcoding.NewTranscoder()
	transcoding.RegisterBuiltins(tc)
	topics := mapper.NewTopicRegistry()
	topics.Register("payment.captured", mapper.EventTypeInfo{ClassVersion: 0})

	key := bytes.Repeat([]byte{0x11}, 32)
	aesCipher, err := cryptcodec.NewAESGCMCipher(key)
	require.NoError(t, err)

	m := &mapper.EventMapper{
		Transcoder: tc,
		Topics:     topics,
		Compressor: cryptcodec.NewZlibCompressor(0),
		Cipher:     aesCipher,
	}

	cardUUID := uuid.New()
	event := mapper.DomainEvent{
		SequenceID: uuid.New(),
		Topic:      "payment.captured",
		Attributes: map[string]any{"card_token": cardUUID},
	}

	rec, err := m.ToRecord(event)
	require.NoError(t, err)
	require.False(t, bytes.Contains(rec.State, []byte(cardUUID.String())))

	got, err := m.ToEvent(rec)
	require.NoError(t, err)
	require.Equal(t, cardUUID, got.Attributes["card_token"])
}
