// Package notification is the read-side view over an ApplicationRecorder's
// globally ordered, per-pipeline notification stream (spec.md §4.6): a
// sectioned Log and a resumable, cursor-based Reader built on top of it.
package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/arc-self/eventcore/recorder"
)

// Item is a single notification as the read side sees it.
type Item struct {
	NotificationID uint64
	SequenceID     uuid.UUID
	Position       uint64
	Topic          string
	State          []byte
	PipelineID     int
}

// Section is an inclusive [First, Last] range of notifications.
// NextSectionID is non-nil iff the section is not the current head — i.e.
// the section is provably immutable and safe to cache, per spec.md §4.6.
type Section struct {
	Items         []Item
	First, Last   uint64
	NextSectionID *uint64
}

// Log is a sectioned view over a recorder.ApplicationRecorder, scoped to a
// single PipelineID. SectionSize is carried for callers only: Section
// returns exactly the requested [first, last] range, and Reader fetches
// one notification per poll; neither consults SectionSize.
type Log struct {
	Recorder    recorder.ApplicationRecorder
	PipelineID  int
	SectionSize uint64
}

// DefaultSectionSize matches the teacher's notification-service pagination
// default for its outbox-replay endpoint.
const DefaultSectionSize = 200

// Section returns all notifications with NotificationID in [first, last],
// plus whether the section is archived (NextSectionID set) or is the
// current head.
func (l *Log) Section(ctx context.Context, first, last uint64) (Section, error) {
	if last < first {
		return Section{First: first, Last: last}, nil
	}

	limit := last - first + 1
	var gt uint64
	if first > 0 {
		gt = first - 1
	}
	stored, err := l.Recorder.SelectByNotification(ctx, l.PipelineID, gt, limit)
	if err != nil {
		return Section{}, err
	}

	items := make([]Item, 0, len(stored))
	for _, rec := range stored {
		if rec.NotificationID > last {
			break
		}
		items = append(items, toItem(rec))
	}

	max, err := l.Recorder.MaxNotificationID(ctx, l.PipelineID)
	if err != nil {
		return Section{}, err
	}

	sec := Section{Items: items, First: first, Last: last}
	if max > last {
		next := last + 1
		sec.NextSectionID = &next
	}
	return sec, nil
}

func toItem(rec recorder.StoredRecord) Item {
	return Item{
		NotificationID: rec.NotificationID,
		SequenceID:     rec.SequenceID,
		Position:       rec.Position,
		Topic:          rec.Topic,
		State:          rec.State,
		PipelineID:     rec.PipelineID,
	}
}
