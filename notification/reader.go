package notification

import (
	"context"
	"time"
)

// DefaultPromptTimeout bounds how long Reader.Next blocks waiting on a
// Wake signal before falling back to polling the recorder directly — the
// same fallback-to-polling posture the teacher's scheduler takes when a
// NATS publish is missed (notification-service's cron tick still catches
// up on the next run).
const DefaultPromptTimeout = 5 * time.Second

// Reader maintains a cursor over a Log and offers a resumable, ordered
// sequence of notifications: resumable (Seek) and restartable (constructing a new Reader with the
// same start position reproduces the same sequence, given I3/I5's
// contiguity and immutability guarantees). The sequence does not end at the
// current head: there Next blocks until a new notification arrives or ctx
// is done, and never reports exhaustion.
type Reader struct {
	Log *Log

	// Wake, if non-nil, is signaled by a prompt transport whenever a new
	// notification may be available. Next uses it only to wake up early;
	// it never trusts the signal's payload, since prompts may be lost or
	// duplicated (spec.md §4.8) — it always re-reads through the Log.
	Wake <-chan struct{}

	// PromptTimeout bounds how long Next waits on Wake before polling
	// anyway. Zero means DefaultPromptTimeout.
	PromptTimeout time.Duration

	cursor  uint64
	started bool
}

// NewReader returns a Reader starting at the beginning of log (cursor 0).
func NewReader(log *Log) *Reader {
	return &Reader{Log: log}
}

// Seek repositions the cursor so the next read starts strictly after id.
func (r *Reader) Seek(id uint64) {
	r.cursor = id
	r.started = true
}

// Position reports the last notification id consumed, or 0 if Next has
// never returned an item and Seek was never called.
func (r *Reader) Position() uint64 { return r.cursor }

// Next returns the next notification strictly after the cursor, advancing
// it. It blocks until one is available or ctx is done, re-polling after
// each PromptTimeout interval; when Wake is set, a signal on it triggers
// an earlier re-poll.
func (r *Reader) Next(ctx context.Context) (Item, error) {
	timeout := r.PromptTimeout
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}

	for {
		items, err := r.pollOnce(ctx)
		if err != nil {
			return Item{}, err
		}
		if len(items) > 0 {
			item := items[0]
			r.cursor = item.NotificationID
			return item, nil
		}

		if err := r.waitForWakeOrTimeout(ctx, timeout); err != nil {
			return Item{}, err
		}
	}
}

func (r *Reader) pollOnce(ctx context.Context) ([]Item, error) {
	sec, err := r.Log.Recorder.SelectByNotification(ctx, r.Log.PipelineID, r.cursor, 1)
	if err != nil {
		return nil, err
	}
	out := make([]Item, len(sec))
	for i, rec := range sec {
		out[i] = toItem(rec)
	}
	return out, nil
}

func (r *Reader) waitForWakeOrTimeout(ctx context.Context, timeout time.Duration) error {
	if r.Wake == nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.Wake:
		return nil
	case <-timer.C:
		return nil
	}
}
