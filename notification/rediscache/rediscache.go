// Package rediscache wraps a notification.Log with a Redis-as-cache-in-
// front-of-Postgres layer, grounded in the teacher's public-api-service
// SDKHandler.GetBanner: read-through cache, miss falls back to the
// underlying source, no synchronous write path from the cache back to
// storage. Only archived sections (Section.NextSectionID set — provably
// immutable, per spec.md §4.6) are ever cached; the mutable head section
// is always read live, matching the teacher's comment that Redis serves
// public traffic spikes while Postgres stays the write-of-record.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/notification"
)

// keyFmt mirrors the teacher's "widget:banner:%s:%s" key-template
// convention, scoped to a pipeline and section range.
const keyFmt = "eventcore:section:%d:%d:%d" // pipeline_id, first, last

// DefaultTTL is generous because archived sections never change; it only
// bounds how long a stale cache entry could survive an (extremely rare)
// operator-initiated rewrite of archived history.
const DefaultTTL = 24 * time.Hour

// Log wraps a notification.Log, caching archived sections in Redis.
type Log struct {
	Inner  *notification.Log
	Redis  *redis.Client
	Logger *zap.Logger
	TTL    time.Duration
}

// New constructs a caching Log. logger may be nil (zap.NewNop() is used).
func New(inner *notification.Log, client *redis.Client, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{Inner: inner, Redis: client, Logger: logger, TTL: DefaultTTL}
}

// Section returns the requested section, serving from Redis when the
// section was previously cached as archived. A Redis error never fails the
// call — it falls back to the underlying Log and logs the miss, matching
// the teacher's "service unavailable never means the feature is
// unavailable" posture, generalized from "502 on a GET" to "fall through."
func (l *Log) Section(ctx context.Context, first, last uint64) (notification.Section, error) {
	key := fmt.Sprintf(keyFmt, l.Inner.PipelineID, first, last)

	if cached, ok := l.getCached(ctx, key); ok {
		return cached, nil
	}

	sec, err := l.Inner.Section(ctx, first, last)
	if err != nil {
		return notification.Section{}, err
	}

	if sec.NextSectionID != nil {
		l.setCached(ctx, key, sec)
	}
	return sec, nil
}

func (l *Log) getCached(ctx context.Context, key string) (notification.Section, bool) {
	val, err := l.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return notification.Section{}, false
	}
	if err != nil {
		l.Logger.Warn("rediscache: GET failed, falling back to recorder", zap.String("key", key), zap.Error(err))
		return notification.Section{}, false
	}

	var sec notification.Section
	if err := json.Unmarshal([]byte(val), &sec); err != nil {
		l.Logger.Warn("rediscache: corrupt cache entry, falling back to recorder", zap.String("key", key), zap.Error(err))
		return notification.Section{}, false
	}
	return sec, true
}

func (l *Log) setCached(ctx context.Context, key string, sec notification.Section) {
	data, err := json.Marshal(sec)
	if err != nil {
		l.Logger.Warn("rediscache: failed to marshal section for caching", zap.Error(err))
		return
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := l.Redis.Set(ctx, key, data, ttl).Err(); err != nil {
		l.Logger.Warn("rediscache: SET failed", zap.String("key", key), zap.Error(err))
	}
}
