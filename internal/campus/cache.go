package campus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"classboard/internal/logger"
)

// AttendanceCache is a read-through cache over a RecordProvider. It is the
// only mutable shared state on the dashboard: a successful mark invalidates
// the student's snapshot so the next reconciliation pass sees the new record.
type AttendanceCache struct {
	inner RecordProvider
	redis *redis.Client
	ttl   time.Duration
}

// NewAttendanceCache wraps a provider. A nil redis client degrades to a
// pass-through.
func NewAttendanceCache(inner RecordProvider, client *redis.Client, ttl time.Duration) *AttendanceCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AttendanceCache{inner: inner, redis: client, ttl: ttl}
}

func cacheKey(studentID, date string) string {
	return "classboard:attendance:" + studentID + ":" + date
}

// AttendanceForDate returns the cached snapshot when present, otherwise
// fetches from the backend and stores the result.
func (c *AttendanceCache) AttendanceForDate(ctx context.Context, studentID, date string) ([]Record, error) {
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, cacheKey(studentID, date)).Result(); err == nil {
			var records []Record
			if err := json.Unmarshal([]byte(raw), &records); err == nil {
				return records, nil
			}
		}
	}

	records, err := c.inner.AttendanceForDate(ctx, studentID, date)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if raw, err := json.Marshal(records); err == nil {
			if err := c.redis.Set(ctx, cacheKey(studentID, date), raw, c.ttl).Err(); err != nil {
				logger.Log.Warnf("attendance cache set failed: %v", err)
			}
		}
	}
	return records, nil
}

// Invalidate drops the cached snapshot for one student and date.
func (c *AttendanceCache) Invalidate(ctx context.Context, studentID, date string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, cacheKey(studentID, date)).Err()
}
