package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alienxp03/sparring/internal/core"
)

// RedisStore keeps daily usage counters in Redis. Counters expire at
// the next UTC midnight, which gives the same day-rollover behavior as
// the (date, group) composite key in SQLite.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func sessionKey(day, group string) string {
	return fmt.Sprintf("quota:%s:%s:sessions", day, group)
}

func messageKey(day, group string) string {
	return fmt.Sprintf("quota:%s:%s:messages", day, group)
}

// Usage reads both counters for a (day, group) key. Returns (nil, nil)
// when neither counter exists yet.
func (s *RedisStore) Usage(ctx context.Context, day, group string) (*core.DailyUsage, error) {
	vals, err := s.rdb.MGet(ctx, sessionKey(day, group), messageKey(day, group)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}
	if vals[0] == nil && vals[1] == nil {
		return nil, nil
	}

	u := &core.DailyUsage{Day: day, Group: group}
	u.SessionCount = parseCount(vals[0])
	u.MessageCount = parseCount(vals[1])
	return u, nil
}

// IncrSessions atomically increments the session counter and refreshes
// its midnight expiry.
func (s *RedisStore) IncrSessions(ctx context.Context, day, group string) error {
	return s.incr(ctx, sessionKey(day, group))
}

// IncrMessages atomically increments the message counter.
func (s *RedisStore) IncrMessages(ctx context.Context, day, group string) error {
	return s.incr(ctx, messageKey(day, group))
}

func (s *RedisStore) incr(ctx context.Context, key string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, nextMidnightUTC(time.Now()))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return nil
}

func parseCount(v any) int {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0
	}
	return n
}

func nextMidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
