package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"warden/internal/ratelimit/models"
)

const keyPrefix = "warden:ratelimit:"

// RedisWindowStore keeps each window as a sorted set of attempts scored by
// unix milliseconds. Every operation runs in a MULTI pipeline so the prune
// and the read or write see one consistent set.
type RedisWindowStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	k := keyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoffScore(now, window))
	card := pipe.ZCard(ctx, k)
	first := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Window{}, fmt.Errorf("redis window count: %w", err)
	}
	return toWindow(card.Val(), first.Val()), nil
}

func (s *RedisWindowStore) Add(ctx context.Context, key string, now time.Time, window time.Duration) (models.Window, error) {
	k := keyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoffScore(now, window))
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixMilli(), 10) + ":" + uuid.NewString(),
	})
	pipe.Expire(ctx, k, window)
	card := pipe.ZCard(ctx, k)
	first := pipe.ZRangeWithScores(ctx, k, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Window{}, fmt.Errorf("redis window add: %w", err)
	}
	return toWindow(card.Val(), first.Val()), nil
}

// Sweep is a no-op: keys expire on their own TTL.
func (s *RedisWindowStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis window reset: %w", err)
	}
	return nil
}

// cutoffScore is inclusive, matching the memory store which drops entries at
// exactly now-window.
func cutoffScore(now time.Time, window time.Duration) string {
	return strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
}

func toWindow(count int64, first []redis.Z) models.Window {
	w := models.Window{Count: int(count)}
	if len(first) > 0 {
		w.Oldest = time.UnixMilli(int64(first[0].Score))
	}
	return w
}
