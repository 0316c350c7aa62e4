package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"nightlife-matching-service/internal/metrics"
	"nightlife-matching-service/internal/models"
)

var errNoCache = errors.New("redis not available")

func prefKey(userID string) string    { return "match:pref:" + userID }
func trendKey(entityID string) string { return "match:trend:" + entityID }

// Redis helpers. A nil client turns every call into a miss or a no-op.

func (s *MatchingService) getFromCache(ctx context.Context, key string) (string, error) {
	if s.redis == nil {
		return "", errNoCache
	}
	return s.redis.Get(ctx, key).Result()
}

func (s *MatchingService) setCache(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}

func (s *MatchingService) delCache(ctx context.Context, keys ...string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("failed to invalidate cache", "keys", keys, "error", err)
	}
}

// cachedTrends looks every id up in Redis and returns the hits together
// with the ids that still need a database read.
func (s *MatchingService) cachedTrends(ctx context.Context, ids []string) (map[string]models.TrendStat, []string) {
	hits := make(map[string]models.TrendStat, len(ids))
	if s.redis == nil || len(ids) == 0 {
		return hits, ids
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = trendKey(id)
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("trend cache read failed", "error", err)
		return hits, ids
	}

	var missing []string
	for i, v := range vals {
		raw, ok := v.(string)
		var stat models.TrendStat
		if ok && json.Unmarshal([]byte(raw), &stat) == nil {
			hits[ids[i]] = stat
			continue
		}
		missing = append(missing, ids[i])
	}
	metrics.CacheRequests.WithLabelValues("trends", "hit").Add(float64(len(hits)))
	metrics.CacheRequests.WithLabelValues("trends", "miss").Add(float64(len(missing)))
	return hits, missing
}

// storeTrends caches one stat per id. Ids without a row are cached as zero
// so quiet entities do not hit the database on every request.
func (s *MatchingService) storeTrends(ctx context.Context, ids []string, stats map[string]models.TrendStat) {
	if s.redis == nil || len(ids) == 0 {
		return
	}
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			data, err := json.Marshal(stats[id])
			if err != nil {
				return err
			}
			pipe.Set(ctx, trendKey(id), data, s.cfg.TrendCacheTTL)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to cache trend stats", "count", len(ids), "error", err)
	}
}
