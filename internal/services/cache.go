package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

// ResultCache keeps finished batch results in redis so identical requests
// skip the solver. Every redis call runs through a circuit breaker; when
// redis is down the cache degrades to a miss instead of failing requests.
type ResultCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *logrus.Entry
}

// NewResultCache wraps a redis client. breakerThreshold is how many calls
// the breaker samples before the failure ratio can trip it.
func NewResultCache(client *redis.Client, ttl time.Duration, breakerThreshold int) *ResultCache {
	log := logger.GetLogger().WithField("component", "result_cache")
	if breakerThreshold < 1 {
		breakerThreshold = 3
	}

	settings := gobreaker.Settings{
		Name:    "redis-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= uint32(breakerThreshold) && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &ResultCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		ttl:     ttl,
		log:     log,
	}
}

// ResultCacheKey derives a stable key from the slate and the full batch
// configuration, so any config change is a different cache entry.
func ResultCacheKey(slateID string, cfg optimizer.OptimizeConfig) string {
	payload, _ := json.Marshal(cfg)
	return fmt.Sprintf("optimize:%s:%x", slateID, md5.Sum(payload))
}

// Get returns a cached batch result, or nil on miss or redis trouble.
func (c *ResultCache) Get(ctx context.Context, key string) *optimizer.BatchResult {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		c.log.WithError(err).Debug("Cache read skipped")
		return nil
	}
	data, _ := out.([]byte)
	if len(data) == 0 {
		return nil
	}

	var result optimizer.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.log.WithError(err).Warn("Dropping undecodable cache entry")
		return nil
	}
	return &result
}

// Set stores a batch result. Failures are logged, never returned: caching
// is best effort.
func (c *ResultCache) Set(ctx context.Context, key string, result *optimizer.BatchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.log.WithError(err).Warn("Failed to encode result for cache")
		return
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		c.log.WithError(err).Debug("Cache write skipped")
	}
}

// InvalidateSlate drops every cached result for one slate, used when its
// player pool changes.
func (c *ResultCache) InvalidateSlate(ctx context.Context, slateID string) {
	pattern := fmt.Sprintf("optimize:%s:*", slateID)
	_, err := c.breaker.Execute(func() (interface{}, error) {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return nil, err
			}
		}
		return nil, iter.Err()
	})
	if err != nil {
		c.log.WithError(err).Debug("Cache invalidation skipped")
	}
}

// Healthy reports whether redis answers a ping.
func (c *ResultCache) Healthy(ctx context.Context) bool {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Ping(ctx).Err()
	})
	return err == nil
}
