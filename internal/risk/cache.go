package risk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"regassist/internal/document"
	"regassist/internal/platform/metrics"
)

const cacheKeyPrefix = "risk:score:"

// CachingScorer memoizes scorer responses in Redis, keyed by the clause
// content hash and the ruleset version. Cache failures degrade to a direct
// call; they are never surfaced.
type CachingScorer struct {
	next    Scorer
	client  redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CacheOption configures CachingScorer.
type CacheOption func(*CachingScorer)

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachingScorer) {
		c.logger = logger
	}
}

// WithCacheMetrics sets the metrics collector.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachingScorer) {
		c.metrics = m
	}
}

// NewCachingScorer wraps next with a Redis cache.
func NewCachingScorer(next Scorer, client redis.Cmdable, ttl time.Duration, opts ...CacheOption) *CachingScorer {
	c := &CachingScorer{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the Redis key for a request. Title and clause id are not
// part of it: equal text under equal rules scores equally.
func CacheKey(req ScoreRequest) string {
	return cacheKeyPrefix + document.ContentHash(req.Content) + ":" + req.ContextVersion
}

func (c *CachingScorer) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	key := CacheKey(req)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached ScoreResponse
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.metrics.IncrementScorerCache("hit")
			cached.LatencyMs = 0
			return &cached, nil
		}
		c.metrics.IncrementScorerCache("error")
	case errors.Is(err, redis.Nil):
		c.metrics.IncrementScorerCache("miss")
	default:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.IncrementScorerCache("error")
		c.logger.WarnContext(ctx, "scorer cache read failed", "error", err)
	}

	resp, err := c.next.Score(ctx, req)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(resp); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "scorer cache write failed", "error", err)
		}
	}
	return resp, nil
}
