// Package rediscache provides a Redis-backed seen-URL filter that keeps
// crawls from re-saving listings scraped in earlier sessions.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSeenTTL is how long a listing URL stays marked as seen. Listings on
// Indian job boards rarely survive a month, so expired keys are safe to
// re-scrape.
const DefaultSeenTTL = 30 * 24 * time.Hour

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// SeenFilter tracks listing URLs across scrape sessions.
type SeenFilter struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSeenFilter wraps an existing Redis client. ttl <= 0 selects
// DefaultSeenTTL.
func NewSeenFilter(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SeenFilter {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &SeenFilter{rdb: rdb, ttl: ttl, logger: logger}
}

func seenKey(url string) string {
	return "jobscout:seen:" + url
}

// MarkSeen records a URL and reports whether it was new. SETNX keeps the
// check-and-set atomic across concurrent scrape workers.
func (f *SeenFilter) MarkSeen(ctx context.Context, url string) (bool, error) {
	isNew, err := f.rdb.SetNX(ctx, seenKey(url), 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	return isNew, nil
}

// FilterNew returns the subset of urls not yet seen, marking each returned
// URL as seen. Redis failures degrade to passing everything through; losing
// dedup is better than losing a crawl.
func (f *SeenFilter) FilterNew(ctx context.Context, urls []string) []string {
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		isNew, err := f.MarkSeen(ctx, u)
		if err != nil {
			f.logger.Warn("seen filter unavailable, passing url through",
				zap.String("url", u), zap.Error(err))
			fresh = append(fresh, u)
			continue
		}
		if isNew {
			fresh = append(fresh, u)
		}
	}
	return fresh
}
