package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unreachableClient points at a closed port so calls fail fast.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestSeenKeyNamespacesURLs(t *testing.T) {
	require.Equal(t,
		"jobscout:seen:https://www.naukri.com/job-listings-1",
		seenKey("https://www.naukri.com/job-listings-1"))
}

func TestNewSeenFilterDefaultsTTL(t *testing.T) {
	f := NewSeenFilter(unreachableClient(), 0, zap.NewNop())
	require.Equal(t, DefaultSeenTTL, f.ttl)

	f = NewSeenFilter(unreachableClient(), time.Hour, zap.NewNop())
	require.Equal(t, time.Hour, f.ttl)
}

func TestMarkSeenSurfacesRedisErrors(t *testing.T) {
	f := NewSeenFilter(unreachableClient(), time.Hour, zap.NewNop())

	_, err := f.MarkSeen(context.Background(), "https://example.com/job/1")
	require.Error(t, err)
}

func TestFilterNewDegradesToPassThrough(t *testing.T) {
	f := NewSeenFilter(unreachableClient(), time.Hour, zap.NewNop())

	urls := []string{"https://example.com/job/1", "https://example.com/job/2"}
	require.Equal(t, urls, f.FilterNew(context.Background(), urls))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-redis-url")
	require.Error(t, err)
}
