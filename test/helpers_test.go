//go:build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGate/session"
)

// redisMode names one Redis backend the suites run against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes always includes miniredis. A real server is added when
// REDIS_ADDR is set; its database is flushed before each test.
func redisModes() []redisMode {
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			t.Helper()
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "redis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
				if err := rdb.FlushDB(context.Background()).Err(); err != nil {
					t.Fatalf("flush: %v", err)
				}
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}
	return modes
}

// repoFactory builds the repository under test on top of a Redis client.
type repoFactory struct {
	name string
	new  func(t *testing.T, rdb redis.UniversalClient) session.Repository
}

func repoFactories() []repoFactory {
	opts := session.RedisOptions{Prefix: "ct", TombstoneTTL: 48 * time.Hour}
	return []repoFactory{
		{
			name: "redis",
			new: func(_ *testing.T, rdb redis.UniversalClient) session.Repository {
				return session.NewRedisRepository(rdb, opts)
			},
		},
		{
			// A second keyspace on the same server plays the durable store.
			name: "cached",
			new: func(_ *testing.T, rdb redis.UniversalClient) session.Repository {
				durable := session.NewRedisRepository(rdb, session.RedisOptions{Prefix: "durable", TombstoneTTL: opts.TombstoneTTL})
				cache := session.NewRedisRepository(rdb, session.RedisOptions{Prefix: "cache", TombstoneTTL: opts.TombstoneTTL, MaxEntryTTL: time.Hour})
				return session.NewCachedRepository(durable, cache, nil)
			},
		},
	}
}

func newSession(userID string, seed byte, now time.Time) *session.Session {
	var hash [32]byte
	for i := range hash {
		hash[i] = seed
	}
	return &session.Session{
		TokenHash:         hash,
		SessionID:         userID + "-" + string(rune('a'+seed)),
		UserID:            userID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(30 * time.Minute),
		AbsoluteExpiresAt: now.Add(24 * time.Hour),
		LastActiveAt:      now,
	}
}
