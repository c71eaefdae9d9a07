package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore performs the atomic fixed-window bookkeeping for a key.
type CounterStore interface {
	// Incr increments key and, if the key has no expiry yet, sets it to window, all in one
	// indivisible step. It returns the new count and the remaining window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

const incrWindowScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var incrWindowLua = redis.NewScript(incrWindowScript)

// RedisCounterStore implements CounterStore with a Lua script.
type RedisCounterStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCounterStore creates a CounterStore whose keys are namespaced by prefix.
func NewRedisCounterStore(rdb redis.UniversalClient, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisCounterStore{redis: rdb, prefix: prefix}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindowLua.Run(ctx, s.redis, []string{s.prefix + ":" + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply", ErrCounterUnavailable)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
