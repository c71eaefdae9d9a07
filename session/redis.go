package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTombstoneTTL = 30 * 24 * time.Hour

// Hash fields of a session entry.
const (
	fieldBlob       = "d"
	fieldUser       = "u"
	fieldExpires    = "e"
	fieldLastActive = "a"
	fieldCSRF       = "c"
	fieldRevoked    = "r"
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "d", ARGV[1], "u", ARGV[2], "e", ARGV[3], "a", ARGV[4], "c", ARGV[5], "r", ARGV[8])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
if ARGV[8] == "0" then
  redis.call("SADD", KEYS[2], ARGV[7])
  if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[6]) then
    redis.call("PEXPIRE", KEYS[2], ARGV[6])
  end
end
return 1
`

const touchSessionScript = `
if redis.call("HGET", KEYS[1], "r") ~= "0" then
  return 0
end
local current = tonumber(redis.call("HGET", KEYS[1], "e"))
if not current or current < tonumber(ARGV[3]) then
  return 0
end
if tonumber(ARGV[1]) > current then
  redis.call("HSET", KEYS[1], "e", ARGV[1])
end
redis.call("HSET", KEYS[1], "a", ARGV[2])
return 1
`

const setCSRFScript = `
if redis.call("HGET", KEYS[1], "r") ~= "0" then
  return 0
end
redis.call("HSET", KEYS[1], "c", ARGV[1])
return 1
`

const revokeSessionScript = `
redis.call("SET", KEYS[2], "1", "PX", ARGV[3])
local uid = redis.call("HGET", KEYS[1], "u")
if not uid then
  return 0
end
redis.call("HSET", KEYS[1], "r", "1")
redis.call("SREM", ARGV[1] .. uid, ARGV[2])
return 1
`

const revokeUserScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local revoked = {}
for _, m in ipairs(members) do
  local key = ARGV[1] .. m
  redis.call("SET", ARGV[2] .. m, "1", "PX", ARGV[3])
  if redis.call("HGET", key, "r") == "0" then
    redis.call("HSET", key, "r", "1")
    table.insert(revoked, m)
  end
end
redis.call("DEL", KEYS[1])
return revoked
`

const revokeHashesScript = `
for i = 4, #ARGV do
  local m = ARGV[i]
  local key = ARGV[1] .. m
  redis.call("SET", ARGV[2] .. m, "1", "PX", ARGV[3])
  if redis.call("EXISTS", key) == 1 then
    redis.call("HSET", key, "r", "1")
  end
end
redis.call("DEL", KEYS[1])
return #ARGV - 3
`

var (
	createSessionLua = redis.NewScript(createSessionScript)
	touchSessionLua  = redis.NewScript(touchSessionScript)
	setCSRFLua       = redis.NewScript(setCSRFScript)
	revokeSessionLua = redis.NewScript(revokeSessionScript)
	revokeUserLua    = redis.NewScript(revokeUserScript)
	revokeHashesLua  = redis.NewScript(revokeHashesScript)
)

// RedisOptions configures key layout and lifetimes of a RedisRepository.
type RedisOptions struct {
	// Prefix namespaces every key. Defaults to "gg".
	Prefix string
	// TombstoneTTL is how long a revoked token hash stays reserved. It must cover the
	// longest absolute session lifetime.
	TombstoneTTL time.Duration
	// MaxEntryTTL caps how long an entry lives in Redis. Zero keeps entries until their
	// absolute deadline. A non-zero cap is used when Redis only caches a durable store.
	MaxEntryTTL time.Duration
}

// RedisRepository stores sessions as Redis hashes keyed by token hash, with a per-user
// index set. Every multi-key mutation runs as one Lua script.
type RedisRepository struct {
	redis        redis.UniversalClient
	prefix       string
	tombstoneTTL time.Duration
	maxEntryTTL  time.Duration
}

// NewRedisRepository creates a Repository backed by rdb.
func NewRedisRepository(rdb redis.UniversalClient, opts RedisOptions) *RedisRepository {
	if opts.Prefix == "" {
		opts.Prefix = "gg"
	}
	if opts.TombstoneTTL <= 0 {
		opts.TombstoneTTL = defaultTombstoneTTL
	}
	return &RedisRepository{
		redis:        rdb,
		prefix:       opts.Prefix,
		tombstoneTTL: opts.TombstoneTTL,
		maxEntryTTL:  opts.MaxEntryTTL,
	}
}

func (r *RedisRepository) sessionPrefix() string {
	return r.prefix + ":s:"
}

func (r *RedisRepository) tombstonePrefix() string {
	return r.prefix + ":t:"
}

func (r *RedisRepository) userPrefix() string {
	return r.prefix + ":u:"
}

func (r *RedisRepository) key(m string) string {
	return r.sessionPrefix() + m
}

func (r *RedisRepository) tombstoneKey(m string) string {
	return r.tombstonePrefix() + m
}

func (r *RedisRepository) userKey(userID string) string {
	return r.userPrefix() + userID
}

func member(tokenHash [32]byte) string {
	return hex.EncodeToString(tokenHash[:])
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Create inserts s unless its token hash is live or tombstoned.
func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	created, err := r.insert(ctx, s, time.Now())
	if err != nil {
		return err
	}
	if !created {
		return ErrConflict
	}
	return nil
}

// Fill caches s when its hash is unknown. It never overwrites an entry or resurrects a
// tombstoned hash, so a late fill cannot undo a revocation.
func (r *RedisRepository) Fill(ctx context.Context, s *Session) error {
	_, err := r.insert(ctx, s, time.Now())
	return err
}

func (r *RedisRepository) insert(ctx context.Context, s *Session, now time.Time) (bool, error) {
	blob, err := Encode(s)
	if err != nil {
		return false, err
	}

	ttl := s.AbsoluteExpiresAt.Sub(now)
	if r.maxEntryTTL > 0 && ttl > r.maxEntryTTL {
		ttl = r.maxEntryTTL
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	revoked := "0"
	if s.Revoked {
		revoked = "1"
	}

	m := member(s.TokenHash)
	res, err := createSessionLua.Run(
		ctx,
		r.redis,
		[]string{r.key(m), r.userKey(s.UserID), r.tombstoneKey(m)},
		blob,
		s.UserID,
		s.ExpiresAt.UnixMilli(),
		s.LastActiveAt.UnixMilli(),
		s.CSRFHash[:],
		ttl.Milliseconds(),
		m,
		revoked,
	).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return res == 1, nil
}

// Get loads a session by token hash.
func (r *RedisRepository) Get(ctx context.Context, tokenHash [32]byte) (*Session, error) {
	vals, err := r.redis.HMGet(ctx, r.key(member(tokenHash)),
		fieldBlob, fieldExpires, fieldLastActive, fieldCSRF, fieldRevoked).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	sess, err := decodeFields(vals)
	if err != nil {
		return nil, err
	}
	sess.TokenHash = tokenHash
	return sess, nil
}

func decodeFields(vals []interface{}) (*Session, error) {
	if len(vals) != 5 || vals[0] == nil {
		return nil, ErrNotFound
	}
	blob, ok := vals[0].(string)
	if !ok {
		return nil, ErrNotFound
	}
	sess, err := Decode([]byte(blob))
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	expires, err := parseMillis(vals[1])
	if err != nil {
		return nil, err
	}
	lastActive, err := parseMillis(vals[2])
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = expires
	sess.LastActiveAt = lastActive

	if csrf, ok := vals[3].(string); ok && len(csrf) == len(sess.CSRFHash) {
		copy(sess.CSRFHash[:], csrf)
	}
	revoked, _ := vals[4].(string)
	sess.Revoked = revoked != "0"

	return sess, nil
}

func parseMillis(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errors.New("session field missing")
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session field malformed: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Touch slides the idle deadline of a live session.
func (r *RedisRepository) Touch(ctx context.Context, tokenHash [32]byte, lastActive, expiresAt time.Time) error {
	err := touchSessionLua.Run(ctx, r.redis, []string{r.key(member(tokenHash))},
		expiresAt.UnixMilli(), lastActive.UnixMilli(), time.Now().UnixMilli()).Err()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// SetCSRF rebinds the CSRF token of a live session.
func (r *RedisRepository) SetCSRF(ctx context.Context, tokenHash, csrfHash [32]byte) error {
	res, err := setCSRFLua.Run(ctx, r.redis, []string{r.key(member(tokenHash))}, csrfHash[:]).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// Revoke marks the session revoked and reserves its hash. It is idempotent.
func (r *RedisRepository) Revoke(ctx context.Context, tokenHash [32]byte) error {
	m := member(tokenHash)
	err := revokeSessionLua.Run(ctx, r.redis, []string{r.key(m), r.tombstoneKey(m)},
		r.userPrefix(), m, r.tombstoneTTL.Milliseconds()).Err()
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// RevokeAllForUser revokes every indexed session of userID in one script execution.
func (r *RedisRepository) RevokeAllForUser(ctx context.Context, userID string) ([][32]byte, error) {
	res, err := revokeUserLua.Run(ctx, r.redis, []string{r.userKey(userID)},
		r.sessionPrefix(), r.tombstonePrefix(), r.tombstoneTTL.Milliseconds()).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return parseMembers(res), nil
}

// MarkRevoked revokes the given hashes and drops the user's index. It is used to mirror
// a durable RevokeAllForUser into the cache.
func (r *RedisRepository) MarkRevoked(ctx context.Context, userID string, hashes [][32]byte) error {
	args := make([]interface{}, 0, len(hashes)+3)
	args = append(args, r.sessionPrefix(), r.tombstonePrefix(), r.tombstoneTTL.Milliseconds())
	for _, h := range hashes {
		args = append(args, member(h))
	}
	if err := revokeHashesLua.Run(ctx, r.redis, []string{r.userKey(userID)}, args...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Evict drops a cached entry without reserving its hash.
func (r *RedisRepository) Evict(ctx context.Context, tokenHash [32]byte) error {
	if err := r.redis.Del(ctx, r.key(member(tokenHash))).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ListForUser returns live sessions from the user's index.
func (r *RedisRepository) ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	members, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, unavailable(err)
	}
	if len(members) == 0 {
		return []*Session{}, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HMGet(ctx, r.key(m), fieldBlob, fieldExpires, fieldLastActive, fieldCSRF, fieldRevoked)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	hashes := parseMembers(members)
	out := make([]*Session, 0, len(members))
	for i, cmd := range cmds {
		sess, err := decodeFields(cmd.Val())
		if err != nil {
			continue
		}
		if sess.Revoked || sess.Expired(now) {
			continue
		}
		sess.TokenHash = hashes[i]
		out = append(out, sess)
	}
	return out, nil
}

// PurgeExpired is a no-op: Redis expires entries at their absolute deadline.
func (r *RedisRepository) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *RedisRepository) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}

func parseMembers(members []string) [][32]byte {
	out := make([][32]byte, len(members))
	for i, m := range members {
		raw, err := hex.DecodeString(m)
		if err == nil && len(raw) == 32 {
			copy(out[i][:], raw)
		}
	}
	return out
}
