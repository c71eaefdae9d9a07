package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedFixture struct {
	repo    *CachedRepository
	durable *RedisRepository
	cache   *RedisRepository
	cacheMR *miniredis.Miniredis
}

func newCachedRepositoryTest(t *testing.T) (*cachedFixture, func()) {
	t.Helper()
	durableMR, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	cacheMR, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	durableClient := redis.NewClient(&redis.Options{Addr: durableMR.Addr()})
	cacheClient := redis.NewClient(&redis.Options{Addr: cacheMR.Addr(), MaxRetries: -1})

	durable := NewRedisRepository(durableClient, RedisOptions{Prefix: "durable"})
	cache := NewRedisRepository(cacheClient, RedisOptions{Prefix: "cache", MaxEntryTTL: 5 * time.Minute})
	f := &cachedFixture{
		repo:    NewCachedRepository(durable, cache, nil),
		durable: durable,
		cache:   cache,
		cacheMR: cacheMR,
	}
	return f, func() {
		durableClient.Close()
		cacheClient.Close()
		durableMR.Close()
		cacheMR.Close()
	}
}

func TestCachedGetFillsCacheOnMiss(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-miss", "u-1")

	if err := f.durable.Create(ctx, sess); err != nil {
		t.Fatalf("durable create: %v", err)
	}
	if _, err := f.cache.Get(ctx, sess.TokenHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cold cache, got %v", err)
	}

	got, err := f.repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if _, err := f.cache.Get(ctx, sess.TokenHash); err != nil {
		t.Fatalf("expected cache to be filled, got %v", err)
	}
}

func TestCachedRevokeIsVisibleImmediately(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-rv", "u-1")

	if err := f.repo.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.repo.Get(ctx, sess.TokenHash); err != nil {
		t.Fatalf("warm get: %v", err)
	}
	if err := f.repo.Revoke(ctx, sess.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, err := f.repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Revoked {
		t.Fatal("read after revoke must observe revocation")
	}
}

func TestCachedStaleFillAfterRevokeIsDropped(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-stale", "u-1")

	if err := f.durable.Create(ctx, sess); err != nil {
		t.Fatalf("durable create: %v", err)
	}
	// A reader loaded the live row before the revoke landed.
	stale, err := f.durable.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("durable get: %v", err)
	}
	if err := f.repo.Revoke(ctx, sess.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.cache.Fill(ctx, stale); err != nil {
		t.Fatalf("fill: %v", err)
	}

	got, err := f.repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Revoked {
		t.Fatal("stale fill reinstated a revoked session")
	}
}

func TestCachedRevokeAllMirrorsIntoCache(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()

	a, b := testSession("a", "u-all"), testSession("b", "u-all")
	for _, s := range []*Session{a, b} {
		if err := f.repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	hashes, err := f.repo.RevokeAllForUser(ctx, "u-all")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(hashes))
	}
	for _, s := range []*Session{a, b} {
		cached, err := f.cache.Get(ctx, s.TokenHash)
		if err != nil {
			t.Fatalf("cache get: %v", err)
		}
		if !cached.Revoked {
			t.Fatal("cache entry not revoked")
		}
	}
}

func TestCachedFallsBackToDurableWhenCacheDown(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-down", "u-1")

	if err := f.durable.Create(ctx, sess); err != nil {
		t.Fatalf("durable create: %v", err)
	}
	f.cacheMR.Close()

	got, err := f.repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get with cache down: %v", err)
	}
	if got.SessionID != sess.SessionID {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestCachedRechecksDurableWhenCachedIdleDeadlineLags(t *testing.T) {
	f, done := newCachedRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-lag", "u-1")
	sess.ExpiresAt = time.UnixMilli(time.Now().Add(-time.Second).UnixMilli())

	if err := f.cache.Fill(ctx, sess); err != nil {
		t.Fatalf("fill: %v", err)
	}
	fresh := *sess
	fresh.ExpiresAt = time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	if err := f.durable.Create(ctx, &fresh); err != nil {
		t.Fatalf("durable create: %v", err)
	}

	got, err := f.repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Expired(time.Now()) {
		t.Fatal("expected the durable deadline to win over a lagging cache entry")
	}
}
