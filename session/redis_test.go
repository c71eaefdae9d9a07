package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisRepositoryTest(t *testing.T) (*RedisRepository, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisRepository(rdb, RedisOptions{Prefix: "gt"})
	return repo, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(token, userID string) *Session {
	now := time.UnixMilli(time.Now().UnixMilli())
	return &Session{
		TokenHash:         HashToken(token),
		SessionID:         "sid-" + token,
		UserID:            userID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(30 * time.Minute),
		AbsoluteExpiresAt: now.Add(12 * time.Hour),
		LastActiveAt:      now,
		Fingerprint:       NewFingerprint("Mozilla/5.0", "203.0.113.9"),
		CSRFHash:          HashToken("csrf-" + token),
	}
}

func TestRedisCreateGetRoundTrip(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	in := testSession("tok-1", "u-1")

	if err := repo.Create(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := repo.Get(ctx, in.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.SessionID != in.SessionID || out.UserID != in.UserID || out.Revoked {
		t.Fatalf("unexpected session %+v", out)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) || !out.AbsoluteExpiresAt.Equal(in.AbsoluteExpiresAt) {
		t.Fatalf("deadlines changed: %v %v", out.ExpiresAt, out.AbsoluteExpiresAt)
	}
	if out.CSRFHash != in.CSRFHash || out.Fingerprint != in.Fingerprint {
		t.Fatal("bindings changed")
	}

	if _, err := repo.Get(ctx, HashToken("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisCreateRejectsReusedTokenHash(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-dup", "u-1")

	if err := repo.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, sess); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for live hash, got %v", err)
	}

	if err := repo.Revoke(ctx, sess.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := repo.Evict(ctx, sess.TokenHash); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if err := repo.Create(ctx, sess); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for tombstoned hash, got %v", err)
	}
}

func TestRedisRevokeIsIdempotent(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-rv", "u-1")

	if err := repo.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.Revoke(ctx, sess.TokenHash); err != nil {
			t.Fatalf("revoke #%d: %v", i+1, err)
		}
	}
	if err := repo.Revoke(ctx, HashToken("never-existed")); err != nil {
		t.Fatalf("revoke of unknown hash: %v", err)
	}

	got, err := repo.Get(ctx, sess.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Revoked {
		t.Fatal("expected session to be revoked")
	}
	list, err := repo.ListForUser(ctx, "u-1", time.Now())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no live sessions, got %d", len(list))
	}
}

func TestRedisRevokeAllForUser(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()

	tokens := []string{"a", "b", "c"}
	for _, tok := range tokens {
		if err := repo.Create(ctx, testSession(tok, "u-all")); err != nil {
			t.Fatalf("create %s: %v", tok, err)
		}
	}
	other := testSession("other", "u-other")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	list, err := repo.ListForUser(ctx, "u-all", time.Now())
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 live sessions, got %d (%v)", len(list), err)
	}

	revoked, err := repo.RevokeAllForUser(ctx, "u-all")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if len(revoked) != 3 {
		t.Fatalf("expected 3 revoked hashes, got %d", len(revoked))
	}
	for _, tok := range tokens {
		got, err := repo.Get(ctx, HashToken(tok))
		if err != nil {
			t.Fatalf("get %s: %v", tok, err)
		}
		if !got.Revoked {
			t.Fatalf("session %s not revoked", tok)
		}
	}

	again, err := repo.RevokeAllForUser(ctx, "u-all")
	if err != nil {
		t.Fatalf("second revoke all: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no hashes on second call, got %d", len(again))
	}

	got, err := repo.Get(ctx, other.TokenHash)
	if err != nil || got.Revoked {
		t.Fatalf("other user's session must stay live: %+v %v", got, err)
	}
}

func TestRedisRevokeAllConcurrentWithReadsSeesNoPartialState(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()

	const n = 20
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		s := testSession(string(rune('A'+i)), "u-race")
		keys[i] = repo.key(member(s.TokenHash))
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				cmds, err := repo.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					for _, k := range keys {
						pipe.HGet(ctx, k, fieldRevoked)
					}
					return nil
				})
				if err != nil {
					t.Errorf("snapshot: %v", err)
					return
				}
				revoked := 0
				for _, c := range cmds {
					if c.(*redis.StringCmd).Val() == "1" {
						revoked++
					}
				}
				if revoked != 0 && revoked != n {
					t.Errorf("observed partial revocation: %d of %d", revoked, n)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := repo.RevokeAllForUser(ctx, "u-race"); err != nil {
			t.Errorf("revoke all: %v", err)
		}
	}()
	wg.Wait()

	for _, k := range keys {
		if v := repo.redis.HGet(ctx, k, fieldRevoked).Val(); v != "1" {
			t.Fatalf("revocation must cover every session once the call returned, %s=%q", k, v)
		}
	}
}

func TestRedisTouchSlidesButNeverShortensOrResurrects(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-touch", "u-1")
	if err := repo.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := sess.ExpiresAt.Add(10 * time.Minute)
	if err := repo.Touch(ctx, sess.TokenHash, time.Now(), later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := repo.Get(ctx, sess.TokenHash)
	if !got.ExpiresAt.Equal(later) {
		t.Fatalf("expected expiry %v, got %v", later, got.ExpiresAt)
	}

	if err := repo.Touch(ctx, sess.TokenHash, time.Now(), sess.ExpiresAt); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = repo.Get(ctx, sess.TokenHash)
	if !got.ExpiresAt.Equal(later) {
		t.Fatal("touch must not shorten the deadline")
	}

	if err := repo.Revoke(ctx, sess.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := repo.Touch(ctx, sess.TokenHash, time.Now(), later.Add(time.Hour)); err != nil {
		t.Fatalf("touch revoked: %v", err)
	}
	got, _ = repo.Get(ctx, sess.TokenHash)
	if !got.ExpiresAt.Equal(later) || !got.Revoked {
		t.Fatal("touch must not modify a revoked session")
	}
}

func TestRedisFillNeverReinstatesRevokedHash(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-fill", "u-1")

	if err := repo.Revoke(ctx, sess.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := repo.Fill(ctx, sess); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if _, err := repo.Get(ctx, sess.TokenHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale fill must be dropped, got %v", err)
	}
}

func TestRedisSetCSRF(t *testing.T) {
	repo, _, done := newRedisRepositoryTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession("tok-csrf", "u-1")
	if err := repo.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := HashToken("rotated")
	if err := repo.SetCSRF(ctx, sess.TokenHash, next); err != nil {
		t.Fatalf("set csrf: %v", err)
	}
	got, _ := repo.Get(ctx, sess.TokenHash)
	if got.CSRFHash != next {
		t.Fatal("csrf binding not rotated")
	}
	if err := repo.SetCSRF(ctx, HashToken("missing"), next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUnavailableIsWrapped(t *testing.T) {
	repo, mr, done := newRedisRepositoryTest(t)
	defer done()
	mr.Close()

	_, err := repo.Get(context.Background(), HashToken("x"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
