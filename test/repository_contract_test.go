//go:build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/session"
)

func forEachRepository(t *testing.T, fn func(t *testing.T, repo session.Repository)) {
	for _, mode := range redisModes() {
		for _, factory := range repoFactories() {
			t.Run(mode.name+"/"+factory.name, func(t *testing.T) {
				rdb := mode.setup(t)
				fn(t, factory.new(t, rdb))
			})
		}
	}
}

func TestRepositoryCreateIsCreateIfAbsent(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo session.Repository) {
		ctx := context.Background()
		s := newSession("u1", 1, time.Now())

		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.Create(ctx, s); !errors.Is(err, session.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestRepositoryRevokedHashStaysReserved(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo session.Repository) {
		ctx := context.Background()
		s := newSession("u1", 2, time.Now())

		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.Revoke(ctx, s.TokenHash); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if err := repo.Revoke(ctx, s.TokenHash); err != nil {
			t.Fatalf("second revoke must succeed: %v", err)
		}

		got, err := repo.Get(ctx, s.TokenHash)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.Revoked {
			t.Fatal("expected revoked session")
		}
		if err := repo.Create(ctx, s); !errors.Is(err, session.ErrConflict) {
			t.Fatalf("revoked hash must not be reusable, got %v", err)
		}
	})
}

func TestRepositoryRevokeAllForUser(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo session.Repository) {
		ctx := context.Background()
		now := time.Now()
		for i := byte(0); i < 3; i++ {
			if err := repo.Create(ctx, newSession("u1", 10+i, now)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		other := newSession("u2", 20, now)
		if err := repo.Create(ctx, other); err != nil {
			t.Fatalf("create: %v", err)
		}

		hashes, err := repo.RevokeAllForUser(ctx, "u1")
		if err != nil {
			t.Fatalf("revoke all: %v", err)
		}
		if len(hashes) != 3 {
			t.Fatalf("expected 3 revoked hashes, got %d", len(hashes))
		}
		live, err := repo.ListForUser(ctx, "u1", now)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(live) != 0 {
			t.Fatalf("expected no live sessions, got %d", len(live))
		}
		got, err := repo.Get(ctx, other.TokenHash)
		if err != nil || got.Revoked {
			t.Fatalf("other user's session must survive, got %+v, %v", got, err)
		}
	})
}

func TestRepositoryTouchNeverShortens(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo session.Repository) {
		ctx := context.Background()
		now := time.Now()
		s := newSession("u1", 30, now)
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}

		if err := repo.Touch(ctx, s.TokenHash, now.Add(time.Minute), now.Add(5*time.Minute)); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, err := repo.Get(ctx, s.TokenHash)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ExpiresAt.Before(s.ExpiresAt.Truncate(time.Millisecond)) {
			t.Fatalf("touch shortened expiry from %v to %v", s.ExpiresAt, got.ExpiresAt)
		}

		later := now.Add(time.Hour)
		if err := repo.Touch(ctx, s.TokenHash, now.Add(2*time.Minute), later); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, err = repo.Get(ctx, s.TokenHash)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ExpiresAt.Before(later.Truncate(time.Millisecond)) {
			t.Fatalf("expected expiry moved to %v, got %v", later, got.ExpiresAt)
		}
	})
}

func TestRepositoryConcurrentRevokeAndGet(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo session.Repository) {
		ctx := context.Background()
		s := newSession("u1", 40, time.Now())
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Get(ctx, s.TokenHash); err != nil {
					t.Errorf("get: %v", err)
				}
			}()
		}
		if err := repo.Revoke(ctx, s.TokenHash); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		wg.Wait()

		got, err := repo.Get(ctx, s.TokenHash)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.Revoked {
			t.Fatal("a racing read must not reinstate a revoked session")
		}
	})
}
