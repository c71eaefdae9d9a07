package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedRepository reads through a Redis cache in front of a durable Repository.
//
// Writes go to the durable store first. Revocations are then mirrored into the cache
// as tombstones, and cache fills are create-if-absent, so a fill racing a revoke can
// never reinstate a revoked session.
type CachedRepository struct {
	durable Repository
	cache   *RedisRepository
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCachedRepository wraps durable with cache. A nil logger uses slog.Default().
func NewCachedRepository(durable Repository, cache *RedisRepository, logger *slog.Logger) *CachedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{durable: durable, cache: cache, logger: logger}
}

func (r *CachedRepository) Create(ctx context.Context, s *Session) error {
	if err := r.durable.Create(ctx, s); err != nil {
		return err
	}
	if err := r.cache.Fill(ctx, s); err != nil {
		r.logger.WarnContext(ctx, "session cache fill failed", slog.String("error", err.Error()))
	}
	return nil
}

func (r *CachedRepository) Get(ctx context.Context, tokenHash [32]byte) (*Session, error) {
	sess, err := r.cache.Get(ctx, tokenHash)
	switch {
	case err == nil:
		now := time.Now()
		// A cached idle deadline can lag behind a durable touch.
		if sess.Revoked || !sess.Expired(now) || now.After(sess.AbsoluteExpiresAt) {
			return sess, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		r.logger.WarnContext(ctx, "session cache read failed", slog.String("error", err.Error()))
	}

	v, err, _ := r.group.Do(member(tokenHash), func() (interface{}, error) {
		loaded, err := r.durable.Get(ctx, tokenHash)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Fill(ctx, loaded); err != nil {
			r.logger.WarnContext(ctx, "session cache fill failed", slog.String("error", err.Error()))
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*Session)
	return &cp, nil
}

func (r *CachedRepository) Touch(ctx context.Context, tokenHash [32]byte, lastActive, expiresAt time.Time) error {
	if err := r.durable.Touch(ctx, tokenHash, lastActive, expiresAt); err != nil {
		return err
	}
	if err := r.cache.Touch(ctx, tokenHash, lastActive, expiresAt); err != nil {
		_ = r.cache.Evict(ctx, tokenHash)
	}
	return nil
}

func (r *CachedRepository) SetCSRF(ctx context.Context, tokenHash, csrfHash [32]byte) error {
	if err := r.durable.SetCSRF(ctx, tokenHash, csrfHash); err != nil {
		return err
	}
	if err := r.cache.SetCSRF(ctx, tokenHash, csrfHash); err != nil && !errors.Is(err, ErrNotFound) {
		_ = r.cache.Evict(ctx, tokenHash)
	}
	return nil
}

// Revoke returns an error when the cache could not record the revocation. The durable
// row is already revoked at that point and the call is safe to retry.
func (r *CachedRepository) Revoke(ctx context.Context, tokenHash [32]byte) error {
	if err := r.durable.Revoke(ctx, tokenHash); err != nil {
		return err
	}
	return r.cache.Revoke(ctx, tokenHash)
}

func (r *CachedRepository) RevokeAllForUser(ctx context.Context, userID string) ([][32]byte, error) {
	hashes, err := r.durable.RevokeAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.MarkRevoked(ctx, userID, hashes); err != nil {
		return hashes, err
	}
	return hashes, nil
}

func (r *CachedRepository) ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	return r.durable.ListForUser(ctx, userID, now)
}

func (r *CachedRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.durable.PurgeExpired(ctx, now)
}
