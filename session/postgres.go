package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by PostgresRepository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `token_hash, session_id, user_id, issued_at, expires_at, absolute_expires_at,
	last_active_at, user_agent_hash, ip_hash, csrf_hash, revoked`

const (
	insertSessionSQL = `INSERT INTO sessions (` + sessionColumns + `)
SELECT $1::bytea, $2::text, $3::text, $4::timestamptz, $5::timestamptz, $6::timestamptz,
	$7::timestamptz, $8::bytea, $9::bytea, $10::bytea, $11::boolean
WHERE NOT EXISTS (SELECT 1 FROM spent_token_hashes WHERE token_hash = $1)
ON CONFLICT DO NOTHING`

	getSessionSQL = `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`

	touchSessionSQL = `UPDATE sessions
SET last_active_at = $2,
    expires_at = GREATEST(expires_at, LEAST($3, absolute_expires_at))
WHERE token_hash = $1 AND NOT revoked AND expires_at >= $4`

	setCSRFSQL = `UPDATE sessions SET csrf_hash = $2 WHERE token_hash = $1 AND NOT revoked`

	revokeSessionSQL = `UPDATE sessions SET revoked = TRUE, revoked_at = $2
WHERE token_hash = $1 AND NOT revoked`

	revokeUserSQL = `UPDATE sessions SET revoked = TRUE, revoked_at = $2
WHERE user_id = $1 AND NOT revoked
RETURNING token_hash`

	listUserSQL = `SELECT ` + sessionColumns + ` FROM sessions
WHERE user_id = $1 AND NOT revoked AND expires_at > $2 AND absolute_expires_at > $2
ORDER BY issued_at DESC`

	// Purged hashes move to spent_token_hashes so Create keeps rejecting them.
	purgeExpiredSQL = `WITH purged AS (
	DELETE FROM sessions WHERE absolute_expires_at < $1 RETURNING token_hash
), spent AS (
	INSERT INTO spent_token_hashes (token_hash, purged_at)
	SELECT token_hash, $1 FROM purged
	ON CONFLICT DO NOTHING
)
SELECT count(*) FROM purged`
)

// PostgresRepository is the durable session store. Each mutation is a single SQL
// statement, so revocation of all a user's sessions is atomic.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository returns a session repository that uses db for persistence.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts s. The token hash primary key and the spent_token_hashes table
// make reuse a conflict, including after the session was purged.
func (r *PostgresRepository) Create(ctx context.Context, s *Session) error {
	tag, err := r.db.Exec(ctx, insertSessionSQL,
		s.TokenHash[:],
		s.SessionID,
		s.UserID,
		s.IssuedAt,
		s.ExpiresAt,
		s.AbsoluteExpiresAt,
		s.LastActiveAt,
		s.Fingerprint.UserAgentHash[:],
		s.Fingerprint.IPHash[:],
		s.CSRFHash[:],
		s.Revoked,
	)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Get loads a session, revoked or not.
func (r *PostgresRepository) Get(ctx context.Context, tokenHash [32]byte) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(ctx, getSessionSQL, tokenHash[:]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return sess, nil
}

// Touch slides expires_at forward, capped at the absolute deadline in SQL.
func (r *PostgresRepository) Touch(ctx context.Context, tokenHash [32]byte, lastActive, expiresAt time.Time) error {
	if _, err := r.db.Exec(ctx, touchSessionSQL, tokenHash[:], lastActive, expiresAt, time.Now()); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetCSRF rebinds the CSRF token of a live session.
func (r *PostgresRepository) SetCSRF(ctx context.Context, tokenHash, csrfHash [32]byte) error {
	tag, err := r.db.Exec(ctx, setCSRFSQL, tokenHash[:], csrfHash[:])
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Revoke marks a session revoked. Missing or revoked rows are not an error.
func (r *PostgresRepository) Revoke(ctx context.Context, tokenHash [32]byte) error {
	if _, err := r.db.Exec(ctx, revokeSessionSQL, tokenHash[:], time.Now()); err != nil {
		return unavailable(err)
	}
	return nil
}

// RevokeAllForUser revokes every live session of userID in one UPDATE.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) ([][32]byte, error) {
	rows, err := r.db.Query(ctx, revokeUserSQL, userID, time.Now())
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out [][32]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable(err)
		}
		var h [32]byte
		copy(h[:], raw)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// ListForUser returns the user's live sessions, newest first.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	rows, err := r.db.Query(ctx, listUserSQL, userID, now)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// PurgeExpired deletes rows past their absolute deadline and keeps only their
// token hashes.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, purgeExpiredSQL, now).Scan(&n); err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var tokenHash, uaHash, ipHash, csrfHash []byte
	err := row.Scan(
		&tokenHash,
		&s.SessionID,
		&s.UserID,
		&s.IssuedAt,
		&s.ExpiresAt,
		&s.AbsoluteExpiresAt,
		&s.LastActiveAt,
		&uaHash,
		&ipHash,
		&csrfHash,
		&s.Revoked,
	)
	if err != nil {
		return nil, err
	}
	copy(s.TokenHash[:], tokenHash)
	copy(s.Fingerprint.UserAgentHash[:], uaHash)
	copy(s.Fingerprint.IPHash[:], ipHash)
	copy(s.CSRFHash[:], csrfHash)
	return &s, nil
}
