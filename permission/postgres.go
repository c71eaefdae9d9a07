package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool used by PostgresGrantStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	selectGrantsSQL = `SELECT subject_id, permission, effect, expires_at
FROM permission_grants
WHERE subject_id = ANY($1)`

	upsertGrantSQL = `INSERT INTO permission_grants (subject_id, permission, effect, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (subject_id, permission, effect) DO UPDATE SET expires_at = EXCLUDED.expires_at`

	deleteGrantSQL = `DELETE FROM permission_grants
WHERE subject_id = $1 AND permission = $2 AND effect = $3`
)

// PostgresGrantStore keeps grants in the permission_grants table. Permissions and
// effects are stored by name so the table stays readable across enum reorderings.
type PostgresGrantStore struct {
	db DBTX
}

// NewPostgresGrantStore returns a grant store backed by db.
func NewPostgresGrantStore(db DBTX) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

// GrantsFor implements GrantStore. Rows naming a permission outside the closed set are skipped.
func (s *PostgresGrantStore) GrantsFor(ctx context.Context, subjectIDs []string) ([]Grant, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, selectGrantsSQL, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var (
			subject, permName, effectName string
			expiresAt                     *time.Time
		)
		if err := rows.Scan(&subject, &permName, &effectName, &expiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		p, err := ParsePermission(permName)
		if err != nil {
			continue
		}
		e, err := ParseEffect(effectName)
		if err != nil {
			continue
		}
		g := Grant{SubjectID: subject, Permission: p, Effect: e}
		if expiresAt != nil {
			g.ExpiresAt = *expiresAt
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Put implements GrantStore.
func (s *PostgresGrantStore) Put(ctx context.Context, g Grant) error {
	if err := g.Validate(); err != nil {
		return err
	}

	var expiresAt *time.Time
	if !g.ExpiresAt.IsZero() {
		t := g.ExpiresAt.UTC()
		expiresAt = &t
	}
	if _, err := s.db.Exec(ctx, upsertGrantSQL, g.SubjectID, g.Permission.String(), g.Effect.String(), expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete implements GrantStore.
func (s *PostgresGrantStore) Delete(ctx context.Context, subjectID string, p Permission, e Effect) error {
	if _, err := s.db.Exec(ctx, deleteGrantSQL, subjectID, p.String(), e.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
