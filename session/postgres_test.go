package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRow struct {
	n   int64
	err error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.n
	return nil
}

// scriptedDB records statements and answers with fixed results.
type scriptedDB struct {
	statements []string
	execTag    pgconn.CommandTag
	row        scriptedRow
}

func (d *scriptedDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.statements = append(d.statements, sql)
	return d.execTag, nil
}

func (d *scriptedDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not scripted")
}

func (d *scriptedDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	d.statements = append(d.statements, sql)
	return d.row
}

func TestPostgresCreateChecksSpentHashes(t *testing.T) {
	db := &scriptedDB{execTag: pgconn.NewCommandTag("INSERT 0 0")}
	repo := NewPostgresRepository(db)

	err := repo.Create(context.Background(), &Session{TokenHash: HashToken("t"), SessionID: "s", UserID: "u"})
	assert.ErrorIs(t, err, ErrConflict)
	require.Len(t, db.statements, 1)
	assert.Contains(t, db.statements[0], "spent_token_hashes")
}

func TestPostgresPurgeRecordsSpentHashes(t *testing.T) {
	db := &scriptedDB{row: scriptedRow{n: 4}}
	repo := NewPostgresRepository(db)

	n, err := repo.PurgeExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.Len(t, db.statements, 1)
	assert.True(t, strings.Contains(db.statements[0], "DELETE FROM sessions") &&
		strings.Contains(db.statements[0], "INSERT INTO spent_token_hashes"))
}

func TestPostgresPurgeFailureIsUnavailable(t *testing.T) {
	db := &scriptedDB{row: scriptedRow{err: errors.New("connection reset")}}
	_, err := NewPostgresRepository(db).PurgeExpired(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}
