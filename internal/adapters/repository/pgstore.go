package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Postgres-backed Store implementation.
//
// The UNIQUE constraint on members.rank is the storage-level guard the
// two-phase placeholder staging exists for: any write that would put
// two members on one rank fails immediately with ErrDuplicateRank.
// An Update call maps to one SQL transaction; an advisory transaction
// lock serializes concurrent engine invocations so two overlapping
// reshuffles cannot interleave.

const pgSchema = `
CREATE TABLE IF NOT EXISTS members (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    rank INTEGER NOT NULL UNIQUE
)`

// ladderLockKey is the advisory lock key scoped to "all ranked members".
const ladderLockKey = 0x6c616464 // "ladd"

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

// PGStore implements Store on top of Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore opens a Postgres-backed store and ensures the schema exists.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Update runs fn inside one SQL transaction holding the ladder advisory lock.
func (s *PGStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	err := s.inTx(ctx, false, fn)
	if err != nil {
		return err
	}
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	return nil
}

// View runs fn inside a read-only SQL transaction.
func (s *PGStore) View(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	err := s.inTx(ctx, true, fn)
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	return err
}

func (s *PGStore) inTx(ctx context.Context, readOnly bool, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback() // no-op after commit
	}()

	if !readOnly {
		// Released automatically at transaction end.
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ladderLockKey); err != nil {
			return fmt.Errorf("acquire ladder lock: %w", err)
		}
	}

	if err := fn(&pgTx{tx: sqlTx, readOnly: readOnly}); err != nil {
		return err
	}
	if readOnly {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

// pgTx implements Tx over *sql.Tx.
type pgTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *pgTx) ListByRank(ctx context.Context) ([]model.Member, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, rank FROM members ORDER BY rank ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Rank); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (t *pgTx) Get(ctx context.Context, id string) (model.Member, error) {
	var m model.Member
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, rank FROM members WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("get %q: %w", id, err)
	}
	return m, nil
}

func (t *pgTx) ByRank(ctx context.Context, rank int) (model.Member, error) {
	var m model.Member
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, rank FROM members WHERE rank = $1`, rank).
		Scan(&m.ID, &m.Name, &m.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, fmt.Errorf("rank %d: %w", rank, ErrNotFound)
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("rank %d: %w", rank, err)
	}
	return m, nil
}

func (t *pgTx) SetRank(ctx context.Context, id string, rank int) error {
	if t.readOnly {
		return ErrReadOnly
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE members SET rank = $1 WHERE id = $2`, rank, id)
	if err != nil {
		return fmt.Errorf("set rank %d for %q: %w", rank, id, translatePGError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rank %d for %q: %w", rank, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("set rank for %q: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) Insert(ctx context.Context, m model.Member) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO members (id, name, rank) VALUES ($1, $2, $3)`, m.ID, m.Name, m.Rank)
	if err != nil {
		return fmt.Errorf("insert %q: %w", m.ID, translatePGError(err))
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, id string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// translatePGError maps driver-level constraint violations onto the
// package's sentinel errors so callers can use errors.Is uniformly.
func translatePGError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case "members_pkey":
			return fmt.Errorf("%w: %s", ErrDuplicateID, pqErr.Detail)
		default:
			return fmt.Errorf("%w: %s", ErrDuplicateRank, pqErr.Detail)
		}
	}
	return err
}
