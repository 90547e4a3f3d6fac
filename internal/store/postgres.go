package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antozhu/manhunt/internal/errs"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// repository upserts run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// New connects to PostgreSQL and returns a Postgres store.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewFromPool wraps an existing pool (used by tests).
func NewFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close closes the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Pool returns the underlying pgx pool (for goose migrations).
func (s *Postgres) Pool() *pgxpool.Pool {
	return s.pool
}

// Transact runs fn inside a pgx transaction, conditioned on games.version.
// The version bump and check are a single compare-and-set UPDATE; zero rows
// affected means another writer won and the whole transaction aborts.
func (s *Postgres) Transact(ctx context.Context, gameID string, expectedVersion int64, fn func(tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Persistence(err, "beginning transaction for game %s", gameID)
	}
	defer pgtx.Rollback(ctx)

	tag, err := pgtx.Exec(ctx,
		`UPDATE games SET version = version + 1 WHERE id = $1 AND version = $2`,
		gameID, expectedVersion,
	)
	if err != nil {
		return errs.Persistence(err, "bumping version for game %s", gameID)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict(errs.CodeVersionConflict,
			"game %s version changed (expected %d)", gameID, expectedVersion)
	}

	if err := fn(&pgTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return errs.Persistence(err, "committing transaction for game %s", gameID)
	}
	return nil
}

// AcquireLease takes or steals the lease for key if it is free or expired.
func (s *Postgres) AcquireLease(ctx context.Context, key string, ttl time.Duration, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO leases (key, expires_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE leases.expires_at <= $3`,
		key, now.Add(ttl), now,
	)
	if err != nil {
		return false, errs.Persistence(err, "acquiring lease %s", key)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease frees the lease for key.
func (s *Postgres) ReleaseLease(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM leases WHERE key = $1`, key); err != nil {
		return errs.Persistence(err, "releasing lease %s", key)
	}
	return nil
}

// pgTx adapts a pgx transaction to the Tx surface by reusing the repository
// helpers against the transaction connection, so in-transaction reads see
// uncommitted writes.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)
