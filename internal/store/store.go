package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the subset of pgxpool.Pool the repositories use.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool DBPool

	Users    UserRepository
	Sessions SessionRepository
	Messages MessageRepository
	Tasks    TaskRepository
}

// New wires concrete repository implementations with shared connection pool.
func New(pool DBPool) *Store {
	return &Store{
		pool:     pool,
		Users:    &userRepo{pool: pool},
		Sessions: &sessionRepo{pool: pool},
		Messages: &messageRepo{pool: pool},
		Tasks:    &taskRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}

// Migrate applies embedded migrations using the store's pool.
func (s *Store) Migrate(ctx context.Context) error {
	defer observeDB(ctx, "db.migrate")()
	return ApplyMigrations(ctx, s.pool)
}
