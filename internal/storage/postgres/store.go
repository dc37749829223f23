package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hongminglow/portal-be/internal/storage"
	"github.com/hongminglow/portal-be/internal/storage/postgres/migrations"
)

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

const (
	uniqueViolation    = "23505"
	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_lower_key"
)

// querier is the subset of pgx shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store provides Postgres-backed persistence for users.
type Store struct {
	pool    Pool
	q       querier
	inTx    bool
	builder sq.StatementBuilderType
}

// NewUserStore connects to Postgres and applies the embedded migrations.
func NewUserStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return NewStore(pool), nil
}

// NewStore wraps an existing pool without touching the schema.
func NewStore(pool Pool) *Store {
	return &Store{
		pool:    pool,
		q:       pool,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a single transaction. Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Users) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, s.withTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) withTx(tx pgx.Tx) *Store {
	return &Store{
		pool:    s.pool,
		q:       tx,
		inTx:    true,
		builder: s.builder,
	}
}

// mapWriteError translates unique violations into the storage sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintUsername:
			return storage.ErrDuplicateUsername
		case constraintEmail:
			return storage.ErrDuplicateEmail
		default:
			return storage.ErrAlreadyExists
		}
	}
	return err
}
