// Package mysql implements the repository contracts on MySQL through
// database/sql.  Filtered list queries are built with goqu and the
// aggregate reads go through sqlx.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-service/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can
// run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repos binds every repository to one DBTX.
type repos struct{ q DBTX }

func (r repos) Users() repository.UserRepository               { return &UserRepo{db: r.q} }
func (r repos) Tokens() repository.TokenRepository             { return &TokenRepo{db: r.q} }
func (r repos) Authors() repository.AuthorRepository           { return &AuthorRepo{db: r.q} }
func (r repos) Categories() repository.CategoryRepository      { return &CategoryRepo{db: r.q} }
func (r repos) Books() repository.BookRepository               { return &BookRepo{db: r.q} }
func (r repos) Copies() repository.CopyRepository              { return &CopyRepo{db: r.q} }
func (r repos) Loans() repository.LoanRepository               { return &LoanRepo{db: r.q} }
func (r repos) Reservations() repository.ReservationRepository { return &ReservationRepo{db: r.q} }
func (r repos) Penalties() repository.PenaltyRepository        { return &PenaltyRepo{db: r.q} }

// Store is the MySQL-backed repository.Store.
type Store struct {
	repos
	db *sql.DB
	x  *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps an open connection pool (see database.Open).
func NewStore(db *sql.DB) *Store {
	return &Store{repos: repos{q: db}, db: db, x: sqlx.NewDb(db, "mysql")}
}

// Stats returns the read-only aggregate repository.  It always runs on the
// pool, never inside a transaction.
func (s *Store) Stats() repository.StatsRepository { return &StatsRepo{db: s.x} }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithTx begins a transaction, hands fn repositories bound to it and
// commits when fn returns nil.  Any error (or panic) rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(repos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
