package mysql

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

type AuthorRepo struct{ db DBTX }

func NewAuthorRepo(db DBTX) *AuthorRepo { return &AuthorRepo{db: db} }

func (r *AuthorRepo) Create(ctx context.Context, a *model.Author) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO author (first_name, last_name, created_at) VALUES (?,?,?)",
		a.FirstName, a.LastName, a.CreatedAt)
	if err != nil {
		return err
	}
	a.ID, err = insertID(res)
	return err
}

func (r *AuthorRepo) GetByID(ctx context.Context, id uint64) (model.Author, error) {
	var a model.Author
	err := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, created_at FROM author WHERE id=?", id).
		Scan(&a.ID, &a.FirstName, &a.LastName, &a.CreatedAt)
	return a, notFound(err)
}

func (r *AuthorRepo) Update(ctx context.Context, a model.Author) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE author SET first_name=?, last_name=? WHERE id=?", a.FirstName, a.LastName, a.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the author.  The book_author foreign key has no cascade,
// so an author with books is rejected with ErrConflict.
func (r *AuthorRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM author WHERE id=?", id)
	if err != nil {
		if isReferenced(err) {
			return repository.ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

func (r *AuthorRepo) List(ctx context.Context, p repository.PageRequest) ([]model.Author, int64, error) {
	var out []model.Author
	total, err := countAndList(ctx, r.db, dialect.From("author"),
		goqu.L("id, first_name, last_name, created_at"),
		[]exp.OrderedExpression{goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("id").Asc()}, p,
		func(rows *sql.Rows) error {
			var a model.Author
			if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.CreatedAt); err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	return out, total, err
}

// CountExisting reports how many of the given ids exist.
func (r *AuthorRepo) CountExisting(ctx context.Context, ids []uint64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := dialect.From("author").
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("id").In(ids)).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}
