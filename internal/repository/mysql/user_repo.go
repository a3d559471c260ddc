package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const userCols = "id,email,password_hash,first_name,last_name,role,status,blocked_reason,blocked_until,created_at,updated_at"

// UserRepo persists app_user rows.
type UserRepo struct{ db DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{db: db} }

func scanUser(row rowScanner) (model.User, error) {
	var (
		u       model.User
		reason  sql.NullString
		blocked sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Status,
		&reason, &blocked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.BlockedReason = strPtr(reason)
	u.BlockedUntil = timePtr(blocked)
	return u, nil
}

// Create inserts the user and sets its ID.  The email is normalized first.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO app_user (email,password_hash,first_name,last_name,role,status,blocked_reason,blocked_until,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Status, u.BlockedReason, u.BlockedUntil, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	u.ID, err = insertID(res)
	return err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM app_user WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM app_user WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// Update writes every mutable column except the password hash.
func (r *UserRepo) Update(ctx context.Context, u model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.db.ExecContext(ctx,
		"UPDATE app_user SET email=?, first_name=?, last_name=?, role=?, status=?, blocked_reason=?, blocked_until=?, updated_at=? WHERE id=?",
		u.Email, u.FirstName, u.LastName, u.Role, u.Status, u.BlockedReason, u.BlockedUntil, u.UpdatedAt, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	return requireAffected(res)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE app_user SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// List returns one page of users matching the filter, newest id last.
func (r *UserRepo) List(ctx context.Context, f repository.UserFilter, p repository.PageRequest) ([]model.User, int64, error) {
	ds := dialect.From("app_user")
	if f.Role != "" {
		ds = ds.Where(goqu.C("role").Eq(f.Role))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%" // case-insensitive under the utf8mb4 collation
		ds = ds.Where(goqu.Or(
			goqu.C("email").Like(like),
			goqu.C("first_name").Like(like),
			goqu.C("last_name").Like(like),
		))
	}

	var out []model.User
	total, err := countAndList(ctx, r.db, ds, goqu.L(userCols),
		[]exp.OrderedExpression{goqu.C("id").Asc()}, p,
		func(rows *sql.Rows) error {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	return out, total, err
}
