package mysql

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const reservationCols = "r.id, r.user_id, r.book_id, r.status, r.created_at, r.cancelled_at, r.fulfilled_at, r.expires_at, b.title"

const reservationFrom = " FROM reservation r JOIN book b ON b.id = r.book_id"

// ReservationRepo persists reservation rows.  The table carries a generated
// active_key column (user:book while ACTIVE, NULL otherwise) under a unique
// index, so a second ACTIVE reservation fails at insert time.
type ReservationRepo struct{ db DBTX }

func NewReservationRepo(db DBTX) *ReservationRepo { return &ReservationRepo{db: db} }

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		res                           model.Reservation
		cancelled, fulfilled, expires sql.NullTime
	)
	err := row.Scan(&res.ID, &res.UserID, &res.BookID, &res.Status, &res.CreatedAt,
		&cancelled, &fulfilled, &expires, &res.BookTitle)
	if err != nil {
		return model.Reservation{}, err
	}
	res.CancelledAt = timePtr(cancelled)
	res.FulfilledAt = timePtr(fulfilled)
	res.ExpiresAt = timePtr(expires)
	return res, nil
}

func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reservation (user_id, book_id, status, created_at, cancelled_at, fulfilled_at, expires_at)
		 VALUES (?,?,?,?,?,?,?)`,
		res.UserID, res.BookID, res.Status, res.CreatedAt, res.CancelledAt, res.FulfilledAt, res.ExpiresAt)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrConflict
		}
		return err
	}
	res.ID, err = insertID(result)
	return err
}

func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, "SELECT "+reservationCols+reservationFrom+" WHERE r.id=?", id))
	return res, notFound(err)
}

func (r *ReservationRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		"SELECT "+reservationCols+reservationFrom+" WHERE r.id=? FOR UPDATE OF r", id))
	return res, notFound(err)
}

// FindActive returns the user's ACTIVE reservation for the book, locked.
func (r *ReservationRepo) FindActive(ctx context.Context, userID, bookID uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		"SELECT "+reservationCols+reservationFrom+
			" WHERE r.user_id=? AND r.book_id=? AND r.status='ACTIVE' LIMIT 1 FOR UPDATE OF r",
		userID, bookID))
	return res, notFound(err)
}

func (r *ReservationRepo) Update(ctx context.Context, res model.Reservation) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE reservation SET status=?, cancelled_at=?, fulfilled_at=? WHERE id=?",
		res.Status, res.CancelledAt, res.FulfilledAt, res.ID)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrConflict
		}
		return err
	}
	return requireAffected(result)
}

func (r *ReservationRepo) List(ctx context.Context, f repository.ReservationFilter, p repository.PageRequest) ([]model.Reservation, int64, error) {
	ds := dialect.From(goqu.T("reservation").As("r")).
		Join(goqu.T("book").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id"))))
	if f.UserID != nil {
		ds = ds.Where(goqu.I("r.user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.I("r.book_id").Eq(*f.BookID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.I("r.status").Eq(f.Status))
	}

	var out []model.Reservation
	total, err := countAndList(ctx, r.db, ds, goqu.L(reservationCols),
		[]exp.OrderedExpression{goqu.I("r.created_at").Desc(), goqu.I("r.id").Desc()}, p,
		func(rows *sql.Rows) error {
			res, err := scanReservation(rows)
			if err != nil {
				return err
			}
			out = append(out, res)
			return nil
		})
	return out, total, err
}
