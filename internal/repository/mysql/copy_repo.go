package mysql

import (
	"context"
	"database/sql"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const copyCols = "id, book_id, inventory_code, shelf_location, status, created_at"

// CopyRepo persists book_copy rows.  Status changes made during a loan are
// either locked reads (FirstAvailableForUpdate) or compare-and-set writes,
// so two transactions can never hand out the same copy.
type CopyRepo struct{ db DBTX }

func NewCopyRepo(db DBTX) *CopyRepo { return &CopyRepo{db: db} }

func scanCopy(row rowScanner) (model.Copy, error) {
	var (
		c     model.Copy
		shelf sql.NullString
	)
	if err := row.Scan(&c.ID, &c.BookID, &c.InventoryCode, &shelf, &c.Status, &c.CreatedAt); err != nil {
		return model.Copy{}, err
	}
	c.ShelfLocation = strPtr(shelf)
	return c, nil
}

func (r *CopyRepo) Create(ctx context.Context, c *model.Copy) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO book_copy (book_id, inventory_code, shelf_location, status, created_at) VALUES (?,?,?,?,?)",
		c.BookID, c.InventoryCode, c.ShelfLocation, c.Status, c.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	c.ID, err = insertID(res)
	return err
}

func (r *CopyRepo) GetByID(ctx context.Context, id uint64) (model.Copy, error) {
	c, err := scanCopy(r.db.QueryRowContext(ctx, "SELECT "+copyCols+" FROM book_copy WHERE id=?", id))
	return c, notFound(err)
}

// FirstAvailableForUpdate picks the lowest-id AVAILABLE copy and locks it.
func (r *CopyRepo) FirstAvailableForUpdate(ctx context.Context, bookID uint64) (model.Copy, error) {
	c, err := scanCopy(r.db.QueryRowContext(ctx,
		"SELECT "+copyCols+" FROM book_copy WHERE book_id=? AND status='AVAILABLE' ORDER BY id LIMIT 1 FOR UPDATE",
		bookID))
	return c, notFound(err)
}

func (r *CopyRepo) CompareAndSetStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE book_copy SET status=? WHERE id=? AND status=?", to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CopyRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE book_copy SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *CopyRepo) CountByStatus(ctx context.Context, bookID uint64, status string) (int64, error) {
	var (
		n   int64
		err error
	)
	if status == "" {
		err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM book_copy WHERE book_id=?", bookID).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM book_copy WHERE book_id=? AND status=?", bookID, status).Scan(&n)
	}
	return n, err
}

func (r *CopyRepo) ListByBook(ctx context.Context, bookID uint64) ([]model.Copy, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+copyCols+" FROM book_copy WHERE book_id=? ORDER BY id", bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CopyRepo) InventoryCodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM book_copy WHERE inventory_code=? LIMIT 1", code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
