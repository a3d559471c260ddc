package mysql

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const loanCols = `l.id, l.user_id, l.book_copy_id, l.loan_date, l.due_date, l.return_date, l.status,
	l.extensions_count, l.created_by, bc.book_id, b.title, bc.inventory_code, u.email, u.first_name, u.last_name`

const loanFrom = ` FROM loan l
	JOIN book_copy bc ON bc.id = l.book_copy_id
	JOIN book b ON b.id = bc.book_id
	JOIN app_user u ON u.id = l.user_id`

// LoanRepo persists loan rows.  Reads join in the copy, book and borrower
// so handlers can render a loan without further queries.
type LoanRepo struct{ db DBTX }

func NewLoanRepo(db DBTX) *LoanRepo { return &LoanRepo{db: db} }

func loanBase() *goqu.SelectDataset {
	return dialect.From(goqu.T("loan").As("l")).
		Join(goqu.T("book_copy").As("bc"), goqu.On(goqu.I("bc.id").Eq(goqu.I("l.book_copy_id")))).
		Join(goqu.T("book").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("bc.book_id")))).
		Join(goqu.T("app_user").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id"))))
}

func scanLoan(row rowScanner) (model.Loan, error) {
	var (
		l         model.Loan
		returned  sql.NullTime
		createdBy sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.UserID, &l.CopyID, &l.LoanDate, &l.DueDate, &returned, &l.Status,
		&l.ExtensionsCount, &createdBy, &l.BookID, &l.BookTitle, &l.InventoryCode,
		&l.UserEmail, &l.UserFirstName, &l.UserLastName)
	if err != nil {
		return model.Loan{}, err
	}
	l.ReturnDate = timePtr(returned)
	l.CreatedBy = u64Ptr(createdBy)
	l.LoanDate = l.LoanDate.UTC()
	l.DueDate = l.DueDate.UTC()
	return l, nil
}

func (r *LoanRepo) Create(ctx context.Context, l *model.Loan) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO loan (user_id, book_copy_id, loan_date, due_date, return_date, status, extensions_count, created_by)
		 VALUES (?,?,?,?,?,?,?,?)`,
		l.UserID, l.CopyID, l.LoanDate, l.DueDate, l.ReturnDate, l.Status, l.ExtensionsCount, l.CreatedBy)
	if err != nil {
		return err
	}
	l.ID, err = insertID(res)
	return err
}

func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (model.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, "SELECT "+loanCols+loanFrom+" WHERE l.id=?", id))
	return l, notFound(err)
}

// GetByIDForUpdate locks only the loan row; the joined rows stay unlocked.
func (r *LoanRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, "SELECT "+loanCols+loanFrom+" WHERE l.id=? FOR UPDATE OF l", id))
	return l, notFound(err)
}

func (r *LoanRepo) Update(ctx context.Context, l model.Loan) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE loan SET due_date=?, return_date=?, status=?, extensions_count=? WHERE id=?",
		l.DueDate, l.ReturnDate, l.Status, l.ExtensionsCount, l.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete is only used by the administrative override.
func (r *LoanRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM loan WHERE id=?", id)
	if err != nil {
		if isReferenced(err) {
			return repository.ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

// List returns one page of loans, newest first.
func (r *LoanRepo) List(ctx context.Context, f repository.LoanFilter, p repository.PageRequest) ([]model.Loan, int64, error) {
	ds := loanBase()
	if len(f.Statuses) > 0 {
		ds = ds.Where(goqu.I("l.status").In(f.Statuses))
	}
	if f.UserID != nil {
		ds = ds.Where(goqu.I("l.user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(goqu.I("bc.book_id").Eq(*f.BookID))
	}
	if f.From != nil {
		ds = ds.Where(goqu.I("l.loan_date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.I("l.loan_date").Lt(*f.To))
	}
	if f.OverdueAt != nil {
		ds = ds.Where(goqu.Or(
			goqu.And(goqu.I("l.status").Eq(model.LoanActive), goqu.I("l.due_date").Lt(*f.OverdueAt)),
			goqu.I("l.status").Eq(model.LoanOverdue),
		))
	}

	var out []model.Loan
	total, err := countAndList(ctx, r.db, ds, goqu.L(loanCols),
		[]exp.OrderedExpression{goqu.I("l.loan_date").Desc(), goqu.I("l.id").Desc()}, p,
		func(rows *sql.Rows) error {
			l, err := scanLoan(rows)
			if err != nil {
				return err
			}
			out = append(out, l)
			return nil
		})
	return out, total, err
}
