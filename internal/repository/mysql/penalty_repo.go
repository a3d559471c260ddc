package mysql

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const penaltyCols = "id, user_id, loan_id, amount, reason, status, created_at, resolved_at"

type PenaltyRepo struct{ db DBTX }

func NewPenaltyRepo(db DBTX) *PenaltyRepo { return &PenaltyRepo{db: db} }

func scanPenalty(row rowScanner) (model.Penalty, error) {
	var (
		p        model.Penalty
		loanID   sql.NullInt64
		resolved sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.UserID, &loanID, &p.Amount, &p.Reason, &p.Status, &p.CreatedAt, &resolved); err != nil {
		return model.Penalty{}, err
	}
	p.LoanID = u64Ptr(loanID)
	p.ResolvedAt = timePtr(resolved)
	return p, nil
}

func (r *PenaltyRepo) Create(ctx context.Context, p *model.Penalty) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO penalty (user_id, loan_id, amount, reason, status, created_at, resolved_at) VALUES (?,?,?,?,?,?,?)",
		p.UserID, p.LoanID, p.Amount, p.Reason, p.Status, p.CreatedAt, p.ResolvedAt)
	if err != nil {
		return err
	}
	p.ID, err = insertID(res)
	return err
}

func (r *PenaltyRepo) GetByID(ctx context.Context, id uint64) (model.Penalty, error) {
	p, err := scanPenalty(r.db.QueryRowContext(ctx, "SELECT "+penaltyCols+" FROM penalty WHERE id=?", id))
	return p, notFound(err)
}

func (r *PenaltyRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Penalty, error) {
	p, err := scanPenalty(r.db.QueryRowContext(ctx, "SELECT "+penaltyCols+" FROM penalty WHERE id=? FOR UPDATE", id))
	return p, notFound(err)
}

func (r *PenaltyRepo) Update(ctx context.Context, p model.Penalty) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE penalty SET status=?, resolved_at=? WHERE id=?", p.Status, p.ResolvedAt, p.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PenaltyRepo) List(ctx context.Context, f repository.PenaltyFilter, p repository.PageRequest) ([]model.Penalty, int64, error) {
	ds := dialect.From("penalty")
	if f.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(*f.UserID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}

	var out []model.Penalty
	total, err := countAndList(ctx, r.db, ds, goqu.L(penaltyCols),
		[]exp.OrderedExpression{goqu.C("created_at").Desc(), goqu.C("id").Desc()}, p,
		func(rows *sql.Rows) error {
			pen, err := scanPenalty(rows)
			if err != nil {
				return err
			}
			out = append(out, pen)
			return nil
		})
	return out, total, err
}
