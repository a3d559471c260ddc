package mysql

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-service/internal/model"
)

// StatsRepo runs the dashboard aggregates.  Scanning into tagged structs
// is left to sqlx.
type StatsRepo struct{ db *sqlx.DB }

func NewStatsRepo(db *sqlx.DB) *StatsRepo { return &StatsRepo{db: db} }

func (r *StatsRepo) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, query, args...)
	return n, err
}

func (r *StatsRepo) CountLoansBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM loan WHERE loan_date >= ? AND loan_date < ?", from, to)
}

func (r *StatsRepo) CountOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM loan WHERE (status = 'ACTIVE' AND due_date < ?) OR status = 'OVERDUE'", asOf)
}

func (r *StatsRepo) CountUsersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM app_user WHERE created_at >= ? AND created_at < ?", from, to)
}

func (r *StatsRepo) CountUsersByStatus(ctx context.Context, status string) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM app_user WHERE status = ?", status)
}

func (r *StatsRepo) MostPopularBooks(ctx context.Context, from, to time.Time, limit int) ([]model.PopularBook, error) {
	var out []model.PopularBook
	err := r.db.SelectContext(ctx, &out, `
		SELECT b.id AS book_id, b.title AS title, COUNT(l.id) AS loans_count
		FROM loan l
		JOIN book_copy bc ON bc.id = l.book_copy_id
		JOIN book b ON b.id = bc.book_id
		WHERE l.loan_date >= ? AND l.loan_date < ?
		GROUP BY b.id, b.title
		ORDER BY loans_count DESC, b.id ASC
		LIMIT ?`, from, to, limit)
	return out, err
}

func (r *StatsRepo) LoansPerDay(ctx context.Context, from, to time.Time) ([]model.DayCount, error) {
	var out []model.DayCount
	err := r.db.SelectContext(ctx, &out, `
		SELECT DATE(loan_date) AS day, COUNT(*) AS loans_count
		FROM loan
		WHERE loan_date >= ? AND loan_date < ?
		GROUP BY DATE(loan_date)
		ORDER BY day`, from, to)
	return out, err
}
