package service

import (
	"context"
	"time"

	"github.com/iliyamo/library-service/internal/model"
)

const (
	DefaultTopBooks = 5
	maxTopBooks     = 50
	maxRangeDays    = 366
)

// StatsAggregator answers read-only reporting queries over the ledgers.
type StatsAggregator struct{ base }

func NewStatsAggregator(d Deps) *StatsAggregator { return &StatsAggregator{base: newBase(d)} }

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateRange validates the inclusive calendar range [from, to] and returns
// the half-open instant range [from, to+1d) used by queries.
func dateRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = day(from), day(to)
	if from.After(to) {
		return time.Time{}, time.Time{}, invalid("from must not be after to")
	}
	end := to.AddDate(0, 0, 1)
	if days := int(end.Sub(from).Hours() / 24); days > maxRangeDays {
		return time.Time{}, time.Time{}, invalid("range must not exceed %d days", maxRangeDays)
	}
	return from, end, nil
}

// Summary aggregates the range.  overdueLoans counts loans overdue right
// now regardless of the range.  limit <= 0 selects DefaultTopBooks.
func (s *StatsAggregator) Summary(ctx context.Context, from, to time.Time, limit int) (model.Summary, error) {
	start, end, err := dateRange(from, to)
	if err != nil {
		return model.Summary{}, err
	}
	switch {
	case limit <= 0:
		limit = DefaultTopBooks
	case limit > maxTopBooks:
		return model.Summary{}, invalid("limit must not exceed %d", maxTopBooks)
	}

	st := s.store.Stats()
	out := model.Summary{From: start, To: day(to)}
	if out.TotalLoans, err = st.CountLoansBetween(ctx, start, end); err != nil {
		return model.Summary{}, err
	}
	if out.OverdueLoans, err = st.CountOverdue(ctx, s.now()); err != nil {
		return model.Summary{}, err
	}
	if out.NewUsers, err = st.CountUsersCreatedBetween(ctx, start, end); err != nil {
		return model.Summary{}, err
	}
	if out.ActiveUsers, err = st.CountUsersByStatus(ctx, model.UserActive); err != nil {
		return model.Summary{}, err
	}
	if out.MostPopularBooks, err = st.MostPopularBooks(ctx, start, end, limit); err != nil {
		return model.Summary{}, err
	}
	if out.MostPopularBooks == nil {
		out.MostPopularBooks = []model.PopularBook{}
	}
	return out, nil
}

// LoansPerDay returns one bucket per calendar day of [from, to], including
// days without loans.
func (s *StatsAggregator) LoansPerDay(ctx context.Context, from, to time.Time) ([]model.DayCount, error) {
	start, end, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Stats().LoansPerDay(ctx, start, end)
	if err != nil {
		return nil, err
	}
	counts := make(map[time.Time]int64, len(rows))
	for _, r := range rows {
		counts[day(r.Day)] = r.Count
	}
	var out []model.DayCount
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, model.DayCount{Day: d, Count: counts[d]})
	}
	return out, nil
}
