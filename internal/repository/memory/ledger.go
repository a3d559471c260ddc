package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

type loanRepo struct{ v view }

// joinLoan fills the fields MySQL would join in from copy, book and user.
func joinLoan(d *data, l model.Loan) model.Loan {
	if c, ok := d.copies[l.CopyID]; ok {
		l.BookID = c.BookID
		l.InventoryCode = c.InventoryCode
		if b, ok := d.books[c.BookID]; ok {
			l.BookTitle = b.Title
		}
	}
	if u, ok := d.users[l.UserID]; ok {
		l.UserEmail = u.Email
		l.UserFirstName = u.FirstName
		l.UserLastName = u.LastName
	}
	return l
}

func (r loanRepo) Create(_ context.Context, l *model.Loan) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.copies[l.CopyID]; !ok {
			return repository.ErrNotFound
		}
		l.ID = d.next("loan")
		d.loans[l.ID] = *l
		return nil
	})
}

func (r loanRepo) GetByID(_ context.Context, id uint64) (model.Loan, error) {
	var out model.Loan
	err := r.v.do(func(d *data) error {
		l, ok := d.loans[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = joinLoan(d, l)
		return nil
	})
	return out, err
}

func (r loanRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r loanRepo) Update(_ context.Context, l model.Loan) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.loans[l.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.DueDate = l.DueDate
		cur.ReturnDate = l.ReturnDate
		cur.Status = l.Status
		cur.ExtensionsCount = l.ExtensionsCount
		d.loans[l.ID] = cur
		return nil
	})
}

func (r loanRepo) Delete(_ context.Context, id uint64) error {
	return r.v.do(func(d *data) error {
		if _, ok := d.loans[id]; !ok {
			return repository.ErrNotFound
		}
		for _, p := range d.penalties {
			if p.LoanID != nil && *p.LoanID == id {
				return repository.ErrConflict
			}
		}
		delete(d.loans, id)
		return nil
	})
}

func (r loanRepo) List(_ context.Context, f repository.LoanFilter, p repository.PageRequest) ([]model.Loan, int64, error) {
	var (
		out   []model.Loan
		total int64
	)
	err := r.v.do(func(d *data) error {
		var all []model.Loan
		for _, stored := range d.loans {
			l := joinLoan(d, stored)
			if len(f.Statuses) > 0 && !inStrings(f.Statuses, l.Status) {
				continue
			}
			if f.UserID != nil && l.UserID != *f.UserID {
				continue
			}
			if f.BookID != nil && l.BookID != *f.BookID {
				continue
			}
			if f.From != nil && l.LoanDate.Before(*f.From) {
				continue
			}
			if f.To != nil && !l.LoanDate.Before(*f.To) {
				continue
			}
			if f.OverdueAt != nil && !l.Overdue(*f.OverdueAt) {
				continue
			}
			all = append(all, l)
		}
		out, total = page(all, p, func(a, b model.Loan) bool {
			if !a.LoanDate.Equal(b.LoanDate) {
				return a.LoanDate.After(b.LoanDate)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, total, err
}

func inStrings(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type reservationRepo struct{ v view }

func joinReservation(d *data, r model.Reservation) model.Reservation {
	if b, ok := d.books[r.BookID]; ok {
		r.BookTitle = b.Title
	}
	return r
}

func activeExists(d *data, userID, bookID, except uint64) bool {
	for _, r := range d.reservations {
		if r.ID != except && r.UserID == userID && r.BookID == bookID && r.Status == model.ReservationActive {
			return true
		}
	}
	return false
}

func (r reservationRepo) Create(_ context.Context, res *model.Reservation) error {
	return r.v.do(func(d *data) error {
		if res.Status == model.ReservationActive && activeExists(d, res.UserID, res.BookID, 0) {
			return repository.ErrConflict
		}
		res.ID = d.next("reservation")
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r reservationRepo) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	var out model.Reservation
	err := r.v.do(func(d *data) error {
		res, ok := d.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = joinReservation(d, res)
		return nil
	})
	return out, err
}

func (r reservationRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r reservationRepo) FindActive(_ context.Context, userID, bookID uint64) (model.Reservation, error) {
	var out model.Reservation
	err := r.v.do(func(d *data) error {
		for _, res := range d.reservations {
			if res.UserID == userID && res.BookID == bookID && res.Status == model.ReservationActive {
				out = joinReservation(d, res)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r reservationRepo) Update(_ context.Context, res model.Reservation) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.reservations[res.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if res.Status == model.ReservationActive && activeExists(d, cur.UserID, cur.BookID, cur.ID) {
			return repository.ErrConflict
		}
		cur.Status = res.Status
		cur.CancelledAt = res.CancelledAt
		cur.FulfilledAt = res.FulfilledAt
		d.reservations[res.ID] = cur
		return nil
	})
}

func (r reservationRepo) List(_ context.Context, f repository.ReservationFilter, p repository.PageRequest) ([]model.Reservation, int64, error) {
	var (
		out   []model.Reservation
		total int64
	)
	err := r.v.do(func(d *data) error {
		var all []model.Reservation
		for _, res := range d.reservations {
			if f.UserID != nil && res.UserID != *f.UserID {
				continue
			}
			if f.BookID != nil && res.BookID != *f.BookID {
				continue
			}
			if f.Status != "" && res.Status != f.Status {
				continue
			}
			all = append(all, joinReservation(d, res))
		}
		out, total = page(all, p, func(a, b model.Reservation) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, total, err
}

type penaltyRepo struct{ v view }

func (r penaltyRepo) Create(_ context.Context, p *model.Penalty) error {
	return r.v.do(func(d *data) error {
		p.ID = d.next("penalty")
		d.penalties[p.ID] = *p
		return nil
	})
}

func (r penaltyRepo) GetByID(_ context.Context, id uint64) (model.Penalty, error) {
	var out model.Penalty
	err := r.v.do(func(d *data) error {
		p, ok := d.penalties[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r penaltyRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Penalty, error) {
	return r.GetByID(ctx, id)
}

func (r penaltyRepo) Update(_ context.Context, p model.Penalty) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.penalties[p.ID]
		if !ok {
			return repository.ErrNotFound
		}
		cur.Status = p.Status
		cur.ResolvedAt = p.ResolvedAt
		d.penalties[p.ID] = cur
		return nil
	})
}

func (r penaltyRepo) List(_ context.Context, f repository.PenaltyFilter, p repository.PageRequest) ([]model.Penalty, int64, error) {
	var (
		out   []model.Penalty
		total int64
	)
	err := r.v.do(func(d *data) error {
		var all []model.Penalty
		for _, pen := range d.penalties {
			if f.UserID != nil && pen.UserID != *f.UserID {
				continue
			}
			if f.Status != "" && pen.Status != f.Status {
				continue
			}
			all = append(all, pen)
		}
		out, total = page(all, p, func(a, b model.Penalty) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, total, err
}

type statsRepo struct{ v view }

func inRange(t, from, to time.Time) bool { return !t.Before(from) && t.Before(to) }

func (r statsRepo) CountLoansBetween(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, l := range d.loans {
			if inRange(l.LoanDate, from, to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r statsRepo) CountOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, l := range d.loans {
			if l.Overdue(asOf) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r statsRepo) CountUsersCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, u := range d.users {
			if inRange(u.CreatedAt, from, to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r statsRepo) CountUsersByStatus(_ context.Context, status string) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, u := range d.users {
			if u.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r statsRepo) MostPopularBooks(_ context.Context, from, to time.Time, limit int) ([]model.PopularBook, error) {
	var out []model.PopularBook
	err := r.v.do(func(d *data) error {
		counts := map[uint64]int64{}
		for _, l := range d.loans {
			if !inRange(l.LoanDate, from, to) {
				continue
			}
			if c, ok := d.copies[l.CopyID]; ok {
				counts[c.BookID]++
			}
		}
		for id, n := range counts {
			out = append(out, model.PopularBook{BookID: id, Title: d.books[id].Title, LoansCount: n})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoansCount != out[j].LoansCount {
			return out[i].LoansCount > out[j].LoansCount
		}
		return out[i].BookID < out[j].BookID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r statsRepo) LoansPerDay(_ context.Context, from, to time.Time) ([]model.DayCount, error) {
	counts := map[time.Time]int64{}
	err := r.v.do(func(d *data) error {
		for _, l := range d.loans {
			if !inRange(l.LoanDate, from, to) {
				continue
			}
			t := l.LoanDate.UTC()
			counts[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)]++
		}
		return nil
	})
	out := make([]model.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, model.DayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, err
}
