package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
)

// ReservationLedger tracks users' standing requests for a book.
type ReservationLedger struct {
	base
	ttl time.Duration
}

func NewReservationLedger(d Deps, policy LoanPolicy) *ReservationLedger {
	return &ReservationLedger{base: newBase(d), ttl: policy.withDefaults().ReservationTTL}
}

// CreateReservation opens an ACTIVE reservation.  At most one may exist per
// (user, book); expires_at is informational only.
func (s *ReservationLedger) CreateReservation(ctx context.Context, userID, bookID uint64) (model.Reservation, error) {
	var out model.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			return classify(err, entity("book", bookID))
		}
		if !book.IsActive {
			return notFound("book %d not found", bookID)
		}
		now := s.now()
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return classify(err, entity("user", userID))
		}
		if err := checkBorrower(user, now); err != nil {
			return err
		}
		// One ACTIVE reservation per (user, book).
		_, err = tx.Reservations().FindActive(ctx, userID, bookID)
		switch {
		case err == nil:
			return conflict("an active reservation for this book already exists")
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		expires := now.Add(s.ttl)
		out = model.Reservation{
			UserID:    userID,
			BookID:    bookID,
			Status:    model.ReservationActive,
			CreatedAt: now,
			ExpiresAt: &expires,
			BookTitle: book.Title,
		}
		if err := tx.Reservations().Create(ctx, &out); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict("an active reservation for this book already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.metrics.Reservation("created")
	ev := s.event(queue.ReservationCreated)
	ev.UserID, ev.BookID, ev.ReservationID = userID, bookID, out.ID
	s.publish(ctx, ev)
	return out, nil
}

// fulfillOnLoan runs inside the loan transaction.  It returns nil when the
// user has no ACTIVE reservation for the book.
func (s *ReservationLedger) fulfillOnLoan(ctx context.Context, tx repository.Repos, userID, bookID uint64, now time.Time) (*model.Reservation, error) {
	res, err := tx.Reservations().FindActive(ctx, userID, bookID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationFulfilled
	res.FulfilledAt = &now
	if err := tx.Reservations().Update(ctx, res); err != nil {
		return nil, err
	}
	return &res, nil
}

// fulfilled reports a reservation fulfilled by a committed loan.
func (s *ReservationLedger) fulfilled(ctx context.Context, res *model.Reservation, loanID uint64) {
	if res == nil {
		return
	}
	s.metrics.Reservation("fulfilled")
	ev := s.event(queue.ReservationFulfilled)
	ev.UserID, ev.BookID, ev.ReservationID, ev.LoanID = res.UserID, res.BookID, res.ID, loanID
	s.publish(ctx, ev)
}

// CancelReservation cancels an ACTIVE reservation.  Readers may only cancel
// their own; admins may cancel any.
func (s *ReservationLedger) CancelReservation(ctx context.Context, id uint64, actor Actor) (model.Reservation, error) {
	var out model.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		res, err := tx.Reservations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return classify(err, entity("reservation", id))
		}
		if !actor.IsAdmin() && res.UserID != actor.UserID {
			return forbidden("reservation %d belongs to another user", id)
		}
		if res.Status != model.ReservationActive {
			return conflict("reservation %d is %s", id, strings.ToLower(res.Status))
		}
		now := s.now()
		res.Status = model.ReservationCancelled
		res.CancelledAt = &now
		if err := tx.Reservations().Update(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.metrics.Reservation("cancelled")
	ev := s.event(queue.ReservationCancelled)
	ev.UserID, ev.BookID, ev.ReservationID = out.UserID, out.BookID, out.ID
	s.publish(ctx, ev)
	return out, nil
}

// ListReservations pages through reservations, newest first.
func (s *ReservationLedger) ListReservations(ctx context.Context, f repository.ReservationFilter, p repository.PageRequest) (Page[model.Reservation], error) {
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	switch f.Status {
	case "", model.ReservationActive, model.ReservationFulfilled, model.ReservationCancelled:
	default:
		return Page[model.Reservation]{}, invalid("unknown reservation status %q", f.Status)
	}
	items, total, err := s.store.Reservations().List(ctx, f, p)
	if err != nil {
		return Page[model.Reservation]{}, err
	}
	return newPage(items, total, p), nil
}
