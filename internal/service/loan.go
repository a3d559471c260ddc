package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/queue"
	"github.com/iliyamo/library-service/internal/repository"
)

// LoanLedger owns the loan state machine:
//
//	ACTIVE -> RETURNED  (reader or admin return)
//	ACTIVE -> LOST      (admin)
//	ACTIVE -> OVERDUE   (admin only; otherwise overdue is derived at read time)
//
// RETURNED and LOST are terminal.
type LoanLedger struct {
	base
	policy       LoanPolicy
	copies       *CopyInventory
	reservations *ReservationLedger
}

func NewLoanLedger(d Deps, policy LoanPolicy, copies *CopyInventory, reservations *ReservationLedger) *LoanLedger {
	return &LoanLedger{base: newBase(d), policy: policy.withDefaults(), copies: copies, reservations: reservations}
}

func (s *LoanLedger) Policy() LoanPolicy { return s.policy }

// Now is the ledger's clock, used by callers that label loans as overdue.
func (s *LoanLedger) Now() time.Time { return s.now() }

// CreateLoan borrows the lowest-id available copy of a book for a reader and
// fulfills the reader's ACTIVE reservation for it, all in one transaction.
func (s *LoanLedger) CreateLoan(ctx context.Context, userID, bookID uint64) (model.Loan, error) {
	var (
		out       model.Loan
		fulfilled *model.Reservation
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		now := s.now()
		// Inactive books are invisible to readers.
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			return classify(err, entity("book", bookID))
		}
		if !book.IsActive {
			return notFound("book %d not found", bookID)
		}
		// The account may have been blocked after the token was issued.
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return classify(err, entity("user", userID))
		}
		if err := checkBorrower(user, now); err != nil {
			return err
		}

		// Lock the lowest-id AVAILABLE copy and flip it to BORROWED.
		c, err := s.copies.checkout(ctx, tx, bookID)
		if err != nil {
			return err
		}
		out = model.Loan{
			UserID:        userID,
			CopyID:        c.ID,
			LoanDate:      now,
			DueDate:       now.Add(s.policy.LoanPeriod),
			Status:        model.LoanActive,
			BookID:        bookID,
			BookTitle:     book.Title,
			InventoryCode: c.InventoryCode,
			UserEmail:     user.Email,
			UserFirstName: user.FirstName,
			UserLastName:  user.LastName,
		}
		if err := tx.Loans().Create(ctx, &out); err != nil {
			return err
		}
		// A loan closes the reader's own ACTIVE reservation, if any.
		fulfilled, err = s.reservations.fulfillOnLoan(ctx, tx, userID, bookID, now)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.created(ctx, out, fulfilled)
	return out, nil
}

func (s *LoanLedger) created(ctx context.Context, l model.Loan, fulfilled *model.Reservation) {
	s.metrics.LoanCreated()
	s.logger.Info("loan created", "loan_id", l.ID, "user_id", l.UserID, "copy_id", l.CopyID)
	ev := s.event(queue.LoanCreated)
	ev.UserID, ev.BookID, ev.LoanID = l.UserID, l.BookID, l.ID
	s.publish(ctx, ev)
	s.reservations.fulfilled(ctx, fulfilled, l.ID)
}

// ownedForUpdate locks a loan and checks that userID owns it.
func ownedForUpdate(ctx context.Context, tx repository.Repos, loanID, userID uint64) (model.Loan, error) {
	l, err := tx.Loans().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return model.Loan{}, classify(err, entity("loan", loanID))
	}
	if l.UserID != userID {
		return model.Loan{}, forbidden("loan %d belongs to another user", loanID)
	}
	return l, nil
}

// ExtendLoan pushes the due date of an ACTIVE loan.  additionalDays nil
// means the policy default.
func (s *LoanLedger) ExtendLoan(ctx context.Context, loanID, userID uint64, additionalDays *int) (model.Loan, error) {
	days, err := s.policy.extensionDays(additionalDays)
	if err != nil {
		return model.Loan{}, err
	}
	var out model.Loan
	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		l, err := ownedForUpdate(ctx, tx, loanID, userID)
		if err != nil {
			return err
		}
		if l.Status != model.LoanActive {
			return conflict("loan %d is %s and cannot be extended", loanID, strings.ToLower(l.Status))
		}
		// Extensions stack on the current due date, not on today.
		if l.ExtensionsCount >= s.policy.MaxExtensions {
			return conflict("loan %d has reached the maximum of %d extensions", loanID, s.policy.MaxExtensions)
		}
		l.DueDate = l.DueDate.AddDate(0, 0, days)
		l.ExtensionsCount++
		if err := tx.Loans().Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.metrics.LoanExtended()
	ev := s.event(queue.LoanExtended)
	ev.UserID, ev.BookID, ev.LoanID = out.UserID, out.BookID, out.ID
	ev.Detail = "due " + out.DueDate.Format(time.DateOnly)
	s.publish(ctx, ev)
	return out, nil
}

// ReturnLoan closes an ACTIVE (or administratively OVERDUE) loan and puts
// the copy back on the shelf.
func (s *LoanLedger) ReturnLoan(ctx context.Context, loanID, userID uint64) (model.Loan, error) {
	var out model.Loan
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		l, err := ownedForUpdate(ctx, tx, loanID, userID)
		if err != nil {
			return err
		}
		// Overdue loans still come back through the normal return path.
		if l.Status != model.LoanActive && l.Status != model.LoanOverdue {
			return conflict("loan %d is %s and cannot be returned", loanID, strings.ToLower(l.Status))
		}
		out, err = s.closeReturned(ctx, tx, l, s.now())
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.returned(ctx, out)
	return out, nil
}

func (s *LoanLedger) closeReturned(ctx context.Context, tx repository.Repos, l model.Loan, at time.Time) (model.Loan, error) {
	l.Status = model.LoanReturned
	l.ReturnDate = &at
	if err := tx.Loans().Update(ctx, l); err != nil {
		return model.Loan{}, err
	}
	if err := s.copies.release(ctx, tx, l.CopyID, model.CopyAvailable); err != nil {
		return model.Loan{}, err
	}
	return l, nil
}

func (s *LoanLedger) returned(ctx context.Context, l model.Loan) {
	s.metrics.LoanReturned()
	ev := s.event(queue.LoanReturned)
	ev.UserID, ev.BookID, ev.LoanID = l.UserID, l.BookID, l.ID
	s.publish(ctx, ev)
}

// ListOverdueLoans lists ACTIVE loans whose due date is before asOf, plus
// loans an administrator has marked OVERDUE.
func (s *LoanLedger) ListOverdueLoans(ctx context.Context, asOf time.Time, p repository.PageRequest) (Page[model.Loan], error) {
	asOf = asOf.UTC()
	return s.list(ctx, repository.LoanFilter{OverdueAt: &asOf}, p)
}

// ListUserLoans lists one user's loans, optionally by stored status.
func (s *LoanLedger) ListUserLoans(ctx context.Context, userID uint64, status string, p repository.PageRequest) (Page[model.Loan], error) {
	f := repository.LoanFilter{UserID: &userID}
	if status != "" {
		st, err := parseLoanStatus(status)
		if err != nil {
			return Page[model.Loan]{}, err
		}
		f.Statuses = []string{st}
	}
	return s.list(ctx, f, p)
}

// ListUserHistory lists a user's closed (RETURNED or LOST) loans.
func (s *LoanLedger) ListUserHistory(ctx context.Context, userID uint64, p repository.PageRequest) (Page[model.Loan], error) {
	return s.list(ctx, repository.LoanFilter{UserID: &userID, Statuses: []string{model.LoanReturned, model.LoanLost}}, p)
}

// LoanQuery is the admin loan listing filter.  From and To bound loan_date
// as [From, To).
type LoanQuery struct {
	Status string
	UserID *uint64
	BookID *uint64
	From   *time.Time
	To     *time.Time
}

func (s *LoanLedger) ListLoans(ctx context.Context, q LoanQuery, p repository.PageRequest) (Page[model.Loan], error) {
	f := repository.LoanFilter{UserID: q.UserID, BookID: q.BookID, From: q.From, To: q.To}
	if q.Status != "" {
		st, err := parseLoanStatus(q.Status)
		if err != nil {
			return Page[model.Loan]{}, err
		}
		f.Statuses = []string{st}
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return Page[model.Loan]{}, invalid("from must not be after to")
	}
	return s.list(ctx, f, p)
}

func (s *LoanLedger) list(ctx context.Context, f repository.LoanFilter, p repository.PageRequest) (Page[model.Loan], error) {
	items, total, err := s.store.Loans().List(ctx, f, p)
	if err != nil {
		return Page[model.Loan]{}, err
	}
	return newPage(items, total, p), nil
}

func parseLoanStatus(s string) (string, error) {
	st := strings.ToUpper(strings.TrimSpace(s))
	if !model.ValidLoanStatus(st) {
		return "", invalid("unknown loan status %q", s)
	}
	return st, nil
}

func (s *LoanLedger) GetLoan(ctx context.Context, id uint64) (model.Loan, error) {
	l, err := s.store.Loans().GetByID(ctx, id)
	return l, classify(err, entity("loan", id))
}

// AdminLoanInput opens a loan on a specific copy.  DueDate defaults to now
// plus the loan period.
type AdminLoanInput struct {
	UserID  uint64
	CopyID  uint64
	DueDate *time.Time
}

// AdminCreateLoan lends a specific copy on behalf of a user.
func (s *LoanLedger) AdminCreateLoan(ctx context.Context, in AdminLoanInput, adminID uint64) (model.Loan, error) {
	now := s.now()
	due := now.Add(s.policy.LoanPeriod)
	if in.DueDate != nil {
		due = in.DueDate.UTC()
		if !due.After(now) {
			return model.Loan{}, invalid("dueDate must be in the future")
		}
	}
	var (
		out       model.Loan
		fulfilled *model.Reservation
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		user, err := tx.Users().GetByID(ctx, in.UserID)
		if err != nil {
			return classify(err, entity("user", in.UserID))
		}
		if user.Status == model.UserDeleted {
			return notFound("user %d not found", in.UserID)
		}
		// claim fails unless the copy is AVAILABLE at lock time.
		c, err := tx.Copies().GetByID(ctx, in.CopyID)
		if err != nil {
			return classify(err, entity("copy", in.CopyID))
		}
		if err := s.copies.claim(ctx, tx, c.ID); err != nil {
			return err
		}
		admin := adminID
		out = model.Loan{
			UserID:    in.UserID,
			CopyID:    c.ID,
			LoanDate:  now,
			DueDate:   due,
			Status:    model.LoanActive,
			CreatedBy: &admin,
		}
		if err := tx.Loans().Create(ctx, &out); err != nil {
			return err
		}
		if fulfilled, err = s.reservations.fulfillOnLoan(ctx, tx, in.UserID, c.BookID, now); err != nil {
			return err
		}
		out, err = tx.Loans().GetByID(ctx, out.ID)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	s.created(ctx, out, fulfilled)
	return out, nil
}

// LoanUpdate is an admin correction.  Nil fields are left unchanged.
type LoanUpdate struct {
	Status     *string
	DueDate    *time.Time
	ReturnDate *time.Time
}

// AdminUpdateLoan applies an admin correction.  Moving to RETURNED frees the
// copy (return date defaults to now); moving to LOST marks the copy LOST.
// Closed loans cannot change status.
func (s *LoanLedger) AdminUpdateLoan(ctx context.Context, id uint64, in LoanUpdate) (model.Loan, error) {
	var (
		out         model.Loan
		nowReturned bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		l, err := tx.Loans().GetByIDForUpdate(ctx, id)
		if err != nil {
			return classify(err, entity("loan", id))
		}
		target := l.Status
		if in.Status != nil {
			if target, err = parseLoanStatus(*in.Status); err != nil {
				return err
			}
		}
		if l.Terminal() && target != l.Status {
			return conflict("loan %d is %s and cannot change status", id, strings.ToLower(l.Status))
		}
		if in.DueDate != nil {
			due := in.DueDate.UTC()
			if due.Before(l.LoanDate) {
				return invalid("dueDate must not be before the loan date")
			}
			l.DueDate = due
		}
		if in.ReturnDate != nil && target != model.LoanReturned {
			return invalid("returnDate can only be set on a RETURNED loan")
		}

		// Status transitions decide what happens to the copy.
		switch {
		case target == l.Status:
			if in.ReturnDate != nil {
				rd := in.ReturnDate.UTC()
				l.ReturnDate = &rd
			}
		case target == model.LoanReturned:
			at := s.now()
			if in.ReturnDate != nil {
				at = in.ReturnDate.UTC()
			}
			if at.Before(l.LoanDate) {
				return invalid("returnDate must not be before the loan date")
			}
			l, err = s.closeReturned(ctx, tx, l, at)
			if err != nil {
				return err
			}
			nowReturned = true
		case target == model.LoanLost:
			l.Status = model.LoanLost
			if err := s.copies.release(ctx, tx, l.CopyID, model.CopyLost); err != nil {
				return err
			}
		default:
			l.Status = target
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	if nowReturned {
		s.returned(ctx, out)
	}
	return out, nil
}

// AdminDeleteLoan removes a loan record.  An open loan first frees its
// copy.  Loans referenced by penalties cannot be deleted.
func (s *LoanLedger) AdminDeleteLoan(ctx context.Context, id uint64) error {
	return s.store.WithTx(ctx, func(tx repository.Repos) error {
		l, err := tx.Loans().GetByIDForUpdate(ctx, id)
		if err != nil {
			return classify(err, entity("loan", id))
		}
		// An open loan still holds its copy.
		if !l.Terminal() {
			if err := s.copies.release(ctx, tx, l.CopyID, model.CopyAvailable); err != nil {
				return err
			}
		}
		if err := tx.Loans().Delete(ctx, id); err != nil {
			return classify(err, entity("loan", id))
		}
		return nil
	})
}
