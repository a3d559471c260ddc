package model

import "time"

// Loan states.  OVERDUE is normally derived at read time from an ACTIVE
// loan's due date; it is only stored when an administrator sets it.
const (
	LoanActive   = "ACTIVE"
	LoanOverdue  = "OVERDUE"
	LoanReturned = "RETURNED"
	LoanLost     = "LOST"
)

// ValidLoanStatus reports whether s is a known loan status.
func ValidLoanStatus(s string) bool {
	switch s {
	case LoanActive, LoanOverdue, LoanReturned, LoanLost:
		return true
	}
	return false
}

// Loan links one user to one copy for a bounded period.
//
// BookID, BookTitle, InventoryCode, UserEmail, UserFirstName and
// UserLastName are joined in from book_copy, book and app_user on reads.
type Loan struct {
	ID              uint64     // loan.id
	UserID          uint64     // loan.user_id
	CopyID          uint64     // loan.book_copy_id
	LoanDate        time.Time  // loan.loan_date
	DueDate         time.Time  // loan.due_date
	ReturnDate      *time.Time // loan.return_date (nullable until returned)
	Status          string     // loan.status
	ExtensionsCount int        // loan.extensions_count
	CreatedBy       *uint64    // loan.created_by (admin who created it, nullable)

	BookID        uint64
	BookTitle     string
	InventoryCode string
	UserEmail     string
	UserFirstName string
	UserLastName  string
}

// Overdue reports whether the loan counts as overdue at now: either stored
// as OVERDUE or still ACTIVE past its due date.
func (l Loan) Overdue(now time.Time) bool {
	if l.Status == LoanOverdue {
		return true
	}
	return l.Status == LoanActive && l.DueDate.Before(now)
}

// Terminal reports whether no further transition is possible.
func (l Loan) Terminal() bool {
	return l.Status == LoanReturned || l.Status == LoanLost
}
