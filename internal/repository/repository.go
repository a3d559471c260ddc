package repository

import (
	"context"
	"time"

	"github.com/iliyamo/library-service/internal/model"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects one 0-based page of a list.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of rows skipped before the page.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// UserFilter narrows the admin user list.  Search matches email, first or
// last name.
type UserFilter struct {
	Role   string
	Status string
	Search string
}

// BookFilter narrows the catalog.  Author matches "first last" of any of
// the book's authors.
type BookFilter struct {
	Title         string
	Author        string
	CategoryID    *uint64
	YearFrom      *int
	YearTo        *int
	AvailableOnly bool
	ActiveOnly    bool
}

// LoanFilter narrows loan lists.  From/To bound loan_date (To exclusive);
// OverdueAt selects loans overdue at the instant: ACTIVE with a due date
// strictly before it, or stored as OVERDUE by an administrator.
type LoanFilter struct {
	Statuses  []string
	UserID    *uint64
	BookID    *uint64
	From      *time.Time
	To        *time.Time
	OverdueAt *time.Time
}

// ReservationFilter narrows reservation lists.
type ReservationFilter struct {
	UserID *uint64
	BookID *uint64
	Status string
}

// PenaltyFilter narrows penalty lists.
type PenaltyFilter struct {
	UserID *uint64
	Status string
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Update(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	List(ctx context.Context, f UserFilter, p PageRequest) ([]model.User, int64, error)
}

type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	// RevokeByHash fails with ErrNotFound unless it revoked a live token.
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type AuthorRepository interface {
	Create(ctx context.Context, a *model.Author) error
	GetByID(ctx context.Context, id uint64) (model.Author, error)
	Update(ctx context.Context, a model.Author) error
	// Delete fails with ErrConflict while the author is linked to a book.
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, p PageRequest) ([]model.Author, int64, error)
	CountExisting(ctx context.Context, ids []uint64) (int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id uint64) (model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
}

// BookRepository reads books with their authors, category name and copy
// counters filled in.
type BookRepository interface {
	Create(ctx context.Context, b *model.Book) error
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	Update(ctx context.Context, b model.Book) error
	SetAuthors(ctx context.Context, bookID uint64, authorIDs []uint64) error
	Search(ctx context.Context, f BookFilter, p PageRequest) ([]model.Book, int64, error)
}

type CopyRepository interface {
	Create(ctx context.Context, c *model.Copy) error
	GetByID(ctx context.Context, id uint64) (model.Copy, error)
	// FirstAvailableForUpdate returns the lowest-id AVAILABLE copy of the
	// book, locking it for the rest of the transaction.  ErrNotFound when
	// there is none.
	FirstAvailableForUpdate(ctx context.Context, bookID uint64) (model.Copy, error)
	// CompareAndSetStatus moves the copy from one status to another and
	// reports whether the row was in the expected state.
	CompareAndSetStatus(ctx context.Context, id uint64, from, to string) (bool, error)
	SetStatus(ctx context.Context, id uint64, status string) error
	// CountByStatus counts the book's copies; an empty status counts all.
	CountByStatus(ctx context.Context, bookID uint64, status string) (int64, error)
	ListByBook(ctx context.Context, bookID uint64) ([]model.Copy, error)
	InventoryCodeExists(ctx context.Context, code string) (bool, error)
}

type LoanRepository interface {
	Create(ctx context.Context, l *model.Loan) error
	GetByID(ctx context.Context, id uint64) (model.Loan, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (model.Loan, error)
	// Update writes due_date, return_date, status and extensions_count.
	Update(ctx context.Context, l model.Loan) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f LoanFilter, p PageRequest) ([]model.Loan, int64, error)
}

type ReservationRepository interface {
	// Create fails with ErrConflict when the user already holds an ACTIVE
	// reservation for the book.
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	FindActive(ctx context.Context, userID, bookID uint64) (model.Reservation, error)
	// Update writes status, cancelled_at and fulfilled_at.
	Update(ctx context.Context, r model.Reservation) error
	List(ctx context.Context, f ReservationFilter, p PageRequest) ([]model.Reservation, int64, error)
}

type PenaltyRepository interface {
	Create(ctx context.Context, p *model.Penalty) error
	GetByID(ctx context.Context, id uint64) (model.Penalty, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (model.Penalty, error)
	// Update writes status and resolved_at.
	Update(ctx context.Context, p model.Penalty) error
	List(ctx context.Context, f PenaltyFilter, p PageRequest) ([]model.Penalty, int64, error)
}

// StatsRepository answers the aggregate reads behind the admin dashboard.
// Range bounds are [from, to).
type StatsRepository interface {
	CountLoansBetween(ctx context.Context, from, to time.Time) (int64, error)
	CountOverdue(ctx context.Context, asOf time.Time) (int64, error)
	CountUsersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	CountUsersByStatus(ctx context.Context, status string) (int64, error)
	// MostPopularBooks ranks books by loans created in range, ties broken
	// by ascending book id.
	MostPopularBooks(ctx context.Context, from, to time.Time, limit int) ([]model.PopularBook, error)
	// LoansPerDay returns only the days that have loans, ascending.
	LoansPerDay(ctx context.Context, from, to time.Time) ([]model.DayCount, error)
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos interface {
	Users() UserRepository
	Tokens() TokenRepository
	Authors() AuthorRepository
	Categories() CategoryRepository
	Books() BookRepository
	Copies() CopyRepository
	Loans() LoanRepository
	Reservations() ReservationRepository
	Penalties() PenaltyRepository
}

// Store is the root persistence handle.  WithTx runs fn inside a single
// transaction: the Repos passed to fn are bound to it, a returned error
// rolls everything back.
type Store interface {
	Repos
	Stats() StatsRepository
	WithTx(ctx context.Context, fn func(tx Repos) error) error
	Ping(ctx context.Context) error
}
