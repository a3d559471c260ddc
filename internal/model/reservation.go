package model

import "time"

// Reservation states.
const (
	ReservationActive    = "ACTIVE"
	ReservationFulfilled = "FULFILLED"
	ReservationCancelled = "CANCELLED"
)

// Reservation records a user's standing request for a book.  At most one
// ACTIVE reservation may exist per (user, book) pair.
//
// Fields:
//
//	ID          – primary key identifier.
//	UserID      – user who placed the reservation.
//	BookID      – requested title.
//	Status      – ACTIVE, FULFILLED or CANCELLED.
//	CreatedAt   – when the reservation was placed.
//	CancelledAt – set when the reservation is cancelled.
//	FulfilledAt – set when the user borrows the book.
//	ExpiresAt   – informational expiry shown to the reader.
type Reservation struct {
	ID          uint64     // reservation.id
	UserID      uint64     // reservation.user_id
	BookID      uint64     // reservation.book_id
	Status      string     // reservation.status
	CreatedAt   time.Time  // reservation.created_at
	CancelledAt *time.Time // reservation.cancelled_at (nullable)
	FulfilledAt *time.Time // reservation.fulfilled_at (nullable)
	ExpiresAt   *time.Time // reservation.expires_at (nullable)

	BookTitle string // joined from book
}
