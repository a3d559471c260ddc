package model

import "time"

// Author represents a row in the `author` table.
type Author struct {
	ID        uint64    // author.id
	FirstName string    // author.first_name
	LastName  string    // author.last_name
	CreatedAt time.Time // author.created_at
}

// FullName joins first and last name with a single space.
func (a Author) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Category represents a row in the `category` table.
type Category struct {
	ID   uint64 // category.id
	Name string // category.name (unique)
}

// Book is a catalog title.  Authors, CategoryName and the copy counters are
// not columns of `book`; repositories fill them from book_author, category
// and book_copy when a book is read.
type Book struct {
	ID              uint64    // book.id
	Title           string    // book.title
	ISBN            *string   // book.isbn (unique, nullable)
	PublicationYear *int      // book.publication_year (nullable)
	Description     *string   // book.description (nullable)
	CategoryID      *uint64   // book.category_id (nullable)
	IsActive        bool      // book.is_active
	CreatedAt       time.Time // book.created_at
	UpdatedAt       time.Time // book.updated_at

	CategoryName    *string
	Authors         []Author
	TotalCopies     int64
	AvailableCopies int64
}

// Copy states.  LOST and DAMAGED copies are never handed out.
const (
	CopyAvailable = "AVAILABLE"
	CopyBorrowed  = "BORROWED"
	CopyLost      = "LOST"
	CopyDamaged   = "DAMAGED"
)

// ValidCopyStatus reports whether s is a known copy status.
func ValidCopyStatus(s string) bool {
	switch s {
	case CopyAvailable, CopyBorrowed, CopyLost, CopyDamaged:
		return true
	}
	return false
}

// Copy is one physical, independently loanable unit of a book.
type Copy struct {
	ID            uint64    // book_copy.id
	BookID        uint64    // book_copy.book_id
	InventoryCode string    // book_copy.inventory_code (unique)
	ShelfLocation *string   // book_copy.shelf_location (nullable)
	Status        string    // book_copy.status
	CreatedAt     time.Time // book_copy.created_at
}
