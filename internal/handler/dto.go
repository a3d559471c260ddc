package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-service/internal/model"
)

type userDTO struct {
	ID            uint64     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	BlockedReason *string    `json:"blockedReason,omitempty"`
	BlockedUntil  *time.Time `json:"blockedUntil,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toUser(u model.User) userDTO {
	return userDTO{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		Status:        u.Status,
		BlockedReason: u.BlockedReason,
		BlockedUntil:  u.BlockedUntil,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type authorDTO struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
}

func toAuthor(a model.Author) authorDTO {
	return authorDTO{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName, FullName: a.FullName()}
}

type categoryDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func toCategory(c model.Category) categoryDTO { return categoryDTO{ID: c.ID, Name: c.Name} }

type bookDTO struct {
	ID              uint64       `json:"id"`
	Title           string       `json:"title"`
	ISBN            *string      `json:"isbn"`
	PublicationYear *int         `json:"publicationYear"`
	Description     *string      `json:"description"`
	Category        *categoryDTO `json:"category"`
	Authors         []authorDTO  `json:"authors"`
	TotalCopies     int64        `json:"totalCopies"`
	AvailableCopies int64        `json:"availableCopies"`
	IsActive        bool         `json:"isActive"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func toBook(b model.Book) bookDTO {
	out := bookDTO{
		ID:              b.ID,
		Title:           b.Title,
		ISBN:            b.ISBN,
		PublicationYear: b.PublicationYear,
		Description:     b.Description,
		Authors:         make([]authorDTO, 0, len(b.Authors)),
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		IsActive:        b.IsActive,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.CategoryID != nil {
		cat := categoryDTO{ID: *b.CategoryID}
		if b.CategoryName != nil {
			cat.Name = *b.CategoryName
		}
		out.Category = &cat
	}
	for _, a := range b.Authors {
		out.Authors = append(out.Authors, toAuthor(a))
	}
	return out
}

type copyDTO struct {
	ID            uint64    `json:"id"`
	BookID        uint64    `json:"bookId"`
	InventoryCode string    `json:"inventoryCode"`
	ShelfLocation *string   `json:"shelfLocation"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toCopy(c model.Copy) copyDTO {
	return copyDTO{
		ID:            c.ID,
		BookID:        c.BookID,
		InventoryCode: c.InventoryCode,
		ShelfLocation: c.ShelfLocation,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt,
	}
}

type loanDTO struct {
	ID              uint64     `json:"id"`
	UserID          uint64     `json:"userId"`
	UserEmail       string     `json:"userEmail,omitempty"`
	UserName        string     `json:"userName,omitempty"`
	BookCopyID      uint64     `json:"bookCopyId"`
	InventoryCode   string     `json:"inventoryCode"`
	BookID          uint64     `json:"bookId"`
	BookTitle       string     `json:"bookTitle"`
	LoanDate        time.Time  `json:"loanDate"`
	DueDate         time.Time  `json:"dueDate"`
	ReturnDate      *time.Time `json:"returnDate"`
	Status          string     `json:"status"`
	Overdue         bool       `json:"overdue"`
	ExtensionsCount int        `json:"extensionsCount"`
	CreatedBy       *uint64    `json:"createdBy,omitempty"`
}

// loanProjector labels loans as overdue against a fixed instant so every
// row of one response agrees.
func loanProjector(now time.Time) func(model.Loan) loanDTO {
	return func(l model.Loan) loanDTO {
		name := l.UserFirstName
		if l.UserLastName != "" {
			name += " " + l.UserLastName
		}
		return loanDTO{
			ID:              l.ID,
			UserID:          l.UserID,
			UserEmail:       l.UserEmail,
			UserName:        name,
			BookCopyID:      l.CopyID,
			InventoryCode:   l.InventoryCode,
			BookID:          l.BookID,
			BookTitle:       l.BookTitle,
			LoanDate:        l.LoanDate,
			DueDate:         l.DueDate,
			ReturnDate:      l.ReturnDate,
			Status:          l.Status,
			Overdue:         l.Overdue(now),
			ExtensionsCount: l.ExtensionsCount,
			CreatedBy:       l.CreatedBy,
		}
	}
}

type reservationDTO struct {
	ID          uint64     `json:"id"`
	UserID      uint64     `json:"userId"`
	BookID      uint64     `json:"bookId"`
	BookTitle   string     `json:"bookTitle"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt"`
	FulfilledAt *time.Time `json:"fulfilledAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func toReservation(r model.Reservation) reservationDTO {
	return reservationDTO{
		ID:          r.ID,
		UserID:      r.UserID,
		BookID:      r.BookID,
		BookTitle:   r.BookTitle,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		CancelledAt: r.CancelledAt,
		FulfilledAt: r.FulfilledAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

type penaltyDTO struct {
	ID         uint64          `json:"id"`
	UserID     uint64          `json:"userId"`
	LoanID     *uint64         `json:"loanId"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	ResolvedAt *time.Time      `json:"resolvedAt"`
}

func toPenalty(p model.Penalty) penaltyDTO {
	return penaltyDTO{
		ID:         p.ID,
		UserID:     p.UserID,
		LoanID:     p.LoanID,
		Amount:     p.Amount,
		Reason:     p.Reason,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt,
		ResolvedAt: p.ResolvedAt,
	}
}

type popularBookDTO struct {
	BookID     uint64 `json:"bookId"`
	Title      string `json:"title"`
	LoansCount int64  `json:"loansCount"`
}

type summaryDTO struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	TotalLoans       int64            `json:"totalLoans"`
	OverdueLoans     int64            `json:"overdueLoans"`
	NewUsers         int64            `json:"newUsers"`
	ActiveUsers      int64            `json:"activeUsers"`
	MostPopularBooks []popularBookDTO `json:"mostPopularBooks"`
}

func toSummary(s model.Summary) summaryDTO {
	out := summaryDTO{
		From:             s.From.Format(dateLayout),
		To:               s.To.Format(dateLayout),
		TotalLoans:       s.TotalLoans,
		OverdueLoans:     s.OverdueLoans,
		NewUsers:         s.NewUsers,
		ActiveUsers:      s.ActiveUsers,
		MostPopularBooks: make([]popularBookDTO, 0, len(s.MostPopularBooks)),
	}
	for _, b := range s.MostPopularBooks {
		out.MostPopularBooks = append(out.MostPopularBooks, popularBookDTO{BookID: b.BookID, Title: b.Title, LoansCount: b.LoansCount})
	}
	return out
}

type dayCountDTO struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

func toDayCounts(days []model.DayCount) []dayCountDTO {
	out := make([]dayCountDTO, 0, len(days))
	for _, d := range days {
		out = append(out, dayCountDTO{Date: d.Day.Format(dateLayout), Count: d.Count})
	}
	return out
}
