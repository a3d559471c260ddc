package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

// Catalog manages books, authors and categories.
type Catalog struct {
	base
	copies *CopyInventory
}

func NewCatalog(d Deps, copies *CopyInventory) *Catalog {
	return &Catalog{base: newBase(d), copies: copies}
}

// SearchBooks lists the catalog.  Public callers set ActiveOnly.
func (s *Catalog) SearchBooks(ctx context.Context, f repository.BookFilter, p repository.PageRequest) (Page[model.Book], error) {
	if f.YearFrom != nil && f.YearTo != nil && *f.YearFrom > *f.YearTo {
		return Page[model.Book]{}, invalid("publicationYearFrom must not be after publicationYearTo")
	}
	items, total, err := s.store.Books().Search(ctx, f, p)
	if err != nil {
		return Page[model.Book]{}, err
	}
	return newPage(items, total, p), nil
}

// GetBook returns a book.  Inactive books are hidden unless includeInactive.
func (s *Catalog) GetBook(ctx context.Context, id uint64, includeInactive bool) (model.Book, error) {
	b, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		return model.Book{}, classify(err, entity("book", id))
	}
	if !b.IsActive && !includeInactive {
		return model.Book{}, notFound("book %d not found", id)
	}
	return b, nil
}

// BookInput is the writable part of a book.  InitialCopies applies to
// creation only.
type BookInput struct {
	Title           string
	ISBN            *string
	PublicationYear *int
	Description     *string
	CategoryID      *uint64
	AuthorIDs       []uint64
	InitialCopies   *int
	IsActive        *bool
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkBook validates in and its references against tx, returning the
// normalized author ids.
func checkBook(ctx context.Context, tx repository.Repos, in *BookInput) ([]uint64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, invalid("title is required")
	}
	in.ISBN = trimmedPtr(in.ISBN)
	in.Description = trimmedPtr(in.Description)
	if in.PublicationYear != nil && (*in.PublicationYear < 0 || *in.PublicationYear > 9999) {
		return nil, invalid("publicationYear is out of range")
	}
	if in.CategoryID != nil {
		if _, err := tx.Categories().GetByID(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, invalid("category %d does not exist", *in.CategoryID)
			}
			return nil, err
		}
	}
	ids := dedupe(in.AuthorIDs)
	if len(ids) > 0 {
		n, err := tx.Authors().CountExisting(ctx, ids)
		if err != nil {
			return nil, err
		}
		if n != len(ids) {
			return nil, invalid("one or more authors do not exist")
		}
	}
	return ids, nil
}

// CreateBook inserts a book with its authors and InitialCopies (default 1)
// AVAILABLE copies.
func (s *Catalog) CreateBook(ctx context.Context, in BookInput) (model.Book, error) {
	copies := 1
	if in.InitialCopies != nil {
		copies = *in.InitialCopies
	}
	if copies < 0 || copies > maxCopiesPerRequest {
		return model.Book{}, invalid("initialCopies must be between 0 and %d", maxCopiesPerRequest)
	}
	var out model.Book
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		ids, err := checkBook(ctx, tx, &in)
		if err != nil {
			return err
		}
		now := s.now()
		b := model.Book{
			Title:           in.Title,
			ISBN:            in.ISBN,
			PublicationYear: in.PublicationYear,
			Description:     in.Description,
			CategoryID:      in.CategoryID,
			IsActive:        in.IsActive == nil || *in.IsActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		// The unique ISBN index is the authority on duplicates.
		if err := tx.Books().Create(ctx, &b); err != nil {
			return classify(err, "isbn")
		}
		if err := tx.Books().SetAuthors(ctx, b.ID, ids); err != nil {
			return err
		}
		if copies > 0 {
			if _, err := s.copies.addCopies(ctx, tx, b.ID, copies, nil); err != nil {
				return err
			}
		}
		out, err = tx.Books().GetByID(ctx, b.ID)
		return err
	})
	if err == nil {
		s.logger.Info("book created", "book_id", out.ID, "copies", copies)
	}
	return out, err
}

// UpdateBook replaces the book's fields and author list.
func (s *Catalog) UpdateBook(ctx context.Context, id uint64, in BookInput) (model.Book, error) {
	var out model.Book
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		cur, err := tx.Books().GetByID(ctx, id)
		if err != nil {
			return classify(err, entity("book", id))
		}
		ids, err := checkBook(ctx, tx, &in)
		if err != nil {
			return err
		}
		cur.Title = in.Title
		cur.ISBN = in.ISBN
		cur.PublicationYear = in.PublicationYear
		cur.Description = in.Description
		cur.CategoryID = in.CategoryID
		if in.IsActive != nil {
			cur.IsActive = *in.IsActive
		}
		cur.UpdatedAt = s.now()
		if err := tx.Books().Update(ctx, cur); err != nil {
			return classify(err, "isbn")
		}
		if err := tx.Books().SetAuthors(ctx, id, ids); err != nil {
			return err
		}
		out, err = tx.Books().GetByID(ctx, id)
		return err
	})
	return out, err
}

// DeactivateBook hides a book from the public catalog.  Copies and loans
// are untouched.
func (s *Catalog) DeactivateBook(ctx context.Context, id uint64) error {
	return s.store.WithTx(ctx, func(tx repository.Repos) error {
		b, err := tx.Books().GetByID(ctx, id)
		if err != nil {
			return classify(err, entity("book", id))
		}
		if !b.IsActive {
			return nil
		}
		b.IsActive = false
		b.UpdatedAt = s.now()
		return classify(tx.Books().Update(ctx, b), entity("book", id))
	})
}

func checkAuthor(first, last string) (string, string, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if last == "" {
		return "", "", invalid("lastName is required")
	}
	return first, last, nil
}

func (s *Catalog) ListAuthors(ctx context.Context, p repository.PageRequest) (Page[model.Author], error) {
	items, total, err := s.store.Authors().List(ctx, p)
	if err != nil {
		return Page[model.Author]{}, err
	}
	return newPage(items, total, p), nil
}

func (s *Catalog) GetAuthor(ctx context.Context, id uint64) (model.Author, error) {
	a, err := s.store.Authors().GetByID(ctx, id)
	return a, classify(err, entity("author", id))
}

func (s *Catalog) CreateAuthor(ctx context.Context, firstName, lastName string) (model.Author, error) {
	first, last, err := checkAuthor(firstName, lastName)
	if err != nil {
		return model.Author{}, err
	}
	a := model.Author{FirstName: first, LastName: last, CreatedAt: s.now()}
	if err := s.store.Authors().Create(ctx, &a); err != nil {
		return model.Author{}, err
	}
	return a, nil
}

func (s *Catalog) UpdateAuthor(ctx context.Context, id uint64, firstName, lastName string) (model.Author, error) {
	first, last, err := checkAuthor(firstName, lastName)
	if err != nil {
		return model.Author{}, err
	}
	a, err := s.GetAuthor(ctx, id)
	if err != nil {
		return model.Author{}, err
	}
	a.FirstName, a.LastName = first, last
	if err := s.store.Authors().Update(ctx, a); err != nil {
		return model.Author{}, classify(err, entity("author", id))
	}
	return a, nil
}

// DeleteAuthor fails with Conflict while any book still lists the author.
func (s *Catalog) DeleteAuthor(ctx context.Context, id uint64) error {
	err := s.store.Authors().Delete(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return conflict("author %d still has books", id)
	}
	return classify(err, entity("author", id))
}

func (s *Catalog) ListCategories(ctx context.Context) ([]model.Category, error) {
	out, err := s.store.Categories().List(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Category{}
	}
	return out, nil
}

func (s *Catalog) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, invalid("name is required")
	}
	c := model.Category{Name: name}
	if err := s.store.Categories().Create(ctx, &c); err != nil {
		return model.Category{}, classify(err, "category "+name)
	}
	return c, nil
}
