package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

type bookRepo struct{ v view }

// hydrate fills the joined and computed fields of a stored book.
func hydrate(d *data, b model.Book) model.Book {
	b.Authors = nil
	for _, id := range d.bookAuthors[b.ID] {
		if a, ok := d.authors[id]; ok {
			b.Authors = append(b.Authors, a)
		}
	}
	sort.Slice(b.Authors, func(i, j int) bool { return authorLess(b.Authors[i], b.Authors[j]) })
	b.CategoryName = nil
	if b.CategoryID != nil {
		if c, ok := d.categories[*b.CategoryID]; ok {
			name := c.Name
			b.CategoryName = &name
		}
	}
	b.TotalCopies, b.AvailableCopies = 0, 0
	for _, c := range d.copies {
		if c.BookID != b.ID {
			continue
		}
		b.TotalCopies++
		if c.Status == model.CopyAvailable {
			b.AvailableCopies++
		}
	}
	return b
}

func isbnTaken(d *data, isbn *string, except uint64) bool {
	if isbn == nil {
		return false
	}
	for _, b := range d.books {
		if b.ID != except && b.ISBN != nil && *b.ISBN == *isbn {
			return true
		}
	}
	return false
}

func (r bookRepo) Create(_ context.Context, b *model.Book) error {
	return r.v.do(func(d *data) error {
		if isbnTaken(d, b.ISBN, 0) {
			return repository.ErrDuplicate
		}
		b.ID = d.next("book")
		stored := *b
		stored.Authors = nil
		d.books[b.ID] = stored
		return nil
	})
}

func (r bookRepo) GetByID(_ context.Context, id uint64) (model.Book, error) {
	var out model.Book
	err := r.v.do(func(d *data) error {
		b, ok := d.books[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = hydrate(d, b)
		return nil
	})
	return out, err
}

func (r bookRepo) Update(_ context.Context, b model.Book) error {
	return r.v.do(func(d *data) error {
		cur, ok := d.books[b.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if isbnTaken(d, b.ISBN, b.ID) {
			return repository.ErrDuplicate
		}
		b.CreatedAt = cur.CreatedAt
		b.Authors = nil
		d.books[b.ID] = b
		return nil
	})
}

func (r bookRepo) SetAuthors(_ context.Context, bookID uint64, authorIDs []uint64) error {
	return r.v.do(func(d *data) error {
		d.bookAuthors[bookID] = append([]uint64(nil), authorIDs...)
		return nil
	})
}

func (r bookRepo) Search(_ context.Context, f repository.BookFilter, p repository.PageRequest) ([]model.Book, int64, error) {
	var (
		out   []model.Book
		total int64
	)
	err := r.v.do(func(d *data) error {
		var all []model.Book
		title := strings.TrimSpace(f.Title)
		author := strings.TrimSpace(f.Author)
		for _, stored := range d.books {
			b := hydrate(d, stored)
			if title != "" && !contains(b.Title, title) {
				continue
			}
			if author != "" && !anyAuthorMatches(b.Authors, author) {
				continue
			}
			if f.CategoryID != nil && (b.CategoryID == nil || *b.CategoryID != *f.CategoryID) {
				continue
			}
			if f.YearFrom != nil && (b.PublicationYear == nil || *b.PublicationYear < *f.YearFrom) {
				continue
			}
			if f.YearTo != nil && (b.PublicationYear == nil || *b.PublicationYear > *f.YearTo) {
				continue
			}
			if f.ActiveOnly && !b.IsActive {
				continue
			}
			if f.AvailableOnly && b.AvailableCopies == 0 {
				continue
			}
			all = append(all, b)
		}
		out, total = page(all, p, func(a, b model.Book) bool {
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return a.ID < b.ID
		})
		return nil
	})
	return out, total, err
}

func anyAuthorMatches(authors []model.Author, q string) bool {
	for _, a := range authors {
		if contains(a.FirstName+" "+a.LastName, q) {
			return true
		}
	}
	return false
}

type copyRepo struct{ v view }

func (r copyRepo) Create(_ context.Context, c *model.Copy) error {
	return r.v.do(func(d *data) error {
		for _, existing := range d.copies {
			if existing.InventoryCode == c.InventoryCode {
				return repository.ErrDuplicate
			}
		}
		c.ID = d.next("book_copy")
		d.copies[c.ID] = *c
		return nil
	})
}

func (r copyRepo) GetByID(_ context.Context, id uint64) (model.Copy, error) {
	var out model.Copy
	err := r.v.do(func(d *data) error {
		c, ok := d.copies[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r copyRepo) FirstAvailableForUpdate(_ context.Context, bookID uint64) (model.Copy, error) {
	var (
		out   model.Copy
		found bool
	)
	err := r.v.do(func(d *data) error {
		for _, c := range d.copies {
			if c.BookID != bookID || c.Status != model.CopyAvailable {
				continue
			}
			if !found || c.ID < out.ID {
				out, found = c, true
			}
		}
		if !found {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (r copyRepo) CompareAndSetStatus(_ context.Context, id uint64, from, to string) (bool, error) {
	swapped := false
	err := r.v.do(func(d *data) error {
		c, ok := d.copies[id]
		if !ok || c.Status != from {
			return nil
		}
		c.Status = to
		d.copies[id] = c
		swapped = true
		return nil
	})
	return swapped, err
}

func (r copyRepo) SetStatus(_ context.Context, id uint64, status string) error {
	return r.v.do(func(d *data) error {
		c, ok := d.copies[id]
		if !ok {
			return repository.ErrNotFound
		}
		c.Status = status
		d.copies[id] = c
		return nil
	})
}

func (r copyRepo) CountByStatus(_ context.Context, bookID uint64, status string) (int64, error) {
	var n int64
	err := r.v.do(func(d *data) error {
		for _, c := range d.copies {
			if c.BookID == bookID && (status == "" || c.Status == status) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r copyRepo) ListByBook(_ context.Context, bookID uint64) ([]model.Copy, error) {
	var out []model.Copy
	err := r.v.do(func(d *data) error {
		for _, c := range d.copies {
			if c.BookID == bookID {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r copyRepo) InventoryCodeExists(_ context.Context, code string) (bool, error) {
	exists := false
	err := r.v.do(func(d *data) error {
		for _, c := range d.copies {
			if c.InventoryCode == code {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}
