package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

const maxCopiesPerRequest = 100

// CopyInventory tracks the availability of each physical copy.
type CopyInventory struct{ base }

func NewCopyInventory(d Deps) *CopyInventory { return &CopyInventory{base: newBase(d)} }

// FindAvailableCopy returns the lowest-id AVAILABLE copy of a book.  A book
// without any copies is NotFound; one whose copies are all out is Conflict.
func (s *CopyInventory) FindAvailableCopy(ctx context.Context, bookID uint64) (model.Copy, error) {
	var out model.Copy
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.Books().GetByID(ctx, bookID); err != nil {
			return classify(err, entity("book", bookID))
		}
		total, err := tx.Copies().CountByStatus(ctx, bookID, "")
		if err != nil {
			return err
		}
		if total == 0 {
			return notFound("book %d has no copies", bookID)
		}
		c, err := tx.Copies().FirstAvailableForUpdate(ctx, bookID)
		if errors.Is(err, repository.ErrNotFound) {
			return conflict("no available copies")
		}
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// CountByStatus counts a book's copies; an empty status counts all.
func (s *CopyInventory) CountByStatus(ctx context.Context, bookID uint64, status string) (int64, error) {
	if status != "" && !model.ValidCopyStatus(status) {
		return 0, invalid("unknown copy status %q", status)
	}
	return s.store.Copies().CountByStatus(ctx, bookID, status)
}

// SetStatus is the administrative override.  Copies enter and leave
// BORROWED only through loans, so that transition is refused here.
func (s *CopyInventory) SetStatus(ctx context.Context, copyID uint64, status string) (model.Copy, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !model.ValidCopyStatus(status) {
		return model.Copy{}, invalid("unknown copy status %q", status)
	}
	var out model.Copy
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		c, err := tx.Copies().GetByID(ctx, copyID)
		if err != nil {
			return classify(err, entity("copy", copyID))
		}
		if c.Status == status {
			out = c
			return nil
		}
		if status == model.CopyBorrowed || c.Status == model.CopyBorrowed {
			return conflict("copy %d can only enter or leave BORROWED through a loan", copyID)
		}
		if err := tx.Copies().SetStatus(ctx, copyID, status); err != nil {
			return classify(err, entity("copy", copyID))
		}
		c.Status = status
		out = c
		return nil
	})
	return out, err
}

// AddCopies creates count AVAILABLE copies with inventory codes
// B<bookId>-<n>.
func (s *CopyInventory) AddCopies(ctx context.Context, bookID uint64, count int, shelf *string) ([]model.Copy, error) {
	if count < 1 || count > maxCopiesPerRequest {
		return nil, invalid("count must be between 1 and %d", maxCopiesPerRequest)
	}
	var out []model.Copy
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.Books().GetByID(ctx, bookID); err != nil {
			return classify(err, entity("book", bookID))
		}
		var err error
		out, err = s.addCopies(ctx, tx, bookID, count, shelf)
		return err
	})
	return out, err
}

func (s *CopyInventory) addCopies(ctx context.Context, tx repository.Repos, bookID uint64, count int, shelf *string) ([]model.Copy, error) {
	existing, err := tx.Copies().CountByStatus(ctx, bookID, "")
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.Copy, 0, count)
	n := existing
	for len(out) < count {
		n++
		code := fmt.Sprintf("B%d-%d", bookID, n)
		taken, err := tx.Copies().InventoryCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		c := model.Copy{BookID: bookID, InventoryCode: code, ShelfLocation: shelf, Status: model.CopyAvailable, CreatedAt: now}
		if err := tx.Copies().Create(ctx, &c); err != nil {
			return nil, classify(err, "inventory code "+code)
		}
		out = append(out, c)
	}
	return out, nil
}

// ListCopies returns every copy of a book ordered by id.
func (s *CopyInventory) ListCopies(ctx context.Context, bookID uint64) ([]model.Copy, error) {
	if _, err := s.store.Books().GetByID(ctx, bookID); err != nil {
		return nil, classify(err, entity("book", bookID))
	}
	copies, err := s.store.Copies().ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if copies == nil {
		copies = []model.Copy{}
	}
	return copies, nil
}

// checkout locks the lowest-id AVAILABLE copy and flips it to BORROWED.
// The compare-and-set guards against a concurrent borrower even where the
// row lock is unavailable.
func (s *CopyInventory) checkout(ctx context.Context, tx repository.Repos, bookID uint64) (model.Copy, error) {
	c, err := tx.Copies().FirstAvailableForUpdate(ctx, bookID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Copy{}, conflict("no available copies")
	}
	if err != nil {
		return model.Copy{}, err
	}
	if err := s.claim(ctx, tx, c.ID); err != nil {
		return model.Copy{}, err
	}
	c.Status = model.CopyBorrowed
	return c, nil
}

// claim moves one specific copy from AVAILABLE to BORROWED.
func (s *CopyInventory) claim(ctx context.Context, tx repository.Repos, copyID uint64) error {
	ok, err := tx.Copies().CompareAndSetStatus(ctx, copyID, model.CopyAvailable, model.CopyBorrowed)
	if err != nil {
		return err
	}
	if !ok {
		return conflict("copy %d is not available", copyID)
	}
	return nil
}

// release puts a copy back on the shelf, or marks it LOST.
func (s *CopyInventory) release(ctx context.Context, tx repository.Repos, copyID uint64, status string) error {
	return classify(tx.Copies().SetStatus(ctx, copyID, status), entity("copy", copyID))
}
