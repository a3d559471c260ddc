package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
)

func TestCreateBook(t *testing.T) {
	f := newFixture(t)
	cat, err := f.catalog.CreateCategory(f.ctx, "Fiction")
	require.NoError(t, err)
	tolkien, err := f.catalog.CreateAuthor(f.ctx, "J.R.R.", "Tolkien")
	require.NoError(t, err)
	year := 1954

	b, err := f.catalog.CreateBook(f.ctx, BookInput{
		Title:           " The Fellowship of the Ring ",
		ISBN:            strPtr("9780261103573"),
		PublicationYear: &year,
		CategoryID:      &cat.ID,
		AuthorIDs:       []uint64{tolkien.ID, tolkien.ID},
		InitialCopies:   intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "The Fellowship of the Ring", b.Title)
	assert.True(t, b.IsActive)
	require.Len(t, b.Authors, 1)
	assert.Equal(t, "J.R.R. Tolkien", b.Authors[0].FullName())
	require.NotNil(t, b.CategoryName)
	assert.Equal(t, "Fiction", *b.CategoryName)
	assert.EqualValues(t, 3, b.TotalCopies)
	assert.EqualValues(t, 3, b.AvailableCopies)

	copies, err := f.copies.ListCopies(f.ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, copies, 3)
	assert.Equal(t, "B1-1", copies[0].InventoryCode)
	assert.Equal(t, "B1-3", copies[2].InventoryCode)

	_, err = f.catalog.CreateBook(f.ctx, BookInput{Title: "Copycat", ISBN: strPtr("9780261103573")})
	assert.ErrorIs(t, err, ErrConflict)

	plain, err := f.catalog.CreateBook(f.ctx, BookInput{Title: "Defaults"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, plain.TotalCopies)
}

func TestCreateBook_Rejects(t *testing.T) {
	f := newFixture(t)
	missing := uint64(77)
	cases := map[string]BookInput{
		"blank title":      {Title: "  "},
		"unknown author":   {Title: "x", AuthorIDs: []uint64{missing}},
		"unknown category": {Title: "x", CategoryID: &missing},
		"negative copies":  {Title: "x", InitialCopies: intPtr(-1)},
		"too many copies":  {Title: "x", InitialCopies: intPtr(101)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.catalog.CreateBook(f.ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	page, err := f.catalog.SearchBooks(f.ctx, repository.BookFilter{}, repository.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestUpdateAndDeactivateBook(t *testing.T) {
	f := newFixture(t)
	a, err := f.catalog.CreateAuthor(f.ctx, "Ursula", "Le Guin")
	require.NoError(t, err)
	b := f.book(t, 1)

	got, err := f.catalog.UpdateBook(f.ctx, b.ID, BookInput{Title: "A Wizard of Earthsea", AuthorIDs: []uint64{a.ID}})
	require.NoError(t, err)
	assert.Equal(t, "A Wizard of Earthsea", got.Title)
	require.Len(t, got.Authors, 1)
	assert.True(t, got.IsActive)

	_, err = f.catalog.UpdateBook(f.ctx, 999, BookInput{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.catalog.DeactivateBook(f.ctx, b.ID))
	require.NoError(t, f.catalog.DeactivateBook(f.ctx, b.ID))
	_, err = f.catalog.GetBook(f.ctx, b.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
	hidden, err := f.catalog.GetBook(f.ctx, b.ID, true)
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	public, err := f.catalog.SearchBooks(f.ctx, repository.BookFilter{ActiveOnly: true}, repository.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, public.Items)
}

func TestSearchBooks(t *testing.T) {
	f := newFixture(t)
	orwell, err := f.catalog.CreateAuthor(f.ctx, "George", "Orwell")
	require.NoError(t, err)
	y1949, y1945 := 1949, 1945
	_, err = f.catalog.CreateBook(f.ctx, BookInput{Title: "Nineteen Eighty-Four", PublicationYear: &y1949, AuthorIDs: []uint64{orwell.ID}})
	require.NoError(t, err)
	farm, err := f.catalog.CreateBook(f.ctx, BookInput{Title: "Animal Farm", PublicationYear: &y1945, AuthorIDs: []uint64{orwell.ID}, InitialCopies: intPtr(0)})
	require.NoError(t, err)
	_, err = f.catalog.CreateBook(f.ctx, BookInput{Title: "Dune"})
	require.NoError(t, err)

	byAuthor, err := f.catalog.SearchBooks(f.ctx, repository.BookFilter{Author: "orwell"}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, byAuthor.Items, 2)
	assert.Equal(t, "Animal Farm", byAuthor.Items[0].Title)

	available, err := f.catalog.SearchBooks(f.ctx, repository.BookFilter{Author: "Orwell", AvailableOnly: true}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, available.Items, 1)
	assert.NotEqual(t, farm.ID, available.Items[0].ID)

	from := 1946
	byYear, err := f.catalog.SearchBooks(f.ctx, repository.BookFilter{YearFrom: &from}, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, byYear.Items, 1)
	assert.Equal(t, "Nineteen Eighty-Four", byYear.Items[0].Title)

	to := 1900
	_, err = f.catalog.SearchBooks(f.ctx, repository.BookFilter{YearFrom: &from, YearTo: &to}, repository.PageRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthors(t *testing.T) {
	f := newFixture(t)
	a, err := f.catalog.CreateAuthor(f.ctx, " Mary ", " Shelley ")
	require.NoError(t, err)
	assert.Equal(t, "Mary", a.FirstName)
	_, err = f.catalog.CreateAuthor(f.ctx, "Plato", "")
	assert.ErrorIs(t, err, ErrValidation)

	a, err = f.catalog.UpdateAuthor(f.ctx, a.ID, "Mary", "Wollstonecraft Shelley")
	require.NoError(t, err)
	assert.Equal(t, "Wollstonecraft Shelley", a.LastName)
	_, err = f.catalog.UpdateAuthor(f.ctx, 999, "x", "y")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.catalog.CreateBook(f.ctx, BookInput{Title: "Frankenstein", AuthorIDs: []uint64{a.ID}})
	require.NoError(t, err)
	assert.ErrorIs(t, f.catalog.DeleteAuthor(f.ctx, a.ID), ErrConflict)

	loner, err := f.catalog.CreateAuthor(f.ctx, "", "Anonymous")
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteAuthor(f.ctx, loner.ID))
	_, err = f.catalog.GetAuthor(f.ctx, loner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.catalog.DeleteAuthor(f.ctx, loner.ID), ErrNotFound)

	page, err := f.catalog.ListAuthors(f.ctx, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	empty, err := f.catalog.ListCategories(f.ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = f.catalog.CreateCategory(f.ctx, "Science")
	require.NoError(t, err)
	_, err = f.catalog.CreateCategory(f.ctx, "Art")
	require.NoError(t, err)
	_, err = f.catalog.CreateCategory(f.ctx, "science")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.catalog.CreateCategory(f.ctx, " ")
	assert.ErrorIs(t, err, ErrValidation)

	all, err := f.catalog.ListCategories(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Art", all[0].Name)
}

func TestCopyInventory(t *testing.T) {
	f := newFixture(t)
	u := f.reader(t)
	empty := f.book(t, 0)
	b := f.book(t, 2)

	_, err := f.copies.FindAvailableCopy(f.ctx, empty.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.copies.FindAvailableCopy(f.ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := f.copies.FindAvailableCopy(f.ctx, b.ID)
	require.NoError(t, err)
	l, err := f.loans.CreateLoan(f.ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, l.CopyID)

	spare, err := f.copies.FindAvailableCopy(f.ctx, b.ID)
	require.NoError(t, err)
	_, err = f.copies.SetStatus(f.ctx, spare.ID, "damaged")
	require.NoError(t, err)
	_, err = f.copies.FindAvailableCopy(f.ctx, b.ID)
	assert.ErrorIs(t, err, ErrConflict)

	n, err := f.copies.CountByStatus(f.ctx, b.ID, model.CopyDamaged)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = f.copies.CountByStatus(f.ctx, b.ID, "SHREDDED")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.copies.SetStatus(f.ctx, l.CopyID, model.CopyAvailable)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.copies.SetStatus(f.ctx, spare.ID, model.CopyBorrowed)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.copies.SetStatus(f.ctx, 999, model.CopyLost)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.copies.AddCopies(f.ctx, b.ID, 0, nil)
	assert.ErrorIs(t, err, ErrValidation)
	shelf := "A-3"
	added, err := f.copies.AddCopies(f.ctx, b.ID, 2, &shelf)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "B2-3", added[0].InventoryCode)
	assert.Equal(t, "A-3", *added[1].ShelfLocation)
}
