package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/service"
)

// CatalogHandler serves the public catalog and its admin management.
type CatalogHandler struct {
	Catalog *service.Catalog
	Copies  *service.CopyInventory
}

func NewCatalogHandler(catalog *service.Catalog, copies *service.CopyInventory) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Copies: copies}
}

func (h *CatalogHandler) bookFilter(q *query, activeDefault bool) repository.BookFilter {
	return repository.BookFilter{
		Title:         q.str("title"),
		Author:        q.str("author"),
		CategoryID:    q.optUint("categoryId"),
		YearFrom:      q.optInt("publicationYearFrom"),
		YearTo:        q.optInt("publicationYearTo"),
		AvailableOnly: q.flag("availableOnly", false),
		ActiveOnly:    q.flag("activeOnly", activeDefault),
	}
}

func (h *CatalogHandler) searchBooks(c echo.Context, activeDefault bool) error {
	q := &query{c: c}
	f := h.bookFilter(q, activeDefault)
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	books, err := h.Catalog.SearchBooks(ctx, f, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(books, toBook))
}

// ListBooks is the public search.  Inactive books are hidden unless
// activeOnly=false is passed.
func (h *CatalogHandler) ListBooks(c echo.Context) error { return h.searchBooks(c, true) }

// AdminListBooks shows inactive books by default.
func (h *CatalogHandler) AdminListBooks(c echo.Context) error { return h.searchBooks(c, false) }

func (h *CatalogHandler) getBook(c echo.Context, includeInactive bool) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid book id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Catalog.GetBook(ctx, id, includeInactive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBook(b))
}

func (h *CatalogHandler) GetBook(c echo.Context) error      { return h.getBook(c, false) }
func (h *CatalogHandler) AdminGetBook(c echo.Context) error { return h.getBook(c, true) }

type bookReq struct {
	Title           string   `json:"title"`
	ISBN            *string  `json:"isbn"`
	PublicationYear *int     `json:"publicationYear"`
	Description     *string  `json:"description"`
	CategoryID      *uint64  `json:"categoryId"`
	AuthorIDs       []uint64 `json:"authorIds"`
	InitialCopies   *int     `json:"initialCopies"`
	IsActive        *bool    `json:"isActive"`
}

func (r bookReq) input() service.BookInput {
	return service.BookInput{
		Title:           r.Title,
		ISBN:            r.ISBN,
		PublicationYear: r.PublicationYear,
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		AuthorIDs:       r.AuthorIDs,
		InitialCopies:   r.InitialCopies,
		IsActive:        r.IsActive,
	}
}

func (h *CatalogHandler) CreateBook(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Catalog.CreateBook(ctx, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBook(b))
}

func (h *CatalogHandler) UpdateBook(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid book id")
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Catalog.UpdateBook(ctx, id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBook(b))
}

// DeactivateBook hides the book from the public catalog.  Its copies and
// loans are kept.
func (h *CatalogHandler) DeactivateBook(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid book id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeactivateBook(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ListCopies(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid book id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	copies, err := h.Copies.ListCopies(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]copyDTO, 0, len(copies))
	for _, cp := range copies {
		out = append(out, toCopy(cp))
	}
	return c.JSON(http.StatusOK, out)
}

type addCopiesReq struct {
	Count         *int    `json:"count"`
	ShelfLocation *string `json:"shelfLocation"`
}

// AddCopies adds count (default 1) AVAILABLE copies to a book.
func (h *CatalogHandler) AddCopies(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid book id")
	}
	var req addCopiesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// Range checks on count live in the service.
	count := 1
	if req.Count != nil {
		count = *req.Count
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	copies, err := h.Copies.AddCopies(ctx, id, count, req.ShelfLocation)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]copyDTO, 0, len(copies))
	for _, cp := range copies {
		out = append(out, toCopy(cp))
	}
	return c.JSON(http.StatusCreated, out)
}

type copyStatusReq struct {
	Status string `json:"status"`
}

func (h *CatalogHandler) SetCopyStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid copy id")
	}
	var req copyStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	cp, err := h.Copies.SetStatus(ctx, id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCopy(cp))
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, cat := range cats {
		out = append(out, toCategory(cat))
	}
	return c.JSON(http.StatusOK, out)
}

type categoryReq struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	cat, err := h.Catalog.CreateCategory(ctx, req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toCategory(cat))
}

func (h *CatalogHandler) ListAuthors(c echo.Context) error {
	q := &query{c: c}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	authors, err := h.Catalog.ListAuthors(ctx, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(authors, toAuthor))
}

func (h *CatalogHandler) GetAuthor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid author id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Catalog.GetAuthor(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthor(a))
}

type authorReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *CatalogHandler) CreateAuthor(c echo.Context) error {
	var req authorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Catalog.CreateAuthor(ctx, req.FirstName, req.LastName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuthor(a))
}

func (h *CatalogHandler) UpdateAuthor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid author id")
	}
	var req authorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Catalog.UpdateAuthor(ctx, id, req.FirstName, req.LastName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthor(a))
}

// DeleteAuthor refuses authors that still have books.
func (h *CatalogHandler) DeleteAuthor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid author id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeleteAuthor(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
