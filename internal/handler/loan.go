package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/service"
)

// LoanHandler serves borrowing for readers and loan administration.
type LoanHandler struct {
	Loans *service.LoanLedger
}

func NewLoanHandler(loans *service.LoanLedger) *LoanHandler {
	return &LoanHandler{Loans: loans}
}

type borrowReq struct {
	BookID uint64 `json:"bookId"`
}

// Borrow lends the caller the first available copy of a book.
func (h *LoanHandler) Borrow(c echo.Context) error {
	var req borrowReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BookID == 0 {
		return badRequest(c, "bookId is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.CreateLoan(ctx, identity(c).UserID, req.BookID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, loanProjector(h.Loans.Now())(l))
}

type extendReq struct {
	AdditionalDays *int `json:"additionalDays"`
}

func (h *LoanHandler) Extend(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.ExtendLoan(ctx, id, identity(c).UserID, req.AdditionalDays)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanProjector(h.Loans.Now())(l))
}

func (h *LoanHandler) Return(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.ReturnLoan(ctx, id, identity(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanProjector(h.Loans.Now())(l))
}

// MyLoans lists the caller's loans, optionally by status.
func (h *LoanHandler) MyLoans(c echo.Context) error {
	q := &query{c: c}
	status := q.str("status")
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	loans, err := h.Loans.ListUserLoans(ctx, identity(c).UserID, status, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(loans, loanProjector(h.Loans.Now())))
}

func (h *LoanHandler) MyHistory(c echo.Context) error {
	q := &query{c: c}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	loans, err := h.Loans.ListUserHistory(ctx, identity(c).UserID, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(loans, loanProjector(h.Loans.Now())))
}

// List is the admin loan search.  to is inclusive.
func (h *LoanHandler) List(c echo.Context) error {
	q := &query{c: c}
	lq := service.LoanQuery{
		Status: q.str("status"),
		UserID: q.optUint("userId"),
		BookID: q.optUint("bookId"),
		From:   q.date("from"),
		To:     q.date("to"),
	}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	// "to" is inclusive on the wire.
	if lq.To != nil {
		end := lq.To.AddDate(0, 0, 1)
		lq.To = &end
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	loans, err := h.Loans.ListLoans(ctx, lq, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(loans, loanProjector(h.Loans.Now())))
}

func (h *LoanHandler) Overdue(c echo.Context) error {
	q := &query{c: c}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// One instant for both the query and the daysOverdue projection.
	now := h.Loans.Now()
	loans, err := h.Loans.ListOverdueLoans(ctx, now, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(loans, loanProjector(now)))
}

func (h *LoanHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.GetLoan(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanProjector(h.Loans.Now())(l))
}

type adminLoanReq struct {
	UserID     uint64 `json:"userId"`
	BookCopyID uint64 `json:"bookCopyId"`
	DueDate    string `json:"dueDate"`
}

// Create lends a specific copy on behalf of a user.
func (h *LoanHandler) Create(c echo.Context) error {
	var req adminLoanReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID == 0 || req.BookCopyID == 0 {
		return badRequest(c, "userId and bookCopyId are required")
	}
	in := service.AdminLoanInput{UserID: req.UserID, CopyID: req.BookCopyID}
	if req.DueDate != "" {
		due, err := parseTime(req.DueDate)
		if err != nil {
			return badRequest(c, "dueDate must be a date or RFC 3339 timestamp")
		}
		in.DueDate = &due
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.AdminCreateLoan(ctx, in, identity(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, loanProjector(h.Loans.Now())(l))
}

type loanUpdateReq struct {
	Status     *string `json:"status"`
	DueDate    *string `json:"dueDate"`
	ReturnDate *string `json:"returnDate"`
}

func (h *LoanHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	var req loanUpdateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// Absent fields stay as they are.
	in := service.LoanUpdate{Status: req.Status}
	if req.DueDate != nil {
		due, err := parseTime(*req.DueDate)
		if err != nil {
			return badRequest(c, "dueDate must be a date or RFC 3339 timestamp")
		}
		in.DueDate = &due
	}
	if req.ReturnDate != nil {
		ret, err := parseTime(*req.ReturnDate)
		if err != nil {
			return badRequest(c, "returnDate must be a date or RFC 3339 timestamp")
		}
		in.ReturnDate = &ret
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	l, err := h.Loans.AdminUpdateLoan(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanProjector(h.Loans.Now())(l))
}

func (h *LoanHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Loans.AdminDeleteLoan(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
