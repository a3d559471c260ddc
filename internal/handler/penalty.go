package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/service"
)

// PenaltyHandler serves penalties to readers and admins.
type PenaltyHandler struct {
	Penalties *service.PenaltyLedger
}

func NewPenaltyHandler(p *service.PenaltyLedger) *PenaltyHandler {
	return &PenaltyHandler{Penalties: p}
}

func (h *PenaltyHandler) list(c echo.Context, f repository.PenaltyFilter, q *query) error {
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Penalties.ListPenalties(ctx, f, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(list, toPenalty))
}

func (h *PenaltyHandler) Mine(c echo.Context) error {
	q := &query{c: c}
	uid := identity(c).UserID
	return h.list(c, repository.PenaltyFilter{UserID: &uid, Status: q.str("status")}, q)
}

func (h *PenaltyHandler) List(c echo.Context) error {
	q := &query{c: c}
	return h.list(c, repository.PenaltyFilter{UserID: q.optUint("userId"), Status: q.str("status")}, q)
}

// penaltyReq takes the amount as a JSON number or a decimal string.
type penaltyReq struct {
	UserID uint64          `json:"userId"`
	LoanID *uint64         `json:"loanId"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *PenaltyHandler) Create(c echo.Context) error {
	var req penaltyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UserID == 0 {
		return badRequest(c, "userId is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Penalties.CreatePenalty(ctx, service.NewPenalty{
		UserID: req.UserID,
		LoanID: req.LoanID,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toPenalty(p))
}

// MarkPaid is idempotent.
func (h *PenaltyHandler) MarkPaid(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid penalty id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Penalties.MarkPaid(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPenalty(p))
}
