package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/service"
)

// ReservationHandler serves reader reservations and their admin view.
type ReservationHandler struct {
	Reservations *service.ReservationLedger
}

func NewReservationHandler(r *service.ReservationLedger) *ReservationHandler {
	return &ReservationHandler{Reservations: r}
}

type reserveReq struct {
	BookID uint64 `json:"bookId"`
}

func (h *ReservationHandler) Create(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.BookID == 0 {
		return badRequest(c, "bookId is required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reservations.CreateReservation(ctx, identity(c).UserID, req.BookID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservation(r))
}

// Cancel is mounted for readers and admins; readers may only cancel their
// own reservations.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reservations.CancelReservation(ctx, id, actor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReservation(r))
}

func (h *ReservationHandler) Mine(c echo.Context) error {
	q := &query{c: c}
	uid := identity(c).UserID
	f := repository.ReservationFilter{UserID: &uid, Status: q.str("status")}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Reservations.ListReservations(ctx, f, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(list, toReservation))
}

func (h *ReservationHandler) List(c echo.Context) error {
	q := &query{c: c}
	f := repository.ReservationFilter{
		UserID: q.optUint("userId"),
		BookID: q.optUint("bookId"),
		Status: q.str("status"),
	}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Reservations.ListReservations(ctx, f, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(list, toReservation))
}
