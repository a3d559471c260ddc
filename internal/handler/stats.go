package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/service"
)

// StatsHandler serves the admin reports.  from and to are inclusive
// calendar dates (UTC) and both are required.
type StatsHandler struct {
	Stats *service.StatsAggregator
}

func NewStatsHandler(s *service.StatsAggregator) *StatsHandler {
	return &StatsHandler{Stats: s}
}

func (h *StatsHandler) Summary(c echo.Context) error {
	q := &query{c: c}
	from, to := q.date("from"), q.date("to")
	limit := q.integer("limit", service.DefaultTopBooks)
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	if from == nil || to == nil {
		return badRequest(c, "from and to are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Stats.Summary(ctx, *from, *to, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSummary(s))
}

func (h *StatsHandler) LoansPerDay(c echo.Context) error {
	q := &query{c: c}
	from, to := q.date("from"), q.date("to")
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	if from == nil || to == nil {
		return badRequest(c, "from and to are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	days, err := h.Stats.LoansPerDay(ctx, *from, *to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toDayCounts(days))
}
