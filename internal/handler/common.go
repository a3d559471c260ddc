// Package handler exposes the HTTP handlers of the library API.  Handlers
// bind and validate the request, call one service operation and project the
// result into a camelCase DTO.  Service errors are mapped to status codes
// by respondError.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/middleware"
	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/service"
)

const requestTimeout = 5 * time.Second

const dateLayout = "2006-01-02"

// reqCtx bounds store work for one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// respondError maps a service error kind to its status code.  Anything
// unclassified is logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, service.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, service.ErrConflict):
			status = http.StatusConflict
		case errors.Is(err, service.ErrValidation):
			status = http.StatusBadRequest
		}
		return c.JSON(status, echo.Map{"error": svcErr.Message})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("request timed out", "path", c.Path(), "request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// identity returns the caller set by the JWT middleware.  Routes using it
// are always mounted behind JWTAuth.
func identity(c echo.Context) middleware.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}

func actor(c echo.Context) service.Actor {
	id := identity(c)
	return service.Actor{UserID: id.UserID, Role: id.Role}
}

// query collects parse errors for optional query parameters so a handler
// can report the first bad one.
type query struct {
	c   echo.Context
	err error
}

func (q *query) fail(name, want string) {
	if q.err == nil {
		q.err = errors.New(name + " must be " + want)
	}
}

func (q *query) str(name string) string { return strings.TrimSpace(q.c.QueryParam(name)) }

func (q *query) integer(name string, def int) int {
	v := q.str(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(name, "an integer")
		return def
	}
	return n
}

func (q *query) optInt(name string) *int {
	if q.str(name) == "" {
		return nil
	}
	n := q.integer(name, 0)
	return &n
}

func (q *query) optUint(name string) *uint64 {
	v := q.str(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		q.fail(name, "a positive integer")
		return nil
	}
	return &n
}

func (q *query) flag(name string, def bool) bool {
	v := q.str(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, "true or false")
		return def
	}
	return b
}

func (q *query) date(name string) *time.Time {
	v := q.str(name)
	if v == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		q.fail(name, "a date (YYYY-MM-DD)")
		return nil
	}
	return &t
}

func (q *query) page() repository.PageRequest {
	p := repository.PageRequest{Page: q.integer("page", 0), Size: q.integer("size", repository.DefaultPageSize)}
	if p.Page < 0 {
		q.fail("page", "zero or greater")
	}
	if p.Size < 1 || p.Size > repository.MaxPageSize {
		q.fail("size", "between 1 and "+strconv.Itoa(repository.MaxPageSize))
	}
	return p
}

// pageResp is the paginated list envelope.
type pageResp[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func toPage[T, D any](p service.Page[T], project func(T) D) pageResp[D] {
	out := make([]D, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, project(item))
	}
	return pageResp[D]{Content: out, Page: p.Page, Size: p.Size, TotalElements: p.Total, TotalPages: p.TotalPages()}
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
