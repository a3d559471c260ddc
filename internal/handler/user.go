package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/service"
)

// UserHandler is the admin account management API.
type UserHandler struct {
	Users *service.UserAdmin
}

func NewUserHandler(users *service.UserAdmin) *UserHandler {
	return &UserHandler{Users: users}
}

func (h *UserHandler) List(c echo.Context) error {
	q := &query{c: c}
	f := repository.UserFilter{Role: q.str("role"), Status: q.str("status"), Search: q.str("search")}
	p := q.page()
	if q.err != nil {
		return badRequest(c, q.err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.ListUsers(ctx, f, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPage(users, toUser))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

type userUpdateReq struct {
	Email         *string `json:"email"`
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Role          *string `json:"role"`
	Status        *string `json:"status"`
	BlockedReason *string `json:"blockedReason"`
	BlockedUntil  *string `json:"blockedUntil"`
}

func (h *UserHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.UserUpdate{
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		Status:        req.Status,
		BlockedReason: req.BlockedReason,
	}
	// Block fields are kept only when the resulting status is BLOCKED.
	if req.BlockedUntil != nil {
		until, err := parseTime(*req.BlockedUntil)
		if err != nil {
			return badRequest(c, "blockedUntil must be a date or RFC 3339 timestamp")
		}
		in.BlockedUntil = &until
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.UpdateUser(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

type userStatusReq struct {
	Status        string  `json:"status"`
	BlockedReason *string `json:"blockedReason"`
	BlockedUntil  *string `json:"blockedUntil"`
}

// SetStatus blocks, unblocks or soft-deletes an account.
func (h *UserHandler) SetStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req userStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	var until *time.Time
	if req.BlockedUntil != nil {
		t, err := parseTime(*req.BlockedUntil)
		if err != nil {
			return badRequest(c, "blockedUntil must be a date or RFC 3339 timestamp")
		}
		until = &t
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.SetStatus(ctx, id, req.Status, req.BlockedReason, until)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.DeleteUser(ctx, id, actor(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ResetPassword returns the generated temporary password once.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	temp, err := h.Users.ResetPassword(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"temporaryPassword": temp})
}

type setPasswordReq struct {
	Password string `json:"password"`
}

func (h *UserHandler) SetPassword(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req setPasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.SetPassword(ctx, id, req.Password); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
