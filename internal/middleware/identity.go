package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// IdentityKey is the echo.Context key under which JWTAuth stores the
// caller's Identity.
const IdentityKey = "identity"

// Identity is the authenticated caller, taken from a verified access
// token.
type Identity struct {
	UserID uint64
	Role   string
}

// IdentityFrom returns the caller set by JWTAuth or OptionalJWT.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(IdentityKey).(Identity)
	return id, ok && id.UserID != 0
}

// currentUserID is the rate limiter's view of the caller: the user id when
// authenticated, "anon" otherwise.
func currentUserID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
