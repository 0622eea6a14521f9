package middleware

// identity.go carries the verified caller between JWTAuth and the handlers.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/authz"
)

const identityKey = "identity"

// IdentityFrom returns the identity JWTAuth stored on the context.
func IdentityFrom(c echo.Context) (authz.Identity, bool) {
	id, ok := c.Get(identityKey).(authz.Identity)
	return id, ok && id.UserID != 0
}

func setIdentity(c echo.Context, id authz.Identity) {
	c.Set(identityKey, id)
}

// currentUserID is the rate limiter's notion of the caller: the user id
// when authenticated, "anon" otherwise.
func currentUserID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
