package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podium-scheduler/internal/authz"
)

// RequireRole aborts with 403 unless the caller has one of roles. It must
// run after JWTAuth. Services still ask the gate per operation; this only
// keeps whole route groups away from the wrong audience.
func RequireRole(roles ...authz.Role) echo.MiddlewareFunc {
	allowed := make(map[authz.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || !allowed[id.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "forbidden"})
			}
			return next(c)
		}
	}
}
