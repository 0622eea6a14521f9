package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers. It never touches
// dependencies.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Readiness reports service status with a timestamp and the database state.
func Readiness(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := echo.Map{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339), "database": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = "unavailable"
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}
