package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/podium-scheduler/internal/authz"
	"github.com/iliyamo/podium-scheduler/internal/handler"
	"github.com/iliyamo/podium-scheduler/internal/middleware"
)

// Middlewares are the optional per-route layers. A nil entry is skipped,
// which is how tests and a Redis-less deployment run. Timeout bounds every
// API route so that a held slot lock or a stuck query cannot block a
// request past its deadline.
type Middlewares struct {
	Timeout   echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Purge     echo.MiddlewareFunc
}

// NewTimeout returns the request deadline middleware. The handlers turn an
// expired deadline into 503 storage_unavailable themselves.
func NewTimeout(d time.Duration) echo.MiddlewareFunc {
	if d <= 0 {
		return nil
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: d})
}

func chain(ms ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(ms))
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers the probes. Neither is rate limited.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/health", handler.Readiness(db))
}

// RegisterAuth registers account endpoints. Everything under /v1/auth works
// without an access token; /v1/me needs one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, mw Middlewares) {
	m := chain(mw.Timeout, mw.RateLimit)
	g := e.Group("/v1/auth")
	g.GET("/check-admin", a.CheckAdmin, m...)
	g.POST("/create-admin", a.CreateAdmin, m...)
	g.POST("/register", a.Register, m...)
	g.POST("/login", a.Login, m...)
	g.POST("/refresh", a.Refresh, m...)
	// logout takes the refresh token in the body, or revokes every session
	// of the bearer when the body is empty
	g.POST("/logout", a.Logout, m...)

	e.GET("/v1/me", a.Me, chain(middleware.JWTAuth(jwtSecret), mw.Timeout, mw.RateLimit)...)
}

// RegisterPublic registers the anonymous schedule browse endpoints. These
// are the only routes the response cache serves.
func RegisterPublic(e *echo.Echo, s *handler.ScheduleHandler, mw Middlewares) {
	m := chain(mw.Timeout, mw.RateLimit, mw.Cache)
	e.GET("/v1/slots", s.ListSlots, m...)
	e.GET("/v1/slots/:id", s.GetSlot, m...)
	e.GET("/v1/session-types", s.ListSessionTypes, m...)
}

// protected builds the per-route chain for an authenticated audience. The
// chain is attached to each route rather than to a /v1 group so that
// unknown paths under /v1 still answer 404 instead of 401.
func protected(jwtSecret string, role authz.Role, mw Middlewares) []echo.MiddlewareFunc {
	return chain(
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(role),
		mw.Timeout,
		mw.RateLimit,
		mw.Purge,
	)
}

// RegisterTrainer registers schedule management and the roster. All routes
// require a valid JWT and the trainer role.
func RegisterTrainer(e *echo.Echo, s *handler.ScheduleHandler, b *handler.BookingHandler, jwtSecret string, mw Middlewares) {
	g := e.Group("/v1")
	m := protected(jwtSecret, authz.RoleTrainer, mw)

	// ---- Slots ----
	g.POST("/slots", s.CreateSlots, m...)
	g.DELETE("/slots/:id", s.DeleteSlot, m...)
	g.GET("/slots/:id/bookings", b.Roster, m...)

	// ---- Session types ----
	g.GET("/trainer/session-types", s.ListSessionTypes, m...)
	g.POST("/session-types", s.CreateSessionType, m...)
	g.PUT("/session-types/:id", s.UpdateSessionType, m...)
	g.DELETE("/session-types/:id", s.DeleteSessionType, m...)
}

// RegisterParent registers bookings and the children a parent books for.
func RegisterParent(e *echo.Echo, b *handler.BookingHandler, ch *handler.ChildHandler, jwtSecret string, mw Middlewares) {
	g := e.Group("/v1")
	m := protected(jwtSecret, authz.RoleParent, mw)

	g.POST("/bookings", b.Create, m...)
	g.GET("/bookings", b.List, m...)
	g.GET("/bookings/:id", b.Get, m...)
	g.DELETE("/bookings/:id", b.Cancel, m...)

	g.GET("/children", ch.List, m...)
	g.POST("/children", ch.Create, m...)
	g.PUT("/children/:id", ch.Update, m...)
	g.DELETE("/children/:id", ch.Delete, m...)
}
