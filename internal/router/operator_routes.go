package router // router defines how HTTP routes are registered for the API

import (
	"github.com/cowblue-git/farm-telegram-bot/internal/handler"    // operator handlers
	"github.com/cowblue-git/farm-telegram-bot/internal/middleware" // JWT + role middlewares
	"github.com/cowblue-git/farm-telegram-bot/internal/utils"      // role names
	"github.com/labstack/echo/v4"
)

// RegisterOperator registers the operator API under /v1/admin.  Login is
// open but rate limited; every other route requires a valid JWT with the
// OPERATOR role.
func RegisterOperator(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/v1/admin/login", a.Login, limit)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOperator),
		limit, // after JWTAuth so the key includes the operator id
	)

	// ---- Projections ----
	g.GET("/events", a.Events)
	g.GET("/events/:id/bookings", a.EventBookings)
}
