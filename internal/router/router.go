package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/cowblue-git/farm-telegram-bot/internal/handler" // HTTP handlers
)

// RegisterRoutes registers the unauthenticated infrastructure routes: the
// health check used by load balancers and the Telegram webhook.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, w *handler.WebhookHandler, webhookPath string) {
	e.GET("/healthz", health)
	e.POST(webhookPath, w.Handle)
}

// RegisterPublic registers the unauthenticated catalog endpoint.  cache is
// applied only here; the operator API always reads live counters.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events", p.ListEvents, cache)
}
