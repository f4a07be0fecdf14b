package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounded dependency check
    "net/http" // status codes
    "time"     // check timeout

    "github.com/labstack/echo/v4" // web framework
)

// Pinger is any dependency the health check pings.
type Pinger func(ctx context.Context) error

// Health returns a handler that reports "ok" when every check passes and
// 503 with the failing dependency otherwise.
func Health(checks map[string]Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second) // keep load balancers snappy
        defer cancel()
        for name, ping := range checks {
            if err := ping(ctx); err != nil {
                return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "down", "dependency": name})
            }
        }
        return c.String(http.StatusOK, "ok")
    }
}
