package middleware

// identity.go holds the caller identification shared by the rate limiter.

import (
    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// userID extracts the operator identifier from the JWT stored in context
// by JWTAuth.  It returns "anon" for unauthenticated requests.
func userID(c echo.Context) string {
    if tok, ok := c.Get("user").(*jwt.Token); ok {
        if cl, ok := tok.Claims.(jwt.MapClaims); ok {
            if v, ok := cl["sub"].(string); ok && v != "" {
                return v
            }
        }
    }
    if v, ok := c.Get("user_id").(string); ok && v != "" {
        return v
    }
    return "anon"
}
