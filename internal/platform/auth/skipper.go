package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass bearer authentication. The websocket stream checks its
// own query-string token.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/metrics":           true,
	"/api/v1/auth/login": true,
	"/ws/stream":         true,
}

// AuthSkipper skips authentication for public paths.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether path is served without a token.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
