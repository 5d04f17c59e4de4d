package pagination

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

var ErrInvalidLimit = errors.New("invalid limit")

// LimitParam reads the "limit" query parameter. An absent parameter yields 0,
// which Clamp turns into the caller's default.
func LimitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, ErrInvalidLimit
	}
	return n, nil
}

// Clamp replaces a non-positive limit with def and caps it at max.
// A max of zero means no cap.
func Clamp(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
