package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/auth"
)

// quietPrefixes are scraped or polled often; successful hits log at debug.
var quietPrefixes = []string{"/health", "/metrics"}

// Logger writes one line per request after the handler has run. Handler
// errors are rendered here so the logged status matches the response.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
				logRequest(logger, c, start, err)
				return nil
			}
			logRequest(logger, c, start, nil)
			return nil
		}
	}
}

func logRequest(logger zerolog.Logger, c echo.Context, start time.Time, err error) {
	req := c.Request()
	res := c.Response()

	var evt *zerolog.Event
	switch {
	case res.Status >= 500:
		evt = logger.Error().Err(err)
	case res.Status >= 400:
		evt = logger.Warn()
	case isQuiet(req.URL.Path):
		evt = logger.Debug()
	default:
		evt = logger.Info()
	}

	rid, _ := c.Get(requestIDKey).(string)
	evt.Str("request_id", rid).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("route", c.Path()).
		Int("status", res.Status).
		Int64("bytes_out", res.Size).
		Dur("latency", time.Since(start)).
		Str("actor", auth.UserIDFromContext(req.Context())).
		Msg("request")
}

func isQuiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
