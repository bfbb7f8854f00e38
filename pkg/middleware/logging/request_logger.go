package loggingmw

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

// RequestLogger puts a request scoped logger into the request context and
// writes one line per request. Handler errors are rendered here so the logged
// status matches what the client saw.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			l := base.With(
				"request_id", rid,
				"method", c.Request().Method,
				"path", c.Path(),
				"remote_ip", c.RealIP(),
			)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status

			attrs := []any{"status", status, "duration_ms", time.Since(start).Milliseconds()}
			if uid := c.Get("user_id"); uid != nil {
				attrs = append(attrs, "user_id", uid)
			}
			switch {
			case status >= 500:
				l.Error("request_completed", append(attrs, "error", errString(err))...)
			case status >= 400:
				l.Warn("request_completed", append(attrs, "error", errString(err))...)
			default:
				l.Info("request_completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
