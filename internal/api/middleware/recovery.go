package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const stackSize = 4096

// Recovery turns a handler panic into a 500. The panic is logged with its
// stack and recorded on the request span.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr := panicError(r)

				req := c.Request()
				attrs := []any{
					"error", perr,
					"method", req.Method,
					"path", req.URL.Path,
					"stack", stack(),
				}
				if reqID, ok := c.Get("request_id").(string); ok {
					attrs = append(attrs, "request_id", reqID)
				}
				log.ErrorContext(req.Context(), "panic recovered", attrs...)

				span := trace.SpanFromContext(req.Context())
				span.RecordError(perr)
				span.SetStatus(codes.Error, perr.Error())

				err = c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}()
			return next(c)
		}
	}
}

// panicError wraps a recovered value so it can be logged and recorded as an
// error while keeping an original error inspectable.
func panicError(r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", e)
	}
	return errors.New("panic: " + fmt.Sprint(r))
}

func stack() string {
	buf := make([]byte, stackSize)
	return string(buf[:runtime.Stack(buf, false)])
}
