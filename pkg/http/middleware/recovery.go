package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	applogger "AriaPull/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const stackSize = 4 << 10

// RequestID echoes the caller's X-Request-ID or assigns a new one, so log
// lines and error bodies can be matched up.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// Recover turns a handler panic into a logged 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]
				reqID := c.Response().Header().Get(echo.HeaderXRequestID)
				l.Error("http handler panic",
					applogger.String("method", c.Request().Method),
					applogger.String("path", c.Path()),
					applogger.String("request_id", reqID),
					applogger.String("panic", fmt.Sprint(r)),
					applogger.String("stack", string(stack)),
				)

				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":     http.StatusInternalServerError,
					"message":    http.StatusText(http.StatusInternalServerError),
					"request_id": reqID,
				})
			}()
			return next(c)
		}
	}
}
