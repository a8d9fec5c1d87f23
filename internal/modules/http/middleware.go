package http

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// recoverMiddleware отвечает 500 {"status":"error"} вместо падения.
func recoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("[HTTP] panic on %s %s: %v\n%s", c.Request().Method, c.Path(), r, debug.Stack())
					_ = c.JSON(http.StatusInternalServerError, status("error"))
				}
			}()
			return next(c)
		}
	}
}

func requestLogging(state *State) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			state.Observe(c.Response().Status)
			logger.Info("[HTTP] %s %s - %d (%s)",
				c.Request().Method, c.Request().URL.Path, c.Response().Status, time.Since(start))
			return err
		}
	}
}

// sonicSerializer — JSON echo через sonic.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode body: %v", err)).SetInternal(err)
	}
	return nil
}
