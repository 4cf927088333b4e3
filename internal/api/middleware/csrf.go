package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderCSRFToken carries the anti-forgery token of a signed-in console.
const HeaderCSRFToken = "X-CSRF-Token"

// CSRF rejects state-changing requests of a signed-in console that do not
// echo its anti-forgery token. Anonymous consoles pass through.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			console, ok := ConsoleFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "console session missing")
			}
			if _, signedIn := console.Store.Identity(); !signedIn {
				return next(c)
			}

			want := console.Store.CSRFToken()
			got := c.Request().Header.Get(HeaderCSRFToken)
			if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid anti-forgery token"})
			}
			return next(c)
		}
	}
}
