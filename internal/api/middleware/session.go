package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/core/service"
	"github.com/99minutos/backoffice-console/pkg/metrics"
)

const consoleKey = "console"

// CookieConfig describes the console-session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Console binds the request to its console session. A missing or malformed
// cookie starts a fresh console with a new random id.
func Console(sessions *service.Sessions, cfg CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(cfg.Name); err == nil {
				if parsed, err := uuid.Parse(ck.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     cfg.Name,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			console := sessions.Open(c.Request().Context(), id)
			defer func() {
				sessions.Release(console)
				metrics.ConsolesActive.Set(float64(sessions.Len()))
			}()
			c.Set(consoleKey, console)
			return next(c)
		}
	}
}

// ConsoleFrom returns the console bound by the Console middleware.
func ConsoleFrom(c echo.Context) (*service.Console, bool) {
	console, ok := c.Get(consoleKey).(*service.Console)
	return console, ok && console != nil
}
