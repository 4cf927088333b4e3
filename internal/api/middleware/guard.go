package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/policy"
	"github.com/99minutos/backoffice-console/internal/core/ports"
	"github.com/99minutos/backoffice-console/pkg/metrics"
)

const identityKey = "identity"

// Guard enforces the access policy of one route. It must run after Console.
// A nil required list admits any signed-in identity.
func Guard(required []domain.Role, audit ports.AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			console, ok := ConsoleFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "console session missing")
			}

			var current *domain.Identity
			if id, signedIn := console.Store.Identity(); signedIn {
				current = &id
			}
			requested := c.Request().URL.RequestURI()
			d := policy.Decide(current, console.Store.Loading(), required, requested)
			metrics.GuardDecisionsTotal.WithLabelValues(d.Verdict.String()).Inc()

			switch d.Verdict {
			case policy.Wait:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session is loading"})
			case policy.RedirectLogin:
				return c.Redirect(http.StatusSeeOther, d.Location)
			case policy.RedirectDashboard:
				if audit != nil {
					audit.Record(domain.AuthEvent{
						SessionID: console.ID,
						UserID:    current.ID,
						Role:      current.Role,
						Kind:      domain.EventAccessDenied,
						Route:     requested,
						At:        time.Now().UTC(),
					})
				}
				return c.Redirect(http.StatusSeeOther, d.Location)
			}

			c.Set(identityKey, *current)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity admitted by Guard.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(identityKey).(domain.Identity)
	return id, ok
}
