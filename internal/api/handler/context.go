package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/backoffice-console/internal/api/middleware"
	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/service"
)

// ctxConsole returns the console bound by the Console middleware. Its absence
// means the route was registered without it.
func ctxConsole(c echo.Context) (*service.Console, error) {
	console, ok := middleware.ConsoleFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "console session missing")
	}
	return console, nil
}

// ctxIdentity returns the identity admitted by the Guard middleware.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok || identity.Role == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authenticated identity")
	}
	return identity, nil
}
