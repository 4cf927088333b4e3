package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps the authentication error taxonomy to HTTP status codes.
//   - Shows backend rejection messages verbatim and generic text otherwise.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var (
		ve *domain.ValidationError
		ae *domain.AuthenticationError
		ne *domain.NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field}
	case errors.Is(err, domain.ErrSubmissionPending):
		return http.StatusConflict, errorResponse{Error: "a submission is already in progress"}
	case errors.Is(err, domain.ErrNoPendingMFA):
		return http.StatusConflict, errorResponse{Error: "no pending MFA verification"}
	case errors.Is(err, domain.ErrSubmissionCancelled):
		return http.StatusConflict, errorResponse{Error: "the submission was cancelled"}
	case errors.Is(err, domain.ErrSessionUnavailable):
		log.Error().Err(err).Str("path", c.Path()).Msg("session storage unavailable")
		c.Response().Header().Set("Retry-After", "1")
		return http.StatusServiceUnavailable, errorResponse{Error: domain.MsgSession}
	case errors.As(err, &ae) && ae.Message != "":
		return http.StatusUnauthorized, errorResponse{Error: ae.Message}
	case errors.Is(err, domain.ErrLoginFailed), errors.As(err, &ae):
		return http.StatusUnauthorized, errorResponse{Error: domain.MsgLoginFailed}
	case errors.As(err, &ne):
		log.Warn().Err(err).Str("path", c.Path()).Msg("backend unreachable")
		return http.StatusBadGateway, errorResponse{Error: domain.MsgNetwork}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
