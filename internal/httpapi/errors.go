package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/session"
)

// mapError converts a domain error into an echo.HTTPError.
func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

	case errors.Is(err, domain.ErrCorpusUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "headline index unavailable")

	case errors.Is(err, domain.ErrSynthesis):
		return echo.NewHTTPError(http.StatusBadGateway, "language model failed")

	case errors.Is(err, domain.ErrDelivery):
		return echo.NewHTTPError(http.StatusBadGateway, "email delivery failed")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
