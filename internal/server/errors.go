package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/p0mvn/swaprouter/internal/router"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps router errors onto HTTP status codes. Unrecognized errors are
// internal.
func statusFor(err error) (int, string) {
	var invalidRoute *router.InvalidRouteError
	var oracleErr *router.OracleError

	switch {
	case errors.Is(err, router.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, router.ErrRouteNotFound):
		return http.StatusNotFound, "route not found"
	case errors.As(err, &invalidRoute):
		return http.StatusBadRequest, invalidRoute.Error()
	case errors.Is(err, router.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, router.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient funds"
	case errors.Is(err, router.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity, "price out of representable range"
	case errors.As(err, &oracleErr):
		return http.StatusBadGateway, "price oracle unavailable"
	case errors.Is(err, router.ErrMalformedVenueResponse):
		return http.StatusBadGateway, "malformed venue response"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
