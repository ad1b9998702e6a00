package server

import (
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/solana-price-relay/internal/cache"
	"github.com/aman-zulfiqar/solana-price-relay/internal/resolver"
	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/labstack/echo/v4"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps resolver and cache errors onto an HTTP status and a short
// client-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, rpc.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound, "no price recorded"
	case errors.Is(err, resolver.ErrUnsupportedPoolOwner):
		return http.StatusUnprocessableEntity, "unsupported pool program"
	case errors.Is(err, resolver.ErrInvalidDecimals):
		return http.StatusUnprocessableEntity, "pool reports invalid decimals"
	case errors.Is(err, resolver.ErrFetchFailed):
		return http.StatusBadGateway, "rpc request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
