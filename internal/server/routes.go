package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes configures the routes backed by whichever dependencies h
// carries. The relay's status server only has a tracker; the API has the
// rest.
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.HTTPErrorHandler = NotFoundJSON()

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health, SetJSONContentType, SetNoCacheHeaders)

	api := v1.Group("", SetJSONContentType, SetNoCacheHeaders)
	if h.Resolver != nil {
		api.GET("/pools/:id", h.Pool)
		api.GET("/pump/price", h.PumpPrice)
	}
	if h.Accounts != nil {
		api.GET("/pump/accounts", h.PumpAccounts)
	}
	if h.Store != nil {
		api.GET("/pools", h.Pools)
	}
	if h.Tracker != nil {
		api.GET("/tracked", h.Tracked)
	}
	if h.Bus != nil {
		api.GET("/prices/pool/:id", h.LastPoolPrice)
		api.GET("/prices/pump/:tradeId", h.LastPumpPrice)

		// Upgraded connections skip the JSON headers.
		v1.GET("/price/pool", h.PoolPriceStream)
		v1.GET("/price/pump", h.PumpPriceStream)
	}

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
