// Package internalapi provides HTTP handlers for operator APIs.
// These APIs are only accessible to admin identities.
package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaot623/treeleaf/internal/auth"
	"github.com/xiaot623/treeleaf/internal/service"
)

// Handler handles internal HTTP requests from operators.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo, authn echo.MiddlewareFunc) {
	g := e.Group("/internal", authn, auth.RequireAdmin)

	// Catalog
	g.POST("/products", h.UpsertProduct)
	g.GET("/products", h.ListProducts)

	// Prize codes
	g.GET("/prize_codes", h.ListPrizeCodes)
	g.GET("/prize_codes/:code", h.InspectPrizeCode)
	g.POST("/prize_codes/:code/redeem", h.RedeemPrizeCode)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}
